package whatsapp

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"

	"walink/cmd/internal/linking"
)

func TestToUpdate(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		event string
		code  string
		err   error
		want  linking.ConnectionUpdate
		isErr bool
	}{
		{name: "code", event: "code", code: "2@abc", want: linking.ConnectionUpdate{QR: "2@abc", Connection: linking.ConnectionConnecting}},
		{name: "success", event: "success", want: linking.ConnectionUpdate{Connection: linking.ConnectionOpen}},
		{name: "timeout", event: "timeout", want: linking.ConnectionUpdate{Connection: linking.ConnectionClose}},
		{name: "error with cause", event: "error", err: boom, isErr: true},
		{name: "error without cause", event: "error", isErr: true},
		{name: "client outdated", event: "err-client-outdated", isErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toUpdate(tt.event, tt.code, tt.err)
			if !tt.isErr {
				assert.Equal(t, tt.want, got)
				return
			}
			require.Error(t, got.Err)
			assert.Equal(t, linking.ConnectionClose, got.Connection)
			assert.Empty(t, got.QR)
			if tt.err != nil {
				assert.ErrorIs(t, got.Err, tt.err)
			} else {
				assert.ErrorIs(t, got.Err, errQRStream)
			}
		})
	}
}

func TestHubReplaysLastQRToLateSubscribers(t *testing.T) {
	h := newHub()
	h.publish(linking.ConnectionUpdate{Connection: linking.ConnectionConnecting})
	h.publish(linking.ConnectionUpdate{QR: "first"})
	h.publish(linking.ConnectionUpdate{QR: "second"})

	sub := h.subscribe()
	u := <-sub.Updates()
	assert.Equal(t, "second", u.QR)

	h.publish(linking.ConnectionUpdate{QR: "third"})
	u = <-sub.Updates()
	assert.Equal(t, "third", u.QR)
}

func TestHubFanOutAndUnsubscribe(t *testing.T) {
	h := newHub()
	a := h.subscribe()
	b := h.subscribe()
	require.Equal(t, 2, h.len())

	h.publish(linking.ConnectionUpdate{QR: "XYZ"})
	assert.Equal(t, "XYZ", (<-a.Updates()).QR)
	assert.Equal(t, "XYZ", (<-b.Updates()).QR)

	a.Unsubscribe()
	a.Unsubscribe()
	assert.Equal(t, 1, h.len())
	_, ok := <-a.Updates()
	assert.False(t, ok, "unsubscribed channel is closed")

	h.close()
	_, ok = <-b.Updates()
	assert.False(t, ok, "hub close ends every stream")
	b.Unsubscribe()

	late := h.subscribe()
	_, ok = <-late.Updates()
	assert.False(t, ok, "subscribing to a closed hub yields a closed stream")
}

func TestHubPublishNeverBlocks(t *testing.T) {
	h := newHub()
	sub := h.subscribe()
	for i := 0; i < subscriberBuffer*4; i++ {
		h.publish(linking.ConnectionUpdate{QR: "x"})
	}
	assert.Len(t, sub.Updates(), subscriberBuffer)
}

func TestParseVersion(t *testing.T) {
	assert.Equal(t, [3]uint32{20, 0, 4}, parseVersion("20.0.04"))
	assert.Equal(t, [3]uint32{1, 0, 0}, parseVersion("1.0.0"))
	assert.Equal(t, [3]uint32{2, 0, 0}, parseVersion("2"))
	assert.Equal(t, [3]uint32{0, 5, 0}, parseVersion("x.5"))
}

func TestPlatformType(t *testing.T) {
	assert.Equal(t, waCompanionReg.DeviceProps_CHROME, platformType("Chrome"))
	assert.Equal(t, waCompanionReg.DeviceProps_SAFARI, platformType(" safari "))
	assert.Equal(t, waCompanionReg.DeviceProps_DESKTOP, platformType("Netscape"))
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "15551234567", digitsOnly("+1 (555) 123-4567"))
	assert.Equal(t, "", digitsOnly("abc"))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:./sessions/devices.db?_foreign_keys=on&_busy_timeout=5000", sqliteDSN("./sessions/devices.db"))
}

func TestLoggerBridge(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l := NewLogger(base, slog.LevelWarn)
	l.Infof("dropped %d", 1)
	l.Warnf("kept %s", "warn")
	l.Sub("Client").Sub("Socket").Errorf("socket %s", "closed")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept warn")
	assert.Contains(t, out, "socket closed")
	assert.Contains(t, out, "wa_module=Client/Socket")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(""))
}
