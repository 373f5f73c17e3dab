package linkapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walink/cmd/internal/credstore"
	"walink/cmd/internal/linking"
	"walink/cmd/internal/linking/linkingtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newServer wires the real flows onto fake collaborators.
func newServer(t *testing.T, factory *linkingtest.Factory, renderer *linkingtest.Renderer) (*httptest.Server, *credstore.MemoryStore) {
	t.Helper()

	cfg := linking.DefaultConfig()
	cfg.PairWarmUp = 0
	cfg.PairCodeDelay = 0

	store := credstore.NewMemoryStore()
	m, err := linking.NewManager(testLogger(), cfg, store, factory,
		linking.StaticVersion{2, 3000, 1},
		linking.WithClock(clockwork.NewFakeClockAt(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC))),
	)
	require.NoError(t, err)
	t.Cleanup(func() { m.CloseAll(context.Background()) })

	h, err := NewHandler(testLogger(), linking.NewPairingFlow(testLogger(), m), linking.NewQRFlow(testLogger(), m, renderer))
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()

	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "application/json; charset=utf-8", res.Header.Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return res.StatusCode, body
}

func TestPairEndpoint(t *testing.T) {
	factory := &linkingtest.Factory{New: func(linking.ConnectParams) linking.Client {
		c := linkingtest.NewClient()
		c.Code = "ABCDEFGH"
		return c
	}}
	srv, _ := newServer(t, factory, &linkingtest.Renderer{})

	status, body := getJSON(t, srv.URL+"/pair?number=15551234567")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"status": true, "code": "ABCD-EFGH"}, body)
}

func TestPairEndpointErrors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		factory *linkingtest.Factory
		want    string
	}{
		{
			name:    "missing number",
			query:   "",
			factory: &linkingtest.Factory{},
			want:    MsgNumberRequired,
		},
		{
			name:  "already registered",
			query: "?number=15551234567",
			factory: &linkingtest.Factory{New: func(linking.ConnectParams) linking.Client {
				c := linkingtest.NewClient()
				c.Registered = true
				return c
			}},
			want: MsgAlreadyRegistered,
		},
		{
			name:  "code request rejected",
			query: "?number=abc",
			factory: &linkingtest.Factory{New: func(linking.ConnectParams) linking.Client {
				c := linkingtest.NewClient()
				c.CodeErr = errors.New("bad number")
				return c
			}},
			want: MsgConnectionFailed,
		},
		{
			name:    "provisioning failed",
			query:   "?number=15551234567",
			factory: &linkingtest.Factory{Err: errors.New("dial timeout")},
			want:    MsgConnectionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newServer(t, tt.factory, &linkingtest.Renderer{})

			status, body := getJSON(t, srv.URL+"/pair"+tt.query)
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, map[string]any{"error": tt.want}, body)
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestQREndpoint(t *testing.T) {
	factory := &linkingtest.Factory{New: func(linking.ConnectParams) linking.Client {
		c := linkingtest.NewClient()
		c.Emit(linking.ConnectionUpdate{QR: ""})
		c.Emit(linking.ConnectionUpdate{QR: "XYZ"})
		c.Emit(linking.ConnectionUpdate{QR: "ABC"})
		return c
	}}
	renderer := &linkingtest.Renderer{}
	srv, _ := newServer(t, factory, renderer)

	status, body := getJSON(t, srv.URL+"/qr")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"status": true, "qr_img": "data:text/plain,XYZ"}, body)
	assert.Equal(t, []string{"XYZ"}, renderer.Payloads())
}

func TestQREndpointProvisioningFailure(t *testing.T) {
	srv, store := newServer(t, &linkingtest.Factory{Err: errors.New("connect refused")}, &linkingtest.Renderer{})

	status, body := getJSON(t, srv.URL+"/qr")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"error": MsgQRFailed}, body)
	assert.Equal(t, 0, store.Len())
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newServer(t, &linkingtest.Factory{}, &linkingtest.Renderer{})

	for _, path := range []string{"/pair?number=1", "/qr"} {
		res, err := http.Post(srv.URL+path, "application/json", nil)
		require.NoError(t, err)
		_ = res.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode, path)
	}
}

func TestNewHandlerRequiresFlows(t *testing.T) {
	_, err := NewHandler(nil, nil, nil)
	require.Error(t, err)
}
