package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/store"
	waLog "go.mau.fi/whatsmeow/util/log"

	"walink/cmd/internal/linking"
)

// Factory connects one fresh whatsmeow device per linking session.
type Factory struct {
	log   *slog.Logger
	waLog waLog.Logger
	store *DeviceStore

	// whatsmeow keeps device properties and the protocol version in package
	// globals that are read during the handshake.
	mu sync.Mutex
}

var _ linking.ClientFactory = (*Factory)(nil)

// NewFactory returns a Factory backed by ds.
func NewFactory(log *slog.Logger, waLogger waLog.Logger, ds *DeviceStore) *Factory {
	if log == nil {
		log = slog.Default()
	}
	if waLogger == nil {
		waLogger = NewLogger(log, slog.LevelError)
	}
	return &Factory{log: log, waLog: waLogger, store: ds}
}

// Connect implements linking.ClientFactory. The returned client outlives ctx.
func (f *Factory) Connect(ctx context.Context, p linking.ConnectParams) (linking.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	store.SetOSInfo(p.Device.OS, parseVersion(p.Device.Version))
	store.DeviceProps.PlatformType = platformType(p.Device.Browser).Enum()
	if !p.Version.IsZero() {
		store.SetWAVersion(store.WAVersionContainer(p.Version))
	}

	device := f.store.Container.NewDevice()
	wa := whatsmeow.NewClient(device, f.waLog.Sub(p.SessionID))

	cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	items, err := wa.GetQRChannel(cctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("whatsapp: qr channel: %w", err)
	}

	c := newClient(f.log, p.SessionID, wa, cancel)
	go c.pump(items)

	if err := wa.Connect(); err != nil {
		c.Terminate()
		return nil, fmt.Errorf("whatsapp: connect: %w", err)
	}

	f.log.Debug("wa.connect",
		"session_id", p.SessionID,
		"kind", p.Kind.String(),
		"device", p.Device.String(),
		"version", p.Version.String(),
	)
	return c, nil
}

// parseVersion reads "20.0.04" as {20, 0, 4}. Missing or malformed parts are zero.
func parseVersion(s string) [3]uint32 {
	var out [3]uint32
	for i, part := range strings.SplitN(s, ".", 3) {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			continue
		}
		out[i] = uint32(n)
	}
	return out
}

func platformType(browser string) waCompanionReg.DeviceProps_PlatformType {
	switch strings.ToLower(strings.TrimSpace(browser)) {
	case "chrome":
		return waCompanionReg.DeviceProps_CHROME
	case "firefox":
		return waCompanionReg.DeviceProps_FIREFOX
	case "safari":
		return waCompanionReg.DeviceProps_SAFARI
	case "edge":
		return waCompanionReg.DeviceProps_EDGE
	case "opera":
		return waCompanionReg.DeviceProps_OPERA
	default:
		return waCompanionReg.DeviceProps_DESKTOP
	}
}
