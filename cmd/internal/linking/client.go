package linking

import (
	"context"
	"fmt"
	"strings"

	"walink/cmd/internal/credstore"
)

// DeviceLabel is the identity a linking client presents to the phone
// ("Ubuntu / Chrome / 20.0.04").
type DeviceLabel struct {
	OS      string
	Browser string
	Version string
}

func (d DeviceLabel) String() string {
	return d.OS + "," + d.Browser + "," + d.Version
}

// ParseDeviceLabel parses "os,browser,version".
func ParseDeviceLabel(s string) (DeviceLabel, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return DeviceLabel{}, fmt.Errorf("%w: device label %q must be os,browser,version", ErrConfig, s)
	}
	d := DeviceLabel{
		OS:      strings.TrimSpace(parts[0]),
		Browser: strings.TrimSpace(parts[1]),
		Version: strings.TrimSpace(parts[2]),
	}
	if d.OS == "" || d.Browser == "" || d.Version == "" {
		return DeviceLabel{}, fmt.Errorf("%w: device label %q has empty fields", ErrConfig, s)
	}
	return d, nil
}

// ConnectionState mirrors the protocol client's coarse connection status.
type ConnectionState string

const (
	ConnectionConnecting ConnectionState = "connecting"
	ConnectionOpen       ConnectionState = "open"
	ConnectionClose      ConnectionState = "close"
)

// ConnectionUpdate is one event from a client's connection update stream.
// Most updates carry no QR payload; a non-nil Err is terminal.
type ConnectionUpdate struct {
	QR         string
	Connection ConnectionState
	Err        error
}

// Subscription is a live registration on a client's update stream.
type Subscription interface {
	Updates() <-chan ConnectionUpdate
	Unsubscribe()
}

// Client is a connected protocol client bound to one credential context.
type Client interface {
	// OnCredentialUpdate routes every credential mutation through save.
	OnCredentialUpdate(save credstore.SaveFunc)
	IsRegistered() bool
	// RequestPairingCode returns the raw, unformatted pairing code.
	RequestPairingCode(ctx context.Context, phone string) (string, error)
	SubscribeConnectionUpdates() Subscription
	// Terminate closes the connection. No further I/O happens afterwards.
	Terminate()
}

// ReadinessWaiter is implemented by clients that can signal when they are
// ready for registration queries. Clients without it get a fixed warm-up delay.
type ReadinessWaiter interface {
	WaitReady(ctx context.Context) error
}

// ConnectParams carries everything a factory needs to build a client.
type ConnectParams struct {
	SessionID   string
	Kind        Kind
	Credentials *credstore.Context
	Version     Version
	Device      DeviceLabel
}

// ClientFactory constructs connected clients.
type ClientFactory interface {
	Connect(ctx context.Context, p ConnectParams) (Client, error)
}

// QRImage is a rendered QR payload.
type QRImage struct {
	Payload string
	// DataURL is a renderable image, e.g. "data:image/png;base64,...".
	DataURL string
}

// QRRenderer turns a raw QR payload into an image.
type QRRenderer interface {
	Render(payload string) (QRImage, error)
}
