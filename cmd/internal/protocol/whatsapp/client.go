package whatsapp

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"

	"walink/cmd/internal/credstore"
	"walink/cmd/internal/linking"
)

const (
	pairClientDisplayName = "Chrome (Linux)"
	persistTimeout        = 5 * time.Second
	deleteTimeout         = 5 * time.Second
)

var errClientTerminated = errors.New("whatsapp: client terminated")

// Credential entry names written on identity events.
const (
	credJID          = "identity.jid"
	credPlatform     = "identity.platform"
	credBusinessName = "identity.business_name"
	credLinkedAt     = "identity.linked_at"
)

// client wraps one whatsmeow client for the lifetime of a linking session.
type client struct {
	log       *slog.Logger
	sessionID string
	wa        *whatsmeow.Client

	hub    *hub
	cancel context.CancelFunc

	ready     chan struct{}
	readyOnce sync.Once
	readyErr  error

	handlerID uint32

	mu   sync.Mutex
	save credstore.SaveFunc

	terminate sync.Once
}

var (
	_ linking.Client          = (*client)(nil)
	_ linking.ReadinessWaiter = (*client)(nil)
)

func newClient(log *slog.Logger, sessionID string, wa *whatsmeow.Client, cancel context.CancelFunc) *client {
	c := &client{
		log:       log,
		sessionID: sessionID,
		wa:        wa,
		hub:       newHub(),
		cancel:    cancel,
		ready:     make(chan struct{}),
	}
	c.handlerID = wa.AddEventHandler(c.handleEvent)
	return c
}

// pump forwards the QR channel into the hub until it closes. The first code
// marks the client ready for a pairing code request.
func (c *client) pump(items <-chan whatsmeow.QRChannelItem) {
	for item := range items {
		u := toUpdate(item.Event, item.Code, item.Error)
		switch {
		case u.QR != "":
			c.markReady(nil)
		case u.Err != nil:
			c.markReady(u.Err)
		}
		c.hub.publish(u)
	}
	c.markReady(errQRStream)
	c.hub.close()
}

func (c *client) markReady(err error) {
	c.readyOnce.Do(func() {
		c.readyErr = err
		close(c.ready)
	})
}

// WaitReady implements linking.ReadinessWaiter.
func (c *client) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ready:
		return c.readyErr
	}
}

func (c *client) handleEvent(evt any) {
	switch e := evt.(type) {
	case *events.PairSuccess:
		c.persist(credstore.Update{
			credJID:          []byte(e.ID.String()),
			credPlatform:     []byte(e.Platform),
			credBusinessName: []byte(e.BusinessName),
			credLinkedAt:     []byte(time.Now().UTC().Format(time.RFC3339)),
		})
	case *events.Connected:
		if id := c.wa.Store.ID; id != nil {
			c.persist(credstore.Update{credJID: []byte(id.String())})
		}
	case *events.LoggedOut:
		c.hub.publish(linking.ConnectionUpdate{Connection: linking.ConnectionClose, Err: errors.New("whatsapp: logged out")})
	}
}

func (c *client) persist(u credstore.Update) {
	c.mu.Lock()
	save := c.save
	c.mu.Unlock()
	if save == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := save(ctx, u); err != nil {
		c.log.Warn("wa.creds.save.fail", "session_id", c.sessionID, "err", err)
	}
}

// OnCredentialUpdate implements linking.Client.
func (c *client) OnCredentialUpdate(save credstore.SaveFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.save = save
}

// IsRegistered implements linking.Client.
func (c *client) IsRegistered() bool {
	return c.wa.Store.ID != nil
}

// RequestPairingCode implements linking.Client. The code comes back without separators.
func (c *client) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	select {
	case <-c.ready:
	default:
		return "", linking.ErrNotReady
	}
	code, err := c.wa.PairPhone(ctx, digitsOnly(phone), true, whatsmeow.PairClientChrome, pairClientDisplayName)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(code, "-", ""), nil
}

// SubscribeConnectionUpdates implements linking.Client.
func (c *client) SubscribeConnectionUpdates() linking.Subscription {
	return c.hub.subscribe()
}

// Terminate implements linking.Client. The device row is removed so that an
// abandoned link leaves no keys behind.
func (c *client) Terminate() {
	c.terminate.Do(func() {
		c.wa.RemoveEventHandler(c.handlerID)
		c.cancel()
		c.wa.Disconnect()
		c.markReady(errClientTerminated)
		c.hub.close()

		if c.wa.Store.ID == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
		defer cancel()
		if err := c.wa.Store.Delete(ctx); err != nil {
			c.log.Warn("wa.device.delete.fail", "session_id", c.sessionID, "err", err)
		}
	})
}

func digitsOnly(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
