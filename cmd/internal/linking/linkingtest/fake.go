// Package linkingtest provides scriptable in-memory collaborators for
// exercising linking sessions without a network: a fake protocol client,
// a factory that records what it built, and a deterministic QR renderer.
package linkingtest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"walink/cmd/internal/credstore"
	"walink/cmd/internal/linking"
)

// Client is a fake linking.Client. Configure the exported fields before the
// client is handed to a flow; inspect the counters afterwards.
type Client struct {
	Registered bool
	Code       string
	CodeErr    error

	Params linking.ConnectParams

	updates chan linking.ConnectionUpdate

	terminations  atomic.Int32
	unsubscribes  atomic.Int32
	subscriptions atomic.Int32

	mu           sync.Mutex
	pairRequests []string
	save         credstore.SaveFunc
}

// NewClient returns a fake client with a buffered update stream.
func NewClient() *Client {
	return &Client{updates: make(chan linking.ConnectionUpdate, 64)}
}

// Emit queues a connection update.
func (c *Client) Emit(u linking.ConnectionUpdate) { c.updates <- u }

// CloseUpdates ends the update stream.
func (c *Client) CloseUpdates() { close(c.updates) }

// Pending returns how many emitted updates nobody consumed.
func (c *Client) Pending() int { return len(c.updates) }

// OnCredentialUpdate implements linking.Client.
func (c *Client) OnCredentialUpdate(save credstore.SaveFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.save = save
}

// SaveCredentials pushes u through the registered credential sink, the way a
// protocol client does when its keys change.
func (c *Client) SaveCredentials(ctx context.Context, u credstore.Update) error {
	c.mu.Lock()
	save := c.save
	c.mu.Unlock()
	if save == nil {
		return errors.New("linkingtest: no credential sink registered")
	}
	return save(ctx, u)
}

// IsRegistered implements linking.Client.
func (c *Client) IsRegistered() bool { return c.Registered }

// RequestPairingCode implements linking.Client.
func (c *Client) RequestPairingCode(_ context.Context, phone string) (string, error) {
	c.mu.Lock()
	c.pairRequests = append(c.pairRequests, phone)
	c.mu.Unlock()
	if c.CodeErr != nil {
		return "", c.CodeErr
	}
	return c.Code, nil
}

// SubscribeConnectionUpdates implements linking.Client.
func (c *Client) SubscribeConnectionUpdates() linking.Subscription {
	c.subscriptions.Add(1)
	return &subscription{c: c}
}

// Terminate implements linking.Client.
func (c *Client) Terminate() { c.terminations.Add(1) }

// Terminations returns how many times Terminate was called.
func (c *Client) Terminations() int { return int(c.terminations.Load()) }

// Unsubscribes returns how many times a subscription was released.
func (c *Client) Unsubscribes() int { return int(c.unsubscribes.Load()) }

// Subscriptions returns how many subscriptions were opened.
func (c *Client) Subscriptions() int { return int(c.subscriptions.Load()) }

// PairRequests returns the phone numbers codes were requested for.
func (c *Client) PairRequests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.pairRequests...)
}

type subscription struct {
	c    *Client
	once sync.Once
}

func (s *subscription) Updates() <-chan linking.ConnectionUpdate { return s.c.updates }

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.c.unsubscribes.Add(1) })
}

// ReadyClient is a Client that also signals readiness through Ready.
type ReadyClient struct {
	*Client
	Ready    chan struct{}
	ReadyErr error
}

// NewReadyClient returns a ReadyClient whose Ready channel is still open.
func NewReadyClient() *ReadyClient {
	return &ReadyClient{Client: NewClient(), Ready: make(chan struct{})}
}

// WaitReady implements linking.ReadinessWaiter.
func (c *ReadyClient) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.Ready:
		return c.ReadyErr
	}
}

// Factory is a fake linking.ClientFactory.
type Factory struct {
	// Err, when set, fails every Connect.
	Err error
	// New builds the client for a connection; defaults to NewClient.
	New func(p linking.ConnectParams) linking.Client

	mu      sync.Mutex
	params  []linking.ConnectParams
	clients []linking.Client
}

// Connect implements linking.ClientFactory.
func (f *Factory) Connect(_ context.Context, p linking.ConnectParams) (linking.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.params = append(f.params, p)
	if f.Err != nil {
		return nil, f.Err
	}

	var c linking.Client
	if f.New != nil {
		c = f.New(p)
	} else {
		fc := NewClient()
		fc.Params = p
		c = fc
	}
	f.clients = append(f.clients, c)
	return c, nil
}

// Calls returns the parameters of every Connect call.
func (f *Factory) Calls() []linking.ConnectParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]linking.ConnectParams(nil), f.params...)
}

// Clients returns every client built so far.
func (f *Factory) Clients() []linking.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]linking.Client(nil), f.clients...)
}

// Renderer is a deterministic linking.QRRenderer.
type Renderer struct {
	Err error

	mu       sync.Mutex
	payloads []string
}

// Render implements linking.QRRenderer.
func (r *Renderer) Render(payload string) (linking.QRImage, error) {
	r.mu.Lock()
	r.payloads = append(r.payloads, payload)
	r.mu.Unlock()
	if r.Err != nil {
		return linking.QRImage{}, r.Err
	}
	return linking.QRImage{Payload: payload, DataURL: "data:text/plain," + payload}, nil
}

// Payloads returns every payload rendered so far.
func (r *Renderer) Payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}
