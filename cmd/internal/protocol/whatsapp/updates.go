package whatsapp

import (
	"errors"
	"fmt"
	"sync"

	"walink/cmd/internal/linking"
)

// QR channel events emitted by whatsmeow.
const (
	qrEventCode    = "code"
	qrEventSuccess = "success"
	qrEventTimeout = "timeout"
	qrEventError   = "error"
)

const subscriberBuffer = 16

var errQRStream = errors.New("whatsapp: qr stream failed")

// toUpdate maps one QR channel item onto a connection update.
func toUpdate(event, code string, err error) linking.ConnectionUpdate {
	switch event {
	case qrEventCode:
		return linking.ConnectionUpdate{QR: code, Connection: linking.ConnectionConnecting}
	case qrEventSuccess:
		return linking.ConnectionUpdate{Connection: linking.ConnectionOpen}
	case qrEventTimeout:
		return linking.ConnectionUpdate{Connection: linking.ConnectionClose}
	case qrEventError:
		if err == nil {
			err = errQRStream
		}
		return linking.ConnectionUpdate{Connection: linking.ConnectionClose, Err: err}
	default:
		// err-client-outdated, err-scanned-without-multidevice, err-unexpected-state
		return linking.ConnectionUpdate{Connection: linking.ConnectionClose, Err: fmt.Errorf("%w: %s", errQRStream, event)}
	}
}

// hub fans connection updates out to subscribers. The most recent QR
// payload is replayed to late subscribers until the stream ends.
type hub struct {
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	lastQR string
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[*subscription]struct{})}
}

func (h *hub) subscribe() *subscription {
	s := &subscription{h: h, ch: make(chan linking.ConnectionUpdate, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		s.closed = true
		close(s.ch)
		return s
	}
	if h.lastQR != "" {
		s.ch <- linking.ConnectionUpdate{QR: h.lastQR, Connection: linking.ConnectionConnecting}
	}
	h.subs[s] = struct{}{}
	return s
}

// publish never blocks: a subscriber with a full buffer misses the update.
func (h *hub) publish(u linking.ConnectionUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	if u.QR != "" {
		h.lastQR = u.QR
	}
	for s := range h.subs {
		select {
		case s.ch <- u:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	h.lastQR = ""
	for s := range h.subs {
		s.closed = true
		close(s.ch)
	}
	clear(h.subs)
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

type subscription struct {
	h  *hub
	ch chan linking.ConnectionUpdate

	// guarded by h.mu
	closed bool
}

func (s *subscription) Updates() <-chan linking.ConnectionUpdate { return s.ch }

func (s *subscription) Unsubscribe() {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	delete(s.h.subs, s)
	close(s.ch)
}
