package linking

import (
	"context"
	"fmt"
	"log/slog"
)

// QRFlow links a device by scanning a QR image.
type QRFlow struct {
	log    *slog.Logger
	m      *Manager
	render QRRenderer
}

// NewQRFlow constructs a QRFlow on top of m.
func NewQRFlow(log *slog.Logger, m *Manager, render QRRenderer) *QRFlow {
	if log == nil {
		log = slog.Default()
	}
	return &QRFlow{log: log, m: m, render: render}
}

// Run waits for the first QR payload the client emits and returns it rendered.
//
// The session's deadline is armed up front, so a client that never produces
// a payload is still closed after Config.QRTTL; after delivery the deadline is
// re-armed for another QRTTL. Errors match ErrQRGenerationFailed (and
// ErrProvisioning when the session could not be created).
func (f *QRFlow) Run(ctx context.Context) (QRImage, error) {
	s, err := f.m.Create(ctx, KindQR)
	if err != nil {
		f.m.metrics.failure(KindQR, "provisioning")
		return QRImage{}, fmt.Errorf("%w: %w", ErrQRGenerationFailed, err)
	}

	f.m.ScheduleClose(s, f.m.cfg.QRTTL)
	s.markAwaiting()

	sub := s.client.SubscribeConnectionUpdates()
	img, err := f.await(ctx, s, sub)
	if err != nil {
		sub.Unsubscribe()
		f.m.Close(ctx, s, ReasonFailed)
		f.m.metrics.failure(KindQR, "qr_generation_failed")
		f.log.Info("qr.fail", "session_id", s.ID(), "err", err)
		return QRImage{}, err
	}

	f.m.ScheduleClose(s, f.m.cfg.QRTTL)
	f.m.metrics.milestone(KindQR)
	f.log.Info("qr.issued", "session_id", s.ID(), "ttl", f.m.cfg.QRTTL.String())
	return img, nil
}

func (f *QRFlow) await(ctx context.Context, s *Session, sub Subscription) (QRImage, error) {
	payload, err := firstQR(ctx, s.Done(), sub.Updates())
	if err != nil {
		return QRImage{}, fmt.Errorf("%w: %w", ErrQRGenerationFailed, err)
	}

	img, err := f.render.Render(payload)
	if err != nil {
		return QRImage{}, fmt.Errorf("%w: render: %w", ErrQRGenerationFailed, err)
	}

	if !s.deliver() {
		return QRImage{}, fmt.Errorf("%w: %w", ErrQRGenerationFailed, ErrSessionClosed)
	}
	// The stream keeps regenerating payloads until scanned; nobody listens past this point.
	sub.Unsubscribe()
	return img, nil
}

// firstQR suspends until the first update carrying a QR payload.
// Updates without a payload are skipped; a closed stream, a terminal update,
// a canceled ctx or a closed session end the wait with an error.
func firstQR(ctx context.Context, done <-chan struct{}, updates <-chan ConnectionUpdate) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-done:
			return "", ErrSessionClosed
		case u, ok := <-updates:
			if !ok {
				return "", ErrUpdatesClosed
			}
			if u.Err != nil {
				return "", u.Err
			}
			if u.QR != "" {
				return u.QR, nil
			}
			if u.Connection == ConnectionClose {
				return "", ErrUpdatesClosed
			}
		}
	}
}
