package linking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// PairingFlow links a device with a pairing code typed into the phone.
type PairingFlow struct {
	log *slog.Logger
	m   *Manager
}

// NewPairingFlow constructs a PairingFlow on top of m.
func NewPairingFlow(log *slog.Logger, m *Manager) *PairingFlow {
	if log == nil {
		log = slog.Default()
	}
	return &PairingFlow{log: log, m: m}
}

// Run obtains a formatted pairing code for phone.
//
// Errors: ErrInvalidInput for an empty number, ErrAlreadyRegistered when the
// fresh credentials report a linked device, ErrConnectionFailed for anything
// else (provisioning failures also match ErrProvisioning). Every error path
// closes the session before returning; on success the session is closed by
// its deadline timer after Config.PairTTL.
func (f *PairingFlow) Run(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		f.m.metrics.failure(KindPairing, "invalid_input")
		return "", ErrInvalidInput
	}

	s, err := f.m.Create(ctx, KindPairing)
	if err != nil {
		f.m.metrics.failure(KindPairing, "provisioning")
		return "", fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	code, err := f.drive(ctx, s, phone)
	if err != nil {
		reason := ReasonFailed
		class := "connection_failed"
		if errors.Is(err, ErrAlreadyRegistered) {
			reason = ReasonRegistered
			class = "already_registered"
		}
		f.m.Close(ctx, s, reason)
		f.m.metrics.failure(KindPairing, class)
		f.log.Info("pair.fail", "session_id", s.ID(), "err", err)
		return "", err
	}

	f.m.ScheduleClose(s, f.m.cfg.PairTTL)
	f.m.metrics.milestone(KindPairing)
	f.log.Info("pair.code.issued", "session_id", s.ID(), "ttl", f.m.cfg.PairTTL.String())
	return code, nil
}

func (f *PairingFlow) drive(ctx context.Context, s *Session, phone string) (string, error) {
	cfg := f.m.cfg

	if err := f.m.waitReady(ctx, s, cfg.PairWarmUp, cfg.PairReadyTimeout); err != nil {
		return "", fmt.Errorf("%w: warm-up: %w", ErrConnectionFailed, err)
	}
	if !s.markAwaiting() {
		return "", fmt.Errorf("%w: %w", ErrConnectionFailed, ErrSessionClosed)
	}

	if s.client.IsRegistered() {
		return "", ErrAlreadyRegistered
	}

	if err := f.m.sleep(ctx, s, cfg.PairCodeDelay); err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	raw, err := s.client.RequestPairingCode(ctx, phone)
	if err != nil {
		return "", fmt.Errorf("%w: request code: %w", ErrConnectionFailed, err)
	}
	if raw == "" {
		return "", fmt.Errorf("%w: empty pairing code", ErrConnectionFailed)
	}

	code := FormatPairingCode(raw)
	if !s.deliver() {
		return "", fmt.Errorf("%w: %w", ErrConnectionFailed, ErrSessionClosed)
	}
	return code, nil
}
