package linking

import (
	"os"
	"time"
)

// Config defines flow timings and device identities for linking sessions.
//
// The defaults reproduce the timings the protocol needs in practice: a
// 1.5s warm-up before the registration flag can be trusted, a further
// second before a pairing code may be requested, and cleanup windows of
// two minutes (pairing) and one minute (QR).
type Config struct {
	// PairWarmUp is the fixed wait before querying registration status
	// when the client exposes no readiness signal.
	PairWarmUp time.Duration

	// PairReadyTimeout bounds the wait on an explicit readiness signal.
	PairReadyTimeout time.Duration

	// PairCodeDelay is the wait between the registration check and the code request.
	PairCodeDelay time.Duration

	// PairTTL is how long a pairing session lives after its code is issued.
	PairTTL time.Duration

	// QRTTL is both the wait for a first QR payload and the lifetime after it is issued.
	QRTTL time.Duration

	PairDevice DeviceLabel
	QRDevice   DeviceLabel
}

// DefaultConfig returns the stock flow configuration.
func DefaultConfig() Config {
	return Config{
		PairWarmUp:       1500 * time.Millisecond,
		PairReadyTimeout: 20 * time.Second,
		PairCodeDelay:    1 * time.Second,
		PairTTL:          120 * time.Second,
		QRTTL:            60 * time.Second,
		PairDevice:       DeviceLabel{OS: "Ubuntu", Browser: "Chrome", Version: "20.0.04"},
		QRDevice:         DeviceLabel{OS: "Ultralight Web", Browser: "Chrome", Version: "1.0.0"},
	}
}

// LoadConfigFromEnv loads linking configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - WALINK_PAIR_WARMUP
//   - WALINK_PAIR_READY_TIMEOUT
//   - WALINK_PAIR_CODE_DELAY
//   - WALINK_PAIR_TTL
//   - WALINK_QR_TTL
//   - WALINK_PAIR_DEVICE, WALINK_QR_DEVICE ("os,browser,version")
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	durations := []struct {
		key      string
		dst      *time.Duration
		positive bool
	}{
		{"WALINK_PAIR_WARMUP", &cfg.PairWarmUp, false},
		{"WALINK_PAIR_READY_TIMEOUT", &cfg.PairReadyTimeout, true},
		{"WALINK_PAIR_CODE_DELAY", &cfg.PairCodeDelay, false},
		{"WALINK_PAIR_TTL", &cfg.PairTTL, true},
		{"WALINK_QR_TTL", &cfg.QRTTL, true},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < 0 || (d.positive && parsed == 0) {
			return Config{}, ErrConfig
		}
		*d.dst = parsed
	}

	if v := os.Getenv("WALINK_PAIR_DEVICE"); v != "" {
		d, err := ParseDeviceLabel(v)
		if err != nil {
			return Config{}, err
		}
		cfg.PairDevice = d
	}
	if v := os.Getenv("WALINK_QR_DEVICE"); v != "" {
		d, err := ParseDeviceLabel(v)
		if err != nil {
			return Config{}, err
		}
		cfg.QRDevice = d
	}

	return cfg, nil
}

func (c Config) deviceFor(k Kind) DeviceLabel {
	if k == KindQR {
		return c.QRDevice
	}
	return c.PairDevice
}

func (c Config) ttlFor(k Kind) time.Duration {
	if k == KindQR {
		return c.QRTTL
	}
	return c.PairTTL
}
