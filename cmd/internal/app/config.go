package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"walink/cmd/internal/linking"
)

// Credential backends.
const (
	CredBackendMemory   = "memory"
	CredBackendFile     = "file"
	CredBackendRedis    = "redis"
	CredBackendPostgres = "postgres"
)

// ErrConfig is returned when the server configuration is inconsistent.
var ErrConfig = errors.New("invalid configuration")

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration

	// StaticDir is served at "/"; empty disables static serving.
	StaticDir string

	CredBackend string
	CredDir     string
	CredTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// DeviceDB is the sqlite file for protocol device keys when DatabaseURL is empty.
	DeviceDB      string
	ProtoLogLevel string
	QRImageSize   int

	SweepInterval  time.Duration
	MetricsEnabled bool

	Linking linking.Config
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() (Config, error) {
	lcfg, err := linking.LoadConfigFromEnv()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPAddr:  EnvString("WALINK_HTTP_ADDR", "0.0.0.0:3000"),
		LogLevel:  EnvString("WALINK_LOG_LEVEL", "info"),
		LogFormat: EnvString("WALINK_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("WALINK_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("WALINK_HTTP_READ_TIMEOUT", 15*time.Second),
		// Handlers block until a code or QR is issued.
		WriteTimeout:    EnvDuration("WALINK_HTTP_WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:     EnvDuration("WALINK_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:  EnvInt("WALINK_HTTP_MAX_HEADER_BYTES", 1<<20),
		ShutdownTimeout: EnvDuration("WALINK_SHUTDOWN_TIMEOUT", 10*time.Second),

		StaticDir: EnvStringAllowEmpty("WALINK_STATIC_DIR", "./public"),

		CredBackend: strings.ToLower(EnvString("WALINK_CRED_BACKEND", CredBackendFile)),
		CredDir:     EnvString("WALINK_CRED_DIR", "./sessions"),
		CredTTL:     EnvDuration("WALINK_CRED_TTL", 0),

		RedisAddr:     EnvString("WALINK_REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: EnvString("WALINK_REDIS_PASSWORD", ""),
		RedisDB:       EnvInt("WALINK_REDIS_DB", 0),
		RedisPrefix:   EnvString("WALINK_REDIS_PREFIX", "walink:creds:"),

		DatabaseURL: EnvString("WALINK_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("WALINK_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("WALINK_DB_MIN_CONNS", 0),

		DeviceDB:      EnvString("WALINK_DEVICE_DB", "./sessions/devices.db"),
		ProtoLogLevel: EnvString("WALINK_PROTO_LOG_LEVEL", "error"),
		QRImageSize:   EnvInt("WALINK_QR_SIZE", 256),

		SweepInterval:  EnvDuration("WALINK_SWEEP_INTERVAL", 15*time.Second),
		MetricsEnabled: EnvBool("WALINK_METRICS_ENABLED", true),

		Linking: lcfg,
	}
	return cfg, cfg.Validate()
}

// Validate reports backend settings that cannot work together.
func (c Config) Validate() error {
	switch c.CredBackend {
	case CredBackendMemory, CredBackendFile, CredBackendRedis:
	case CredBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: credential backend %q needs WALINK_DATABASE_URL", ErrConfig, c.CredBackend)
		}
	default:
		return fmt.Errorf("%w: unknown credential backend %q", ErrConfig, c.CredBackend)
	}
	if c.CredBackend == CredBackendFile && c.CredDir == "" {
		return fmt.Errorf("%w: file credential backend needs WALINK_CRED_DIR", ErrConfig)
	}
	if c.DatabaseURL == "" && c.DeviceDB == "" {
		return fmt.Errorf("%w: device keys need WALINK_DATABASE_URL or WALINK_DEVICE_DB", ErrConfig)
	}
	switch c.LogFormat {
	case "json", "pretty":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrConfig, c.LogFormat)
	}
	return nil
}
