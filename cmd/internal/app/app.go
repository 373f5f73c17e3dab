// Package app wires the walink server runtime: config, logging, storage
// backends, the protocol client, linking flows and HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"walink/cmd/internal/credstore"
	"walink/cmd/internal/linking"
	linkapi "walink/cmd/internal/linking/api"
	"walink/cmd/internal/protocol/whatsapp"
	"walink/cmd/internal/qrimage"
)

// App is the walink server runtime.
type App struct {
	cfg Config
	log Logger

	dbPool  *pgxpool.Pool
	creds   credstore.Store
	manager *linking.Manager
	sweeper *sweeper
	handler http.Handler

	// closers run in reverse order at shutdown.
	closers []func() error
}

type options struct {
	factory  linking.ClientFactory
	versions linking.VersionSource
	renderer linking.QRRenderer
}

// Option overrides a collaborator New would otherwise build.
type Option func(*options)

// WithClientFactory replaces the WhatsApp client factory (no device store is opened).
func WithClientFactory(f linking.ClientFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithVersionSource replaces the protocol version lookup.
func WithVersionSource(v linking.VersionSource) Option {
	return func(o *options) { o.versions = v }
}

// WithQRRenderer replaces the PNG renderer.
func WithQRRenderer(r linking.QRRenderer) Option {
	return func(o *options) { o.renderer = r }
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger, opts ...Option) (_ *App, err error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	if cfg.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		a.dbPool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		log.Info("db.enabled")
	}

	creds, closeCreds, err := newCredentialStore(ctx, cfg, a.dbPool, log)
	if err != nil {
		return nil, err
	}
	a.creds = creds
	a.closers = append(a.closers, closeCreds)

	if o.factory == nil {
		o.factory, err = a.newWhatsAppFactory(ctx)
		if err != nil {
			return nil, err
		}
	}
	if o.versions == nil {
		o.versions = linking.NewCachedVersionSource(log,
			whatsapp.VersionSource{HTTP: &http.Client{Timeout: 10 * time.Second}},
			whatsapp.BundledVersion(),
		)
	}
	if o.renderer == nil {
		o.renderer = qrimage.New(cfg.QRImageSize)
	}

	var gatherer prometheus.Gatherer
	var metrics *linking.Metrics
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics, err = linking.NewMetrics(reg)
		if err != nil {
			return nil, err
		}
		gatherer = reg
	}

	manager, err := linking.NewManager(log, cfg.Linking, creds, o.factory, o.versions, linking.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}
	a.manager = manager

	link, err := linkapi.NewHandler(log,
		linking.NewPairingFlow(log, manager),
		linking.NewQRFlow(log, manager, o.renderer),
	)
	if err != nil {
		return nil, err
	}

	a.sweeper, err = newSweeper(log, manager, cfg.SweepInterval)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, routes{
		log:       log,
		dbPool:    a.dbPool,
		metrics:   gatherer,
		link:      link,
		staticDir: cfg.StaticDir,
	})
	a.handler = WithRequestLogging(mux, log)

	return a, nil
}

func (a *App) newWhatsAppFactory(ctx context.Context) (linking.ClientFactory, error) {
	waLogger := whatsapp.NewLogger(a.log, whatsapp.ParseLevel(a.cfg.ProtoLogLevel))

	dcfg := whatsapp.DeviceStoreConfig{Pool: a.dbPool}
	if a.dbPool == nil {
		if err := os.MkdirAll(filepath.Dir(a.cfg.DeviceDB), 0o700); err != nil {
			return nil, fmt.Errorf("device store: %w", err)
		}
		dcfg.SQLitePath = a.cfg.DeviceDB
	}

	ds, err := whatsapp.OpenDeviceStore(ctx, waLogger.Sub("Database"), dcfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, ds.Close)
	a.log.Info("device_store.open", "dialect", ds.Dialect())

	return whatsapp.NewFactory(a.log, waLogger, ds), nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Manager returns the session manager.
func (a *App) Manager() *linking.Manager { return a.manager }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 90*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.sweeper.start()
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"cred_backend", a.cfg.CredBackend,
		"db_enabled", a.dbPool != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		if runErr == nil {
			runErr = err
		}
	}

	a.Close(shutdownCtx)
	a.log.Info("server.stopped")
	return runErr
}

// Close stops the sweeper, closes every live session and releases storage.
func (a *App) Close(ctx context.Context) {
	if a.sweeper != nil {
		a.sweeper.stop()
	}
	if a.manager != nil {
		if n := a.manager.CloseAll(ctx); n > 0 {
			a.log.Info("sessions.closed", "count", n)
		}
	}
	a.closeResources()
}

func (a *App) closeResources() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error("resource.close.fail", "err", err)
		}
	}
	a.closers = nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
