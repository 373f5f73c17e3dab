package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"walink/cmd/internal/credstore"
)

// newCredentialStore builds the configured credential backend. The postgres
// backend borrows pool; for redis the returned closer releases the client.
func newCredentialStore(ctx context.Context, cfg Config, pool *pgxpool.Pool, log Logger) (credstore.Store, func() error, error) {
	st, err := openCredentialStore(ctx, cfg, pool, log)
	if err != nil {
		return nil, nil, err
	}
	closeFn := st.Close
	if rs, ok := st.(*credstore.RedisStore); ok {
		closeFn = rs.Client().Close
	}
	return st, closeFn, nil
}

func openCredentialStore(ctx context.Context, cfg Config, pool *pgxpool.Pool, log Logger) (credstore.Store, error) {
	switch cfg.CredBackend {
	case CredBackendMemory:
		log.Info("creds.backend", "backend", CredBackendMemory)
		return credstore.NewMemoryStore(), nil

	case CredBackendFile:
		if err := os.MkdirAll(cfg.CredDir, 0o700); err != nil {
			return nil, fmt.Errorf("creds: create %s: %w", cfg.CredDir, err)
		}
		st, err := credstore.NewFileStore(cfg.CredDir)
		if err != nil {
			return nil, err
		}
		log.Info("creds.backend", "backend", CredBackendFile, "dir", st.Dir())
		return st, nil

	case CredBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("creds: redis ping %s: %w", cfg.RedisAddr, err)
		}
		st, err := credstore.NewRedisStore(credstore.RedisConfig{
			Client:    client,
			KeyPrefix: cfg.RedisPrefix,
			TTL:       cfg.CredTTL,
		})
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		log.Info("creds.backend", "backend", CredBackendRedis, "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return st, nil

	case CredBackendPostgres:
		if pool == nil {
			return nil, fmt.Errorf("%w: postgres credential backend without a database pool", ErrConfig)
		}
		st, err := credstore.NewPostgresStore(pool)
		if err != nil {
			return nil, err
		}
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		log.Info("creds.backend", "backend", CredBackendPostgres)
		return st, nil

	default:
		return nil, fmt.Errorf("%w: unknown credential backend %q", ErrConfig, cfg.CredBackend)
	}
}
