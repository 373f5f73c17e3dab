package whatsapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// DeviceStoreConfig selects where whatsmeow keeps device keys.
// Pool wins when both are set.
type DeviceStoreConfig struct {
	Pool       *pgxpool.Pool
	SQLitePath string
}

// DeviceStore owns the whatsmeow container and its database handle.
type DeviceStore struct {
	Container *sqlstore.Container
	db        *sql.DB
	dialect   string
}

// OpenDeviceStore opens the device database and upgrades its schema.
func OpenDeviceStore(ctx context.Context, log waLog.Logger, cfg DeviceStoreConfig) (*DeviceStore, error) {
	var (
		db      *sql.DB
		dialect string
	)
	switch {
	case cfg.Pool != nil:
		db = stdlib.OpenDBFromPool(cfg.Pool)
		dialect = "postgres"
	case cfg.SQLitePath != "":
		var err error
		db, err = sql.Open("sqlite3", sqliteDSN(cfg.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("whatsapp: open sqlite: %w", err)
		}
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		dialect = "sqlite3"
	default:
		return nil, errors.New("whatsapp: device store needs a postgres pool or a sqlite path")
	}

	container := sqlstore.NewWithDB(db, dialect, log)
	if err := container.Upgrade(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("whatsapp: upgrade %s device store: %w", dialect, err)
	}
	return &DeviceStore{Container: container, db: db, dialect: dialect}, nil
}

// Dialect returns "postgres" or "sqlite3".
func (s *DeviceStore) Dialect() string { return s.dialect }

// Close releases the database handle. A pool passed in by the caller stays open.
func (s *DeviceStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
}
