package store

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"
)

var sqliteMigrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "0001_create_runs",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS runs (
					id TEXT PRIMARY KEY,
					email_id TEXT NOT NULL,
					state TEXT NOT NULL,
					payload TEXT NOT NULL,
					detection TEXT,
					reply TEXT,
					send_result TEXT,
					error TEXT NOT NULL DEFAULT '',
					created_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state)`,
				`CREATE INDEX IF NOT EXISTS idx_runs_updated_at ON runs(updated_at)`,
			},
			Down: []string{`DROP TABLE runs`},
		},
	},
}

// SQLiteStore is a SQLite implementation of the RunStore interface
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens the database at dbPath and applies pending migrations
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// Single writer keeps :memory: databases on one connection too
	db.SetMaxOpenConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set journal mode: %w", err)
		}
	}
	if _, err := db.Exec(`PRAGMA synchronous=normal`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	if err := migrateUp(db, "sqlite3", sqliteMigrations, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Run store opened", zap.String("type", "sqlite"), zap.String("path", dbPath))

	return &SQLiteStore{sqlStore{db: db, logger: logger, isDuplicate: isSQLiteDuplicate}}, nil
}

func isSQLiteDuplicate(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
