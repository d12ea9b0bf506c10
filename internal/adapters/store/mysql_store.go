package store

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"
)

var mysqlMigrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "0001_create_runs",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS runs (
					id VARCHAR(64) PRIMARY KEY,
					email_id VARCHAR(255) NOT NULL,
					state VARCHAR(16) NOT NULL,
					payload MEDIUMTEXT NOT NULL,
					detection TEXT,
					reply MEDIUMTEXT,
					send_result TEXT,
					error TEXT NOT NULL,
					created_at BIGINT NOT NULL,
					updated_at BIGINT NOT NULL,
					INDEX idx_runs_state (state),
					INDEX idx_runs_updated_at (updated_at)
				)`,
			},
			Down: []string{`DROP TABLE runs`},
		},
	},
}

// MySQLStore is a MySQL implementation of the RunStore interface
type MySQLStore struct {
	sqlStore
}

// NewMySQLStore connects to the database at dsn and applies pending migrations
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	if err := migrateUp(db, "mysql", mysqlMigrations, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Run store opened", zap.String("type", "mysql"))

	return &MySQLStore{sqlStore{db: db, logger: logger, isDuplicate: isMySQLDuplicate}}, nil
}

// erDupEntry is the MySQL server error for a duplicate key
const erDupEntry = 1062

func isMySQLDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == erDupEntry
}
