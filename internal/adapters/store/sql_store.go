package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mikey/llm-spam-reply/internal/core"
	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"
)

// ErrDuplicateRun is returned when a run id is created twice
var ErrDuplicateRun = errors.New("run already exists")

const runColumns = `id, email_id, state, payload, detection, reply, send_result, error, created_at, updated_at`

// runRow is the database representation of core.Run. Step outputs are JSON.
type runRow struct {
	ID         string         `db:"id"`
	EmailID    string         `db:"email_id"`
	State      string         `db:"state"`
	Payload    string         `db:"payload"`
	Detection  sql.NullString `db:"detection"`
	Reply      sql.NullString `db:"reply"`
	SendResult sql.NullString `db:"send_result"`
	Error      string         `db:"error"`
	CreatedAt  int64          `db:"created_at"`
	UpdatedAt  int64          `db:"updated_at"`
}

// sqlStore implements RunStore on top of any sqlx connection using ? placeholders
type sqlStore struct {
	db          *sqlx.DB
	logger      *zap.Logger
	isDuplicate func(error) bool
}

func migrateUp(db *sqlx.DB, dialect string, source migrate.MigrationSource, logger *zap.Logger) error {
	applied, err := migrate.Exec(db.DB, dialect, source, migrate.Up)
	if err != nil {
		return fmt.Errorf("failed to migrate run store: %w", err)
	}
	logger.Debug("Executed run store migrations",
		zap.String("dialect", dialect),
		zap.Int("applied", applied))
	return nil
}

// Create records a new run
func (s *sqlStore) Create(ctx context.Context, run *core.Run) error {
	row, err := toRow(run)
	if err != nil {
		return err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (:id, :email_id, :state, :payload, :detection, :reply, :send_result, :error, :created_at, :updated_at)
	`, row)
	if err != nil {
		if s.isDuplicate != nil && s.isDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Save checkpoints the current state of a run
func (s *sqlStore) Save(ctx context.Context, run *core.Run) error {
	row, err := toRow(run)
	if err != nil {
		return err
	}

	result, err := s.db.NamedExecContext(ctx, `
		UPDATE runs SET
			state = :state,
			detection = :detection,
			reply = :reply,
			send_result = :send_result,
			error = :error,
			updated_at = :updated_at
		WHERE id = :id
	`, row)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	// MySQL reports zero affected rows for an unchanged row, so confirm the miss
	if updated, err := result.RowsAffected(); err == nil && updated == 0 {
		var count int
		if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM runs WHERE id = ?`, run.ID); err != nil {
			return fmt.Errorf("failed to check run: %w", err)
		}
		if count == 0 {
			return core.ErrRunNotFound
		}
	}
	return nil
}

// Get loads a run by id
func (s *sqlStore) Get(ctx context.Context, id string) (*core.Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return fromRow(&row)
}

// ListIncomplete returns all runs that are not in a terminal state, oldest first
func (s *sqlStore) ListIncomplete(ctx context.Context) ([]*core.Run, error) {
	var rows []runRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+runColumns+` FROM runs
		WHERE state NOT IN (?, ?)
		ORDER BY created_at
	`, string(core.StateDone), string(core.StateFailed))
	if err != nil {
		return nil, fmt.Errorf("failed to query incomplete runs: %w", err)
	}

	runs := make([]*core.Run, 0, len(rows))
	for i := range rows {
		run, err := fromRow(&rows[i])
		if err != nil {
			s.logger.Error("Skipping unreadable run", zap.String("run_id", rows[i].ID), zap.Error(err))
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// PurgeBefore removes terminal runs last updated before t
func (s *sqlStore) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE state IN (?, ?) AND updated_at < ?
	`, string(core.StateDone), string(core.StateFailed), t.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge runs: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during purge", zap.Error(err))
		return 0, nil
	}
	s.logger.Debug("Purged finished runs", zap.Int64("purged_count", purged))
	return purged, nil
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

func toRow(run *core.Run) (*runRow, error) {
	payload, err := json.Marshal(run.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	row := &runRow{
		ID:        run.ID,
		EmailID:   run.EmailID,
		State:     string(run.State),
		Payload:   string(payload),
		Error:     run.Error,
		CreatedAt: run.CreatedAt.UnixMilli(),
		UpdatedAt: run.UpdatedAt.UnixMilli(),
	}
	if row.Detection, err = encodeOptional(run.Detection); err != nil {
		return nil, err
	}
	if row.Reply, err = encodeOptional(run.Reply); err != nil {
		return nil, err
	}
	if row.SendResult, err = encodeOptional(run.Send); err != nil {
		return nil, err
	}
	return row, nil
}

func fromRow(row *runRow) (*core.Run, error) {
	run := &core.Run{
		ID:        row.ID,
		EmailID:   row.EmailID,
		State:     core.RunState(row.State),
		Error:     row.Error,
		CreatedAt: time.UnixMilli(row.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(row.UpdatedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(row.Payload), &run.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if err := decodeOptional(row.Detection, &run.Detection); err != nil {
		return nil, err
	}
	if err := decodeOptional(row.Reply, &run.Reply); err != nil {
		return nil, err
	}
	if err := decodeOptional(row.SendResult, &run.Send); err != nil {
		return nil, err
	}
	return run, nil
}

func encodeOptional[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode step output: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeOptional[T any](s sql.NullString, dst **T) error {
	if !s.Valid {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return fmt.Errorf("failed to decode step output: %w", err)
	}
	*dst = &v
	return nil
}
