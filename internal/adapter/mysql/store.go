package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/lightning-data-service/internal/domain"
)

// SinkName identifies the store in logs and metrics.
const SinkName = "mysql"

const insertObservation = `INSERT INTO lightning
	(time, lat, lon, peakcurrent, multiplicity, cloudindicator, ellipsemajor, epoch)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Store writes observations to the lightning table.
// It implements pipeline.Sink.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Name implements pipeline.Sink.
func (s *Store) Name() string { return SinkName }

// LoadBatch inserts records in a single transaction. Either every row is
// committed or none is; any failure is returned wrapping
// domain.ErrPersistenceFailure.
func (s *Store) LoadBatch(ctx context.Context, records []domain.Observation) error {
	if len(records) == 0 {
		return nil
	}
	rows, err := domain.NewStoredRows(records)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", domain.ErrPersistenceFailure, err)
	}
	if err := insertRows(ctx, tx, rows); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrPersistenceFailure, err)
	}

	s.logger.Debug("stored observations", "count", len(rows))
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, rows []domain.StoredRow) error {
	stmt, err := tx.PrepareContext(ctx, insertObservation)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.Args()...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql: %w", err)
	}
	return nil
}
