package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/farewatch/internal/core/domain"
	"github.com/vietddude/farewatch/internal/infra/storage"
)

// ResultRepo implements storage.ResultStore using PostgreSQL.
type ResultRepo struct {
	db *DB
}

// NewResultRepo creates a new PostgreSQL result repository.
func NewResultRepo(db *DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// Exists reports whether an artifact with at least one record is stored.
func (r *ResultRepo) Exists(ctx context.Context, destination string, date time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM artifacts
			WHERE destination = $1 AND flight_date = $2::date AND record_count > 0
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, destination, date.Format(domain.DateLayout)); err != nil {
		return false, fmt.Errorf("failed to check artifact: %w", err)
	}
	return exists, nil
}

// Write upserts the artifact in a single statement.
func (r *ResultRepo) Write(ctx context.Context, destination string, date time.Time, a *domain.Artifact) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	query := `
		INSERT INTO artifacts (destination, flight_date, payload, record_count, proxy, attempts, run_id)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7)
		ON CONFLICT (destination, flight_date) DO UPDATE SET
			payload = EXCLUDED.payload,
			record_count = EXCLUDED.record_count,
			proxy = EXCLUDED.proxy,
			attempts = EXCLUDED.attempts,
			run_id = EXCLUDED.run_id,
			updated_at = NOW()
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		destination,
		date.Format(domain.DateLayout),
		payload,
		len(a.Flights),
		a.Provenance.Proxy,
		a.Provenance.Attempts,
		a.Provenance.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// Read returns the stored artifact.
func (r *ResultRepo) Read(ctx context.Context, destination string, date time.Time) (*domain.Artifact, error) {
	query := `SELECT payload FROM artifacts WHERE destination = $1 AND flight_date = $2::date`

	var payload []byte
	err := r.db.GetContext(ctx, &payload, query, destination, date.Format(domain.DateLayout))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var a domain.Artifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	return &a, nil
}

// Coverage counts stored non-empty artifacts per destination.
func (r *ResultRepo) Coverage(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT destination, COUNT(*) AS n
		FROM artifacts
		WHERE record_count > 0
		GROUP BY destination
	`

	var rows []struct {
		Destination string `db:"destination"`
		N           int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count artifacts: %w", err)
	}

	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Destination] = row.N
	}
	return out, nil
}

var (
	_ storage.ResultStore      = (*ResultRepo)(nil)
	_ storage.ArtifactReader   = (*ResultRepo)(nil)
	_ storage.CoverageReporter = (*ResultRepo)(nil)
)
