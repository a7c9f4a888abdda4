package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/farewatch/internal/core/domain"
	"github.com/vietddude/farewatch/internal/infra/storage"
)

// FailedTaskRepo implements storage.FailedTaskRepository using PostgreSQL.
type FailedTaskRepo struct {
	db *DB
}

// NewFailedTaskRepo creates a new PostgreSQL failed task repository.
func NewFailedTaskRepo(db *DB) *FailedTaskRepo {
	return &FailedTaskRepo{db: db}
}

// Add adds a failed task.
func (r *FailedTaskRepo) Add(ctx context.Context, ft *domain.FailedTask) error {
	query := `
		INSERT INTO failed_tasks (id, destination, flight_date, attempts, last_outcome, error_msg, run_id, failed_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		ft.ID,
		ft.Destination,
		ft.FlightDate,
		ft.Attempts,
		string(ft.LastOutcome),
		ft.Error,
		ft.RunID,
		ft.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add failed task: %w", err)
	}
	return nil
}

// GetAll returns every failed task, oldest first.
func (r *FailedTaskRepo) GetAll(ctx context.Context) ([]*domain.FailedTask, error) {
	query := `
		SELECT id, destination, to_char(flight_date, 'YYYY-MM-DD') AS flight_date,
		       attempts, last_outcome, error_msg, run_id, failed_at
		FROM failed_tasks
		ORDER BY failed_at ASC
	`

	var tasks []*domain.FailedTask
	if err := r.db.SelectContext(ctx, &tasks, query); err != nil {
		return nil, fmt.Errorf("failed to get failed tasks: %w", err)
	}
	return tasks, nil
}

// MarkResolved removes a failed task.
func (r *FailedTaskRepo) MarkResolved(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM failed_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to resolve failed task: %w", err)
	}
	return nil
}

// Count returns the count of failed tasks.
func (r *FailedTaskRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM failed_tasks`); err != nil {
		return 0, fmt.Errorf("failed to count failed tasks: %w", err)
	}
	return count, nil
}

var _ storage.FailedTaskRepository = (*FailedTaskRepo)(nil)
