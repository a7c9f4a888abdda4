package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/farewatch/internal/core/domain"
	"github.com/vietddude/farewatch/internal/infra/storage"
)

// failedTaskTTL bounds how long a ledger entry survives without review.
const failedTaskTTL = 7 * 24 * time.Hour

// FailedTaskRepo implements FailedTaskRepository using Redis.
type FailedTaskRepo struct {
	client *Client
}

// NewFailedTaskRepo creates a new Redis-backed failed task repository.
func NewFailedTaskRepo(client *Client) *FailedTaskRepo {
	return &FailedTaskRepo{client: client}
}

// Add stores the entry and indexes it by failure time.
func (r *FailedTaskRepo) Add(ctx context.Context, ft *domain.FailedTask) error {
	rdb := r.client.rdb

	data, err := json.Marshal(ft)
	if err != nil {
		return fmt.Errorf("failed to marshal failed task: %w", err)
	}

	if err := rdb.Set(ctx, r.client.failedTaskKey(ft.ID), data, failedTaskTTL).Err(); err != nil {
		return fmt.Errorf("failed to set failed task: %w", err)
	}

	// Score by failure time so the ledger reads oldest first
	if err := rdb.ZAdd(ctx, r.client.failedQueueKey(), redis.Z{
		Score:  float64(ft.FailedAt.Unix()),
		Member: ft.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to ledger: %w", err)
	}

	return nil
}

// GetAll retrieves all failed tasks, oldest first.
func (r *FailedTaskRepo) GetAll(ctx context.Context) ([]*domain.FailedTask, error) {
	rdb := r.client.rdb

	ids, err := rdb.ZRange(ctx, r.client.failedQueueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	tasks := make([]*domain.FailedTask, 0, len(ids))
	for _, id := range ids {
		data, err := rdb.Get(ctx, r.client.failedTaskKey(id)).Bytes()
		if err == redis.Nil {
			// Entry expired but ID still indexed, drop it
			rdb.ZRem(ctx, r.client.failedQueueKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get failed task: %w", err)
		}

		var ft domain.FailedTask
		if err := json.Unmarshal(data, &ft); err != nil {
			continue
		}
		tasks = append(tasks, &ft)
	}

	return tasks, nil
}

// MarkResolved removes a failed task.
func (r *FailedTaskRepo) MarkResolved(ctx context.Context, id string) error {
	rdb := r.client.rdb

	if err := rdb.ZRem(ctx, r.client.failedQueueKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to remove from ledger: %w", err)
	}
	if err := rdb.Del(ctx, r.client.failedTaskKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete failed task: %w", err)
	}
	return nil
}

// Count returns the count of failed tasks.
func (r *FailedTaskRepo) Count(ctx context.Context) (int, error) {
	count, err := r.client.rdb.ZCard(ctx, r.client.failedQueueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}

var _ storage.FailedTaskRepository = (*FailedTaskRepo)(nil)
