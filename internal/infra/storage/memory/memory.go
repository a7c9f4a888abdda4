package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/farewatch/internal/core/domain"
	"github.com/vietddude/farewatch/internal/infra/storage"
)

type MemoryStorage struct {
	artifacts map[domain.TaskKey]*domain.Artifact
	failed    map[string]*domain.FailedTask
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		artifacts: make(map[domain.TaskKey]*domain.Artifact),
		failed:    make(map[string]*domain.FailedTask),
	}
}

// -----------------------------------------------------------------------------
// Result Store
// -----------------------------------------------------------------------------

type ResultRepo struct {
	store *MemoryStorage
}

func NewResultRepo(store *MemoryStorage) *ResultRepo {
	return &ResultRepo{store: store}
}

func (r *ResultRepo) Exists(ctx context.Context, destination string, date time.Time) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.artifacts[domain.NewTaskKey(destination, date)]
	return ok && len(a.Flights) > 0, nil
}

func (r *ResultRepo) Write(ctx context.Context, destination string, date time.Time, artifact *domain.Artifact) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *artifact
	cp.Flights = append([]domain.Record(nil), artifact.Flights...)
	r.store.artifacts[domain.NewTaskKey(destination, date)] = &cp
	return nil
}

func (r *ResultRepo) Read(ctx context.Context, destination string, date time.Time) (*domain.Artifact, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.artifacts[domain.NewTaskKey(destination, date)]
	if !ok {
		return nil, storage.ErrArtifactNotFound
	}
	return a, nil
}

// Len returns the number of stored artifacts.
func (r *ResultRepo) Len() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.artifacts)
}

// Coverage counts stored non-empty artifacts per destination.
func (r *ResultRepo) Coverage(ctx context.Context) (map[string]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make(map[string]int)
	for key, a := range r.store.artifacts {
		if len(a.Flights) > 0 {
			out[key.Destination]++
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Failed Task Repository
// -----------------------------------------------------------------------------

type FailedTaskRepo struct {
	store *MemoryStorage
}

func NewFailedTaskRepo(store *MemoryStorage) *FailedTaskRepo {
	return &FailedTaskRepo{store: store}
}

func (r *FailedTaskRepo) Add(ctx context.Context, ft *domain.FailedTask) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.failed[ft.ID] = ft
	return nil
}

func (r *FailedTaskRepo) GetAll(ctx context.Context) ([]*domain.FailedTask, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.FailedTask, 0, len(r.store.failed))
	for _, ft := range r.store.failed {
		out = append(out, ft)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FailedAt.Before(out[j].FailedAt) })
	return out, nil
}

func (r *FailedTaskRepo) MarkResolved(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.failed, id)
	return nil
}

func (r *FailedTaskRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.failed), nil
}

var (
	_ storage.ResultStore          = (*ResultRepo)(nil)
	_ storage.ArtifactReader       = (*ResultRepo)(nil)
	_ storage.CoverageReporter     = (*ResultRepo)(nil)
	_ storage.FailedTaskRepository = (*FailedTaskRepo)(nil)
)
