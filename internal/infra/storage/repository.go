package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/farewatch/internal/core/domain"
)

var (
	// ErrArtifactNotFound is returned when no artifact exists for a task
	ErrArtifactNotFound = errors.New("artifact not found")
)

// ResultStore persists one artifact per (destination, date).
type ResultStore interface {
	// Exists reports whether a non-empty artifact is already stored
	Exists(ctx context.Context, destination string, date time.Time) (bool, error)

	// Write stores the artifact atomically; a later Exists must observe it
	Write(ctx context.Context, destination string, date time.Time, artifact *domain.Artifact) error
}

// ArtifactReader is implemented by stores that can read back what they wrote.
type ArtifactReader interface {
	// Read returns the artifact or ErrArtifactNotFound
	Read(ctx context.Context, destination string, date time.Time) (*domain.Artifact, error)
}

// CoverageReporter counts stored non-empty artifacts per destination.
type CoverageReporter interface {
	Coverage(ctx context.Context) (map[string]int, error)
}

// FailedTaskRepository is the ledger of abandoned tasks
type FailedTaskRepository interface {
	// Add records a failed task
	Add(ctx context.Context, task *domain.FailedTask) error

	// GetAll retrieves all failed tasks, oldest first
	GetAll(ctx context.Context) ([]*domain.FailedTask, error)

	// MarkResolved removes a failed task once it has been acquired
	MarkResolved(ctx context.Context, id string) error

	// Count returns the number of failed tasks
	Count(ctx context.Context) (int, error)
}
