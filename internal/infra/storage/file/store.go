// Package file stores artifacts as JSON documents on the local filesystem,
// one per task, at <dir>/<DEST>/flights_<YYYY-MM-DD>.json.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vietddude/farewatch/internal/core/domain"
	"github.com/vietddude/farewatch/internal/infra/storage"
)

// Store is a directory-backed ResultStore.
type Store struct {
	dir string
}

// NewStore creates the base directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns where the artifact for a task lives.
func (s *Store) Path(destination string, date time.Time) string {
	return filepath.Join(s.dir, destination,
		fmt.Sprintf("flights_%s.json", date.Format(domain.DateLayout)))
}

// Exists reports whether a readable artifact with at least one flight exists.
// A corrupt or empty file counts as missing so the task is acquired again.
func (s *Store) Exists(ctx context.Context, destination string, date time.Time) (bool, error) {
	a, err := s.Read(ctx, destination, date)
	if errors.Is(err, storage.ErrArtifactNotFound) {
		return false, nil
	}
	if err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, errEmptyFile) {
			return false, nil
		}
		return false, err
	}
	return len(a.Flights) > 0, nil
}

var errEmptyFile = errors.New("empty artifact file")

// Read loads a stored artifact.
func (s *Store) Read(_ context.Context, destination string, date time.Time) (*domain.Artifact, error) {
	data, err := os.ReadFile(s.Path(destination, date))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	if len(data) == 0 {
		return nil, errEmptyFile
	}

	var a domain.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	return &a, nil
}

// Write stores the artifact through a temp file and rename so readers never
// observe a partial document.
func (s *Store) Write(_ context.Context, destination string, date time.Time, artifact *domain.Artifact) error {
	path := s.Path(destination, date)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create destination dir: %w", err)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".flights-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to publish artifact: %w", err)
	}
	return nil
}

// Coverage counts stored non-empty artifacts per destination.
func (s *Store) Coverage(ctx context.Context) (map[string]int, error) {
	dests, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list data dir: %w", err)
	}

	out := make(map[string]int)
	for _, d := range dests {
		if !d.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.dir, d.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", d.Name(), err)
		}
		for _, f := range files {
			day, ok := strings.CutPrefix(f.Name(), "flights_")
			if !ok {
				continue
			}
			day, ok = strings.CutSuffix(day, ".json")
			if !ok {
				continue
			}
			date, err := time.Parse(domain.DateLayout, day)
			if err != nil {
				continue
			}
			if exists, _ := s.Exists(ctx, d.Name(), date); exists {
				out[d.Name()]++
			}
		}
	}
	return out, nil
}

var (
	_ storage.ResultStore      = (*Store)(nil)
	_ storage.ArtifactReader   = (*Store)(nil)
	_ storage.CoverageReporter = (*Store)(nil)
)
