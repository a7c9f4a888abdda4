package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/farewatch/internal/core/domain"
	"github.com/vietddude/farewatch/internal/infra/storage"
)

var testDate = time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)

func TestStore_WriteThenExists(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	exists, err := s.Exists(ctx, "BCN", testDate)
	if err != nil || exists {
		t.Fatalf("Expected no artifact yet, got exists=%v err=%v", exists, err)
	}

	artifact := &domain.Artifact{
		FlightDate:  "2025-04-02",
		Origin:      "BOD",
		Destination: "BCN",
		Flights:     []domain.Record{{"price": "59 €"}, {"price": "72 €"}},
		Provenance:  domain.Provenance{Proxy: "p1:3128", Attempts: 2},
	}
	if err := s.Write(ctx, "BCN", testDate, artifact); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	exists, err = s.Exists(ctx, "BCN", testDate)
	if err != nil || !exists {
		t.Fatalf("Expected artifact to exist, got exists=%v err=%v", exists, err)
	}

	got, err := s.Read(ctx, "BCN", testDate)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got.Flights) != 2 || got.Provenance.Attempts != 2 {
		t.Errorf("Unexpected artifact %+v", got)
	}

	want := filepath.Join(s.dir, "BCN", "flights_2025-04-02.json")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("Expected artifact at %s: %v", want, err)
	}

	entries, _ := os.ReadDir(filepath.Join(s.dir, "BCN"))
	if len(entries) != 1 {
		t.Errorf("Expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestStore_EmptyOrCorruptCountsAsMissing(t *testing.T) {
	ctx := context.Background()
	s, _ := NewStore(t.TempDir())

	if err := s.Write(ctx, "LON", testDate, &domain.Artifact{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if exists, _ := s.Exists(ctx, "LON", testDate); exists {
		t.Error("Expected artifact with no flights to count as missing")
	}

	path := s.Path("MAD", testDate)
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, []byte(`{"flights": [`), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	exists, err := s.Exists(ctx, "MAD", testDate)
	if err != nil || exists {
		t.Errorf("Expected corrupt artifact to count as missing, got exists=%v err=%v", exists, err)
	}

	_ = os.WriteFile(s.Path("MAD", testDate), nil, 0o644)
	if exists, err := s.Exists(ctx, "MAD", testDate); err != nil || exists {
		t.Errorf("Expected zero-byte artifact to count as missing, got exists=%v err=%v", exists, err)
	}
}

func TestStore_ReadMissing(t *testing.T) {
	s, _ := NewStore(t.TempDir())
	if _, err := s.Read(context.Background(), "LON", testDate); !errors.Is(err, storage.ErrArtifactNotFound) {
		t.Errorf("Expected ErrArtifactNotFound, got %v", err)
	}
}

func TestStore_Coverage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	full := &domain.Artifact{Flights: []domain.Record{{"price": "59 €"}}}
	_ = s.Write(ctx, "BCN", testDate, full)
	_ = s.Write(ctx, "BCN", testDate.AddDate(0, 0, 1), full)
	_ = s.Write(ctx, "LIS", testDate, &domain.Artifact{})
	_ = os.WriteFile(filepath.Join(dir, "BCN", "notes.txt"), []byte("x"), 0o644)

	cov, err := s.Coverage(ctx)
	if err != nil {
		t.Fatalf("Coverage failed: %v", err)
	}
	if cov["BCN"] != 2 {
		t.Errorf("Expected 2 BCN artifacts, got %d", cov["BCN"])
	}
	if _, ok := cov["LIS"]; ok {
		t.Errorf("Empty artifacts must not count, got %v", cov)
	}
}
