package domain

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskPending, TaskAttempting, true},
		{TaskAttempting, TaskRetrying, true},
		{TaskRetrying, TaskAttempting, true},
		{TaskAttempting, TaskSucceeded, true},
		{TaskAttempting, TaskFailed, true},
		{TaskPending, TaskSucceeded, false},
		{TaskRetrying, TaskSucceeded, false},
		{TaskSucceeded, TaskAttempting, false},
		{TaskFailed, TaskAttempting, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTaskKey_TruncatesToDay(t *testing.T) {
	a := NewTaskKey("LON", time.Date(2025, 4, 1, 13, 45, 0, 0, time.UTC))
	b := NewTaskKey("LON", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))

	if a != b {
		t.Errorf("Expected keys for the same day to be equal, got %v and %v", a, b)
	}
	if a.String() != "LON/2025-04-01" {
		t.Errorf("Expected LON/2025-04-01, got %s", a.String())
	}
}

func TestDestinationName(t *testing.T) {
	if got := DestinationName("LON"); got != "Londres" {
		t.Errorf("Expected Londres, got %s", got)
	}
	if got := DestinationName("XXX"); got != "XXX" {
		t.Errorf("Expected unknown code to be returned as-is, got %s", got)
	}
}
