package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used in URLs, keys and artifact names.
const DateLayout = "2006-01-02"

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskAttempting TaskStatus = "attempting"
	TaskRetrying   TaskStatus = "retrying"
	TaskSucceeded  TaskStatus = "succeeded"
	TaskFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further attempts may start from this status.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

var transitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskAttempting, TaskFailed},
	TaskAttempting: {TaskSucceeded, TaskRetrying, TaskFailed},
	TaskRetrying:   {TaskAttempting, TaskFailed},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to TaskStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TaskKey identifies one unit of work: a destination searched for one travel date.
type TaskKey struct {
	Destination string
	Date        time.Time
}

// NewTaskKey truncates date to its calendar day.
func NewTaskKey(destination string, date time.Time) TaskKey {
	y, m, d := date.Date()
	return TaskKey{Destination: destination, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DateString formats the key's date as YYYY-MM-DD.
func (k TaskKey) DateString() string {
	return k.Date.Format(DateLayout)
}

func (k TaskKey) String() string {
	return fmt.Sprintf("%s/%s", k.Destination, k.DateString())
}

// Task is the mutable state of a single (destination, date) acquisition.
// Only the retry controller changes Status and AttemptCount.
type Task struct {
	Key          TaskKey
	AttemptCount int
	Status       TaskStatus
	LastOutcome  Outcome
	LastError    string
	LastProxy    string
}

// NewTask returns a pending task for the key.
func NewTask(key TaskKey) *Task {
	return &Task{Key: key, Status: TaskPending}
}
