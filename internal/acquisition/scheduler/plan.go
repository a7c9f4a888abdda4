package scheduler

import (
	"time"

	"github.com/vietddude/farewatch/internal/core/domain"
)

// Plan builds one pending task per (destination, date), destination-major,
// dropping duplicate keys.
func Plan(destinations []string, dates []time.Time) []*domain.Task {
	seen := make(map[domain.TaskKey]struct{}, len(destinations)*len(dates))
	tasks := make([]*domain.Task, 0, len(destinations)*len(dates))

	for _, dest := range destinations {
		for _, date := range dates {
			key := domain.NewTaskKey(dest, date)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tasks = append(tasks, domain.NewTask(key))
		}
	}
	return tasks
}
