package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"trafficnotes/internal/logger"
)

// CleanupFunc removes stale rows and reports how many were deleted.
type CleanupFunc func(ctx context.Context) (int64, error)

// Janitor runs registered cleanup tasks on a fixed interval until its
// context is cancelled.
type Janitor struct {
	interval time.Duration
	tasks    map[string]CleanupFunc
	wg       sync.WaitGroup
}

func NewJanitor(interval time.Duration) *Janitor {
	return &Janitor{interval: interval, tasks: make(map[string]CleanupFunc)}
}

// Register adds a named task. Not safe to call after Start.
func (j *Janitor) Register(name string, fn CleanupFunc) {
	j.tasks[name] = fn
}

// RunOnce executes every task once. A failing task does not stop the others.
func (j *Janitor) RunOnce(ctx context.Context) map[string]int64 {
	names := make([]string, 0, len(j.tasks))
	for name := range j.tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	removed := make(map[string]int64, len(names))
	for _, name := range names {
		n, err := j.tasks[name](ctx)
		if err != nil {
			logger.Get().Errorw("cleanup task failed", "task", name, "error", err)
			continue
		}
		removed[name] = n
		if n > 0 {
			logger.Get().Infow("cleanup task finished", "task", name, "removed", n)
		}
	}
	return removed
}

// Start runs the tasks in the background every interval.
func (j *Janitor) Start(ctx context.Context) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.RunOnce(ctx)
			}
		}
	}()
}

// Wait blocks until the background loop started by Start has exited.
func (j *Janitor) Wait() {
	j.wg.Wait()
}
