// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bookclub/internal/docstore"
	"bookclub/internal/middleware"
	"bookclub/internal/observability"
	"bookclub/internal/repository"
	"bookclub/internal/service"

	"github.com/robfig/cron/v3"
)

const (
	defaultBatchSize = 200
	runTimeout       = 2 * time.Minute
)

// CounterReconciler corrects thread like and reply counters that drifted
// from their source rows.
type CounterReconciler struct {
	repo      repository.CounterRepository
	publisher service.Publisher
	batchSize int

	mu      sync.Mutex
	running bool
}

// NewCounterReconciler creates a reconciler. A nil publisher disables
// change notices.
func NewCounterReconciler(repo repository.CounterRepository, publisher service.Publisher) *CounterReconciler {
	return &CounterReconciler{repo: repo, publisher: publisher, batchSize: defaultBatchSize}
}

// RunOnce repairs up to one batch of drifted threads and returns how many
// were fixed. Overlapping calls return immediately.
func (r *CounterReconciler) RunOnce(ctx context.Context) (int, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return 0, nil
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	drift, err := r.repo.FindDrift(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("find counter drift: %w", err)
	}

	repaired := 0
	for _, d := range drift {
		if err := r.repo.Repair(ctx, d.ThreadID); err != nil {
			return repaired, fmt.Errorf("repair thread %d: %w", d.ThreadID, err)
		}
		repaired++

		if d.LikeCount != d.ActualLikes {
			observability.CounterRepairs.WithLabelValues("likes").Inc()
		}
		if d.ReplyCount != d.ActualReplies {
			observability.CounterRepairs.WithLabelValues("replies").Inc()
		}
		middleware.Logger.Info("thread counters reconciled",
			"thread_id", d.ThreadID,
			"group_id", d.GroupID,
			"likes", fmt.Sprintf("%d->%d", d.LikeCount, d.ActualLikes),
			"replies", fmt.Sprintf("%d->%d", d.ReplyCount, d.ActualReplies),
		)

		if r.publisher != nil {
			r.publisher.PublishChange(ctx, docstore.ThreadsPath(d.GroupID), docstore.ThreadPath(d.GroupID, d.ThreadID))
		}
	}
	return repaired, nil
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers reconciler on spec, e.g. "@every 15m" or
// "0 */6 * * *".
func NewScheduler(spec string, reconciler *CounterReconciler) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{})))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := reconciler.RunOnce(ctx); err != nil {
			middleware.Logger.Error("counter reconciliation failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c}, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts the structured logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	middleware.Logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	middleware.Logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
