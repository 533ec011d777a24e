// Package reconcile repairs drift in the denormalized thread comment counts.
package reconcile

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/repository"
	"github.com/frcoutreach/outreachnet/pkg/logging"
	"github.com/frcoutreach/outreachnet/pkg/telemetry"
)

const (
	defaultInterval = 15 * time.Minute
	defaultPageSize = 50
)

// Threads is the part of the thread repository the reconciler walks.
type Threads interface {
	GetThreads(ctx context.Context, cursor string, pageSize int) (repository.Page, error)
	ReconcileCommentCount(ctx context.Context, threadID string) (before, after int, err error)
}

// Drift is one repaired counter.
type Drift struct {
	ThreadID string `json:"threadId"`
	Before   int    `json:"before"`
	After    int    `json:"after"`
}

// Report summarises one pass over all threads.
type Report struct {
	Threads  int           `json:"threads"`
	Repaired []Drift       `json:"repaired"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Reconciler periodically recomputes every thread's comment count
type Reconciler struct {
	threads  Threads
	interval time.Duration
	pageSize int
	logger   *zap.Logger
	drift    metric.Int64Counter
}

// New creates a reconciler running every interval. A non-positive interval
// uses the default of 15 minutes.
func New(threads Threads, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = defaultInterval
	}
	logger := logging.WithComponent("reconcile")

	drift, err := telemetry.Meter().Int64Counter("forum.comment_count.drift",
		metric.WithDescription("Thread comment counts corrected by reconciliation"))
	if err != nil {
		logger.Warn("Failed to create drift counter", zap.Error(err))
		drift = noop.Int64Counter{}
	}

	return &Reconciler{
		threads:  threads,
		interval: interval,
		pageSize: defaultPageSize,
		logger:   logger,
		drift:    drift,
	}
}

// Run reconciles until ctx is cancelled. A failed pass is logged and retried
// on the next tick.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("Starting comment count reconciliation", zap.Duration("interval", r.interval))

	for {
		report, err := r.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("Reconciliation pass failed", zap.Error(err))
		} else {
			r.logger.Info("Reconciliation pass complete",
				zap.Int("threads", report.Threads),
				zap.Int("repaired", len(report.Repaired)),
				zap.Int("failed", report.Failed),
				zap.Duration("duration", report.Duration))
		}

		if !r.wait(ctx) {
			return ctx.Err()
		}
	}
}

// RunOnce walks every thread, newest first, and repairs drifted counts.
// Failures on single threads are counted in the report; a failed page read
// ends the pass.
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	ctx, span := telemetry.StartSpan(ctx, "reconcile.run_once")
	defer span.End()

	started := time.Now()
	report := Report{Repaired: []Drift{}}
	cursor := ""
	for {
		page, err := r.threads.GetThreads(ctx, cursor, r.pageSize)
		if err != nil {
			telemetry.RecordError(span, err)
			report.Duration = time.Since(started)
			return report, err
		}

		for _, t := range page.Threads {
			report.Threads++
			before, after, err := r.threads.ReconcileCommentCount(ctx, t.ID)
			switch {
			case errors.Is(err, docstore.ErrNotFound):
				// deleted since the page was read
			case err != nil:
				report.Failed++
				r.logger.Warn("Failed to reconcile thread", zap.String("thread_id", t.ID), zap.Error(err))
			case before != after:
				report.Repaired = append(report.Repaired, Drift{ThreadID: t.ID, Before: before, After: after})
				r.logger.Info("Repaired comment count",
					zap.String("thread_id", t.ID),
					zap.Int("before", before),
					zap.Int("after", after))
				r.drift.Add(ctx, 1)
			}
		}

		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	report.Duration = time.Since(started)
	return report, nil
}

// wait blocks for one interval. It reports false if ctx ended first.
func (r *Reconciler) wait(ctx context.Context) bool {
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
