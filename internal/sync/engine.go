package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/threeputt/teesync/internal/events"
	"github.com/threeputt/teesync/internal/threeputt"
)

const (
	otelScope     = "teesync/sync"
	spanPass      = "sync.pass"
	metricPasses  = "teesync.sync.passes"
	metricUpdated = "teesync.sync.events.updated"
	metricRemoved = "teesync.sync.events.removed"
	metricErrors  = "teesync.sync.errors"
)

// Engine orchestrates the periodic reconcile loop: fetch the user's
// postings and reservations from the backend, refresh their calendar
// events, and clean up events for entities that were deleted. Create one
// with [NewEngine] and start it with [Engine.Run].
type Engine struct {
	mgr          *Manager
	listing      ListingSource
	bus          *events.Bus
	pollInterval time.Duration
	log          *slog.Logger

	// OTel instruments, always non-nil (no-op when telemetry is disabled).
	tracer     trace.Tracer
	cntPasses  metric.Int64Counter
	cntUpdated metric.Int64Counter
	cntRemoved metric.Int64Counter
	cntErrors  metric.Int64Counter
}

// NewEngine creates an Engine around the given manager and backend client.
func NewEngine(mgr *Manager, listing ListingSource, bus *events.Bus, pollInterval time.Duration, logger *slog.Logger) *Engine {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Engine{
		mgr:          mgr,
		listing:      listing,
		bus:          bus,
		pollInterval: pollInterval,
		log:          logger,

		tracer:     tracer,
		cntPasses:  mustCounter(metricPasses, "Number of completed reconcile passes"),
		cntUpdated: mustCounter(metricUpdated, "Number of calendar events updated during reconcile"),
		cntRemoved: mustCounter(metricRemoved, "Number of calendar events removed during reconcile"),
		cntErrors:  mustCounter(metricErrors, "Number of errors encountered during reconcile"),
	}
}

// pass runs one full reconcile pass, recording a trace span and metrics.
func (e *Engine) pass(ctx context.Context) (Stats, error) {
	ctx, span := e.tracer.Start(ctx, spanPass)
	defer span.End()

	postings, err := e.listing.Postings(ctx)
	if err != nil {
		return e.finishPass(ctx, span, Stats{}, err)
	}
	reservations, err := e.listing.Reservations(ctx)
	if err != nil {
		return e.finishPass(ctx, span, Stats{}, err)
	}

	entities := make([]Entity, 0, len(postings)+len(reservations))
	for _, p := range postings {
		entities = append(entities, p)
	}
	for _, r := range reservations {
		entities = append(entities, r)
	}

	stats := e.mgr.SyncAll(ctx, entities)

	cleanup := e.mgr.CleanupDeleted(ctx, postings, reservations)
	stats.Removed += cleanup.Removed
	stats.Errors += cleanup.Errors

	e.log.Info("reconcile pass complete",
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"removed", stats.Removed,
		"errors", stats.Errors,
	)

	e.bus.PublishPassCompleted(events.PassStats{
		Updated: stats.Updated,
		Removed: stats.Removed,
		Errors:  stats.Errors,
	})
	return e.finishPass(ctx, span, stats, nil)
}

// finishPass records counters and span attributes for a pass.
func (e *Engine) finishPass(ctx context.Context, span trace.Span, stats Stats, err error) (Stats, error) {
	e.cntPasses.Add(ctx, 1)
	if stats.Updated > 0 {
		e.cntUpdated.Add(ctx, int64(stats.Updated))
	}
	if stats.Removed > 0 {
		e.cntRemoved.Add(ctx, int64(stats.Removed))
	}
	if stats.Errors > 0 {
		e.cntErrors.Add(ctx, int64(stats.Errors))
	}

	span.SetAttributes(
		attribute.Int("sync.updated", stats.Updated),
		attribute.Int("sync.skipped", stats.Skipped),
		attribute.Int("sync.removed", stats.Removed),
		attribute.Int("sync.errors", stats.Errors),
	)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, threeputt.ErrUnauthorized) {
			e.bus.PublishUnauthorized(err)
		}
	}
	return stats, err
}

// RunOnce performs a single reconcile pass and returns.
func (e *Engine) RunOnce(ctx context.Context) (Stats, error) {
	return e.pass(ctx)
}

// Run starts the polling loop. It blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	// Run an immediate first pass.
	if _, err := e.pass(ctx); err != nil {
		e.log.Error("initial reconcile pass failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-ticker.C:
			if e.mgr.Syncing() {
				e.log.Debug("previous pass still running, skipping tick")
				continue
			}
			if _, err := e.pass(ctx); err != nil {
				e.log.Error("reconcile pass failed", "error", err)
			}
		}
	}
}
