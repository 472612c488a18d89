package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/houndapp/houndsync/internal/reminder"
)

const (
	otelScope       = "houndsync/sync"
	spanReconcile   = "sync.reconcile"
	metricUnchanged = "houndsync.sync.reminders.unchanged"
	metricCreated   = "houndsync.sync.reminders.created"
	metricUpdated   = "houndsync.sync.reminders.updated"
	metricDeleted   = "houndsync.sync.reminders.deleted"
	metricPushed    = "houndsync.sync.reminders.pushed"
	metricStale     = "houndsync.sync.stale_discarded"
	metricErrors    = "houndsync.sync.errors"
)

// Stats tracks the outcome of a single reconcile pass across all dogs.
type Stats struct {
	Unchanged int
	Created   int
	Updated   int
	Deleted   int
	// Pushed counts locally created reminders sent to the server and
	// assigned real identifiers during the pass.
	Pushed int
	// Stale counts completed fetches discarded because a later-started pass
	// already applied its result.
	Stale  int
	Errors int
}

func (s *Stats) add(other Stats) {
	s.Unchanged += other.Unchanged
	s.Created += other.Created
	s.Updated += other.Updated
	s.Deleted += other.Deleted
	s.Pushed += other.Pushed
	s.Stale += other.Stale
	s.Errors += other.Errors
}

// Engine orchestrates the sync lifecycle: a polling loop that fetches each
// dog's reminders, reconciles against the local store, pushes placeholders,
// and hands the merged state to the scheduling loop. Create one with
// [NewEngine] and start it with [Engine.Run].
type Engine struct {
	client       ServerSource
	store        LocalStore
	sched        Rescheduler
	dogIDs       []int64
	pollInterval time.Duration
	log          *slog.Logger

	// Sequence tokens guard against out-of-order completion: a fetch that
	// started before the most recently applied one is discarded, so a slow
	// earlier pass can never clobber a newer result.
	mu      sync.Mutex
	started uint64
	applied uint64

	// OTel instruments are always non-nil (no-op when telemetry is disabled).
	tracer       trace.Tracer
	cntUnchanged metric.Int64Counter
	cntCreated   metric.Int64Counter
	cntUpdated   metric.Int64Counter
	cntDeleted   metric.Int64Counter
	cntPushed    metric.Int64Counter
	cntStale     metric.Int64Counter
	cntErrors    metric.Int64Counter
}

// NewEngine creates an Engine wired to the given server client, local store,
// and scheduling loop.
func NewEngine(client ServerSource, store LocalStore, sched Rescheduler, dogIDs []int64, pollInterval time.Duration, logger *slog.Logger) *Engine {
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
		client:       client,
		store:        store,
		sched:        sched,
		dogIDs:       dogIDs,
		pollInterval: pollInterval,
		log:          logger,

		tracer:       tracer,
		cntUnchanged: mustCounter(metricUnchanged, "Reminders confirmed unchanged during sync"),
		cntCreated:   mustCounter(metricCreated, "Reminders created during sync"),
		cntUpdated:   mustCounter(metricUpdated, "Reminders updated during sync"),
		cntDeleted:   mustCounter(metricDeleted, "Reminders deleted during sync"),
		cntPushed:    mustCounter(metricPushed, "Locally created reminders pushed to the server"),
		cntStale:     mustCounter(metricStale, "Fetch results discarded as stale"),
		cntErrors:    mustCounter(metricErrors, "Errors encountered during sync"),
	}
}

// RunOnce performs a single reconciliation pass across all dogs and returns.
func (e *Engine) RunOnce(ctx context.Context) (Stats, error) {
	return e.reconcile(ctx)
}

// Run starts the polling loop. It blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	// Run an immediate first pass.
	if _, err := e.reconcile(ctx); err != nil {
		e.log.Error("initial reconcile failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.reconcile(ctx); err != nil {
				e.log.Error("reconcile failed", "error", err)
			}
		}
	}
}

// reconcile runs one full pass over all dogs, recording a trace span and
// metrics.
func (e *Engine) reconcile(ctx context.Context) (Stats, error) {
	ctx, span := e.tracer.Start(ctx, spanReconcile)
	defer span.End()

	var stats Stats
	var firstErr error
	for _, dogID := range e.dogIDs {
		ds, err := e.syncDog(ctx, dogID)
		stats.add(ds)
		if err != nil {
			stats.Errors++
			if firstErr == nil {
				firstErr = err
			}
			e.log.Error("dog sync failed", "dog_id", dogID, "error", err)
		}
	}

	if stats.Unchanged > 0 {
		e.cntUnchanged.Add(ctx, int64(stats.Unchanged))
	}
	if stats.Created > 0 {
		e.cntCreated.Add(ctx, int64(stats.Created))
	}
	if stats.Updated > 0 {
		e.cntUpdated.Add(ctx, int64(stats.Updated))
	}
	if stats.Deleted > 0 {
		e.cntDeleted.Add(ctx, int64(stats.Deleted))
	}
	if stats.Pushed > 0 {
		e.cntPushed.Add(ctx, int64(stats.Pushed))
	}
	if stats.Stale > 0 {
		e.cntStale.Add(ctx, int64(stats.Stale))
	}
	if stats.Errors > 0 {
		e.cntErrors.Add(ctx, int64(stats.Errors))
	}

	span.SetAttributes(
		attribute.Int("sync.unchanged", stats.Unchanged),
		attribute.Int("sync.created", stats.Created),
		attribute.Int("sync.updated", stats.Updated),
		attribute.Int("sync.deleted", stats.Deleted),
		attribute.Int("sync.pushed", stats.Pushed),
		attribute.Int("sync.stale", stats.Stale),
		attribute.Int("sync.errors", stats.Errors),
	)
	if firstErr != nil {
		span.RecordError(firstErr)
	}

	e.log.Info("reconcile complete",
		"unchanged", stats.Unchanged,
		"created", stats.Created,
		"updated", stats.Updated,
		"deleted", stats.Deleted,
		"pushed", stats.Pushed,
		"stale", stats.Stale,
		"errors", stats.Errors,
	)

	return stats, firstErr
}

// syncDog performs one fetch-reconcile-apply cycle for a single dog.
func (e *Engine) syncDog(ctx context.Context, dogID int64) (Stats, error) {
	var stats Stats

	token := e.nextToken()
	startedAt := time.Now().UTC()

	prior, err := e.store.LoadReminders(ctx, dogID)
	if err != nil {
		return stats, fmt.Errorf("loading local reminders for dog %d: %w", dogID, err)
	}
	local := reminder.NewCollectionOf(prior)

	since, err := e.store.LastSync(ctx, dogID)
	if err != nil {
		return stats, fmt.Errorf("reading last sync for dog %d: %w", dogID, err)
	}

	fetched, err := e.client.FetchReminders(ctx, dogID, since)
	if err != nil {
		return stats, fmt.Errorf("fetching reminders for dog %d: %w", dogID, err)
	}

	// A full response lets absence mean deletion; a scoped response only
	// carries changes, so deletions must arrive as tombstones.
	var res Result
	if since.IsZero() {
		res = Partition(local, fetched)
	} else {
		res = MergeIncremental(local, fetched)
	}
	merged := res.Merged()

	stats.Unchanged = len(res.Unchanged)
	stats.Created = len(res.Created)
	stats.Updated = len(res.Updated)
	stats.Deleted = len(res.Deleted)

	pushed, err := e.pushPlaceholders(ctx, dogID, merged)
	stats.Pushed = pushed
	if err != nil {
		// Placeholders stay local and retry next pass.
		e.log.Error("pushing created reminders failed", "dog_id", dogID, "error", err)
		stats.Errors++
	}

	if !e.apply(token) {
		stats.Stale++
		e.log.Warn("discarding stale sync result", "dog_id", dogID, "token", token)
		return stats, nil
	}

	if err := e.store.SaveReminders(ctx, dogID, merged.All()); err != nil {
		return stats, fmt.Errorf("persisting merged reminders for dog %d: %w", dogID, err)
	}
	if err := e.store.SetLastSync(ctx, dogID, startedAt); err != nil {
		return stats, fmt.Errorf("recording last sync for dog %d: %w", dogID, err)
	}
	e.sched.Replace(dogID, merged.All())

	return stats, nil
}

// pushPlaceholders sends locally created reminders (negative identifiers) to
// the server and swaps them for the returned server-assigned versions.
func (e *Engine) pushPlaceholders(ctx context.Context, dogID int64, merged *reminder.Collection) (int, error) {
	var pending []*reminder.Reminder
	for _, r := range merged.All() {
		if r.ID < 0 {
			pending = append(pending, r)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	created, err := e.client.CreateReminders(ctx, dogID, pending)
	if err != nil {
		return 0, fmt.Errorf("creating %d reminders: %w", len(pending), err)
	}
	if len(created) != len(pending) {
		return 0, fmt.Errorf("server returned %d created reminders, want %d", len(created), len(pending))
	}

	for i, r := range created {
		merged.Remove(pending[i].ID)
		merged.Add(r)
	}
	return len(created), nil
}

// nextToken allocates a monotonically increasing sequence token.
func (e *Engine) nextToken() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started++
	return e.started
}

// apply reports whether the pass holding token may apply its result, and
// records it as the latest applied if so.
func (e *Engine) apply(token uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if token <= e.applied {
		return false
	}
	e.applied = token
	return true
}

// Acknowledge completes a fired reminder: one-time reminders are deleted
// locally and on the server, everything else resets for its next occurrence
// and the new basis is pushed. Invoked from the alarm callback in its own
// goroutine so the scheduling loop never blocks on network I/O.
func (e *Engine) Acknowledge(ctx context.Context, r *reminder.Reminder, now time.Time) error {
	if r.Type == reminder.TypeOneTime {
		if r.ID >= 0 {
			if err := e.client.DeleteReminders(ctx, r.DogID, []int64{r.ID}); err != nil {
				return fmt.Errorf("deleting fired one-time reminder %d: %w", r.ID, err)
			}
		}
		e.sched.Remove(r.DogID, r.ID)
		return e.rewriteStored(ctx, r.DogID, func(c *reminder.Collection) {
			c.Remove(r.ID)
		})
	}

	next := r.Clone()
	next.PrepareForNextAlarm(now)
	if next.ID >= 0 {
		if err := e.client.UpdateReminders(ctx, r.DogID, []*reminder.Reminder{next}); err != nil {
			return fmt.Errorf("pushing acknowledged reminder %d: %w", next.ID, err)
		}
	}
	e.sched.Update(r.DogID, next)
	return e.rewriteStored(ctx, r.DogID, func(c *reminder.Collection) {
		c.Update(next)
	})
}

// rewriteStored loads a dog's stored reminders, applies fn, and saves.
func (e *Engine) rewriteStored(ctx context.Context, dogID int64, fn func(*reminder.Collection)) error {
	stored, err := e.store.LoadReminders(ctx, dogID)
	if err != nil {
		return fmt.Errorf("loading stored reminders for dog %d: %w", dogID, err)
	}
	c := reminder.NewCollectionOf(stored)
	fn(c)
	if err := e.store.SaveReminders(ctx, dogID, c.All()); err != nil {
		return fmt.Errorf("saving stored reminders for dog %d: %w", dogID, err)
	}
	return nil
}
