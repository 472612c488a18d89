package sync

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/houndapp/houndsync/internal/reminder"
)

func newTestEngine(server *mockServer, store *mockStore, sched *mockSched, dogIDs ...int64) *Engine {
	if len(dogIDs) == 0 {
		dogIDs = []int64{1}
	}
	return NewEngine(server, store, sched, dogIDs, time.Minute, slog.Default())
}

// ---------------------------------------------------------------------------
// RunOnce
// ---------------------------------------------------------------------------

func TestRunOnce_FirstPassAdoptsServerState(t *testing.T) {
	server := newMockServer(map[int64][]*reminder.Reminder{
		1: {testReminder(10, time.Hour), testReminder(11, 2*time.Hour)},
	})
	store := newMockStore()
	sched := newMockSched()
	engine := newTestEngine(server, store, sched)

	stats, err := engine.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stats.Created != 2 {
		t.Errorf("Created = %d, want 2", stats.Created)
	}

	// The merged state reaches both the store and the scheduling loop.
	if got := len(store.stored(1)); got != 2 {
		t.Errorf("stored reminders = %d, want 2", got)
	}
	if got := len(sched.lastReplaced(1)); got != 2 {
		t.Errorf("rescheduled reminders = %d, want 2", got)
	}

	// The pass records its start moment as the last synchronization.
	last, _ := store.LastSync(context.Background(), 1)
	if last.IsZero() {
		t.Error("last sync timestamp should be recorded")
	}
}

func TestRunOnce_PushesPlaceholders(t *testing.T) {
	server := newMockServer(nil)
	store := newMockStore()
	sched := newMockSched()
	engine := newTestEngine(server, store, sched)

	// Two locally created reminders await server identifiers.
	_ = store.SaveReminders(context.Background(), 1, []*reminder.Reminder{
		testReminder(-1, time.Hour),
		testReminder(-2, 2*time.Hour),
	})

	stats, err := engine.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stats.Pushed != 2 {
		t.Errorf("Pushed = %d, want 2", stats.Pushed)
	}

	// No placeholder survives the pass; every stored id is server-assigned.
	for _, r := range store.stored(1) {
		if r.ID < 0 {
			t.Errorf("placeholder id %d survived the push", r.ID)
		}
	}
	if got := len(store.stored(1)); got != 2 {
		t.Errorf("stored reminders = %d, want 2", got)
	}
}

func TestRunOnce_PushFailureKeepsPlaceholders(t *testing.T) {
	server := newMockServer(nil)
	server.createErr = errors.New("server unavailable")
	store := newMockStore()
	engine := newTestEngine(server, store, newMockSched())

	_ = store.SaveReminders(context.Background(), 1, []*reminder.Reminder{
		testReminder(-1, time.Hour),
	})

	stats, err := engine.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stats.Pushed != 0 {
		t.Errorf("Pushed = %d, want 0", stats.Pushed)
	}
	if stats.Errors == 0 {
		t.Error("a failed push should count as an error")
	}

	// The placeholder stays local and retries next pass.
	stored := store.stored(1)
	if len(stored) != 1 || stored[0].ID != -1 {
		t.Errorf("stored = %v, want the placeholder preserved", ids(stored))
	}
	server.mu.Lock()
	attempts := server.createdCalls
	server.mu.Unlock()
	if attempts != 1 {
		t.Errorf("create calls = %d, want 1", attempts)
	}
}

func TestRunOnce_FetchErrorReported(t *testing.T) {
	server := newMockServer(nil)
	server.fetchErr = errors.New("boom")
	engine := newTestEngine(server, newMockStore(), newMockSched())

	stats, err := engine.RunOnce(context.Background())
	if err == nil {
		t.Fatal("RunOnce should surface the fetch error")
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
}

func TestRunOnce_SecondPassUsesIncrementalMerge(t *testing.T) {
	server := newMockServer(map[int64][]*reminder.Reminder{
		1: {testReminder(10, time.Hour)},
	})
	store := newMockStore()
	sched := newMockSched()
	engine := newTestEngine(server, store, sched)

	if _, err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	// The server's scoped second response is empty: nothing changed. With
	// full-response semantics this would wrongly delete reminder 10.
	server.mu.Lock()
	server.reminders[1] = nil
	server.mu.Unlock()

	stats, err := engine.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if stats.Deleted != 0 {
		t.Errorf("Deleted = %d, want 0 on an empty scoped response", stats.Deleted)
	}
	if got := len(store.stored(1)); got != 1 {
		t.Errorf("stored reminders = %d, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// Sequence tokens
// ---------------------------------------------------------------------------

func TestSequenceTokens_StaleResultDiscarded(t *testing.T) {
	engine := newTestEngine(newMockServer(nil), newMockStore(), newMockSched())

	early := engine.nextToken()
	late := engine.nextToken()

	if !engine.apply(late) {
		t.Fatal("the later pass should apply")
	}
	// The earlier pass finished after a newer result was already applied, so
	// its result must be discarded.
	if engine.apply(early) {
		t.Error("an earlier token must not apply after a later one")
	}
	// Re-applying the same token is also rejected.
	if engine.apply(late) {
		t.Error("a token must not apply twice")
	}
}

// ---------------------------------------------------------------------------
// Acknowledge
// ---------------------------------------------------------------------------

func TestAcknowledge_RecurringResetsAndPushes(t *testing.T) {
	fired := testReminder(10, time.Hour)
	fired.PresentationHandled = true

	server := newMockServer(map[int64][]*reminder.Reminder{1: {fired.Clone()}})
	store := newMockStore()
	sched := newMockSched()
	engine := newTestEngine(server, store, sched)
	_ = store.SaveReminders(context.Background(), 1, []*reminder.Reminder{fired.Clone()})

	now := base.Add(time.Hour)
	if err := engine.Acknowledge(context.Background(), fired, now); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	// The server received the reset version.
	server.mu.Lock()
	pushed := server.updated
	server.mu.Unlock()
	if len(pushed) != 1 {
		t.Fatalf("updated calls = %d, want 1", len(pushed))
	}
	if !pushed[0].ExecutionBasis.Equal(now) {
		t.Errorf("pushed basis = %v, want %v", pushed[0].ExecutionBasis, now)
	}
	if pushed[0].PresentationHandled {
		t.Error("pushed reminder should have a cleared handled flag")
	}

	// The scheduling loop and the store see the same reset version.
	sched.mu.Lock()
	updates := sched.updates
	sched.mu.Unlock()
	if len(updates) != 1 || !updates[0].ExecutionBasis.Equal(now) {
		t.Error("scheduler should receive the reset reminder")
	}
	stored := store.stored(1)
	if len(stored) != 1 || !stored[0].ExecutionBasis.Equal(now) {
		t.Error("store should hold the reset reminder")
	}
}

func TestAcknowledge_OneTimeDeletesEverywhere(t *testing.T) {
	fired := testReminder(10, time.Hour)
	fired.SetType(reminder.TypeOneTime, base)
	fired.OneTime.Date = base

	server := newMockServer(map[int64][]*reminder.Reminder{1: {fired.Clone()}})
	store := newMockStore()
	sched := newMockSched()
	engine := newTestEngine(server, store, sched)
	_ = store.SaveReminders(context.Background(), 1, []*reminder.Reminder{fired.Clone()})

	if err := engine.Acknowledge(context.Background(), fired, base.Add(time.Minute)); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	server.mu.Lock()
	deleted := server.deleted
	server.mu.Unlock()
	if len(deleted) != 1 || deleted[0] != 10 {
		t.Errorf("server deletions = %v, want [10]", deleted)
	}

	sched.mu.Lock()
	removals := sched.removals
	sched.mu.Unlock()
	if len(removals) != 1 || removals[0] != "1/10" {
		t.Errorf("scheduler removals = %v, want [1/10]", removals)
	}

	if got := len(store.stored(1)); got != 0 {
		t.Errorf("stored reminders = %d, want 0", got)
	}
}

func TestAcknowledge_PlaceholderSkipsServer(t *testing.T) {
	fired := testReminder(-1, time.Hour)

	server := newMockServer(nil)
	store := newMockStore()
	engine := newTestEngine(server, store, newMockSched())
	_ = store.SaveReminders(context.Background(), 1, []*reminder.Reminder{fired.Clone()})

	if err := engine.Acknowledge(context.Background(), fired, base.Add(time.Hour)); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	// An unpersisted reminder resets locally without touching the server.
	server.mu.Lock()
	pushed := len(server.updated)
	server.mu.Unlock()
	if pushed != 0 {
		t.Errorf("server updates = %d, want 0 for a placeholder", pushed)
	}
	stored := store.stored(1)
	if len(stored) != 1 || !stored[0].ExecutionBasis.Equal(base.Add(time.Hour)) {
		t.Error("store should hold the locally reset placeholder")
	}
}
