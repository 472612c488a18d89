// Package sync implements reconciliation between the locally held reminder
// sets and the Hound server. It classifies a fresh server fetch against the
// prior local state into unchanged, created, updated, and deleted buckets,
// merges with last-writer-wins semantics (the server wins for shared
// identifiers), and applies the merged result to the local store and the
// scheduling loop as a single atomic step.
//
// The package contains two main components:
//
//   - [Partition] and [MergeIncremental] are the pure classification and
//     merge algorithms.
//   - [Engine] runs the polling loop, pushes locally created reminders to
//     the server, and discards stale out-of-order completions.
package sync

import (
	"context"
	"time"

	"github.com/houndapp/houndsync/internal/reminder"
)

// ServerSource provides read/write access to the Hound server's reminder
// endpoints. Implemented by [hound.Client].
type ServerSource interface {
	// FetchReminders returns the server's reminders for a dog. A non-zero
	// since timestamp lets the server scope the response to changes after
	// that moment; deletions then arrive as tombstoned entries rather than
	// by absence.
	FetchReminders(ctx context.Context, dogID int64, since time.Time) ([]*reminder.Reminder, error)
	// CreateReminders persists locally created reminders and returns them
	// with server-assigned identifiers, in request order.
	CreateReminders(ctx context.Context, dogID int64, reminders []*reminder.Reminder) ([]*reminder.Reminder, error)
	UpdateReminders(ctx context.Context, dogID int64, reminders []*reminder.Reminder) error
	DeleteReminders(ctx context.Context, dogID int64, reminderIDs []int64) error
}

// LocalStore persists the merged reminder state between runs.
// Implemented by [state.Store].
type LocalStore interface {
	LoadReminders(ctx context.Context, dogID int64) ([]*reminder.Reminder, error)
	SaveReminders(ctx context.Context, dogID int64, reminders []*reminder.Reminder) error
	LastSync(ctx context.Context, dogID int64) (time.Time, error)
	SetLastSync(ctx context.Context, dogID int64, t time.Time) error
}

// Rescheduler receives the merged reminder state after each sync pass.
// Implemented by [scheduler.Loop].
type Rescheduler interface {
	Replace(dogID int64, reminders []*reminder.Reminder)
	Update(dogID int64, r *reminder.Reminder)
	Remove(dogID, reminderID int64)
}
