// Package scheduler runs the process-wide alarm loop. A single goroutine
// owns every dog's reminder collection and sleeps until the earliest next
// execution date or the next command, whichever comes first. All external
// mutation arrives as commands on a channel, so reminder state is never
// shared between goroutines.
//
// The loop never patches its timer set incrementally: any data change causes
// the next wait to be re-derived from current state. Rebuilding is O(n) over
// the reminders held, which is fine at the per-user scale this runs at, and
// it removes the drift and double-fire bugs an incremental approach invites.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/houndapp/houndsync/internal/reminder"
)

// ErrStopped is returned by commands submitted after [Loop.Run] has exited.
var ErrStopped = errors.New("scheduling loop stopped")

// AlarmFunc is invoked on the loop goroutine when a reminder comes due. It
// must not block; hand off network or disk work to another goroutine.
type AlarmFunc func(dogID int64, r *reminder.Reminder)

// Loop is the scheduling loop. Create one with [New] and start it with
// [Loop.Run]; every other method is safe to call from any goroutine while
// Run is active.
type Loop struct {
	alarm AlarmFunc
	log   *slog.Logger
	cmds  chan func()
	done  chan struct{}

	// Owned exclusively by the Run goroutine.
	dogs     map[int64]*reminder.Collection
	paused   bool
	pausedAt time.Time
}

// New creates a Loop that delivers due reminders to alarm.
func New(alarm AlarmFunc, logger *slog.Logger) *Loop {
	return &Loop{
		alarm: alarm,
		log:   logger,
		cmds:  make(chan func()),
		done:  make(chan struct{}),
		dogs:  make(map[int64]*reminder.Collection),
	}
}

// Run executes the loop until ctx is cancelled. Armed waits are re-derived
// after every command and every firing, so there is no window in which an
// outdated wait can fire alongside a new one. Commands submitted after Run
// has returned fail with [ErrStopped] instead of blocking.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		var fireC <-chan time.Time
		var timer *time.Timer
		if !l.paused {
			if next, ok := l.earliestFire(time.Now()); ok {
				d := time.Until(next)
				if d < 0 {
					d = 0
				}
				timer = time.NewTimer(d)
				fireC = timer.C
			}
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			l.log.Info("scheduling loop shutting down")
			return ctx.Err()
		case cmd := <-l.cmds:
			cmd()
		case <-fireC:
			l.fireDue(time.Now())
		}

		if timer != nil {
			timer.Stop()
		}
	}
}

// earliestFire returns the soonest next execution date across every enabled,
// not-yet-handled reminder.
func (l *Loop) earliestFire(now time.Time) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, c := range l.dogs {
		for _, r := range c.All() {
			if r.PresentationHandled {
				continue
			}
			next, ok := r.NextExecution(now)
			if !ok {
				continue
			}
			if !found || next.Before(earliest) {
				earliest = next
				found = true
			}
		}
	}
	return earliest, found
}

// fireDue delivers every due, unhandled reminder and marks it handled so a
// rebuilt wait cannot deliver the same occurrence again.
func (l *Loop) fireDue(now time.Time) {
	for dogID, c := range l.dogs {
		for _, r := range c.All() {
			if r.PresentationHandled || r.Remaining(now).State != reminder.StateDue {
				continue
			}
			if err := c.MarkHandled(r.ID); err != nil {
				continue
			}
			l.log.Info("reminder due",
				"dog_id", dogID,
				"reminder_id", r.ID,
				"action", r.DisplayName(),
			)
			r.PresentationHandled = true
			l.alarm(dogID, r)
		}
	}
}

// run submits a command and waits for the loop goroutine to execute it. It
// reports false without executing when the loop has already shut down.
func (l *Loop) run(fn func()) bool {
	executed := make(chan struct{})
	select {
	case l.cmds <- func() {
		fn()
		close(executed)
	}:
		<-executed
		return true
	case <-l.done:
		return false
	}
}

// Replace swaps in a dog's entire reminder set, tearing down every wait
// derived from the old set. Delivered-occurrence state survives the swap:
// a reminder that already fired stays handled as long as its execution basis
// is unchanged, so a rebuild from store or server data cannot requeue it.
func (l *Loop) Replace(dogID int64, reminders []*reminder.Reminder) {
	l.run(func() {
		next := reminder.NewCollectionOf(reminders)
		if old, ok := l.dogs[dogID]; ok {
			for _, prev := range old.All() {
				if !prev.PresentationHandled {
					continue
				}
				cur := next.Find(prev.ID)
				if cur != nil && cur.ExecutionBasis.Equal(prev.ExecutionBasis) {
					_ = next.MarkHandled(prev.ID)
				}
			}
		}
		l.dogs[dogID] = next
	})
}

// Update inserts or replaces a single reminder.
func (l *Loop) Update(dogID int64, r *reminder.Reminder) {
	l.run(func() {
		c, ok := l.dogs[dogID]
		if !ok {
			c = reminder.NewCollection()
			l.dogs[dogID] = c
		}
		c.Update(r)
	})
}

// Remove detaches a reminder, tearing down its wait. Unknown identifiers are
// a no-op.
func (l *Loop) Remove(dogID, reminderID int64) {
	l.run(func() {
		if c, ok := l.dogs[dogID]; ok {
			c.Remove(reminderID)
		}
	})
}

// Snooze overrides a reminder's recurrence with a flat interval from now.
func (l *Loop) Snooze(dogID, reminderID int64, d time.Duration, now time.Time) error {
	err := ErrStopped
	l.run(func() {
		c, ok := l.dogs[dogID]
		if !ok {
			err = reminder.ErrNotFound
			return
		}
		err = c.Mutate(reminderID, func(r *reminder.Reminder) {
			r.ExecutionBasis = now
			r.PresentationHandled = false
			r.SetSnooze(d)
		})
	})
	return err
}

// Skip toggles a reminder's one-shot skip.
func (l *Loop) Skip(dogID, reminderID int64, skipping bool, now time.Time) error {
	err := ErrStopped
	l.run(func() {
		c, ok := l.dogs[dogID]
		if !ok {
			err = reminder.ErrNotFound
			return
		}
		err = c.Mutate(reminderID, func(r *reminder.Reminder) {
			r.SetSkipping(skipping, now)
		})
	})
	return err
}

// Pause suspends all waits. Countdown progress already elapsed is preserved:
// the pause moment is recorded and the span is added back to the basis on
// resume.
func (l *Loop) Pause(now time.Time) {
	l.run(func() {
		if l.paused {
			return
		}
		l.paused = true
		l.pausedAt = now
	})
}

// Resume re-derives all waits. Countdown and snoozed reminders have their
// basis shifted by the paused span so elapsed progress carries across any
// number of pause cycles; absolute-time variants need no adjustment.
func (l *Loop) Resume(now time.Time) {
	l.run(func() {
		if !l.paused {
			return
		}
		l.paused = false
		span := now.Sub(l.pausedAt)
		if span <= 0 {
			return
		}
		for _, c := range l.dogs {
			for _, r := range c.All() {
				if r.Type != reminder.TypeCountdown && r.Snooze == nil {
					continue
				}
				_ = c.Mutate(r.ID, func(x *reminder.Reminder) {
					x.ShiftBasis(span)
				})
			}
		}
	})
}

// Snapshot returns clones of a dog's reminders as the loop currently holds
// them. Mainly for tests and the status command.
func (l *Loop) Snapshot(dogID int64) []*reminder.Reminder {
	var out []*reminder.Reminder
	l.run(func() {
		if c, ok := l.dogs[dogID]; ok {
			out = c.All()
		}
	})
	return out
}
