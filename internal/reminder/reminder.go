// Package reminder implements the pet-care reminder domain model: the four
// recurrence variants (countdown, weekly, monthly, one-time), the unified
// timing contract over them, snooze and skip state, and the ordered
// [Collection] that owns a dog's reminders.
//
// The model is timer-agnostic: nothing here arms a timer or touches a run
// loop. Every operation that depends on the current moment takes it as an
// explicit parameter, so the whole package is testable with fixed timestamps.
// The scheduling loop lives in internal/scheduler.
package reminder

import (
	"errors"
	"time"
	"unicode/utf8"
)

// MaxCustomActionNameLength bounds the free-text action name.
const MaxCustomActionNameLength = 32

// Validation errors returned by the mutating setters. The receiver is left
// unchanged whenever one of these is returned.
var (
	ErrCustomActionNameTooLong = errors.New("custom action name exceeds length limit")
	ErrNoWeekdaySet            = errors.New("weekly reminder needs at least one weekday")
	ErrDayOfMonthOutOfRange    = errors.New("day of month must be between 1 and 31")
	ErrIntervalNotPositive     = errors.New("countdown interval must be positive")
)

// Action is the preset care-task label of a reminder.
type Action string

const (
	ActionFeed     Action = "feed"
	ActionWater    Action = "fresh water"
	ActionWalk     Action = "walk"
	ActionBrush    Action = "brush"
	ActionBathe    Action = "bathe"
	ActionMedicine Action = "medicine"
	ActionPotty    Action = "potty"
	ActionCustom   Action = "custom"
)

// RemainingState tags the result of [Reminder.Remaining].
type RemainingState int

const (
	// StateDisabled means the reminder is switched off; nothing is scheduled.
	StateDisabled RemainingState = iota
	// StateDue means the most recent slot has passed unhandled; fire now.
	StateDue
	// StateScheduled means the next occurrence is in the future.
	StateScheduled
)

// Remaining is the tagged "time until next fire" result. Until is only
// meaningful when State is [StateScheduled].
type Remaining struct {
	State RemainingState
	Until time.Duration
}

// Reminder is the central entity: one care task for one dog, with exactly one
// recurrence variant active at a time, selected by Type. Positive IDs are
// server-assigned; negative IDs are client-side placeholders pending server
// acknowledgement.
type Reminder struct {
	ID               int64
	DogID            int64
	Action           Action
	CustomActionName string
	Type             Type
	ExecutionBasis   time.Time
	Enabled          bool

	// PresentationHandled marks the current occurrence as already delivered,
	// so a rebuilt scheduling loop does not fire it a second time.
	PresentationHandled bool

	// Deleted is the server's tombstone marker carried inside an otherwise
	// successful payload. Tombstoned reminders are dropped after merge.
	Deleted bool

	// Snooze, when non-nil, overrides all recurrence computation with a flat
	// interval counted from the execution basis.
	Snooze *time.Duration

	Countdown CountdownComponents
	Weekly    WeeklyComponents
	Monthly   MonthlyComponents
	OneTime   OneTimeComponents
}

// New returns an enabled countdown reminder with defaults, based at now and
// carrying a placeholder ID.
func New(dogID int64, action Action, now time.Time) *Reminder {
	return &Reminder{
		ID:             PlaceholderID,
		DogID:          dogID,
		Action:         action,
		Type:           TypeCountdown,
		ExecutionBasis: now,
		Enabled:        true,
		Countdown:      CountdownComponents{ExecutionInterval: DefaultCountdownInterval},
		Weekly:         defaultWeekly(),
		Monthly:        defaultMonthly(),
		OneTime:        OneTimeComponents{Date: now},
	}
}

// Clone returns an independent deep copy.
func (r *Reminder) Clone() *Reminder {
	cp := *r
	if r.Snooze != nil {
		d := *r.Snooze
		cp.Snooze = &d
	}
	return &cp
}

// Remaining reports the time left until the next occurrence at the given
// moment. A set snooze takes precedence over the active variant. StateDue
// means "fire immediately", never "unknown".
func (r *Reminder) Remaining(now time.Time) Remaining {
	if !r.Enabled {
		return Remaining{State: StateDisabled}
	}

	var target time.Time
	switch {
	case r.Snooze != nil:
		target = r.ExecutionBasis.Add(*r.Snooze)
	case r.Type == TypeCountdown:
		target = r.Countdown.NextExecution(r.ExecutionBasis)
	case r.Type == TypeOneTime:
		target = r.OneTime.NextExecution(r.ExecutionBasis)
	case r.Type == TypeWeekly:
		target = r.Weekly.NextExecution(r.ExecutionBasis)
	default:
		target = r.Monthly.NextExecution(r.ExecutionBasis)
	}

	if target.IsZero() || !target.After(now) {
		return Remaining{State: StateDue}
	}
	return Remaining{State: StateScheduled, Until: target.Sub(now)}
}

// NextExecution returns the timestamp of the next fire, or false if the
// reminder is disabled. A due reminder reports now. Countdown, one-time, and
// snoozed reminders compute directly from the basis for precision; weekly and
// monthly delegate to the variant's calendar search.
func (r *Reminder) NextExecution(now time.Time) (time.Time, bool) {
	rem := r.Remaining(now)
	switch rem.State {
	case StateDisabled:
		return time.Time{}, false
	case StateDue:
		return now, true
	}

	switch {
	case r.Snooze != nil:
		return r.ExecutionBasis.Add(*r.Snooze), true
	case r.Type == TypeCountdown:
		return r.Countdown.NextExecution(r.ExecutionBasis), true
	case r.Type == TypeOneTime:
		return r.OneTime.Date, true
	case r.Type == TypeWeekly:
		return r.Weekly.NextExecution(r.ExecutionBasis), true
	default:
		return r.Monthly.NextExecution(r.ExecutionBasis), true
	}
}

// PrepareForNextAlarm resets the reminder for a fresh occurrence: the basis
// moves to now, the presentation flag and snooze clear, and any in-flight
// skip on either calendar variant is forgotten. Called when an alarm is
// acknowledged or a timing field is edited.
func (r *Reminder) PrepareForNextAlarm(now time.Time) {
	r.ExecutionBasis = now
	r.PresentationHandled = false
	r.Snooze = nil
	r.Weekly.IsSkipping = false
	r.Weekly.SkippedDate = time.Time{}
	r.Monthly.IsSkipping = false
	r.Monthly.SkippedDate = time.Time{}
}

// SetSnooze overrides the recurrence computation with a flat interval from
// the current basis until the next alarm is handled.
func (r *Reminder) SetSnooze(d time.Duration) {
	r.Snooze = &d
}

// IsSkipping reports whether a skip is in flight at the given moment. A
// stored skip whose target slot has already passed is treated as cleared
// without waiting for a timer or an explicit toggle.
func (r *Reminder) IsSkipping(now time.Time) bool {
	switch r.Type {
	case TypeWeekly:
		return r.Weekly.IsSkipping && !now.After(r.Weekly.UnskipDate(r.ExecutionBasis))
	case TypeMonthly:
		return r.Monthly.IsSkipping && !now.After(r.Monthly.UnskipDate(r.ExecutionBasis))
	default:
		return false
	}
}

// SetSkipping toggles the one-shot skip at the given moment. The state
// machine is per variant: one-time reminders cannot skip (delete instead),
// countdown reminders treat a skip as a forward reset, and the calendar
// variants record the toggle moment so unskipping restores the basis exactly.
// A skip whose suppressed slot has already passed reads as cleared, so it is
// consumed first: the basis advances past that slot instead of being restored
// to the stale toggle moment. Requesting the effective current state is a
// no-op.
func (r *Reminder) SetSkipping(skipping bool, now time.Time) {
	switch r.Type {
	case TypeOneTime:
		return
	case TypeCountdown:
		if skipping {
			r.PrepareForNextAlarm(now)
		}
		return
	case TypeWeekly:
		if r.Weekly.IsSkipping && !r.IsSkipping(now) {
			if d := r.Weekly.UnskipDate(r.ExecutionBasis); !d.IsZero() {
				r.ExecutionBasis = d
			}
			r.Weekly.IsSkipping = false
			r.Weekly.SkippedDate = time.Time{}
		}
		if r.Weekly.IsSkipping == skipping {
			return
		}
		if skipping {
			r.Weekly.IsSkipping = true
			r.Weekly.SkippedDate = now
		} else {
			r.ExecutionBasis = r.Weekly.SkippedDate
			r.Weekly.IsSkipping = false
			r.Weekly.SkippedDate = time.Time{}
		}
	case TypeMonthly:
		if r.Monthly.IsSkipping && !r.IsSkipping(now) {
			r.ExecutionBasis = r.Monthly.UnskipDate(r.ExecutionBasis)
			r.Monthly.IsSkipping = false
			r.Monthly.SkippedDate = time.Time{}
		}
		if r.Monthly.IsSkipping == skipping {
			return
		}
		if skipping {
			r.Monthly.IsSkipping = true
			r.Monthly.SkippedDate = now
		} else {
			r.ExecutionBasis = r.Monthly.SkippedDate
			r.Monthly.IsSkipping = false
			r.Monthly.SkippedDate = time.Time{}
		}
	}
}

// SetType switches the active recurrence variant. Changing the tag resets the
// basis to now and clears skip and snooze state, as if the reminder were
// freshly created. Setting the current type is a no-op.
func (r *Reminder) SetType(t Type, now time.Time) {
	if r.Type == t {
		return
	}
	r.Type = t
	r.PrepareForNextAlarm(now)
}

// SetEnabled flips the enable flag. Re-enabling resets the basis to now so
// the reminder behaves as if just created; disabling leaves the rest of the
// state alone (the scheduling loop tears the timer down on rebuild).
func (r *Reminder) SetEnabled(enabled bool, now time.Time) {
	if r.Enabled == enabled {
		return
	}
	r.Enabled = enabled
	if enabled {
		r.PrepareForNextAlarm(now)
	}
}

// SetCustomActionName validates and stores the free-text action name.
func (r *Reminder) SetCustomActionName(name string) error {
	if utf8.RuneCountInString(name) > MaxCustomActionNameLength {
		return ErrCustomActionNameTooLong
	}
	r.CustomActionName = name
	return nil
}

// SetCountdownInterval validates and stores the countdown duration, resetting
// the basis since a timing field changed.
func (r *Reminder) SetCountdownInterval(d time.Duration, now time.Time) error {
	if d <= 0 {
		return ErrIntervalNotPositive
	}
	r.Countdown.ExecutionInterval = d
	r.PrepareForNextAlarm(now)
	return nil
}

// SetWeekdays validates and stores the weekly weekday flags, resetting the
// basis since a timing field changed.
func (r *Reminder) SetWeekdays(weekdays [7]bool, now time.Time) error {
	any := false
	for _, set := range weekdays {
		if set {
			any = true
			break
		}
	}
	if !any {
		return ErrNoWeekdaySet
	}
	r.Weekly.Weekdays = weekdays
	r.PrepareForNextAlarm(now)
	return nil
}

// SetMonthlyDay validates and stores the day of month, resetting the basis
// since a timing field changed.
func (r *Reminder) SetMonthlyDay(day int, now time.Time) error {
	if day < 1 || day > 31 {
		return ErrDayOfMonthOutOfRange
	}
	r.Monthly.Day = day
	r.PrepareForNextAlarm(now)
	return nil
}

// DisplayName returns the custom name for custom actions and the preset
// label otherwise.
func (r *Reminder) DisplayName() string {
	if r.Action == ActionCustom && r.CustomActionName != "" {
		return r.CustomActionName
	}
	return string(r.Action)
}

// IsSame reports deep equality over every sync-relevant field: identity,
// action, basis, enablement, snooze, and then the type-specific fields of the
// active variant only. Used by reconciliation for no-op detection; it is not
// a general-purpose equality.
func (r *Reminder) IsSame(other *Reminder) bool {
	if other == nil {
		return false
	}
	if r.ID != other.ID ||
		r.Action != other.Action ||
		r.CustomActionName != other.CustomActionName ||
		r.Type != other.Type ||
		!r.ExecutionBasis.Equal(other.ExecutionBasis) ||
		r.Enabled != other.Enabled {
		return false
	}
	if (r.Snooze == nil) != (other.Snooze == nil) {
		return false
	}
	if r.Snooze != nil && *r.Snooze != *other.Snooze {
		return false
	}

	switch r.Type {
	case TypeCountdown:
		return r.Countdown.ExecutionInterval == other.Countdown.ExecutionInterval
	case TypeWeekly:
		return r.Weekly.Hour == other.Weekly.Hour &&
			r.Weekly.Minute == other.Weekly.Minute &&
			r.Weekly.Weekdays == other.Weekly.Weekdays &&
			r.Weekly.IsSkipping == other.Weekly.IsSkipping &&
			r.Weekly.SkippedDate.Equal(other.Weekly.SkippedDate)
	case TypeMonthly:
		return r.Monthly.Day == other.Monthly.Day &&
			r.Monthly.Hour == other.Monthly.Hour &&
			r.Monthly.Minute == other.Monthly.Minute &&
			r.Monthly.IsSkipping == other.Monthly.IsSkipping &&
			r.Monthly.SkippedDate.Equal(other.Monthly.SkippedDate)
	default:
		return r.OneTime.Date.Equal(other.OneTime.Date)
	}
}

// ShiftBasis moves the execution basis forward by d. The scheduling loop uses
// this on unpause so countdown and snoozed reminders keep their already
// elapsed progress; absolute-time variants never need it.
func (r *Reminder) ShiftBasis(d time.Duration) {
	r.ExecutionBasis = r.ExecutionBasis.Add(d)
}
