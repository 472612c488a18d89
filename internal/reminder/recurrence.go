package reminder

import "time"

// Type selects which recurrence variant of a [Reminder] is active.
type Type string

const (
	// TypeCountdown fires a fixed duration after the execution basis.
	TypeCountdown Type = "countdown"
	// TypeWeekly fires at a UTC hour:minute on a set of weekdays.
	TypeWeekly Type = "weekly"
	// TypeMonthly fires at a UTC hour:minute on a day of the month.
	TypeMonthly Type = "monthly"
	// TypeOneTime fires once at an absolute timestamp.
	TypeOneTime Type = "oneTime"
)

// typeRank gives the fixed cross-type sort priority:
// countdown < weekly < monthly < oneTime.
func typeRank(t Type) int {
	switch t {
	case TypeCountdown:
		return 0
	case TypeWeekly:
		return 1
	case TypeMonthly:
		return 2
	default:
		return 3
	}
}

// CountdownComponents is the duration-based recurrence variant.
type CountdownComponents struct {
	// ExecutionInterval is the countdown duration from the execution basis.
	ExecutionInterval time.Duration
}

// NextExecution returns basis + interval.
func (c CountdownComponents) NextExecution(basis time.Time) time.Time {
	return basis.Add(c.ExecutionInterval)
}

// PreviousExecution returns the basis itself; a countdown has no earlier
// occurrence concept.
func (c CountdownComponents) PreviousExecution(basis time.Time) time.Time {
	return basis
}

// WeeklyComponents is the weekday-set recurrence variant. Hour and Minute are
// stored in UTC; Weekdays is indexed by [time.Weekday] (0 = Sunday).
type WeeklyComponents struct {
	Hour     int
	Minute   int
	Weekdays [7]bool

	// IsSkipping suppresses the next occurrence. SkippedDate records when the
	// skip was engaged so unskipping can restore the execution basis.
	IsSkipping  bool
	SkippedDate time.Time
}

// HasWeekday reports whether at least one weekday flag is set.
func (w WeeklyComponents) HasWeekday() bool {
	for _, set := range w.Weekdays {
		if set {
			return true
		}
	}
	return false
}

// nextAfter finds the smallest matching timestamp strictly after basis,
// ignoring skip state. Returns the zero time if no weekday is set.
func (w WeeklyComponents) nextAfter(basis time.Time) time.Time {
	if !w.HasWeekday() {
		return time.Time{}
	}
	u := basis.UTC()
	for day := 0; day <= 7; day++ {
		d := u.AddDate(0, 0, day)
		cand := time.Date(d.Year(), d.Month(), d.Day(), w.Hour, w.Minute, 0, 0, time.UTC)
		if cand.After(u) && w.Weekdays[int(cand.Weekday())] {
			return cand
		}
	}
	return time.Time{}
}

// NextExecution returns the next occurrence strictly after basis. While
// IsSkipping is set the occurrence after that is returned instead, so exactly
// one slot is suppressed.
func (w WeeklyComponents) NextExecution(basis time.Time) time.Time {
	next := w.nextAfter(basis)
	if w.IsSkipping && !next.IsZero() {
		return w.nextAfter(next)
	}
	return next
}

// PreviousExecution returns the largest matching timestamp at or before basis,
// used to detect an occurrence that has already passed. Returns the zero time
// if no weekday is set.
func (w WeeklyComponents) PreviousExecution(basis time.Time) time.Time {
	if !w.HasWeekday() {
		return time.Time{}
	}
	u := basis.UTC()
	for day := 0; day <= 7; day++ {
		d := u.AddDate(0, 0, -day)
		cand := time.Date(d.Year(), d.Month(), d.Day(), w.Hour, w.Minute, 0, 0, time.UTC)
		if !cand.After(u) && w.Weekdays[int(cand.Weekday())] {
			return cand
		}
	}
	return time.Time{}
}

// UnskipDate returns the occurrence the active skip is suppressing: the next
// occurrence after basis ignoring skip state. Once now passes this date the
// skip no longer applies to anything and is treated as cleared.
func (w WeeklyComponents) UnskipDate(basis time.Time) time.Time {
	return w.nextAfter(basis)
}

// MonthlyComponents is the day-of-month recurrence variant. Hour and Minute
// are stored in UTC. A Day beyond the length of a month clamps to that
// month's last day, so day 31 fires on Apr 30 and on Feb 28 (29 in leap
// years) rather than skipping the month.
type MonthlyComponents struct {
	Day    int
	Hour   int
	Minute int

	IsSkipping  bool
	SkippedDate time.Time
}

// slot returns the occurrence within the given year/month, clamping Day to
// the month's length.
func (m MonthlyComponents) slot(year int, month time.Month) time.Time {
	day := m.Day
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, m.Hour, m.Minute, 0, 0, time.UTC)
}

// nextAfter finds the smallest matching timestamp strictly after basis,
// ignoring skip state.
func (m MonthlyComponents) nextAfter(basis time.Time) time.Time {
	u := basis.UTC()
	year, month := u.Year(), u.Month()
	for i := 0; i < 13; i++ {
		if cand := m.slot(year, month); cand.After(u) {
			return cand
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return time.Time{}
}

// NextExecution returns the next occurrence strictly after basis, skipping
// exactly one slot while IsSkipping is set.
func (m MonthlyComponents) NextExecution(basis time.Time) time.Time {
	next := m.nextAfter(basis)
	if m.IsSkipping && !next.IsZero() {
		return m.nextAfter(next)
	}
	return next
}

// PreviousExecution returns the largest matching timestamp at or before basis.
func (m MonthlyComponents) PreviousExecution(basis time.Time) time.Time {
	u := basis.UTC()
	year, month := u.Year(), u.Month()
	for i := 0; i < 13; i++ {
		if cand := m.slot(year, month); !cand.After(u) {
			return cand
		}
		month--
		if month < time.January {
			month = time.December
			year--
		}
	}
	return time.Time{}
}

// UnskipDate returns the occurrence the active skip is suppressing.
func (m MonthlyComponents) UnskipDate(basis time.Time) time.Time {
	return m.nextAfter(basis)
}

// OneTimeComponents is the single absolute timestamp variant.
type OneTimeComponents struct {
	Date time.Time
}

// NextExecution returns the stored date unconditionally; the basis is
// irrelevant for a one-time reminder.
func (o OneTimeComponents) NextExecution(_ time.Time) time.Time {
	return o.Date
}

// PreviousExecution also returns the stored date; there is only one slot.
func (o OneTimeComponents) PreviousExecution(_ time.Time) time.Time {
	return o.Date
}

// daysIn returns the number of days in the given month. Day zero of the
// following month normalises to the last day of this one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
