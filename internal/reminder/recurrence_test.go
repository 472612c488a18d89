package reminder

import (
	"testing"
	"time"
)

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func weekdaysOnly(days ...time.Weekday) [7]bool {
	var w [7]bool
	for _, d := range days {
		w[int(d)] = true
	}
	return w
}

// ---------------------------------------------------------------------------
// WeeklyComponents
// ---------------------------------------------------------------------------

func TestWeekly_NextExecution(t *testing.T) {
	w := WeeklyComponents{Hour: 9, Minute: 0, Weekdays: weekdaysOnly(time.Monday)}

	tests := []struct {
		name  string
		basis time.Time
		want  time.Time
	}{
		{
			name:  "from Tuesday, next Monday",
			basis: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "from Monday before the hour, same day",
			basis: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "from Monday exactly at the hour, strictly after",
			basis: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "from Monday after the hour, next week",
			basis: time.Date(2026, 3, 2, 9, 0, 1, 0, time.UTC),
			want:  time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.NextExecution(tt.basis); !got.Equal(tt.want) {
				t.Errorf("NextExecution(%v) = %v, want %v", tt.basis, got, tt.want)
			}
		})
	}
}

func TestWeekly_NextExecution_WhileSkipping(t *testing.T) {
	w := WeeklyComponents{
		Hour:       9,
		Weekdays:   weekdaysOnly(time.Monday),
		IsSkipping: true,
	}
	basis := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC) // Tuesday

	// The Mar 9 slot is suppressed; the Mar 16 slot is next.
	want := time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)
	if got := w.NextExecution(basis); !got.Equal(want) {
		t.Errorf("NextExecution while skipping = %v, want %v", got, want)
	}

	// The suppressed slot is exactly the unskip boundary.
	wantUnskip := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	if got := w.UnskipDate(basis); !got.Equal(wantUnskip) {
		t.Errorf("UnskipDate = %v, want %v", got, wantUnskip)
	}
}

func TestWeekly_NextExecution_NoWeekday(t *testing.T) {
	w := WeeklyComponents{Hour: 9}
	if got := w.NextExecution(monday); !got.IsZero() {
		t.Errorf("NextExecution with no weekday = %v, want zero", got)
	}
	if got := w.PreviousExecution(monday); !got.IsZero() {
		t.Errorf("PreviousExecution with no weekday = %v, want zero", got)
	}
}

func TestWeekly_PreviousExecution(t *testing.T) {
	w := WeeklyComponents{Hour: 9, Weekdays: weekdaysOnly(time.Monday)}

	tests := []struct {
		name  string
		basis time.Time
		want  time.Time
	}{
		{
			name:  "from Tuesday, previous Monday",
			basis: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "exactly at the slot counts as previous",
			basis: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "just before the slot, a week back",
			basis: time.Date(2026, 3, 2, 8, 59, 0, 0, time.UTC),
			want:  time.Date(2026, 2, 23, 9, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.PreviousExecution(tt.basis); !got.Equal(tt.want) {
				t.Errorf("PreviousExecution(%v) = %v, want %v", tt.basis, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// MonthlyComponents
// ---------------------------------------------------------------------------

func TestMonthly_NextExecution_ClampsToMonthEnd(t *testing.T) {
	m := MonthlyComponents{Day: 31, Hour: 9}

	tests := []struct {
		name  string
		basis time.Time
		want  time.Time
	}{
		{
			name:  "April has 30 days",
			basis: time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 4, 30, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "February clamps to 28",
			basis: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "leap-year February clamps to 29",
			basis: time.Date(2028, 2, 1, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2028, 2, 29, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "full-length month fires on the 31st",
			basis: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "slot already passed, roll to next month",
			basis: time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 4, 30, 9, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.NextExecution(tt.basis); !got.Equal(tt.want) {
				t.Errorf("NextExecution(%v) = %v, want %v", tt.basis, got, tt.want)
			}
		})
	}
}

func TestMonthly_NextExecution_WhileSkipping(t *testing.T) {
	m := MonthlyComponents{Day: 15, Hour: 12, IsSkipping: true}
	basis := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	want := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	if got := m.NextExecution(basis); !got.Equal(want) {
		t.Errorf("NextExecution while skipping = %v, want %v", got, want)
	}
}

func TestMonthly_PreviousExecution(t *testing.T) {
	m := MonthlyComponents{Day: 31, Hour: 9}

	tests := []struct {
		name  string
		basis time.Time
		want  time.Time
	}{
		{
			name:  "mid-May looks back to clamped April slot",
			basis: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 4, 30, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "exactly at the slot counts as previous",
			basis: time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.PreviousExecution(tt.basis); !got.Equal(tt.want) {
				t.Errorf("PreviousExecution(%v) = %v, want %v", tt.basis, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// CountdownComponents / OneTimeComponents
// ---------------------------------------------------------------------------

func TestCountdown_NextExecution(t *testing.T) {
	c := CountdownComponents{ExecutionInterval: 30 * time.Minute}
	basis := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	want := time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)
	if got := c.NextExecution(basis); !got.Equal(want) {
		t.Errorf("NextExecution = %v, want %v", got, want)
	}
}

func TestOneTime_IgnoresBasis(t *testing.T) {
	date := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	o := OneTimeComponents{Date: date}
	for _, basis := range []time.Time{
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		if got := o.NextExecution(basis); !got.Equal(date) {
			t.Errorf("NextExecution(basis=%v) = %v, want %v", basis, got, date)
		}
	}
}

// ---------------------------------------------------------------------------
// daysIn
// ---------------------------------------------------------------------------

func TestDaysIn(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2026, time.January, 31},
		{2026, time.February, 28},
		{2028, time.February, 29},
		{2026, time.April, 30},
		{2026, time.December, 31},
	}
	for _, tt := range tests {
		if got := daysIn(tt.year, tt.month); got != tt.want {
			t.Errorf("daysIn(%d, %v) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}
