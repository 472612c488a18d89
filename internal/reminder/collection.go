package reminder

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrNotFound is returned by find-and-mutate operations on a missing
// identifier. Plain removals of a missing identifier are silent no-ops.
var ErrNotFound = errors.New("reminder not found")

// Collection is the ordered set of one dog's reminders, unique by identifier.
// It owns its reminders exclusively: callers insert clones and read clones,
// so no external aliasing can mutate collection state.
type Collection struct {
	reminders []*Reminder
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// NewCollectionOf returns a sorted collection of clones of the given
// reminders, applying the same identifier rules as [Collection.Add].
func NewCollectionOf(reminders []*Reminder) *Collection {
	c := NewCollection()
	c.AddAll(reminders)
	return c
}

// Len returns the number of reminders held.
func (c *Collection) Len() int {
	return len(c.reminders)
}

// All returns clones of every reminder in display order.
func (c *Collection) All() []*Reminder {
	out := make([]*Reminder, len(c.reminders))
	for i, r := range c.reminders {
		out[i] = r.Clone()
	}
	return out
}

// Find returns a clone of the reminder with the given identifier, or nil.
func (c *Collection) Find(id int64) *Reminder {
	if i := c.indexOf(id); i >= 0 {
		return c.reminders[i].Clone()
	}
	return nil
}

// Add inserts a clone of r, keeping identifiers unique. A real (non-negative)
// identifier replaces any existing entry with the same identifier; when the
// execution basis is unchanged the old entry's presentation-handled flag is
// carried forward so a delivered occurrence is not requeued, while a new
// basis marks a new occurrence and the flag starts clear. A placeholder
// identifier that would collide is renumbered to one below the current
// minimum placeholder, preserving relative creation order among unpersisted
// reminders.
func (c *Collection) Add(r *Reminder) {
	c.insert(r)
	c.sort()
}

// AddAll inserts clones of all given reminders and sorts once at the end.
func (c *Collection) AddAll(reminders []*Reminder) {
	for _, r := range reminders {
		c.insert(r)
	}
	c.sort()
}

// Update is Add with replace-in-place semantics for a known identifier; it
// exists for call-site clarity.
func (c *Collection) Update(r *Reminder) {
	c.Add(r)
}

// Remove deletes the reminder with the given identifier. Removing an unknown
// identifier is a no-op, not an error.
func (c *Collection) Remove(id int64) {
	if i := c.indexOf(id); i >= 0 {
		c.reminders = slices.Delete(c.reminders, i, i+1)
	}
}

// RemoveAt deletes the reminder at the given display position. Out-of-range
// positions are a no-op.
func (c *Collection) RemoveAt(i int) {
	if i >= 0 && i < len(c.reminders) {
		c.reminders = slices.Delete(c.reminders, i, i+1)
	}
}

// SetEnabled toggles enablement on a specific reminder. Unlike Remove, a
// missing identifier is a hard error: the caller named a reminder that does
// not exist, which must surface rather than silently do nothing.
func (c *Collection) SetEnabled(id int64, enabled bool, now time.Time) error {
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("enable reminder %d: %w", id, ErrNotFound)
	}
	c.reminders[i].SetEnabled(enabled, now)
	return nil
}

// MarkHandled sets the presentation-handled flag on a specific reminder.
func (c *Collection) MarkHandled(id int64) error {
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("mark reminder %d handled: %w", id, ErrNotFound)
	}
	c.reminders[i].PresentationHandled = true
	return nil
}

// Mutate applies fn to the reminder with the given identifier. A missing
// identifier is a hard error, matching SetEnabled.
func (c *Collection) Mutate(id int64, fn func(*Reminder)) error {
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("mutate reminder %d: %w", id, ErrNotFound)
	}
	fn(c.reminders[i])
	c.sort()
	return nil
}

func (c *Collection) indexOf(id int64) int {
	for i, r := range c.reminders {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (c *Collection) insert(r *Reminder) {
	cp := r.Clone()

	if cp.ID >= 0 {
		if i := c.indexOf(cp.ID); i >= 0 {
			if old := c.reminders[i]; old.ExecutionBasis.Equal(cp.ExecutionBasis) {
				cp.PresentationHandled = cp.PresentationHandled || old.PresentationHandled
			}
			c.reminders[i] = cp
			return
		}
		c.reminders = append(c.reminders, cp)
		return
	}

	// Placeholder: renumber on collision, never reuse an id.
	if c.indexOf(cp.ID) >= 0 {
		cp.ID = c.minPlaceholderID() - 1
	}
	c.reminders = append(c.reminders, cp)
}

func (c *Collection) minPlaceholderID() int64 {
	min := int64(0)
	for _, r := range c.reminders {
		if r.ID < min {
			min = r.ID
		}
	}
	return min
}

func (c *Collection) sort() {
	slices.SortStableFunc(c.reminders, Compare)
}

// Compare is the collection's total-order comparator. Reminders sort first by
// variant type (countdown, weekly, monthly, one-time), then by the variant's
// own key (shortest countdown, earliest hour:minute, earliest day, soonest
// date), with identifier as the final tie break so the order is strict.
func Compare(a, b *Reminder) int {
	if d := typeRank(a.Type) - typeRank(b.Type); d != 0 {
		return d
	}

	switch a.Type {
	case TypeCountdown:
		if d := cmpDuration(a.Countdown.ExecutionInterval, b.Countdown.ExecutionInterval); d != 0 {
			return d
		}
	case TypeWeekly:
		if d := a.Weekly.Hour - b.Weekly.Hour; d != 0 {
			return d
		}
		if d := a.Weekly.Minute - b.Weekly.Minute; d != 0 {
			return d
		}
	case TypeMonthly:
		if d := a.Monthly.Hour - b.Monthly.Hour; d != 0 {
			return d
		}
		if d := a.Monthly.Minute - b.Monthly.Minute; d != 0 {
			return d
		}
		if d := a.Monthly.Day - b.Monthly.Day; d != 0 {
			return d
		}
	case TypeOneTime:
		if a.OneTime.Date.Before(b.OneTime.Date) {
			return -1
		}
		if a.OneTime.Date.After(b.OneTime.Date) {
			return 1
		}
	}

	return compareIDs(a.ID, b.ID)
}

// compareIDs orders real identifiers ascending ahead of placeholders, and
// placeholders with values closer to zero first. Both rules put the
// oldest-created reminder first within its category.
func compareIDs(a, b int64) int {
	aReal, bReal := a >= 0, b >= 0
	switch {
	case aReal && bReal:
		return cmpInt64(a, b)
	case aReal:
		return -1
	case bReal:
		return 1
	default:
		// Both placeholders: -1 is older than -2.
		return cmpInt64(b, a)
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpDuration(a, b time.Duration) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
