package sync

import (
	"github.com/houndapp/houndsync/internal/reminder"
)

// Result is the four-way classification of a reconcile pass. Every reminder
// involved lands in exactly one bucket; an unclassifiable reminder would be a
// logic defect, not a runtime condition.
type Result struct {
	// Unchanged holds local reminders whose server counterpart is
	// field-for-field identical. The local copy is kept because it carries
	// the presentation-handled flag.
	Unchanged []*reminder.Reminder
	// Created holds server reminders with no local counterpart, plus local
	// placeholders still awaiting a server identifier.
	Created []*reminder.Reminder
	// Updated holds server versions that differ from the local copy. The
	// server wins: it has already incorporated any local edit that was
	// pushed before this fetch.
	Updated []*reminder.Reminder
	// Deleted holds reminders absent from a full server response or carrying
	// the server's tombstone marker.
	Deleted []*reminder.Reminder
}

// Merged builds the collection the pass leaves behind: unchanged, updated,
// and created reminders, with tombstoned entries dropped.
func (res Result) Merged() *reminder.Collection {
	merged := reminder.NewCollection()
	merged.AddAll(res.Unchanged)
	merged.AddAll(res.Updated)
	for _, r := range res.Created {
		if !r.Deleted {
			merged.Add(r)
		}
	}
	return merged
}

// Partition classifies a full server response against the prior local state.
// Absence from the response means the server deleted the reminder. Local
// placeholders (negative identifiers) are passed through as created: the
// server cannot know about them yet. Server entries with negative
// identifiers should not occur post-creation but are classified as created
// rather than dropped, keeping the partition exhaustive.
func Partition(local *reminder.Collection, fetched []*reminder.Reminder) Result {
	var res Result

	byID := make(map[int64]*reminder.Reminder, len(fetched))
	for _, f := range fetched {
		if f.ID >= 0 {
			byID[f.ID] = f
		}
	}

	matched := make(map[int64]bool, len(byID))
	for _, r := range local.All() {
		if r.ID < 0 {
			res.Created = append(res.Created, r)
			continue
		}
		f, ok := byID[r.ID]
		if !ok {
			res.Deleted = append(res.Deleted, r)
			continue
		}
		matched[r.ID] = true
		switch {
		case f.Deleted:
			res.Deleted = append(res.Deleted, f)
		case f.IsSame(r):
			res.Unchanged = append(res.Unchanged, r)
		default:
			res.Updated = append(res.Updated, f)
		}
	}

	for _, f := range fetched {
		if f.ID >= 0 && matched[f.ID] {
			continue
		}
		if f.Deleted {
			res.Deleted = append(res.Deleted, f)
			continue
		}
		res.Created = append(res.Created, f)
	}

	return res
}

// MergeIncremental classifies a scoped server response, where absence means
// "no change since the last synchronization" rather than deletion. Every
// fetched reminder overwrites a same-identifier local one, every local
// reminder missing from the response is preserved, and tombstoned entries
// land in Deleted.
func MergeIncremental(local *reminder.Collection, fetched []*reminder.Reminder) Result {
	var res Result

	byID := make(map[int64]*reminder.Reminder, len(fetched))
	for _, f := range fetched {
		if f.ID >= 0 {
			byID[f.ID] = f
		}
	}

	for _, r := range local.All() {
		if r.ID < 0 {
			res.Created = append(res.Created, r)
			continue
		}
		f, ok := byID[r.ID]
		if !ok {
			res.Unchanged = append(res.Unchanged, r)
			continue
		}
		switch {
		case f.Deleted:
			res.Deleted = append(res.Deleted, f)
		case f.IsSame(r):
			res.Unchanged = append(res.Unchanged, r)
		default:
			res.Updated = append(res.Updated, f)
		}
		delete(byID, r.ID)
	}

	for _, f := range fetched {
		if f.ID >= 0 {
			if _, pending := byID[f.ID]; !pending {
				continue
			}
		}
		if f.Deleted {
			res.Deleted = append(res.Deleted, f)
			continue
		}
		res.Created = append(res.Created, f)
	}

	return res
}
