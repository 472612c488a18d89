package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/houndapp/houndsync/internal/reminder"
)

// --- Mock server -------------------------------------------------------------

type mockServer struct {
	mu        sync.Mutex
	reminders map[int64][]*reminder.Reminder // dogID → reminders
	nextID    int64

	fetchErr  error
	createErr error

	createdCalls int
	updated      []*reminder.Reminder
	deleted      []int64
}

func newMockServer(reminders map[int64][]*reminder.Reminder) *mockServer {
	if reminders == nil {
		reminders = make(map[int64][]*reminder.Reminder)
	}
	return &mockServer{reminders: reminders, nextID: 100}
}

func (m *mockServer) FetchReminders(_ context.Context, dogID int64, _ time.Time) ([]*reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []*reminder.Reminder
	for _, r := range m.reminders[dogID] {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *mockServer) CreateReminders(_ context.Context, dogID int64, reminders []*reminder.Reminder) ([]*reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createdCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}

	var out []*reminder.Reminder
	for _, r := range reminders {
		m.nextID++
		cp := r.Clone()
		cp.ID = m.nextID
		m.reminders[dogID] = append(m.reminders[dogID], cp)
		out = append(out, cp.Clone())
	}
	return out, nil
}

func (m *mockServer) UpdateReminders(_ context.Context, dogID int64, reminders []*reminder.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range reminders {
		m.updated = append(m.updated, r.Clone())
		for i, existing := range m.reminders[dogID] {
			if existing.ID == r.ID {
				m.reminders[dogID][i] = r.Clone()
			}
		}
	}
	return nil
}

func (m *mockServer) DeleteReminders(_ context.Context, dogID int64, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		m.deleted = append(m.deleted, id)
		kept := m.reminders[dogID][:0]
		for _, r := range m.reminders[dogID] {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		m.reminders[dogID] = kept
	}
	return nil
}

// --- Mock store --------------------------------------------------------------

type mockStore struct {
	mu        sync.Mutex
	reminders map[int64][]*reminder.Reminder
	lastSync  map[int64]time.Time

	saveErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		reminders: make(map[int64][]*reminder.Reminder),
		lastSync:  make(map[int64]time.Time),
	}
}

func (m *mockStore) LoadReminders(_ context.Context, dogID int64) ([]*reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*reminder.Reminder
	for _, r := range m.reminders[dogID] {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *mockStore) SaveReminders(_ context.Context, dogID int64, reminders []*reminder.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	var cp []*reminder.Reminder
	for _, r := range reminders {
		cp = append(cp, r.Clone())
	}
	m.reminders[dogID] = cp
	return nil
}

func (m *mockStore) LastSync(_ context.Context, dogID int64) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSync[dogID], nil
}

func (m *mockStore) SetLastSync(_ context.Context, dogID int64, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSync[dogID] = t
	return nil
}

func (m *mockStore) stored(dogID int64) []*reminder.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reminders[dogID]
}

// --- Mock rescheduler --------------------------------------------------------

type mockSched struct {
	mu       sync.Mutex
	replaced map[int64][]*reminder.Reminder
	updates  []*reminder.Reminder
	removals []string
}

func newMockSched() *mockSched {
	return &mockSched{replaced: make(map[int64][]*reminder.Reminder)}
}

func (m *mockSched) Replace(dogID int64, reminders []*reminder.Reminder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaced[dogID] = reminders
}

func (m *mockSched) Update(dogID int64, r *reminder.Reminder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, r.Clone())
}

func (m *mockSched) Remove(dogID, reminderID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removals = append(m.removals, fmt.Sprintf("%d/%d", dogID, reminderID))
}

func (m *mockSched) lastReplaced(dogID int64) []*reminder.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaced[dogID]
}
