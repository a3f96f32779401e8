package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"punchd/attend"
)

// Memory is a map-backed attend.Store. It backs tests and DSN-less
// demo runs; nothing survives a restart.
type Memory struct {
	mu        sync.Mutex
	nextID    int64
	employees map[string]attend.Employee
	logs      []attend.LogEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID:    1,
		employees: make(map[string]attend.Employee),
	}
}

// GetEmployee implements attend.Store.
func (m *Memory) GetEmployee(_ context.Context, cardID string) (*attend.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[cardID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// InsertEmployee implements attend.Store.
func (m *Memory) InsertEmployee(_ context.Context, e attend.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[e.CardID]; ok {
		return attend.ErrDuplicateCard
	}
	m.employees[e.CardID] = e
	return nil
}

// LastLog implements attend.Store.
func (m *Memory) LastLog(_ context.Context, cardID string, day time.Time) (*attend.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *attend.LogEntry
	for i := range m.logs {
		l := m.logs[i]
		if l.CardID != cardID || !l.Date.Equal(day) {
			continue
		}
		// Insertion order is the true tap order. Picking by time_in
		// would consult the wrong row after a backwards clock step.
		if last == nil || l.ID > last.ID {
			cp := l
			last = &cp
		}
	}
	return last, nil
}

// InsertLog implements attend.Store.
func (m *Memory) InsertLog(_ context.Context, entry attend.LogEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = m.nextID
	m.nextID++
	m.logs = append(m.logs, entry)
	return entry.ID, nil
}

// SetCheckout implements attend.Store.
func (m *Memory) SetCheckout(_ context.Context, id int64, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.logs {
		if m.logs[i].ID == id {
			out := t
			m.logs[i].TimeOut = &out
			m.logs[i].Status = attend.StatusOut
			return nil
		}
	}
	return nil
}

// Logs implements attend.Store.
func (m *Memory) Logs(_ context.Context, from, to time.Time) ([]attend.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []attend.LogEntry
	for _, l := range m.logs {
		if l.TimeIn.Before(from) || !l.TimeIn.Before(to) {
			continue
		}
		res = append(res, l)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].TimeIn.After(res[j].TimeIn) })
	return res, nil
}

// Summary implements attend.Store.
func (m *Memory) Summary(_ context.Context, from, to time.Time) (in, out int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.TimeIn.Before(from) || !l.TimeIn.Before(to) {
			continue
		}
		in++
		if l.TimeOut != nil {
			out++
		}
	}
	return in, out, nil
}

// Close implements attend.Store.
func (m *Memory) Close() error { return nil }
