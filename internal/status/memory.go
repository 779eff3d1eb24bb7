package status

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is an in-process Store. Teams must be added before their
// status can change.
type MemoryStore struct {
	mu       sync.Mutex
	statuses map[int]Status
}

// NewMemoryStore creates a store holding the given teams in Idle
func NewMemoryStore(teamIDs ...int) *MemoryStore {
	m := &MemoryStore{statuses: make(map[int]Status)}
	for _, id := range teamIDs {
		m.statuses[id] = Idle
	}
	return m
}

// Add registers a team in Idle if it is not known yet
func (m *MemoryStore) Add(teamID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[teamID]; !ok {
		m.statuses[teamID] = Idle
	}
}

func (m *MemoryStore) TransitionStatus(_ context.Context, teamID int, to Status, from []Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.statuses[teamID]
	if !ok {
		return ErrUnknownTeam
	}
	if !slices.Contains(from, current) {
		return fmt.Errorf("team %d %s -> %s: %w", teamID, current, to, ErrInvalidTransition)
	}
	m.statuses[teamID] = to
	return nil
}

func (m *MemoryStore) SimulationStatus(_ context.Context, teamID int) (Status, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[teamID]
	return s, ok, nil
}

func (m *MemoryStore) ResetStatuses(_ context.Context, from, to Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.statuses {
		if s == from {
			m.statuses[id] = to
			n++
		}
	}
	return n, nil
}
