package status

import (
	"context"
	"fmt"
)

// Status is the simulation state of one team
type Status string

const (
	Idle      Status = "idle"
	Running   Status = "running"
	Completed Status = "completed"
	Error     Status = "error"
)

// Valid reports whether s is one of the known states
func (s Status) Valid() bool {
	switch s {
	case Idle, Running, Completed, Error:
		return true
	}
	return false
}

// allowedFrom lists, per target state, which states may move into it.
var allowedFrom = map[Status][]Status{
	Running:   {Idle, Error, Completed},
	Completed: {Running},
	Error:     {Running},
}

// Store is the persistence the tracker needs. TransitionStatus must apply
// the from-check and the write atomically.
type Store interface {
	TransitionStatus(ctx context.Context, teamID int, to Status, from []Status) error
	SimulationStatus(ctx context.Context, teamID int) (Status, bool, error)
	ResetStatuses(ctx context.Context, from, to Status) (int64, error)
}

// Tracker records per-team run status
type Tracker struct {
	store Store
}

// NewTracker creates a tracker on top of store
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// SetStatus moves a team to s. It fails with ErrUnknownTeam when the team has
// no row and with ErrInvalidTransition when the move is not allowed from the
// team's current state.
func (t *Tracker) SetStatus(ctx context.Context, teamID int, s Status) error {
	from, ok := allowedFrom[s]
	if !ok {
		return fmt.Errorf("status %q: %w", s, ErrInvalidTransition)
	}
	return t.store.TransitionStatus(ctx, teamID, s, from)
}

// GetStatus returns the team's status, or Idle when the team is unknown
func (t *Tracker) GetStatus(ctx context.Context, teamID int) (Status, error) {
	s, found, err := t.store.SimulationStatus(ctx, teamID)
	if err != nil {
		return "", err
	}
	if !found {
		return Idle, nil
	}
	return s, nil
}

// AllCompleted reports whether every listed team is completed. An empty
// list is never completed.
func (t *Tracker) AllCompleted(ctx context.Context, teamIDs []int) (bool, error) {
	if len(teamIDs) == 0 {
		return false, nil
	}
	for _, id := range teamIDs {
		s, err := t.GetStatus(ctx, id)
		if err != nil {
			return false, err
		}
		if s != Completed {
			return false, nil
		}
	}
	return true, nil
}

// ResetInterrupted moves teams left running by a previous process to Error.
func (t *Tracker) ResetInterrupted(ctx context.Context) (int64, error) {
	return t.store.ResetStatuses(ctx, Running, Error)
}

var (
	ErrUnknownTeam       = &StatusError{"unknown team"}
	ErrInvalidTransition = &StatusError{"invalid status transition"}
)

// StatusError represents a status tracking error
type StatusError struct {
	msg string
}

func (e *StatusError) Error() string {
	return e.msg
}
