package status

import (
	"context"
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

func TestTracker_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(1))

	s, err := tr.GetStatus(ctx, 1)
	assert.NilError(t, err)
	assert.Equal(t, s, Idle)

	assert.NilError(t, tr.SetStatus(ctx, 1, Running))
	assert.NilError(t, tr.SetStatus(ctx, 1, Completed))

	// A completed team can be re-run
	assert.NilError(t, tr.SetStatus(ctx, 1, Running))
	assert.NilError(t, tr.SetStatus(ctx, 1, Error))
	assert.NilError(t, tr.SetStatus(ctx, 1, Running))

	s, err = tr.GetStatus(ctx, 1)
	assert.NilError(t, err)
	assert.Equal(t, s, Running)
}

func TestTracker_RejectsDoubleRunning(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(1))

	assert.NilError(t, tr.SetStatus(ctx, 1, Running))
	err := tr.SetStatus(ctx, 1, Running)
	assert.Assert(t, errors.Is(err, ErrInvalidTransition), "got %v", err)
}

func TestTracker_RejectsCompletionWithoutRun(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(1))

	err := tr.SetStatus(ctx, 1, Completed)
	assert.Assert(t, errors.Is(err, ErrInvalidTransition))
}

func TestTracker_UnknownTeam(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(1))

	err := tr.SetStatus(ctx, 42, Running)
	assert.Assert(t, errors.Is(err, ErrUnknownTeam))

	s, err := tr.GetStatus(ctx, 42)
	assert.NilError(t, err)
	assert.Equal(t, s, Idle)
}

func TestTracker_UnknownStatus(t *testing.T) {
	tr := NewTracker(NewMemoryStore(1))
	err := tr.SetStatus(context.Background(), 1, Status("paused"))
	assert.Assert(t, errors.Is(err, ErrInvalidTransition))
}

func TestTracker_AllCompleted(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(1, 2))

	done, err := tr.AllCompleted(ctx, nil)
	assert.NilError(t, err)
	assert.Assert(t, !done, "empty set must not count as completed")

	for _, id := range []int{1, 2} {
		assert.NilError(t, tr.SetStatus(ctx, id, Running))
	}
	assert.NilError(t, tr.SetStatus(ctx, 1, Completed))

	done, err = tr.AllCompleted(ctx, []int{1, 2})
	assert.NilError(t, err)
	assert.Assert(t, !done)

	assert.NilError(t, tr.SetStatus(ctx, 2, Completed))
	done, err = tr.AllCompleted(ctx, []int{1, 2})
	assert.NilError(t, err)
	assert.Assert(t, done)

	// Unknown teams read as idle
	done, err = tr.AllCompleted(ctx, []int{1, 2, 3})
	assert.NilError(t, err)
	assert.Assert(t, !done)
}

func TestTracker_ResetInterrupted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(1, 2)
	tr := NewTracker(store)

	assert.NilError(t, tr.SetStatus(ctx, 1, Running))

	n, err := tr.ResetInterrupted(ctx)
	assert.NilError(t, err)
	assert.Equal(t, n, int64(1))

	s, _ := tr.GetStatus(ctx, 1)
	assert.Equal(t, s, Error)
	s, _ = tr.GetStatus(ctx, 2)
	assert.Equal(t, s, Idle)
}

func TestTracker_IdleIsNotATarget(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(1))

	assert.NilError(t, tr.SetStatus(ctx, 1, Running))
	err := tr.SetStatus(ctx, 1, Idle)
	assert.Assert(t, errors.Is(err, ErrInvalidTransition))
}
