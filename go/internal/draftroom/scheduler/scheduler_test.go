package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topdogsports/draftroom/go/internal/draftroom/autopick"
	"github.com/topdogsports/draftroom/go/internal/draftroom/coordinator"
	"github.com/topdogsports/draftroom/go/internal/draftroom/store"
	"github.com/topdogsports/draftroom/go/internal/models"
)

type recordingSubmitter struct {
	mu       sync.Mutex
	requests []coordinator.SubmitPickRequest
	err      error
}

func (r *recordingSubmitter) SubmitAutoPick(ctx context.Context, req coordinator.SubmitPickRequest) (*models.Pick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return &models.Pick{
		ID:          uuid.New(),
		RoomID:      req.RoomID,
		PickNumber:  req.PickNumber,
		Participant: req.Participant,
		Selection:   req.Selection,
		Auto:        true,
	}, nil
}

func (r *recordingSubmitter) calls() []coordinator.SubmitPickRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]coordinator.SubmitPickRequest, len(r.requests))
	copy(out, r.requests)
	return out
}

type fixedStrategy struct {
	id  uuid.UUID
	err error
}

func (f fixedStrategy) SelectFor(ctx context.Context, roomID, participant uuid.UUID) (uuid.UUID, error) {
	return f.id, f.err
}

func activeRoom(t *testing.T, m *store.Memory, timePerPick int) (*models.DraftRoom, []uuid.UUID) {
	t.Helper()
	room := &models.DraftRoom{
		ID:          uuid.New(),
		DraftOrder:  []uuid.UUID{uuid.New(), uuid.New()},
		CurrentPick: 1,
		Status:      models.RoomStatusActive,
		Settings: models.RoomSettings{
			Rounds:         2,
			TimePerPickSec: timePerPick,
		},
	}
	pool := make([]uuid.UUID, 4)
	for i := range pool {
		pool[i] = uuid.New()
	}
	require.NoError(t, m.CreateRoom(context.Background(), room, pool))
	return room, pool
}

func newScheduler(m *store.Memory, sub Submitter, strat autopick.Strategy, clock clockwork.Clock) *Scheduler {
	return NewWithClock(m, sub, strat, DefaultConfig(), clock)
}

func TestHandleDueSubmitsAutoPick(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	m := store.NewMemoryWithClock(clock)
	room, pool := activeRoom(t, m, 30)

	sub := &recordingSubmitter{}
	s := newScheduler(m, sub, fixedStrategy{id: pool[0]}, clock)

	require.NoError(t, s.handleDue(ctx, room.ID))

	calls := sub.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, room.ID, calls[0].RoomID)
	assert.Equal(t, 1, calls[0].PickNumber)
	assert.Equal(t, room.DraftOrder[0], calls[0].Participant)
	assert.Equal(t, pool[0], calls[0].Selection)
}

func TestHandleDueDropsSupersededPick(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	m := store.NewMemoryWithClock(clock)
	room, pool := activeRoom(t, m, 30)

	// A human pick landed first; the coordinator rejects the stale
	// auto submission and the scheduler drops it silently.
	sub := &recordingSubmitter{err: &coordinator.PickError{Kind: coordinator.KindPickNumberMismatch}}
	s := newScheduler(m, sub, fixedStrategy{id: pool[0]}, clock)

	assert.NoError(t, s.handleDue(ctx, room.ID))
	assert.Len(t, sub.calls(), 1)
}

func TestHandleDueSurfacesInfrastructureError(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	m := store.NewMemoryWithClock(clock)
	room, pool := activeRoom(t, m, 30)

	boom := errors.New("store down")
	sub := &recordingSubmitter{err: boom}
	s := newScheduler(m, sub, fixedStrategy{id: pool[0]}, clock)

	assert.ErrorIs(t, s.handleDue(ctx, room.ID), boom)
}

func TestHandleDueMissingRoom(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := store.NewMemoryWithClock(clock)
	sub := &recordingSubmitter{}
	s := newScheduler(m, sub, fixedStrategy{}, clock)

	assert.NoError(t, s.handleDue(context.Background(), uuid.New()))
	assert.Empty(t, sub.calls())
}

func TestHandleDueNonActiveRoomClearsDeadline(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	m := store.NewMemoryWithClock(clock)
	room, _ := activeRoom(t, m, 30)

	deadline := clock.Now().Add(time.Second)
	require.NoError(t, m.UpdateNextDeadline(ctx, room.ID, &deadline))
	_, err := m.UpdateRoomStatus(ctx, room.ID, models.RoomStatusActive, models.RoomStatusPaused)
	require.NoError(t, err)

	sub := &recordingSubmitter{}
	s := newScheduler(m, sub, fixedStrategy{}, clock)

	require.NoError(t, s.handleDue(ctx, room.ID))
	assert.Empty(t, sub.calls())

	got, err := m.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Nil(t, got.NextDeadline)
}

func TestHandleDueNoSelectionClearsDeadline(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	m := store.NewMemoryWithClock(clock)
	room, _ := activeRoom(t, m, 30)

	deadline := clock.Now().Add(time.Second)
	require.NoError(t, m.UpdateNextDeadline(ctx, room.ID, &deadline))

	sub := &recordingSubmitter{}
	s := newScheduler(m, sub, fixedStrategy{err: autopick.ErrNoSelection}, clock)

	require.NoError(t, s.handleDue(ctx, room.ID))
	assert.Empty(t, sub.calls())

	got, err := m.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Nil(t, got.NextDeadline)
}

func TestMarkInFlightDedupes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := store.NewMemoryWithClock(clock)
	s := newScheduler(m, &recordingSubmitter{}, fixedStrategy{}, clock)

	roomID := uuid.New()
	assert.True(t, s.markInFlight(roomID))
	assert.False(t, s.markInFlight(roomID))

	s.clearInFlight(roomID)
	assert.True(t, s.markInFlight(roomID))
}

func TestSchedulerRunFiresOnDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := store.NewMemoryWithClock(clock)
	room, pool := activeRoom(t, m, 30)

	deadline := clock.Now().Add(30 * time.Second)
	require.NoError(t, m.UpdateNextDeadline(context.Background(), room.ID, &deadline))

	submitted := make(chan coordinator.SubmitPickRequest, 1)
	sub := &channelSubmitter{ch: submitted, store: m}
	s := newScheduler(m, sub, fixedStrategy{id: pool[0]}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	// Wait for the loop to block on the deadline timer, then advance
	// past it.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(31 * time.Second)

	select {
	case req := <-submitted:
		assert.Equal(t, room.ID, req.RoomID)
		assert.Equal(t, 1, req.PickNumber)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler never submitted the due auto-pick")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not shut down")
	}
}

type channelSubmitter struct {
	ch    chan coordinator.SubmitPickRequest
	store store.RoomStore
}

func (c *channelSubmitter) SubmitAutoPick(ctx context.Context, req coordinator.SubmitPickRequest) (*models.Pick, error) {
	// Clear the deadline so the loop goes idle instead of re-firing.
	if err := c.store.ClearNextDeadline(ctx, req.RoomID); err != nil {
		return nil, err
	}
	select {
	case c.ch <- req:
	default:
	}
	return &models.Pick{}, nil
}
