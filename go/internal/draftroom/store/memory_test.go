package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topdogsports/draftroom/go/internal/models"
)

func newTestRoom(participants, rounds, timePerPick int) (*models.DraftRoom, []uuid.UUID) {
	order := make([]uuid.UUID, participants)
	for i := range order {
		order[i] = uuid.New()
	}
	room := &models.DraftRoom{
		ID:          uuid.New(),
		DraftOrder:  order,
		CurrentPick: 1,
		Status:      models.RoomStatusActive,
		Settings: models.RoomSettings{
			Rounds:         rounds,
			TimePerPickSec: timePerPick,
		},
	}
	pool := make([]uuid.UUID, participants*rounds)
	for i := range pool {
		pool[i] = uuid.New()
	}
	return room, pool
}

func TestMemoryCreateRoom(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	room, pool := newTestRoom(2, 1, 30)

	require.NoError(t, m.CreateRoom(ctx, room, pool))

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := m.CreateRoom(ctx, room, pool)
		assert.ErrorIs(t, err, ErrRoomExists)
	})

	t.Run("round trips", func(t *testing.T) {
		got, err := m.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, room.ID, got.ID)
		assert.Equal(t, 1, got.CurrentPick)

		available, err := m.AvailableSelections(ctx, room.ID)
		require.NoError(t, err)
		assert.Len(t, available, len(pool))
	})

	t.Run("unknown room", func(t *testing.T) {
		_, err := m.GetRoom(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})
}

func TestMemoryUpdateRoomStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	room, pool := newTestRoom(2, 1, 30)
	require.NoError(t, m.CreateRoom(ctx, room, pool))

	t.Run("matching from applies", func(t *testing.T) {
		got, err := m.UpdateRoomStatus(ctx, room.ID, models.RoomStatusActive, models.RoomStatusPaused)
		require.NoError(t, err)
		assert.Equal(t, models.RoomStatusPaused, got.Status)
	})

	t.Run("stale from rejected", func(t *testing.T) {
		_, err := m.UpdateRoomStatus(ctx, room.ID, models.RoomStatusActive, models.RoomStatusPaused)
		assert.ErrorIs(t, err, ErrStatusConflict)
	})

	t.Run("completed room stays completed", func(t *testing.T) {
		_, err := m.UpdateRoomStatus(ctx, room.ID, models.RoomStatusPaused, models.RoomStatusCompleted)
		require.NoError(t, err)

		_, err = m.UpdateRoomStatus(ctx, room.ID, models.RoomStatusActive, models.RoomStatusPaused)
		assert.ErrorIs(t, err, ErrStatusConflict)

		got, err := m.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoomStatusCompleted, got.Status)
	})

	t.Run("unknown room", func(t *testing.T) {
		_, err := m.UpdateRoomStatus(ctx, uuid.New(), models.RoomStatusActive, models.RoomStatusPaused)
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})
}

func TestMemoryTransactCommit(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	m := NewMemoryWithClock(clock)
	room, pool := newTestRoom(2, 2, 60)
	require.NoError(t, m.CreateRoom(ctx, room, pool))

	madeAt := clock.Now().UTC()
	err := m.Transact(ctx, room.ID, func(txn RoomTxn) error {
		return txn.RecordPick(ctx, models.Pick{
			ID:          uuid.New(),
			RoomID:      room.ID,
			PickNumber:  1,
			Round:       1,
			Participant: room.DraftOrder[0],
			Selection:   pool[0],
			CreatedAt:   madeAt,
		})
	})
	require.NoError(t, err)

	got, err := m.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentPick)
	require.NotNil(t, got.LastPickAt)
	assert.Equal(t, madeAt, *got.LastPickAt)
	require.NotNil(t, got.NextDeadline)
	assert.Equal(t, madeAt.Add(60*time.Second), *got.NextDeadline)

	available, err := m.AvailableSelections(ctx, room.ID)
	require.NoError(t, err)
	assert.NotContains(t, available, pool[0])
	assert.Len(t, available, len(pool)-1)

	picks, err := m.ListPicks(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, pool[0], picks[0].Selection)
}

func TestMemoryTransactRollback(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	room, pool := newTestRoom(2, 1, 30)
	require.NoError(t, m.CreateRoom(ctx, room, pool))

	boom := errors.New("boom")
	err := m.Transact(ctx, room.ID, func(txn RoomTxn) error {
		if err := txn.RecordPick(ctx, models.Pick{
			PickNumber:  1,
			Participant: room.DraftOrder[0],
			Selection:   pool[0],
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// Nothing the failed transaction staged is visible.
	got, err := m.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentPick)

	available, err := m.AvailableSelections(ctx, room.ID)
	require.NoError(t, err)
	assert.Contains(t, available, pool[0])

	picks, err := m.ListPicks(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, picks)
}

func TestMemoryRecordPickGuards(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	room, pool := newTestRoom(2, 1, 30)
	require.NoError(t, m.CreateRoom(ctx, room, pool))

	t.Run("wrong pick number", func(t *testing.T) {
		err := m.Transact(ctx, room.ID, func(txn RoomTxn) error {
			return txn.RecordPick(ctx, models.Pick{
				PickNumber:  7,
				Selection:   pool[0],
				Participant: room.DraftOrder[0],
			})
		})
		assert.ErrorIs(t, err, ErrPickConflict)
	})

	t.Run("selection outside pool", func(t *testing.T) {
		err := m.Transact(ctx, room.ID, func(txn RoomTxn) error {
			return txn.RecordPick(ctx, models.Pick{
				PickNumber:  1,
				Selection:   uuid.New(),
				Participant: room.DraftOrder[0],
			})
		})
		assert.ErrorIs(t, err, ErrPickConflict)
	})

	t.Run("same selection twice in one transaction", func(t *testing.T) {
		err := m.Transact(ctx, room.ID, func(txn RoomTxn) error {
			if err := txn.RecordPick(ctx, models.Pick{
				PickNumber:  1,
				Selection:   pool[0],
				Participant: room.DraftOrder[0],
				CreatedAt:   time.Now().UTC(),
			}); err != nil {
				return err
			}
			return txn.RecordPick(ctx, models.Pick{
				PickNumber:  2,
				Selection:   pool[0],
				Participant: room.DraftOrder[1],
				CreatedAt:   time.Now().UTC(),
			})
		})
		assert.ErrorIs(t, err, ErrPickConflict)
	})
}

func TestMemoryCompletesRoomOnLastPick(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	room, pool := newTestRoom(2, 1, 30)
	require.NoError(t, m.CreateRoom(ctx, room, pool))

	for i := 0; i < 2; i++ {
		pickNumber := i + 1
		err := m.Transact(ctx, room.ID, func(txn RoomTxn) error {
			return txn.RecordPick(ctx, models.Pick{
				ID:          uuid.New(),
				RoomID:      room.ID,
				PickNumber:  pickNumber,
				Participant: txn.Room().DraftOrder[0],
				Selection:   pool[i],
				CreatedAt:   time.Now().UTC(),
			})
		})
		require.NoError(t, err)
	}

	got, err := m.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusCompleted, got.Status)
	assert.Nil(t, got.NextDeadline)
	assert.Equal(t, 3, got.CurrentPick)
}

func TestMemoryDeadlineQueries(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	m := NewMemoryWithClock(clock)

	roomA, poolA := newTestRoom(2, 1, 30)
	roomB, poolB := newTestRoom(2, 1, 30)
	require.NoError(t, m.CreateRoom(ctx, roomA, poolA))
	require.NoError(t, m.CreateRoom(ctx, roomB, poolB))

	t.Run("no deadlines armed", func(t *testing.T) {
		next, err := m.NextDeadline(ctx)
		require.NoError(t, err)
		assert.Nil(t, next)
	})

	soon := clock.Now().Add(10 * time.Second)
	later := clock.Now().Add(30 * time.Second)
	require.NoError(t, m.UpdateNextDeadline(ctx, roomA.ID, &later))
	require.NoError(t, m.UpdateNextDeadline(ctx, roomB.ID, &soon))

	t.Run("earliest deadline wins", func(t *testing.T) {
		next, err := m.NextDeadline(ctx)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, roomB.ID, next.RoomID)
	})

	t.Run("not due until clock passes", func(t *testing.T) {
		due, err := m.RoomsDueForPick(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, due)

		clock.Advance(10 * time.Second)
		due, err = m.RoomsDueForPick(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{roomB.ID}, due)
	})

	t.Run("cleared deadline drops out", func(t *testing.T) {
		require.NoError(t, m.ClearNextDeadline(ctx, roomB.ID))
		clock.Advance(time.Minute)
		due, err := m.RoomsDueForPick(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{roomA.ID}, due)
	})

	t.Run("non-active rooms excluded", func(t *testing.T) {
		_, err := m.UpdateRoomStatus(ctx, roomA.ID, models.RoomStatusActive, models.RoomStatusPaused)
		require.NoError(t, err)
		due, err := m.RoomsDueForPick(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}
