package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/topdogsports/draftroom/go/internal/models"
)

// Memory is an in-process RoomStore used by tests and local
// development. Each room carries its own mutex, so submissions on
// different rooms proceed independently while submissions on the same
// room are fully serialized.
type Memory struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*memoryRoom
	clock clockwork.Clock
}

type memoryRoom struct {
	mu    sync.Mutex
	room  *models.DraftRoom
	pool  map[uuid.UUID]struct{}
	picks []models.Pick
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return NewMemoryWithClock(clockwork.NewRealClock())
}

// NewMemoryWithClock creates a store whose due-pick queries consult the
// given clock. Tests pass a clockwork fake clock.
func NewMemoryWithClock(clock clockwork.Clock) *Memory {
	return &Memory{
		rooms: make(map[uuid.UUID]*memoryRoom),
		clock: clock,
	}
}

var _ RoomStore = (*Memory)(nil)

func (m *Memory) CreateRoom(ctx context.Context, room *models.DraftRoom, pool []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[room.ID]; ok {
		return ErrRoomExists
	}

	poolSet := make(map[uuid.UUID]struct{}, len(pool))
	for _, id := range pool {
		poolSet[id] = struct{}{}
	}

	m.rooms[room.ID] = &memoryRoom{
		room: room.Clone(),
		pool: poolSet,
	}
	return nil
}

func (m *Memory) GetRoom(ctx context.Context, roomID uuid.UUID) (*models.DraftRoom, error) {
	rec, err := m.record(roomID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.room.Clone(), nil
}

func (m *Memory) UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, from, to models.RoomStatus) (*models.DraftRoom, error) {
	rec, err := m.record(roomID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.room.Status != from {
		return nil, ErrStatusConflict
	}
	rec.room.Status = to
	rec.room.UpdatedAt = m.clock.Now().UTC()
	return rec.room.Clone(), nil
}

func (m *Memory) ListPicks(ctx context.Context, roomID uuid.UUID) ([]models.Pick, error) {
	rec, err := m.record(roomID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	picks := make([]models.Pick, len(rec.picks))
	copy(picks, rec.picks)
	return picks, nil
}

func (m *Memory) AvailableSelections(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	rec, err := m.record(roomID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(rec.pool))
	for id := range rec.pool {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// Transact holds the room's lock for the duration of fn. Writes go to
// a staged copy and replace the live record only when fn succeeds.
func (m *Memory) Transact(ctx context.Context, roomID uuid.UUID, fn func(txn RoomTxn) error) error {
	rec, err := m.record(roomID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	txn := &memoryTxn{
		staged: rec.room.Clone(),
		pool:   rec.pool,
		clock:  m.clock,
	}
	if err := fn(txn); err != nil {
		return err
	}

	rec.room = txn.staged
	for _, id := range txn.removed {
		delete(rec.pool, id)
	}
	rec.picks = append(rec.picks, txn.picks...)
	return nil
}

func (m *Memory) NextDeadline(ctx context.Context) (*Deadline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var next *Deadline
	for _, rec := range m.rooms {
		rec.mu.Lock()
		room := rec.room
		if room.Status == models.RoomStatusActive && room.NextDeadline != nil {
			if next == nil || room.NextDeadline.Before(*next.At) {
				at := *room.NextDeadline
				next = &Deadline{RoomID: room.ID, At: &at}
			}
		}
		rec.mu.Unlock()
	}
	return next, nil
}

func (m *Memory) RoomsDueForPick(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock.Now()
	var due []uuid.UUID
	for id, rec := range m.rooms {
		rec.mu.Lock()
		room := rec.room
		if room.Status == models.RoomStatusActive && room.NextDeadline != nil && !room.NextDeadline.After(now) {
			due = append(due, id)
		}
		rec.mu.Unlock()
		if limit > 0 && int32(len(due)) >= limit {
			break
		}
	}
	return due, nil
}

func (m *Memory) UpdateNextDeadline(ctx context.Context, roomID uuid.UUID, deadline *time.Time) error {
	rec, err := m.record(roomID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if deadline != nil {
		t := *deadline
		rec.room.NextDeadline = &t
	} else {
		rec.room.NextDeadline = nil
	}
	rec.room.UpdatedAt = m.clock.Now().UTC()
	return nil
}

func (m *Memory) ClearNextDeadline(ctx context.Context, roomID uuid.UUID) error {
	return m.UpdateNextDeadline(ctx, roomID, nil)
}

func (m *Memory) record(roomID uuid.UUID) (*memoryRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rec, nil
}

// memoryTxn stages one pick commit against a cloned room.
type memoryTxn struct {
	staged  *models.DraftRoom
	pool    map[uuid.UUID]struct{}
	removed []uuid.UUID
	picks   []models.Pick
	clock   clockwork.Clock
}

func (t *memoryTxn) Room() *models.DraftRoom {
	return t.staged
}

func (t *memoryTxn) PoolContains(ctx context.Context, selection uuid.UUID) (bool, error) {
	for _, id := range t.removed {
		if id == selection {
			return false, nil
		}
	}
	_, ok := t.pool[selection]
	return ok, nil
}

func (t *memoryTxn) RecordPick(ctx context.Context, pick models.Pick) error {
	if pick.PickNumber != t.staged.CurrentPick {
		return ErrPickConflict
	}
	if ok, _ := t.PoolContains(ctx, pick.Selection); !ok {
		return ErrPickConflict
	}

	t.picks = append(t.picks, pick)
	t.removed = append(t.removed, pick.Selection)

	t.staged.CurrentPick++
	madeAt := pick.CreatedAt
	t.staged.LastPickAt = &madeAt
	t.staged.UpdatedAt = t.clock.Now().UTC()

	if t.staged.CurrentPick > t.staged.TotalSlots() {
		t.staged.Status = models.RoomStatusCompleted
		t.staged.NextDeadline = nil
		return nil
	}

	if secs := t.staged.Settings.TimePerPickSec; secs > 0 {
		next := madeAt.Add(time.Duration(secs) * time.Second)
		t.staged.NextDeadline = &next
	} else {
		t.staged.NextDeadline = nil
	}
	return nil
}
