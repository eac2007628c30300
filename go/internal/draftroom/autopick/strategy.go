// Package autopick chooses a selection on a participant's behalf when
// a pick deadline expires. The choice policy is pluggable; the
// coordinator stays agnostic to how a selection was chosen and only
// validates turn and availability.
package autopick

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/topdogsports/draftroom/go/internal/draftroom/store"
)

// ErrNoSelection is returned when a strategy cannot produce a
// still-available selection.
var ErrNoSelection = errors.New("no selection available")

// Strategy picks a selection for the participant currently on the clock.
type Strategy interface {
	SelectFor(ctx context.Context, roomID, participant uuid.UUID) (uuid.UUID, error)
}

// QueueSource provides a participant's standing auto-draft queue in
// priority order.
type QueueSource interface {
	QueueFor(ctx context.Context, roomID, participant uuid.UUID) ([]uuid.UUID, error)
}

// Queue drafts the highest-priority queued selection that is still in
// the room's pool.
type Queue struct {
	store  store.RoomStore
	source QueueSource
}

func NewQueue(roomStore store.RoomStore, source QueueSource) *Queue {
	return &Queue{store: roomStore, source: source}
}

func (q *Queue) SelectFor(ctx context.Context, roomID, participant uuid.UUID) (uuid.UUID, error) {
	queued, err := q.source.QueueFor(ctx, roomID, participant)
	if err != nil {
		return uuid.Nil, fmt.Errorf("fetch queue: %w", err)
	}
	if len(queued) == 0 {
		return uuid.Nil, ErrNoSelection
	}

	available, err := q.store.AvailableSelections(ctx, roomID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("list available selections: %w", err)
	}
	pool := make(map[uuid.UUID]struct{}, len(available))
	for _, id := range available {
		pool[id] = struct{}{}
	}

	for _, id := range queued {
		if _, ok := pool[id]; ok {
			return id, nil
		}
	}
	return uuid.Nil, ErrNoSelection
}

// Random drafts a uniformly random available selection.
type Random struct {
	store store.RoomStore
	mu    sync.Mutex
	rng   *rand.Rand
}

// NewRandom constructs a Random strategy with its own seed.
func NewRandom(roomStore store.RoomStore) *Random {
	src := rand.NewSource(time.Now().UnixNano())
	return &Random{
		store: roomStore,
		rng:   rand.New(src),
	}
}

func (r *Random) SelectFor(ctx context.Context, roomID, participant uuid.UUID) (uuid.UUID, error) {
	available, err := r.store.AvailableSelections(ctx, roomID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("list available selections: %w", err)
	}
	if len(available) == 0 {
		return uuid.Nil, ErrNoSelection
	}

	r.mu.Lock()
	choice := available[r.rng.Intn(len(available))]
	r.mu.Unlock()

	log.Debug().
		Str("room_id", roomID.String()).
		Str("selection_id", choice.String()).
		Msg("auto-pick chose random selection")
	return choice, nil
}

// Chain tries strategies in order, falling through on ErrNoSelection.
// The usual wiring is queue first, random fallback.
type Chain []Strategy

func (c Chain) SelectFor(ctx context.Context, roomID, participant uuid.UUID) (uuid.UUID, error) {
	for _, s := range c {
		id, err := s.SelectFor(ctx, roomID, participant)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrNoSelection) {
			return uuid.Nil, err
		}
	}
	return uuid.Nil, ErrNoSelection
}

// MemoryQueues is an in-process QueueSource.
type MemoryQueues struct {
	mu     sync.RWMutex
	queues map[uuid.UUID]map[uuid.UUID][]uuid.UUID // room -> participant -> queue
}

func NewMemoryQueues() *MemoryQueues {
	return &MemoryQueues{queues: make(map[uuid.UUID]map[uuid.UUID][]uuid.UUID)}
}

// SetQueue replaces a participant's standing queue for a room.
func (m *MemoryQueues) SetQueue(roomID, participant uuid.UUID, queue []uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byParticipant, ok := m.queues[roomID]
	if !ok {
		byParticipant = make(map[uuid.UUID][]uuid.UUID)
		m.queues[roomID] = byParticipant
	}
	cp := make([]uuid.UUID, len(queue))
	copy(cp, queue)
	byParticipant[participant] = cp
}

func (m *MemoryQueues) QueueFor(ctx context.Context, roomID, participant uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	queue := m.queues[roomID][participant]
	cp := make([]uuid.UUID, len(queue))
	copy(cp, queue)
	return cp, nil
}
