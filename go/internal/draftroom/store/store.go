// Package store owns the persisted draft room record. The room, its
// pick log, and its selection pool form one atomic unit: a pick commit
// appends the pick, removes the selection from the pool, and advances
// the counter together or not at all.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/topdogsports/draftroom/go/internal/models"
)

var (
	// ErrRoomNotFound is returned when the referenced room does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomExists is returned when creating a room whose ID is taken.
	ErrRoomExists = errors.New("room already exists")

	// ErrPickConflict is returned by RecordPick when the pick would
	// violate the no-gap or pool-exclusivity invariants. The
	// coordinator validates before recording, so seeing this means a
	// caller bypassed validation.
	ErrPickConflict = errors.New("pick conflicts with room state")

	// ErrStatusConflict is returned by UpdateRoomStatus when the room
	// is no longer in the expected from status. A lifecycle call that
	// loses a race against a pick commit lands here instead of
	// clobbering the room, so COMPLETED stays terminal.
	ErrStatusConflict = errors.New("room status changed concurrently")
)

// Deadline pairs a room with its next pick deadline, if any.
type Deadline struct {
	RoomID uuid.UUID  `json:"room_id"`
	At     *time.Time `json:"at,omitempty"`
}

// RoomTxn is the view of a room inside one atomic transaction. The
// room returned by Room reflects writes made through RecordPick.
type RoomTxn interface {
	Room() *models.DraftRoom
	PoolContains(ctx context.Context, selection uuid.UUID) (bool, error)

	// RecordPick applies the full commit for one pick: append the
	// pick record, remove its selection from the pool, increment
	// CurrentPick, stamp LastPickAt, advance or clear NextDeadline,
	// and flip the room to COMPLETED once the last slot is filled.
	RecordPick(ctx context.Context, pick models.Pick) error
}

// RoomStore is the transactional persistence collaborator for draft
// rooms. Transact serializes submissions per room; concurrent calls
// for the same room never interleave inside fn.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *models.DraftRoom, pool []uuid.UUID) error
	GetRoom(ctx context.Context, roomID uuid.UUID) (*models.DraftRoom, error)

	// UpdateRoomStatus moves the room from one status to another as a
	// single compare-and-set; ErrStatusConflict when the room is not
	// in from at write time.
	UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, from, to models.RoomStatus) (*models.DraftRoom, error)
	ListPicks(ctx context.Context, roomID uuid.UUID) ([]models.Pick, error)
	AvailableSelections(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)

	// Transact runs fn against the locked room. Any error from fn
	// rolls back every write; no partial state is ever visible.
	Transact(ctx context.Context, roomID uuid.UUID, fn func(txn RoomTxn) error) error

	// Deadline bookkeeping consumed by the auto-pick scheduler.
	NextDeadline(ctx context.Context) (*Deadline, error)
	RoomsDueForPick(ctx context.Context, limit int32) ([]uuid.UUID, error)
	UpdateNextDeadline(ctx context.Context, roomID uuid.UUID, deadline *time.Time) error
	ClearNextDeadline(ctx context.Context, roomID uuid.UUID) error
}
