package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus defines the lifecycle status of a draft room.
type RoomStatus string

const (
	RoomStatusWaiting   RoomStatus = "WAITING"
	RoomStatusActive    RoomStatus = "ACTIVE"
	RoomStatusPaused    RoomStatus = "PAUSED"
	RoomStatusCompleted RoomStatus = "COMPLETED"
)

// RoomSettings holds JSONB configuration for a draft room.
type RoomSettings struct {
	Rounds             int  `json:"rounds"`
	TimePerPickSec     int  `json:"time_per_pick_sec"`
	ThirdRoundReversal bool `json:"third_round_reversal,omitempty"`
}

// DraftRoom represents one draft session. The room record is the single
// source of truth for turn state: CurrentPick only ever advances by
// exactly one per committed pick, and only through the coordinator.
type DraftRoom struct {
	ID           uuid.UUID    `json:"id"`
	DraftOrder   []uuid.UUID  `json:"draft_order"`
	CurrentPick  int          `json:"current_pick"`
	Status       RoomStatus   `json:"status"`
	Settings     RoomSettings `json:"settings"`
	LastPickAt   *time.Time   `json:"last_pick_at,omitempty"`
	NextDeadline *time.Time   `json:"next_deadline,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TotalSlots returns the number of pick slots in the room.
func (r *DraftRoom) TotalSlots() int {
	return r.Settings.Rounds * len(r.DraftOrder)
}

// CurrentRound derives the round the current pick falls in.
func (r *DraftRoom) CurrentRound() int {
	n := len(r.DraftOrder)
	if n == 0 || r.CurrentPick < 1 {
		return 0
	}
	return (r.CurrentPick-1)/n + 1
}

// Clone returns a deep copy so callers outside the store never hold a
// writable reference to the authoritative record.
func (r *DraftRoom) Clone() *DraftRoom {
	cp := *r
	cp.DraftOrder = make([]uuid.UUID, len(r.DraftOrder))
	copy(cp.DraftOrder, r.DraftOrder)
	if r.LastPickAt != nil {
		t := *r.LastPickAt
		cp.LastPickAt = &t
	}
	if r.NextDeadline != nil {
		t := *r.NextDeadline
		cp.NextDeadline = &t
	}
	return &cp
}
