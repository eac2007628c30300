package models

import (
	"time"

	"github.com/google/uuid"
)

// Pick is an immutable record of one completed selection. For a given
// room the set of PickNumber values is exactly {1..CurrentPick-1} with
// no gaps and no duplicates.
type Pick struct {
	ID          uuid.UUID `json:"id"`
	RoomID      uuid.UUID `json:"room_id"`
	PickNumber  int       `json:"pick_number"`
	Round       int       `json:"round"`
	Participant uuid.UUID `json:"participant_id"`
	Selection   uuid.UUID `json:"selection_id"`
	Auto        bool      `json:"auto"` // recorded by the auto-pick path
	CreatedAt   time.Time `json:"created_at"`
}
