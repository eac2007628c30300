package room

import (
	"github.com/google/uuid"

	"github.com/topdogsports/draftroom/go/internal/models"
)

// CreateRoomRequest represents a request to create a new draft room.
type CreateRoomRequest struct {
	ID         uuid.UUID           `json:"id"`
	DraftOrder []uuid.UUID         `json:"draft_order"`
	Settings   models.RoomSettings `json:"settings"`
	Pool       []uuid.UUID         `json:"pool"`
}
