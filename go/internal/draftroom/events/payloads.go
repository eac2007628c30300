// Package events defines the domain events emitted by the draft room
// core and the publisher contract for delivering them. Delivery is
// fire-and-forget: emission failures never affect a committed pick.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published on the room event stream.
const (
	TypePickMade      = "PickMade"
	TypeOnTheClock    = "OnTheClock"
	TypeRoomStarted   = "RoomStarted"
	TypeRoomPaused    = "RoomPaused"
	TypeRoomResumed   = "RoomResumed"
	TypeRoomCompleted = "RoomCompleted"
)

// Event is the envelope handed to publishers.
type Event struct {
	ID        uuid.UUID       `json:"event_id"`
	RoomID    uuid.UUID       `json:"room_id"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// PickMadePayload is the payload for a PickMade event.
type PickMadePayload struct {
	PickID      string    `json:"pick_id"`
	PickNumber  int       `json:"pick_number"`
	Round       int       `json:"round"`
	Participant string    `json:"participant_id"`
	Selection   string    `json:"selection_id"`
	Auto        bool      `json:"auto"`
	MadeAt      time.Time `json:"made_at"`
}

// OnTheClockPayload announces whose turn opened after a pick committed.
type OnTheClockPayload struct {
	PickNumber  int        `json:"pick_number"`
	Round       int        `json:"round"`
	Participant string     `json:"participant_id"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// RoomStartedPayload is the payload for a RoomStarted event.
type RoomStartedPayload struct {
	StartedAt   time.Time `json:"started_at"`
	TotalRounds int       `json:"total_rounds"`
	TotalPicks  int       `json:"total_picks"`
}

// RoomPausedPayload is the payload for a RoomPaused event.
type RoomPausedPayload struct {
	PausedAt time.Time `json:"paused_at"`
	Reason   string    `json:"reason"`
}

// RoomResumedPayload is the payload for a RoomResumed event.
type RoomResumedPayload struct {
	ResumedAt time.Time `json:"resumed_at"`
}

// RoomCompletedPayload is the payload for a RoomCompleted event.
type RoomCompletedPayload struct {
	CompletedAt time.Time `json:"completed_at"`
	TotalPicks  int       `json:"total_picks"`
}
