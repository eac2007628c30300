package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Publisher delivers room events to observers (gateway, alerting).
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// New builds an Event envelope around a payload.
func New(roomID uuid.UUID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		RoomID:    roomID,
		Type:      eventType,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error {
	log.Debug().
		Str("event_type", event.Type).
		Str("room_id", event.RoomID.String()).
		Msg("discarding event (no publisher configured)")
	return nil
}

// Recorder captures events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
