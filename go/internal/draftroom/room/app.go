// Package room handles draft room lifecycle: creation and the
// administrative status transitions. The pick counter itself is never
// touched here; that belongs to the coordinator alone.
package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/topdogsports/draftroom/go/internal/draftroom/events"
	"github.com/topdogsports/draftroom/go/internal/draftroom/store"
	"github.com/topdogsports/draftroom/go/internal/models"
)

// ErrInvalidTransition is returned for a disallowed status change.
// COMPLETED is terminal and never re-enterable.
var ErrInvalidTransition = errors.New("invalid room status transition")

// App handles draft room business logic.
type App struct {
	store     store.RoomStore
	publisher events.Publisher
	clock     clockwork.Clock
}

// NewApp creates a new room App.
func NewApp(roomStore store.RoomStore, publisher events.Publisher) *App {
	return NewAppWithClock(roomStore, publisher, clockwork.NewRealClock())
}

func NewAppWithClock(roomStore store.RoomStore, publisher events.Publisher, clock clockwork.Clock) *App {
	return &App{
		store:     roomStore,
		publisher: publisher,
		clock:     clock,
	}
}

// CreateRoom creates a new room in WAITING with a full selection pool.
func (a *App) CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.DraftRoom, error) {
	if err := validateCreateRoomRequest(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	now := a.clock.Now().UTC()
	room := &models.DraftRoom{
		ID:          req.ID,
		DraftOrder:  req.DraftOrder,
		CurrentPick: 1,
		Status:      models.RoomStatusWaiting,
		Settings:    req.Settings,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := a.store.CreateRoom(ctx, room, req.Pool); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	log.Info().
		Str("room_id", room.ID.String()).
		Int("participants", len(room.DraftOrder)).
		Int("rounds", room.Settings.Rounds).
		Int("pool_size", len(req.Pool)).
		Msg("created draft room")
	return room, nil
}

// GetRoom retrieves an immutable snapshot of a room.
func (a *App) GetRoom(ctx context.Context, id uuid.UUID) (*models.DraftRoom, error) {
	room, err := a.store.GetRoom(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// ListPicks returns the room's append-only pick log.
func (a *App) ListPicks(ctx context.Context, roomID uuid.UUID) ([]models.Pick, error) {
	picks, err := a.store.ListPicks(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	return picks, nil
}

// AvailableSelections returns the room's remaining selection pool.
func (a *App) AvailableSelections(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := a.store.AvailableSelections(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list available selections: %w", err)
	}
	return ids, nil
}

// ActivateRoom moves a WAITING room to ACTIVE and arms the first pick
// deadline. Triggered externally when capacity is reached or the
// countdown elapses.
func (a *App) ActivateRoom(ctx context.Context, id uuid.UUID) (*models.DraftRoom, error) {
	room, err := a.transition(ctx, id, models.RoomStatusWaiting, models.RoomStatusActive)
	if err != nil {
		return nil, err
	}

	startedAt := a.clock.Now().UTC()
	if err := a.armDeadline(ctx, room, startedAt); err != nil {
		return nil, err
	}

	a.emit(ctx, id, events.TypeRoomStarted, events.RoomStartedPayload{
		StartedAt:   startedAt,
		TotalRounds: room.Settings.Rounds,
		TotalPicks:  room.TotalSlots(),
	})
	log.Info().Str("room_id", id.String()).Msg("room activated")
	return a.store.GetRoom(ctx, id)
}

// PauseRoom suspends an ACTIVE room and disarms its deadline.
func (a *App) PauseRoom(ctx context.Context, id uuid.UUID, reason string) (*models.DraftRoom, error) {
	room, err := a.transition(ctx, id, models.RoomStatusActive, models.RoomStatusPaused)
	if err != nil {
		return nil, err
	}

	if err := a.store.ClearNextDeadline(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to clear deadline: %w", err)
	}

	a.emit(ctx, id, events.TypeRoomPaused, events.RoomPausedPayload{
		PausedAt: a.clock.Now().UTC(),
		Reason:   reason,
	})
	log.Info().Str("room_id", id.String()).Str("reason", reason).Msg("room paused")
	return room, nil
}

// ResumeRoom moves a PAUSED room back to ACTIVE with a fresh deadline.
func (a *App) ResumeRoom(ctx context.Context, id uuid.UUID) (*models.DraftRoom, error) {
	room, err := a.transition(ctx, id, models.RoomStatusPaused, models.RoomStatusActive)
	if err != nil {
		return nil, err
	}

	resumedAt := a.clock.Now().UTC()
	if err := a.armDeadline(ctx, room, resumedAt); err != nil {
		return nil, err
	}

	a.emit(ctx, id, events.TypeRoomResumed, events.RoomResumedPayload{ResumedAt: resumedAt})
	log.Info().Str("room_id", id.String()).Msg("room resumed")
	return a.store.GetRoom(ctx, id)
}

// transition moves the room from -> to through the store's
// compare-and-set, so a lifecycle call racing a pick commit cannot
// overwrite a status it never observed. A pause arriving just after
// the final pick lands here as ErrInvalidTransition, never as a
// COMPLETED room flipped back to PAUSED.
func (a *App) transition(ctx context.Context, id uuid.UUID, from, to models.RoomStatus) (*models.DraftRoom, error) {
	room, err := a.store.UpdateRoomStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			current, getErr := a.store.GetRoom(ctx, id)
			if getErr != nil {
				return nil, fmt.Errorf("room not found: %w", getErr)
			}
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
		}
		if errors.Is(err, store.ErrRoomNotFound) {
			return nil, fmt.Errorf("room not found: %w", err)
		}
		return nil, fmt.Errorf("failed to update room status: %w", err)
	}
	return room, nil
}

func (a *App) armDeadline(ctx context.Context, room *models.DraftRoom, base time.Time) error {
	secs := room.Settings.TimePerPickSec
	if secs <= 0 {
		return nil
	}
	deadline := base.Add(time.Duration(secs) * time.Second)
	if err := a.store.UpdateNextDeadline(ctx, room.ID, &deadline); err != nil {
		return fmt.Errorf("failed to arm pick deadline: %w", err)
	}
	return nil
}

func (a *App) emit(ctx context.Context, roomID uuid.UUID, eventType string, payload any) {
	event, err := events.New(roomID, eventType, payload)
	if err == nil {
		err = a.publisher.Publish(ctx, event)
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Str("event_type", eventType).
			Msg("failed to emit room event")
	}
}

func validateCreateRoomRequest(req CreateRoomRequest) error {
	if req.ID == uuid.Nil {
		return fmt.Errorf("room id is required")
	}
	if len(req.DraftOrder) == 0 {
		return fmt.Errorf("draft order must not be empty")
	}
	seen := make(map[uuid.UUID]struct{}, len(req.DraftOrder))
	for _, p := range req.DraftOrder {
		if p == uuid.Nil {
			return fmt.Errorf("draft order contains a nil participant")
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("draft order contains participant %s twice", p)
		}
		seen[p] = struct{}{}
	}
	if req.Settings.Rounds <= 0 {
		return fmt.Errorf("rounds must be greater than 0")
	}
	if req.Settings.TimePerPickSec < 0 {
		return fmt.Errorf("time_per_pick_sec must not be negative")
	}
	if len(req.Pool) < req.Settings.Rounds*len(req.DraftOrder) {
		return fmt.Errorf("selection pool (%d) smaller than total slots (%d)",
			len(req.Pool), req.Settings.Rounds*len(req.DraftOrder))
	}
	return nil
}
