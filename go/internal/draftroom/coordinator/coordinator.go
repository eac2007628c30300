// Package coordinator is the sole authorized mutator of a draft
// room's pick counter and the sole creator of pick records. Human and
// automatic picks share one validation path, so a timer-expiry pick
// that races a just-landed human pick loses with PickNumberMismatch
// instead of double-drafting the slot.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/topdogsports/draftroom/go/internal/draftroom/events"
	"github.com/topdogsports/draftroom/go/internal/draftroom/store"
	"github.com/topdogsports/draftroom/go/internal/draftroom/turn"
	"github.com/topdogsports/draftroom/go/internal/models"
)

// SubmitPickRequest carries a candidate pick. PickNumber is the slot
// the caller believes is open, from its possibly-stale local view.
type SubmitPickRequest struct {
	RoomID      uuid.UUID `json:"room_id"`
	PickNumber  int       `json:"pick_number"`
	Participant uuid.UUID `json:"participant_id"`
	Selection   uuid.UUID `json:"selection_id"`
}

// Coordinator validates candidate picks and atomically advances room
// state through the store's per-room transaction.
type Coordinator struct {
	store     store.RoomStore
	publisher events.Publisher
	clock     clockwork.Clock
}

func New(roomStore store.RoomStore, publisher events.Publisher) *Coordinator {
	return &Coordinator{
		store:     roomStore,
		publisher: publisher,
		clock:     clockwork.NewRealClock(),
	}
}

// NewWithClock is used by tests that need deterministic timestamps.
func NewWithClock(roomStore store.RoomStore, publisher events.Publisher, clock clockwork.Clock) *Coordinator {
	return &Coordinator{
		store:     roomStore,
		publisher: publisher,
		clock:     clock,
	}
}

// SubmitPick records a human-submitted pick.
func (c *Coordinator) SubmitPick(ctx context.Context, req SubmitPickRequest) (*models.Pick, error) {
	return c.submit(ctx, req, false)
}

// SubmitAutoPick records a pick on a participant's behalf after timer
// expiry or from a standing queue. Same protocol as SubmitPick; only
// caller intent differs.
func (c *Coordinator) SubmitAutoPick(ctx context.Context, req SubmitPickRequest) (*models.Pick, error) {
	return c.submit(ctx, req, true)
}

func (c *Coordinator) submit(ctx context.Context, req SubmitPickRequest, auto bool) (*models.Pick, error) {
	var (
		pick      models.Pick
		completed bool
		next      *events.OnTheClockPayload
	)

	err := c.store.Transact(ctx, req.RoomID, func(txn store.RoomTxn) error {
		room := txn.Room()

		if room.Status != models.RoomStatusActive {
			return &PickError{
				Kind:        KindRoomNotActive,
				RoomID:      req.RoomID,
				PickNumber:  req.PickNumber,
				Participant: req.Participant,
				Detail:      fmt.Sprintf("room status is %s", room.Status),
			}
		}

		// Stale-read rejection: this check, under the room lock, is
		// the system's whole concurrency control. Exactly one of any
		// set of concurrent submissions for the same slot passes it.
		if req.PickNumber != room.CurrentPick {
			return &PickError{
				Kind:        KindPickNumberMismatch,
				RoomID:      req.RoomID,
				PickNumber:  req.PickNumber,
				Participant: req.Participant,
				Detail:      fmt.Sprintf("current pick is %d", room.CurrentPick),
			}
		}

		assignment, err := turn.ResolveWithReversal(room.CurrentPick, room.DraftOrder, room.Settings.ThirdRoundReversal)
		if err != nil {
			return fmt.Errorf("resolve turn for pick %d: %w", room.CurrentPick, err)
		}
		if assignment.Participant != req.Participant {
			return &PickError{
				Kind:        KindNotYourTurn,
				RoomID:      req.RoomID,
				PickNumber:  req.PickNumber,
				Participant: req.Participant,
				Detail:      fmt.Sprintf("pick %d belongs to %s", room.CurrentPick, assignment.Participant),
			}
		}

		available, err := txn.PoolContains(ctx, req.Selection)
		if err != nil {
			return err
		}
		if !available {
			return &PickError{
				Kind:        KindSelectionUnavailable,
				RoomID:      req.RoomID,
				PickNumber:  req.PickNumber,
				Participant: req.Participant,
				Detail:      fmt.Sprintf("selection %s already drafted", req.Selection),
			}
		}

		pick = models.Pick{
			ID:          uuid.New(),
			RoomID:      req.RoomID,
			PickNumber:  room.CurrentPick,
			Round:       assignment.Round,
			Participant: req.Participant,
			Selection:   req.Selection,
			Auto:        auto,
			CreatedAt:   c.clock.Now().UTC(),
		}
		if err := txn.RecordPick(ctx, pick); err != nil {
			return fmt.Errorf("record pick %d: %w", pick.PickNumber, err)
		}

		after := txn.Room()
		completed = after.Status == models.RoomStatusCompleted
		if !completed {
			onClock, err := turn.ResolveWithReversal(after.CurrentPick, after.DraftOrder, after.Settings.ThirdRoundReversal)
			if err == nil {
				next = &events.OnTheClockPayload{
					PickNumber:  after.CurrentPick,
					Round:       onClock.Round,
					Participant: onClock.Participant.String(),
					Deadline:    after.NextDeadline,
				}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return nil, &PickError{
				Kind:        KindRoomNotFound,
				RoomID:      req.RoomID,
				PickNumber:  req.PickNumber,
				Participant: req.Participant,
			}
		}
		var pe *PickError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, fmt.Errorf("submit pick: %w", err)
	}

	log.Info().
		Str("room_id", pick.RoomID.String()).
		Int("pick_number", pick.PickNumber).
		Int("round", pick.Round).
		Str("participant_id", pick.Participant.String()).
		Str("selection_id", pick.Selection.String()).
		Bool("auto", auto).
		Msg("pick committed")

	c.emitPickMade(ctx, pick)
	if completed {
		c.emitRoomCompleted(ctx, req.RoomID, pick)
	} else if next != nil {
		c.emitOnTheClock(ctx, req.RoomID, next)
	}

	return &pick, nil
}

// Event emission is fire-and-forget: the pick is already durable, so
// publish failures are logged, never surfaced.

func (c *Coordinator) emitPickMade(ctx context.Context, pick models.Pick) {
	event, err := events.New(pick.RoomID, events.TypePickMade, events.PickMadePayload{
		PickID:      pick.ID.String(),
		PickNumber:  pick.PickNumber,
		Round:       pick.Round,
		Participant: pick.Participant.String(),
		Selection:   pick.Selection.String(),
		Auto:        pick.Auto,
		MadeAt:      pick.CreatedAt,
	})
	if err == nil {
		err = c.publisher.Publish(ctx, event)
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", pick.RoomID.String()).Msg("failed to emit PickMade event")
	}
}

func (c *Coordinator) emitOnTheClock(ctx context.Context, roomID uuid.UUID, payload *events.OnTheClockPayload) {
	event, err := events.New(roomID, events.TypeOnTheClock, payload)
	if err == nil {
		err = c.publisher.Publish(ctx, event)
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to emit OnTheClock event")
	}
}

func (c *Coordinator) emitRoomCompleted(ctx context.Context, roomID uuid.UUID, last models.Pick) {
	event, err := events.New(roomID, events.TypeRoomCompleted, events.RoomCompletedPayload{
		CompletedAt: last.CreatedAt,
		TotalPicks:  last.PickNumber,
	})
	if err == nil {
		err = c.publisher.Publish(ctx, event)
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to emit RoomCompleted event")
	}
}
