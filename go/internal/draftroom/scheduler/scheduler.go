// Package scheduler fires automatic picks when per-pick deadlines
// expire. It sleeps until the earliest deadline across active rooms,
// claims the due rooms in batches, and hands each one to a bounded
// worker pool. An in-flight map keeps one room from being processed by
// two workers at once.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/topdogsports/draftroom/go/internal/draftroom/autopick"
	"github.com/topdogsports/draftroom/go/internal/draftroom/coordinator"
	"github.com/topdogsports/draftroom/go/internal/draftroom/store"
	"github.com/topdogsports/draftroom/go/internal/draftroom/turn"
	"github.com/topdogsports/draftroom/go/internal/models"
)

// Submitter is what the scheduler needs from the coordinator.
type Submitter interface {
	SubmitAutoPick(ctx context.Context, req coordinator.SubmitPickRequest) (*models.Pick, error)
}

// Config tunes the scheduler loop.
type Config struct {
	BatchSize    int32         `yaml:"batch_size"`
	Workers      int           `yaml:"workers"`
	IdlePoll     time.Duration `yaml:"idle_poll"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// DefaultConfig returns the stock scheduler tuning.
func DefaultConfig() Config {
	return Config{
		BatchSize:    32,
		Workers:      10,
		IdlePoll:     5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Second,
	}
}

type Scheduler struct {
	store      store.RoomStore
	submitter  Submitter
	strat      autopick.Strategy
	clock      clockwork.Clock
	config     Config
	wakeCh     chan struct{}
	instanceID string // short ID for logging

	workCh chan uuid.UUID

	// Track in-flight work to prevent duplicate processing.
	inFlight   map[uuid.UUID]bool
	inFlightMu sync.Mutex
}

// New creates a scheduler. The strategy decides what to draft; the
// submitter decides whether the pick is still valid.
func New(roomStore store.RoomStore, submitter Submitter, strat autopick.Strategy, cfg Config) *Scheduler {
	return NewWithClock(roomStore, submitter, strat, cfg, clockwork.NewRealClock())
}

func NewWithClock(roomStore store.RoomStore, submitter Submitter, strat autopick.Strategy, cfg Config, clock clockwork.Clock) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = DefaultConfig().IdlePoll
	}
	return &Scheduler{
		store:      roomStore,
		submitter:  submitter,
		strat:      strat,
		clock:      clock,
		config:     cfg,
		wakeCh:     make(chan struct{}, 1),
		instanceID: uuid.New().String()[:8],
		workCh:     make(chan uuid.UUID, cfg.Workers*2),
		inFlight:   make(map[uuid.UUID]bool),
	}
}

// Wake nudges the loop to re-read deadlines, e.g. after a room
// activation created a sooner deadline than the one being slept on.
func (s *Scheduler) Wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Run loops until ctx is done, sleeping until the next deadline and
// dispatching due rooms to the worker pool.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Str("instance", s.instanceID).Int("workers", s.config.Workers).Msg("scheduler started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go s.worker(workerCtx, &wg, i)
	}

	defer func() {
		cancelWorkers()
		close(s.workCh)
		wg.Wait()
		log.Info().Str("instance", s.instanceID).Msg("all workers shut down")
	}()

	timer := s.clock.NewTimer(0)
	defer timer.Stop()

	retryCount := 0
	for {
		// Drain a stale wake so it cannot fire twice for one deadline.
		select {
		case <-s.wakeCh:
		default:
		}

		deadline, err := s.store.NextDeadline(ctx)
		if err != nil {
			retryCount++
			if retryCount > s.config.MaxRetries {
				log.Error().Err(err).Str("instance", s.instanceID).Msg("fetching next deadline failed after retries")
				return err
			}
			log.Error().Err(err).Int("retry", retryCount).Str("instance", s.instanceID).
				Msg("error fetching next deadline, retrying")
			timer.Reset(s.config.RetryBackoff * time.Duration(retryCount))
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				return nil
			}
		}
		retryCount = 0

		if deadline == nil || deadline.At == nil {
			timer.Reset(s.config.IdlePoll)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				return nil
			case <-s.wakeCh:
				continue
			}
		}

		if wait := deadline.At.Sub(s.clock.Now()); wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.Chan():
			case <-ctx.Done():
				return nil
			case <-s.wakeCh:
				// A sooner deadline may exist now; re-read.
				continue
			}
		}

		due, err := s.store.RoomsDueForPick(ctx, s.config.BatchSize)
		if err != nil {
			log.Error().Err(err).Str("instance", s.instanceID).Msg("error fetching due rooms")
			timer.Reset(s.config.RetryBackoff)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				return nil
			}
		}

		for _, roomID := range due {
			if !s.markInFlight(roomID) {
				continue
			}
			select {
			case <-ctx.Done():
				s.clearInFlight(roomID)
				return nil
			case s.workCh <- roomID:
			}
		}
	}
}

func (s *Scheduler) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case roomID, ok := <-s.workCh:
			if !ok {
				return
			}
			if err := s.handleDue(ctx, roomID); err != nil {
				log.Error().Err(err).
					Str("room_id", roomID.String()).
					Str("instance", s.instanceID).
					Int("worker_id", workerID).
					Msg("auto-pick handling failed")
			}
			s.clearInFlight(roomID)
		}
	}
}

// handleDue fires one automatic pick for a room whose deadline passed.
// A PickNumberMismatch means a human pick landed between the deadline
// firing and our submission; the store already advanced the deadline,
// so the stale trigger is simply dropped.
func (s *Scheduler) handleDue(ctx context.Context, roomID uuid.UUID) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return nil
		}
		return err
	}
	if room.Status != models.RoomStatusActive {
		// Paused or completed between claim and handling.
		return s.store.ClearNextDeadline(ctx, roomID)
	}

	assignment, err := turn.ResolveWithReversal(room.CurrentPick, room.DraftOrder, room.Settings.ThirdRoundReversal)
	if err != nil {
		return err
	}

	selection, err := s.strat.SelectFor(ctx, roomID, assignment.Participant)
	if err != nil {
		if errors.Is(err, autopick.ErrNoSelection) {
			log.Warn().Str("room_id", roomID.String()).Msg("no selection available for auto-pick")
			return s.store.ClearNextDeadline(ctx, roomID)
		}
		return err
	}

	_, err = s.submitter.SubmitAutoPick(ctx, coordinator.SubmitPickRequest{
		RoomID:      roomID,
		PickNumber:  room.CurrentPick,
		Participant: assignment.Participant,
		Selection:   selection,
	})
	if err != nil {
		if kind, ok := coordinator.KindOf(err); ok {
			log.Debug().
				Str("room_id", roomID.String()).
				Int("pick_number", room.CurrentPick).
				Str("kind", string(kind)).
				Msg("auto-pick superseded; dropping")
			return nil
		}
		return err
	}

	log.Info().
		Str("room_id", roomID.String()).
		Int("pick_number", room.CurrentPick).
		Str("participant_id", assignment.Participant.String()).
		Str("instance", s.instanceID).
		Msg("auto-pick committed")
	return nil
}

func (s *Scheduler) markInFlight(roomID uuid.UUID) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if s.inFlight[roomID] {
		return false
	}
	s.inFlight[roomID] = true
	return true
}

func (s *Scheduler) clearInFlight(roomID uuid.UUID) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, roomID)
}
