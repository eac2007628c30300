package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/topdogsports/draftroom/go/internal/draftroom/store"
	"github.com/topdogsports/draftroom/go/internal/draftroom/turn"
	"github.com/topdogsports/draftroom/go/internal/models"
)

// RoomReader is the read side of the room service the state handler
// needs. Satisfied by *room.App.
type RoomReader interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.DraftRoom, error)
	ListPicks(ctx context.Context, roomID uuid.UUID) ([]models.Pick, error)
	AvailableSelections(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)
}

// RoomStateResponse is the snapshot clients hydrate from before
// switching to the WebSocket stream.
type RoomStateResponse struct {
	RoomID         string           `json:"room_id"`
	Status         string           `json:"status"`
	OnTheClock     *OnTheClockInfo  `json:"on_the_clock,omitempty"`
	RecentPicks    []RecentPickInfo `json:"recent_picks"`
	TimeRemaining  *int             `json:"time_remaining_sec,omitempty"`
	TotalPicks     int              `json:"total_picks"`
	CompletedPicks int              `json:"completed_picks"`
	PoolRemaining  int              `json:"pool_remaining"`
}

// OnTheClockInfo describes the currently open slot.
type OnTheClockInfo struct {
	PickNumber  int        `json:"pick_number"`
	Round       int        `json:"round"`
	Participant string     `json:"participant_id"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// RecentPickInfo is one committed pick in the response.
type RecentPickInfo struct {
	PickID      string    `json:"pick_id"`
	PickNumber  int       `json:"pick_number"`
	Round       int       `json:"round"`
	Participant string    `json:"participant_id"`
	Selection   string    `json:"selection_id"`
	Auto        bool      `json:"auto"`
	MadeAt      time.Time `json:"made_at"`
}

// StateHandler serves read-only room state over HTTP.
type StateHandler struct {
	rooms RoomReader
}

// NewStateHandler creates a new state handler.
func NewStateHandler(rooms RoomReader) *StateHandler {
	return &StateHandler{rooms: rooms}
}

// recentPickLimit bounds the pick history in the state response;
// clients page the full log through the picks endpoint.
const recentPickLimit = 10

// HandleGetRoomState handles GET /api/rooms/{id}/state.
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	roomID, ok := roomIDFromPath(w, r, "/state")
	if !ok {
		return
	}

	room, err := h.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to get room state")
		http.Error(w, "Failed to get room state", http.StatusInternalServerError)
		return
	}

	picks, err := h.rooms.ListPicks(r.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to list picks")
		http.Error(w, "Failed to get room state", http.StatusInternalServerError)
		return
	}

	pool, err := h.rooms.AvailableSelections(r.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to list selection pool")
		http.Error(w, "Failed to get room state", http.StatusInternalServerError)
		return
	}

	state := buildRoomState(room, picks, len(pool))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode room state response")
	}
}

func buildRoomState(room *models.DraftRoom, picks []models.Pick, poolRemaining int) RoomStateResponse {
	state := RoomStateResponse{
		RoomID:         room.ID.String(),
		Status:         string(room.Status),
		RecentPicks:    make([]RecentPickInfo, 0, recentPickLimit),
		TotalPicks:     room.TotalSlots(),
		CompletedPicks: len(picks),
		PoolRemaining:  poolRemaining,
	}

	start := len(picks) - recentPickLimit
	if start < 0 {
		start = 0
	}
	for _, p := range picks[start:] {
		state.RecentPicks = append(state.RecentPicks, RecentPickInfo{
			PickID:      p.ID.String(),
			PickNumber:  p.PickNumber,
			Round:       p.Round,
			Participant: p.Participant.String(),
			Selection:   p.Selection.String(),
			Auto:        p.Auto,
			MadeAt:      p.CreatedAt,
		})
	}

	if room.Status == models.RoomStatusActive {
		assignment, err := turn.ResolveWithReversal(room.CurrentPick, room.DraftOrder, room.Settings.ThirdRoundReversal)
		if err == nil {
			state.OnTheClock = &OnTheClockInfo{
				PickNumber:  room.CurrentPick,
				Round:       assignment.Round,
				Participant: assignment.Participant.String(),
				Deadline:    room.NextDeadline,
			}
			if room.NextDeadline != nil {
				remaining := int(time.Until(*room.NextDeadline).Seconds())
				if remaining > 0 {
					state.TimeRemaining = &remaining
				}
			}
		}
	}
	return state
}

// HandleListPicks handles GET /api/rooms/{id}/picks.
func (h *StateHandler) HandleListPicks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	roomID, ok := roomIDFromPath(w, r, "/picks")
	if !ok {
		return
	}

	picks, err := h.rooms.ListPicks(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to list picks")
		http.Error(w, "Failed to list picks", http.StatusInternalServerError)
		return
	}

	out := make([]RecentPickInfo, 0, len(picks))
	for _, p := range picks {
		out = append(out, RecentPickInfo{
			PickID:      p.ID.String(),
			PickNumber:  p.PickNumber,
			Round:       p.Round,
			Participant: p.Participant.String(),
			Selection:   p.Selection.String(),
			Auto:        p.Auto,
			MadeAt:      p.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Error().Err(err).Msg("failed to encode picks response")
	}
}

// HandleListPool handles GET /api/rooms/{id}/pool.
func (h *StateHandler) HandleListPool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	roomID, ok := roomIDFromPath(w, r, "/pool")
	if !ok {
		return
	}

	pool, err := h.rooms.AvailableSelections(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to list selection pool")
		http.Error(w, "Failed to list selection pool", http.StatusInternalServerError)
		return
	}

	out := make([]string, 0, len(pool))
	for _, id := range pool {
		out = append(out, id.String())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Error().Err(err).Msg("failed to encode pool response")
	}
}

const roomsPathPrefix = "/api/rooms/"

// roomIDFromPath extracts the room ID from a request path shaped like
// /api/rooms/{id}{suffix}, writing the error response on failure.
func roomIDFromPath(w http.ResponseWriter, r *http.Request, suffix string) (uuid.UUID, bool) {
	path := r.URL.Path
	if !strings.HasPrefix(path, roomsPathPrefix) || !strings.HasSuffix(path, suffix) {
		http.NotFound(w, r)
		return uuid.Nil, false
	}
	idStr := strings.TrimSuffix(strings.TrimPrefix(path, roomsPathPrefix), suffix)
	if idStr == "" || strings.Contains(idStr, "/") {
		http.Error(w, "Room ID is required", http.StatusBadRequest)
		return uuid.Nil, false
	}
	roomID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid room ID format", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return roomID, true
}
