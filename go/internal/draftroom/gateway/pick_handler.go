package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/topdogsports/draftroom/go/internal/draftroom/coordinator"
	"github.com/topdogsports/draftroom/go/internal/draftroom/room"
	"github.com/topdogsports/draftroom/go/internal/draftroom/store"
	"github.com/topdogsports/draftroom/go/internal/models"
)

// PickSubmitter is the write side of the pick protocol. Satisfied by
// *coordinator.Coordinator.
type PickSubmitter interface {
	SubmitPick(ctx context.Context, req coordinator.SubmitPickRequest) (*models.Pick, error)
}

// RoomAdmin covers room creation and lifecycle transitions. Satisfied
// by *room.App.
type RoomAdmin interface {
	CreateRoom(ctx context.Context, req room.CreateRoomRequest) (*models.DraftRoom, error)
	ActivateRoom(ctx context.Context, id uuid.UUID) (*models.DraftRoom, error)
	PauseRoom(ctx context.Context, id uuid.UUID, reason string) (*models.DraftRoom, error)
	ResumeRoom(ctx context.Context, id uuid.UUID) (*models.DraftRoom, error)
}

// PickHandler serves pick submission and room lifecycle over HTTP.
type PickHandler struct {
	picks PickSubmitter
	rooms RoomAdmin
	state *StateHandler
}

// NewPickHandler creates a new pick handler.
func NewPickHandler(picks PickSubmitter, rooms RoomAdmin, state *StateHandler) *PickHandler {
	return &PickHandler{picks: picks, rooms: rooms, state: state}
}

type submitPickBody struct {
	PickNumber  int    `json:"pick_number"`
	Participant string `json:"participant_id"`
	Selection   string `json:"selection_id"`
}

type pickErrorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type createRoomBody struct {
	RoomID     string              `json:"room_id"`
	DraftOrder []string            `json:"draft_order"`
	Settings   models.RoomSettings `json:"settings"`
	Pool       []string            `json:"pool"`
}

type pauseRoomBody struct {
	Reason string `json:"reason"`
}

// HandleSubmitPick handles POST /api/rooms/{id}/picks.
func (h *PickHandler) HandleSubmitPick(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDFromPath(w, r, "/picks")
	if !ok {
		return
	}

	var body submitPickBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "", "")
		return
	}
	participant, err := uuid.Parse(body.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid participant_id", "", "")
		return
	}
	selection, err := uuid.Parse(body.Selection)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid selection_id", "", "")
		return
	}

	pick, err := h.picks.SubmitPick(r.Context(), coordinator.SubmitPickRequest{
		RoomID:      roomID,
		PickNumber:  body.PickNumber,
		Participant: participant,
		Selection:   selection,
	})
	if err != nil {
		writePickError(w, roomID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(RecentPickInfo{
		PickID:      pick.ID.String(),
		PickNumber:  pick.PickNumber,
		Round:       pick.Round,
		Participant: pick.Participant.String(),
		Selection:   pick.Selection.String(),
		Auto:        pick.Auto,
		MadeAt:      pick.CreatedAt,
	}); err != nil {
		log.Error().Err(err).Msg("failed to encode pick response")
	}
}

// writePickError maps a coordinator rejection onto an HTTP status. A
// committed-but-lost write never happens here; anything outside the
// closed rejection set is an infrastructure failure the client should
// retry against refreshed state.
func writePickError(w http.ResponseWriter, roomID uuid.UUID, err error) {
	kind, ok := coordinator.KindOf(err)
	if !ok {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("pick submission failed")
		writeError(w, http.StatusInternalServerError, "pick submission failed, refresh and retry", "", "")
		return
	}

	var pe *coordinator.PickError
	errors.As(err, &pe)

	status := http.StatusConflict
	switch kind {
	case coordinator.KindRoomNotFound:
		status = http.StatusNotFound
	case coordinator.KindNotYourTurn:
		status = http.StatusForbidden
	}

	log.Info().
		Str("room_id", roomID.String()).
		Str("kind", string(kind)).
		Str("detail", pe.Detail).
		Msg("pick rejected")
	writeError(w, status, "pick rejected", string(kind), pe.Detail)
}

// HandleCreateRoom handles POST /api/rooms.
func (h *PickHandler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body createRoomBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "", "")
		return
	}

	req := room.CreateRoomRequest{Settings: body.Settings}
	if body.RoomID == "" {
		req.ID = uuid.New()
	} else {
		id, err := uuid.Parse(body.RoomID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid room_id", "", "")
			return
		}
		req.ID = id
	}
	var err error
	if req.DraftOrder, err = parseUUIDs(body.DraftOrder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid draft_order", "", err.Error())
		return
	}
	if req.Pool, err = parseUUIDs(body.Pool); err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool", "", err.Error())
		return
	}

	created, err := h.rooms.CreateRoom(r.Context(), req)
	if err != nil {
		if errors.Is(err, store.ErrRoomExists) {
			writeError(w, http.StatusConflict, "room already exists", "", "")
			return
		}
		log.Error().Err(err).Msg("failed to create room")
		writeError(w, http.StatusBadRequest, "failed to create room", "", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeRoom(w, created)
}

func (h *PickHandler) handleLifecycle(w http.ResponseWriter, r *http.Request, roomID uuid.UUID, action string) {
	var (
		updated *models.DraftRoom
		err     error
	)
	switch action {
	case "activate":
		updated, err = h.rooms.ActivateRoom(r.Context(), roomID)
	case "pause":
		var body pauseRoomBody
		// Reason is optional; an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&body)
		updated, err = h.rooms.PauseRoom(r.Context(), roomID, body.Reason)
	case "resume":
		updated, err = h.rooms.ResumeRoom(r.Context(), roomID)
	}
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRoomNotFound):
			writeError(w, http.StatusNotFound, "room not found", "", "")
		case errors.Is(err, room.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "invalid room status transition", "", err.Error())
		default:
			log.Error().Err(err).Str("room_id", roomID.String()).Str("action", action).
				Msg("room lifecycle action failed")
			writeError(w, http.StatusInternalServerError, "room lifecycle action failed", "", "")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeRoom(w, updated)
}

type roomResponse struct {
	RoomID      string              `json:"room_id"`
	Status      string              `json:"status"`
	CurrentPick int                 `json:"current_pick"`
	DraftOrder  []string            `json:"draft_order"`
	Settings    models.RoomSettings `json:"settings"`
}

func writeRoom(w http.ResponseWriter, m *models.DraftRoom) {
	order := make([]string, 0, len(m.DraftOrder))
	for _, p := range m.DraftOrder {
		order = append(order, p.String())
	}
	if err := json.NewEncoder(w).Encode(roomResponse{
		RoomID:      m.ID.String(),
		Status:      string(m.Status),
		CurrentPick: m.CurrentPick,
		DraftOrder:  order,
		Settings:    m.Settings,
	}); err != nil {
		log.Error().Err(err).Msg("failed to encode room response")
	}
}

func writeError(w http.ResponseWriter, status int, msg, kind, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(pickErrorBody{Error: msg, Kind: kind, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("failed to encode error response")
	}
}

func parseUUIDs(in []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(in))
	for _, s := range in {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// RegisterRoutes wires the REST surface onto mux. State reads and pick
// submission share the /api/rooms/{id}/... shape, so dispatch happens
// on suffix and method.
func (h *PickHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/rooms", h.HandleCreateRoom)
	mux.HandleFunc("/api/rooms/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/state"):
			h.state.HandleGetRoomState(w, r)
		case strings.HasSuffix(path, "/pool"):
			h.state.HandleListPool(w, r)
		case strings.HasSuffix(path, "/picks") && r.Method == http.MethodGet:
			h.state.HandleListPicks(w, r)
		case strings.HasSuffix(path, "/picks") && r.Method == http.MethodPost:
			h.HandleSubmitPick(w, r)
		case strings.HasSuffix(path, "/activate") && r.Method == http.MethodPost:
			if roomID, ok := roomIDFromPath(w, r, "/activate"); ok {
				h.handleLifecycle(w, r, roomID, "activate")
			}
		case strings.HasSuffix(path, "/pause") && r.Method == http.MethodPost:
			if roomID, ok := roomIDFromPath(w, r, "/pause"); ok {
				h.handleLifecycle(w, r, roomID, "pause")
			}
		case strings.HasSuffix(path, "/resume") && r.Method == http.MethodPost:
			if roomID, ok := roomIDFromPath(w, r, "/resume"); ok {
				h.handleLifecycle(w, r, roomID, "resume")
			}
		default:
			http.NotFound(w, r)
		}
	})
}
