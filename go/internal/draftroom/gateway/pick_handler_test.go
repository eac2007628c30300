package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topdogsports/draftroom/go/internal/draftroom/coordinator"
	"github.com/topdogsports/draftroom/go/internal/draftroom/events"
	"github.com/topdogsports/draftroom/go/internal/draftroom/room"
	"github.com/topdogsports/draftroom/go/internal/draftroom/store"
	"github.com/topdogsports/draftroom/go/internal/draftroom/turn"
	"github.com/topdogsports/draftroom/go/internal/models"
)

type apiFixture struct {
	mux   *http.ServeMux
	store *store.Memory
	room  *models.DraftRoom
	pool  []uuid.UUID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	mem := store.NewMemory()
	publisher := events.NewRecorder()
	coord := coordinator.New(mem, publisher)
	rooms := room.NewApp(mem, publisher)

	stateHandler := NewStateHandler(rooms)
	pickHandler := NewPickHandler(coord, rooms, stateHandler)

	mux := http.NewServeMux()
	pickHandler.RegisterRoutes(mux)

	order := []uuid.UUID{uuid.New(), uuid.New()}
	pool := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	created, err := rooms.CreateRoom(context.Background(), room.CreateRoomRequest{
		ID:         uuid.New(),
		DraftOrder: order,
		Settings:   models.RoomSettings{Rounds: 2, TimePerPickSec: 30},
		Pool:       pool,
	})
	require.NoError(t, err)
	_, err = rooms.ActivateRoom(context.Background(), created.ID)
	require.NoError(t, err)

	return &apiFixture{mux: mux, store: mem, room: created, pool: pool}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) submitBody(t *testing.T, pickNumber int) submitPickBody {
	t.Helper()
	a, err := turn.Resolve(pickNumber, f.room.DraftOrder)
	require.NoError(t, err)
	return submitPickBody{
		PickNumber:  pickNumber,
		Participant: a.Participant.String(),
		Selection:   f.pool[pickNumber-1].String(),
	}
}

func TestHandleSubmitPick(t *testing.T) {
	f := newAPIFixture(t)
	path := fmt.Sprintf("/api/rooms/%s/picks", f.room.ID)

	rec := f.do(t, http.MethodPost, path, f.submitBody(t, 1))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var pick RecentPickInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pick))
	assert.Equal(t, 1, pick.PickNumber)
	assert.Equal(t, f.pool[0].String(), pick.Selection)
	assert.False(t, pick.Auto)
}

func TestHandleSubmitPickRejections(t *testing.T) {
	f := newAPIFixture(t)
	path := fmt.Sprintf("/api/rooms/%s/picks", f.room.ID)

	t.Run("stale pick number conflicts", func(t *testing.T) {
		body := f.submitBody(t, 1)
		body.PickNumber = 3
		rec := f.do(t, http.MethodPost, path, body)
		assert.Equal(t, http.StatusConflict, rec.Code)

		var errBody pickErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
		assert.Equal(t, string(coordinator.KindPickNumberMismatch), errBody.Kind)
	})

	t.Run("wrong participant forbidden", func(t *testing.T) {
		body := f.submitBody(t, 1)
		body.Participant = f.room.DraftOrder[1].String()
		rec := f.do(t, http.MethodPost, path, body)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		var errBody pickErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
		assert.Equal(t, string(coordinator.KindNotYourTurn), errBody.Kind)
	})

	t.Run("unknown room not found", func(t *testing.T) {
		other := fmt.Sprintf("/api/rooms/%s/picks", uuid.New())
		rec := f.do(t, http.MethodPost, other, f.submitBody(t, 1))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleGetRoomState(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/rooms/%s/picks", f.room.ID), f.submitBody(t, 1))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/rooms/%s/state", f.room.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var state RoomStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, f.room.ID.String(), state.RoomID)
	assert.Equal(t, string(models.RoomStatusActive), state.Status)
	assert.Equal(t, 4, state.TotalPicks)
	assert.Equal(t, 1, state.CompletedPicks)
	assert.Equal(t, 3, state.PoolRemaining)
	require.Len(t, state.RecentPicks, 1)

	require.NotNil(t, state.OnTheClock)
	assert.Equal(t, 2, state.OnTheClock.PickNumber)
	assert.Equal(t, f.room.DraftOrder[1].String(), state.OnTheClock.Participant)
}

func TestHandleGetRoomStateNotFound(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/rooms/%s/state", uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListPool(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/rooms/%s/pool", f.room.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pool []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pool))
	assert.Len(t, pool, len(f.pool))
}

func TestHandleCreateRoom(t *testing.T) {
	f := newAPIFixture(t)

	order := []string{uuid.NewString(), uuid.NewString()}
	pool := []string{uuid.NewString(), uuid.NewString()}

	rec := f.do(t, http.MethodPost, "/api/rooms", createRoomBody{
		DraftOrder: order,
		Settings:   models.RoomSettings{Rounds: 1, TimePerPickSec: 10},
		Pool:       pool,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created roomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, string(models.RoomStatusWaiting), created.Status)
	assert.Equal(t, order, created.DraftOrder)

	t.Run("invalid settings rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/rooms", createRoomBody{
			DraftOrder: order,
			Settings:   models.RoomSettings{Rounds: 0},
			Pool:       pool,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLifecycleEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	base := fmt.Sprintf("/api/rooms/%s", f.room.ID)

	rec := f.do(t, http.MethodPost, base+"/pause", pauseRoomBody{Reason: "half time"})
	require.Equal(t, http.StatusOK, rec.Code)

	var paused roomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paused))
	assert.Equal(t, string(models.RoomStatusPaused), paused.Status)

	rec = f.do(t, http.MethodPost, base+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("invalid transition conflicts", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, base+"/activate", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
