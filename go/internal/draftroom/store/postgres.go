package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/topdogsports/draftroom/go/internal/models"
	"github.com/topdogsports/draftroom/go/internal/sqlutil"
)

const pgUniqueViolation = "23505"

const roomColumns = `id::text, draft_order::text[], current_pick, status, settings,
	last_pick_at, next_deadline, created_at, updated_at`

// Postgres is the production RoomStore. Transact takes a row lock on
// the room (SELECT ... FOR UPDATE), which is the serialization
// primitive the coordinator's stale-read rejection depends on.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ RoomStore = (*Postgres)(nil)

func (p *Postgres) CreateRoom(ctx context.Context, room *models.DraftRoom, pool []uuid.UUID) error {
	settings, err := json.Marshal(room.Settings)
	if err != nil {
		return fmt.Errorf("marshal room settings: %w", err)
	}

	order := make([]string, len(room.DraftOrder))
	for i, id := range room.DraftOrder {
		order[i] = id.String()
	}

	return sqlutil.Run(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO draft_rooms (id, draft_order, current_pick, status, settings, next_deadline, created_at, updated_at)
			VALUES ($1, $2::uuid[], $3, $4, $5, $6, $7, $7)`,
			room.ID.String(), order, room.CurrentPick, string(room.Status), settings, room.NextDeadline, room.CreatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return ErrRoomExists
			}
			return fmt.Errorf("insert draft room: %w", err)
		}

		batch := &pgx.Batch{}
		for _, sel := range pool {
			batch.Queue(`INSERT INTO selection_pool (room_id, selection_id) VALUES ($1, $2)`,
				room.ID.String(), sel.String())
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("seed selection pool: %w", err)
		}
		return nil
	})
}

func (p *Postgres) GetRoom(ctx context.Context, roomID uuid.UUID) (*models.DraftRoom, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM draft_rooms WHERE id = $1`, roomID.String())
	return scanRoom(row)
}

func (p *Postgres) UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, from, to models.RoomStatus) (*models.DraftRoom, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE draft_rooms SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+roomColumns,
		roomID.String(), string(from), string(to))
	room, err := scanRoom(row)
	if errors.Is(err, ErrRoomNotFound) {
		// Zero rows: either the room is missing or the predicate lost
		// a race. Tell them apart.
		if _, getErr := p.GetRoom(ctx, roomID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStatusConflict
	}
	return room, err
}

func (p *Postgres) ListPicks(ctx context.Context, roomID uuid.UUID) ([]models.Pick, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, room_id::text, pick_number, round, participant_id::text, selection_id::text, auto, created_at
		FROM picks WHERE room_id = $1 ORDER BY pick_number`,
		roomID.String())
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	defer rows.Close()

	var picks []models.Pick
	for rows.Next() {
		var (
			pick                             models.Pick
			id, room, participant, selection string
		)
		if err := rows.Scan(&id, &room, &pick.PickNumber, &pick.Round, &participant, &selection, &pick.Auto, &pick.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		pick.ID = uuid.MustParse(id)
		pick.RoomID = uuid.MustParse(room)
		pick.Participant = uuid.MustParse(participant)
		pick.Selection = uuid.MustParse(selection)
		picks = append(picks, pick)
	}
	return picks, rows.Err()
}

func (p *Postgres) AvailableSelections(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT selection_id::text FROM selection_pool WHERE room_id = $1 ORDER BY selection_id`,
		roomID.String())
	if err != nil {
		return nil, fmt.Errorf("list available selections: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		ids = append(ids, uuid.MustParse(id))
	}
	return ids, rows.Err()
}

func (p *Postgres) Transact(ctx context.Context, roomID uuid.UUID, fn func(txn RoomTxn) error) error {
	return sqlutil.Run(ctx, p.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+roomColumns+` FROM draft_rooms WHERE id = $1 FOR UPDATE`, roomID.String())
		room, err := scanRoom(row)
		if err != nil {
			return err
		}
		return fn(&pgxTxn{tx: tx, room: room})
	})
}

func (p *Postgres) NextDeadline(ctx context.Context) (*Deadline, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id::text, next_deadline FROM draft_rooms
		WHERE status = $1 AND next_deadline IS NOT NULL
		ORDER BY next_deadline ASC LIMIT 1`,
		string(models.RoomStatusActive))

	var (
		id string
		at *time.Time
	)
	if err := row.Scan(&id, &at); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch next deadline: %w", err)
	}
	return &Deadline{RoomID: uuid.MustParse(id), At: at}, nil
}

func (p *Postgres) RoomsDueForPick(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text FROM draft_rooms
		WHERE status = $1 AND next_deadline IS NOT NULL AND next_deadline <= now()
		ORDER BY next_deadline ASC LIMIT $2`,
		string(models.RoomStatusActive), limit)
	if err != nil {
		return nil, fmt.Errorf("fetch rooms due for pick: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan room id: %w", err)
		}
		ids = append(ids, uuid.MustParse(id))
	}
	return ids, rows.Err()
}

func (p *Postgres) UpdateNextDeadline(ctx context.Context, roomID uuid.UUID, deadline *time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE draft_rooms SET next_deadline = $2, updated_at = now() WHERE id = $1`,
		roomID.String(), deadline)
	if err != nil {
		return fmt.Errorf("update next deadline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (p *Postgres) ClearNextDeadline(ctx context.Context, roomID uuid.UUID) error {
	return p.UpdateNextDeadline(ctx, roomID, nil)
}

// pgxTxn applies pick writes inside the row-locked transaction.
type pgxTxn struct {
	tx   pgx.Tx
	room *models.DraftRoom
}

func (t *pgxTxn) Room() *models.DraftRoom {
	return t.room
}

func (t *pgxTxn) PoolContains(ctx context.Context, selection uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM selection_pool WHERE room_id = $1 AND selection_id = $2)`,
		t.room.ID.String(), selection.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check selection pool: %w", err)
	}
	return exists, nil
}

func (t *pgxTxn) RecordPick(ctx context.Context, pick models.Pick) error {
	if pick.PickNumber != t.room.CurrentPick {
		return ErrPickConflict
	}

	tag, err := t.tx.Exec(ctx,
		`DELETE FROM selection_pool WHERE room_id = $1 AND selection_id = $2`,
		t.room.ID.String(), pick.Selection.String())
	if err != nil {
		return fmt.Errorf("remove selection from pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPickConflict
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO picks (id, room_id, pick_number, round, participant_id, selection_id, auto, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pick.ID.String(), pick.RoomID.String(), pick.PickNumber, pick.Round,
		pick.Participant.String(), pick.Selection.String(), pick.Auto, pick.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrPickConflict
		}
		return fmt.Errorf("insert pick: %w", err)
	}

	t.room.CurrentPick++
	madeAt := pick.CreatedAt
	t.room.LastPickAt = &madeAt

	if t.room.CurrentPick > t.room.TotalSlots() {
		t.room.Status = models.RoomStatusCompleted
		t.room.NextDeadline = nil
	} else if secs := t.room.Settings.TimePerPickSec; secs > 0 {
		next := madeAt.Add(time.Duration(secs) * time.Second)
		t.room.NextDeadline = &next
	} else {
		t.room.NextDeadline = nil
	}

	_, err = t.tx.Exec(ctx, `
		UPDATE draft_rooms
		SET current_pick = $2, status = $3, last_pick_at = $4, next_deadline = $5, updated_at = now()
		WHERE id = $1`,
		t.room.ID.String(), t.room.CurrentPick, string(t.room.Status), t.room.LastPickAt, t.room.NextDeadline)
	if err != nil {
		return fmt.Errorf("advance room counter: %w", err)
	}
	return nil
}

func scanRoom(row pgx.Row) (*models.DraftRoom, error) {
	var (
		room     models.DraftRoom
		id       string
		order    []string
		status   string
		settings []byte
	)
	err := row.Scan(&id, &order, &room.CurrentPick, &status, &settings,
		&room.LastPickAt, &room.NextDeadline, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("scan draft room: %w", err)
	}

	room.ID = uuid.MustParse(id)
	room.Status = models.RoomStatus(status)
	room.DraftOrder = make([]uuid.UUID, len(order))
	for i, s := range order {
		room.DraftOrder[i] = uuid.MustParse(s)
	}
	if err := json.Unmarshal(settings, &room.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal room settings: %w", err)
	}
	return &room, nil
}
