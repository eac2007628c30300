package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/topdogsports/draftroom/go/internal/dbconfig"
)

// SeedRoom is the JSON layout of a seed file: one room plus its full
// selection pool. IDs may be omitted and are generated.
type SeedRoom struct {
	ID             string   `json:"id"`
	DraftOrder     []string `json:"draft_order"`
	Rounds         int      `json:"rounds"`
	TimePerPickSec int      `json:"time_per_pick_sec"`
	ThirdRoundRev  bool     `json:"third_round_reversal"`
	Pool           []string `json:"pool"`
	// PoolSize generates that many selection IDs when Pool is empty.
	PoolSize int `json:"pool_size"`
}

func main() {
	path := flag.String("file", "go/internal/assets/rooms.json", "seed file with rooms to create")
	flag.Parse()

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *path, err)
		os.Exit(1)
	}
	var rooms []SeedRoom
	if err := json.Unmarshal(data, &rooms); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal rooms: %v\n", err)
		os.Exit(1)
	}

	cfg := dbconfig.NewConfigFromEnv()
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	seeded, errs := 0, 0
	for _, r := range rooms {
		if err := seedOne(db, r); err != nil {
			fmt.Fprintf(os.Stderr, "seed room: %v\n", err)
			errs++
			continue
		}
		seeded++
	}
	fmt.Printf("Rooms seed: total=%d seeded=%d errors=%d\n", len(rooms), seeded, errs)
}

func seedOne(db *sql.DB, r SeedRoom) error {
	roomID := uuid.New()
	if r.ID != "" {
		parsed, err := uuid.Parse(r.ID)
		if err != nil {
			return fmt.Errorf("invalid room id %q: %w", r.ID, err)
		}
		roomID = parsed
	}

	order := make([]string, 0, len(r.DraftOrder))
	for _, p := range r.DraftOrder {
		if _, err := uuid.Parse(p); err != nil {
			return fmt.Errorf("invalid participant id %q: %w", p, err)
		}
		order = append(order, p)
	}
	if len(order) == 0 {
		return fmt.Errorf("room %s has an empty draft order", roomID)
	}
	if r.Rounds <= 0 {
		return fmt.Errorf("room %s needs rounds > 0", roomID)
	}

	pool := r.Pool
	if len(pool) == 0 {
		size := r.PoolSize
		if size < r.Rounds*len(order) {
			size = r.Rounds * len(order)
		}
		for i := 0; i < size; i++ {
			pool = append(pool, uuid.NewString())
		}
	}
	if len(pool) < r.Rounds*len(order) {
		return fmt.Errorf("room %s pool (%d) smaller than total slots (%d)",
			roomID, len(pool), r.Rounds*len(order))
	}

	settings, err := json.Marshal(map[string]any{
		"rounds":               r.Rounds,
		"time_per_pick_sec":    r.TimePerPickSec,
		"third_round_reversal": r.ThirdRoundRev,
	})
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	tag, err := tx.Exec(`
        INSERT INTO draft_rooms (id, draft_order, current_pick, status, settings)
        VALUES ($1, $2, 1, 'WAITING', $3)
        ON CONFLICT (id) DO NOTHING
    `, roomID, pq.Array(order), settings)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	if rows, _ := tag.RowsAffected(); rows == 0 {
		// Room already seeded; leave its pool alone.
		return tx.Commit()
	}

	for _, sel := range pool {
		if _, err := tx.Exec(`
            INSERT INTO selection_pool (room_id, selection_id)
            VALUES ($1, $2)
            ON CONFLICT DO NOTHING
        `, roomID, sel); err != nil {
			return fmt.Errorf("insert selection %s: %w", sel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	fmt.Printf("seeded room %s: participants=%d rounds=%d pool=%d\n",
		roomID, len(order), r.Rounds, len(pool))
	return nil
}
