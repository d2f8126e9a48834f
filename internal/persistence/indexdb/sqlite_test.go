package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"sitelocation.ai/internal/sim/game"
	"sitelocation.ai/internal/sim/model"
)

func TestSQLiteIndex_RecordsGameRoundsAndResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index", "games.sqlite")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordGame(GameRow{
		GameID:       "g1",
		ConfigDigest: "cfg",
		ConfigJSON:   `{"n_rounds":2}`,
		Players:      []string{"random", "nothing"},
		Rounds:       2,
		Seed:         42,
		StartedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	w := 0
	_ = idx.WriteRound(game.RoundSummary{GameID: "g1", Round: 1, Rounds: 2, Digest: "d1", Players: []game.PlayerRound{
		{Player: 0, Name: "random", Funds: 80, Revenue: 5, Cost: 25, Share: 0.25, TotalStores: 2,
			Placed: []model.Store{model.NewStore(1, 2, "small"), model.NewStore(3, 4, "large")},
			Turn:   game.TurnReport{Outcome: game.OutcomeOK, ElapsedMS: 1.5, Candidates: 2, Accepted: 2}},
		{Player: 1, Name: "nothing", Funds: 100, Turn: game.TurnReport{Outcome: game.OutcomeTimeout, Code: game.CodeTurnTimeout}},
	}})
	_ = idx.WriteRound(game.RoundSummary{GameID: "g1", Round: 2, Rounds: 2, Final: true, Winner: &w, Digest: "d2", Players: []game.PlayerRound{
		{Player: 0, Name: "random", Funds: 120},
		{Player: 1, Name: "nothing", Funds: 100},
	}})
	idx.RecordResult(game.Result{
		GameID: "g1", Rounds: 2, Winner: 0, WinnerName: "random",
		Scores:   []float64{120.0 / 220, 100.0 / 220},
		Timeouts: map[model.PlayerID]int{1: 1},
	}, "/abs/g1.snap.zst")
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	var (
		rounds, timeouts int
		seed             int64
		winner           sql.NullInt64
		winnerName, snap sql.NullString
	)
	row := db.QueryRowContext(ctx, `SELECT rounds,seed,winner,winner_name,timeouts,snapshot_path FROM games WHERE game_id='g1'`)
	if err := row.Scan(&rounds, &seed, &winner, &winnerName, &timeouts, &snap); err != nil {
		t.Fatalf("Scan games: %v", err)
	}
	if rounds != 2 || seed != 42 || !winner.Valid || winner.Int64 != 0 || winnerName.String != "random" || timeouts != 1 || snap.String != "/abs/g1.snap.zst" {
		t.Fatalf("games row mismatch: rounds=%d seed=%d winner=%v name=%v timeouts=%d snap=%v", rounds, seed, winner, winnerName, timeouts, snap)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rounds WHERE game_id='g1'`).Scan(&n); err != nil || n != 2 {
		t.Fatalf("rounds=%d err=%v", n, err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stores WHERE game_id='g1' AND round=1 AND player=0`).Scan(&n); err != nil || n != 2 {
		t.Fatalf("stores=%d err=%v", n, err)
	}
	var storeType string
	if err := db.QueryRowContext(ctx, `SELECT store_type FROM stores WHERE game_id='g1' AND round=1 AND player=0 AND seq=1`).Scan(&storeType); err != nil || storeType != "large" {
		t.Fatalf("store_type=%q err=%v", storeType, err)
	}
	var funds float64
	if err := db.QueryRowContext(ctx, `SELECT funds FROM funds WHERE game_id='g1' AND round=2 AND player=0`).Scan(&funds); err != nil || funds != 120 {
		t.Fatalf("funds=%v err=%v", funds, err)
	}
	var outcome, code string
	if err := db.QueryRowContext(ctx, `SELECT outcome,code FROM turns WHERE game_id='g1' AND round=1 AND player=1`).Scan(&outcome, &code); err != nil {
		t.Fatalf("Scan turns: %v", err)
	}
	if outcome != "timeout" || code != game.CodeTurnTimeout {
		t.Fatalf("turn row outcome=%s code=%s", outcome, code)
	}
	// Round 2 carries no turn reports.
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE round=2`).Scan(&n); err != nil || n != 0 {
		t.Fatalf("round 2 turns=%d err=%v", n, err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqRound}

	_ = s.WriteRound(game.RoundSummary{Round: 2})
	s.RecordGame(GameRow{GameID: "g"})
	s.RecordResult(game.Result{GameID: "g"}, "")

	st := s.Stats()
	if st.DropRoundTotal != 1 || st.DropGameTotal != 1 || st.DropResultTotal != 1 {
		t.Fatalf("drops=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_ClosedIsNoop(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "x.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := idx.WriteRound(game.RoundSummary{GameID: "late"}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
