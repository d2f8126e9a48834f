// Package indexdb keeps a queryable sqlite read model of games, rounds and turns.
//
// Writes are asynchronous: the engine hands rows to a buffered channel and a single writer goroutine
// batches them into transactions. When the writer falls behind rows are dropped and counted; the round
// log and snapshots remain the source of truth.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"sitelocation.ai/internal/sim/game"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRound  atomic.Uint64
	dropGame   atomic.Uint64
	dropResult atomic.Uint64
	writeErrs  atomic.Uint64
}

type reqKind int

const (
	reqGame reqKind = iota + 1
	reqRound
	reqResult
)

type req struct {
	kind reqKind

	game   GameRow
	round  game.RoundSummary
	result resultRow
}

// GameRow describes a game when it starts.
type GameRow struct {
	GameID       string
	ConfigDigest string
	ConfigJSON   string
	Players      []string
	Rounds       int
	Seed         int64
	StartedAt    time.Time
}

type resultRow struct {
	GameID       string
	Winner       int
	WinnerName   string
	Scores       []float64
	Timeouts     int
	Failures     int
	Violations   int
	SnapshotPath string
	FinishedAt   time.Time
}

// Stats reports queue pressure and dropped rows.
type Stats struct {
	QueueDepth      int    `json:"queue_depth"`
	QueueCapacity   int    `json:"queue_capacity"`
	DropRoundTotal  uint64 `json:"drop_round_total"`
	DropGameTotal   uint64 `json:"drop_game_total"`
	DropResultTotal uint64 `json:"drop_result_total"`
	WriteErrTotal   uint64 `json:"write_err_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS games (
			game_id TEXT PRIMARY KEY,
			config_digest TEXT NOT NULL,
			config_json TEXT NOT NULL,
			players_json TEXT NOT NULL,
			rounds INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			winner INTEGER,
			winner_name TEXT,
			scores_json TEXT,
			timeouts INTEGER NOT NULL DEFAULT 0,
			failures INTEGER NOT NULL DEFAULT 0,
			rule_violations INTEGER NOT NULL DEFAULT 0,
			snapshot_path TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			game_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			digest TEXT NOT NULL,
			final INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (game_id, round)
		);`,
		`CREATE TABLE IF NOT EXISTS funds (
			game_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			player INTEGER NOT NULL,
			name TEXT NOT NULL,
			funds REAL NOT NULL,
			revenue REAL NOT NULL,
			cost REAL NOT NULL,
			share REAL NOT NULL,
			total_stores INTEGER NOT NULL,
			PRIMARY KEY (game_id, round, player)
		);`,
		`CREATE TABLE IF NOT EXISTS stores (
			game_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			player INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			pos_row INTEGER NOT NULL,
			pos_col INTEGER NOT NULL,
			store_type TEXT NOT NULL,
			PRIMARY KEY (game_id, round, player, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			game_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			player INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			code TEXT,
			error TEXT,
			elapsed_ms REAL NOT NULL,
			candidates INTEGER NOT NULL,
			accepted INTEGER NOT NULL,
			PRIMARY KEY (game_id, round, player)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_outcome ON turns(game_id, outcome);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// DB exposes the handle for read queries.
func (s *SQLiteIndex) DB() *sql.DB { return s.db }

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	st := Stats{
		DropRoundTotal:  s.dropRound.Load(),
		DropGameTotal:   s.dropGame.Load(),
		DropResultTotal: s.dropResult.Load(),
		WriteErrTotal:   s.writeErrs.Load(),
	}
	if s.ch != nil {
		st.QueueDepth = len(s.ch)
		st.QueueCapacity = cap(s.ch)
	}
	return st
}

func (s *SQLiteIndex) RecordGame(row GameRow) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqGame, game: row}:
	default:
		s.dropGame.Add(1)
	}
}

// WriteRound implements game.RoundLogger.
func (s *SQLiteIndex) WriteRound(summary game.RoundSummary) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqRound, round: summary}:
	default:
		s.dropRound.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordResult(res game.Result, snapshotPath string) {
	if s == nil || s.closed.Load() {
		return
	}
	r := resultRow{
		GameID:       res.GameID,
		Winner:       int(res.Winner),
		WinnerName:   res.WinnerName,
		Scores:       res.Scores,
		Timeouts:     sumCounts(res.Timeouts),
		Failures:     sumCounts(res.Failures),
		Violations:   sumCounts(res.RuleViolations),
		SnapshotPath: snapshotPath,
		FinishedAt:   time.Now().UTC(),
	}
	select {
	case s.ch <- req{kind: reqResult, result: r}:
	default:
		s.dropResult.Add(1)
	}
}

func sumCounts[K comparable](m map[K]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertGame, _ := s.db.Prepare(`INSERT OR REPLACE INTO games(game_id,config_digest,config_json,players_json,rounds,seed,started_at) VALUES(?,?,?,?,?,?,?)`)
	insertRound, _ := s.db.Prepare(`INSERT OR REPLACE INTO rounds(game_id,round,digest,final,raw_json) VALUES(?,?,?,?,?)`)
	insertFunds, _ := s.db.Prepare(`INSERT OR REPLACE INTO funds(game_id,round,player,name,funds,revenue,cost,share,total_stores) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertStore, _ := s.db.Prepare(`INSERT OR REPLACE INTO stores(game_id,round,player,seq,pos_row,pos_col,store_type) VALUES(?,?,?,?,?,?,?)`)
	insertTurn, _ := s.db.Prepare(`INSERT OR REPLACE INTO turns(game_id,round,player,outcome,code,error,elapsed_ms,candidates,accepted) VALUES(?,?,?,?,?,?,?,?,?)`)
	updateResult, _ := s.db.Prepare(`UPDATE games SET finished_at=?,winner=?,winner_name=?,scores_json=?,timeouts=?,failures=?,rule_violations=?,snapshot_path=? WHERE game_id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertGame, insertRound, insertFunds, insertStore, insertTurn, updateResult} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeErrs.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrs.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		s.writeErrs.Add(1)
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqGame:
			g := r.game
			players, _ := json.Marshal(g.Players)
			exec(insertGame, g.GameID, g.ConfigDigest, g.ConfigJSON, string(players), g.Rounds, g.Seed, g.StartedAt.UTC().Format(time.RFC3339Nano))

		case reqRound:
			s.writeRound(r.round, exec, insertRound, insertFunds, insertStore, insertTurn)
			// A round is small; committing per round keeps the index current for spectators.
			commit()

		case reqResult:
			res := r.result
			scores, _ := json.Marshal(res.Scores)
			exec(updateResult, res.FinishedAt.Format(time.RFC3339Nano), res.Winner, res.WinnerName, string(scores),
				res.Timeouts, res.Failures, res.Violations, res.SnapshotPath, res.GameID)
			commit()
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

func (s *SQLiteIndex) writeRound(sum game.RoundSummary, exec func(*sql.Stmt, ...any) bool, insertRound, insertFunds, insertStore, insertTurn *sql.Stmt) {
	raw, _ := json.Marshal(sum)
	final := 0
	if sum.Final {
		final = 1
	}
	if !exec(insertRound, sum.GameID, sum.Round, sum.Digest, final, string(raw)) {
		return
	}
	for _, p := range sum.Players {
		if !exec(insertFunds, sum.GameID, sum.Round, int(p.Player), p.Name, p.Funds, p.Revenue, p.Cost, p.Share, p.TotalStores) {
			return
		}
		for i, st := range p.Placed {
			if !exec(insertStore, sum.GameID, sum.Round, int(p.Player), i, st.Pos.Row, st.Pos.Col, st.Type) {
				return
			}
		}
		if p.Turn.Outcome == "" {
			continue
		}
		if !exec(insertTurn, sum.GameID, sum.Round, int(p.Player), string(p.Turn.Outcome), p.Turn.Code, p.Turn.Error,
			p.Turn.ElapsedMS, p.Turn.Candidates, p.Turn.Accepted) {
			return
		}
	}
}
