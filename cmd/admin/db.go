package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/games.sqlite)")
	gameID := fs.String("game", "", "game id (required for standings, rounds, turns)")
	round := fs.Int("round", 0, "round (optional; defaults to the latest indexed)")
	outcome := fs.String("outcome", "", "outcome filter (turns)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "games"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "games.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if q != "games" {
		if strings.TrimSpace(*gameID) == "" {
			fmt.Fprintln(os.Stderr, "missing -game")
			os.Exit(2)
		}
		if *round == 0 && q == "standings" {
			lr, err := latestRound(db, *gameID)
			if err != nil {
				fmt.Fprintln(os.Stderr, "latest round:", err)
				os.Exit(1)
			}
			if lr == 0 {
				fmt.Fprintln(os.Stderr, "no rounds found")
				os.Exit(2)
			}
			*round = lr
		}
	}
	if *limit <= 0 {
		*limit = 20
	}

	switch q {
	case "games":
		rows, err := db.Query(`SELECT game_id,config_digest,players_json,rounds,seed,started_at,finished_at,winner,winner_name,scores_json,timeouts,failures,rule_violations,snapshot_path FROM games ORDER BY started_at DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				players                                   string
				finishedAt, winnerName, scores, snapshotP sql.NullString
				winner                                    sql.NullInt64
			)
			var r struct {
				GameID         string          `json:"game_id"`
				ConfigDigest   string          `json:"config_digest"`
				Players        json.RawMessage `json:"players"`
				Rounds         int             `json:"rounds"`
				Seed           int64           `json:"seed"`
				StartedAt      string          `json:"started_at"`
				FinishedAt     string          `json:"finished_at,omitempty"`
				Winner         *int64          `json:"winner,omitempty"`
				WinnerName     string          `json:"winner_name,omitempty"`
				Scores         json.RawMessage `json:"scores,omitempty"`
				Timeouts       int             `json:"timeouts"`
				Failures       int             `json:"failures"`
				RuleViolations int             `json:"rule_violations"`
				SnapshotPath   string          `json:"snapshot_path,omitempty"`
			}
			if err := rows.Scan(&r.GameID, &r.ConfigDigest, &players, &r.Rounds, &r.Seed, &r.StartedAt, &finishedAt, &winner, &winnerName, &scores, &r.Timeouts, &r.Failures, &r.RuleViolations, &snapshotP); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.Players = json.RawMessage(players)
			r.FinishedAt, r.WinnerName, r.SnapshotPath = finishedAt.String, winnerName.String, snapshotP.String
			if winner.Valid {
				w := winner.Int64
				r.Winner = &w
			}
			if scores.Valid && scores.String != "" {
				r.Scores = json.RawMessage(scores.String)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "standings":
		rows, err := db.Query(`SELECT player,name,funds,revenue,cost,share,total_stores FROM funds WHERE game_id=? AND round=? ORDER BY funds DESC, player ASC`, *gameID, *round)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Round       int     `json:"round"`
				Player      int     `json:"player"`
				Name        string  `json:"name"`
				Funds       float64 `json:"funds"`
				Revenue     float64 `json:"revenue"`
				Cost        float64 `json:"cost"`
				Share       float64 `json:"share"`
				TotalStores int     `json:"total_stores"`
			}
			if err := rows.Scan(&r.Player, &r.Name, &r.Funds, &r.Revenue, &r.Cost, &r.Share, &r.TotalStores); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.Round = *round
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "rounds":
		rows, err := db.Query(`SELECT round,digest,final FROM rounds WHERE game_id=? ORDER BY round ASC LIMIT ?`, *gameID, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Round  int    `json:"round"`
				Digest string `json:"digest"`
				Final  bool   `json:"final"`
			}
			if err := rows.Scan(&r.Round, &r.Digest, &r.Final); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "turns":
		query := `SELECT round,player,outcome,code,error,elapsed_ms,candidates,accepted FROM turns WHERE game_id=?`
		qargs := []any{*gameID}
		if *round > 0 {
			query += ` AND round=?`
			qargs = append(qargs, *round)
		}
		if o := strings.TrimSpace(*outcome); o != "" {
			query += ` AND outcome=?`
			qargs = append(qargs, o)
		}
		query += ` ORDER BY round ASC, player ASC LIMIT ?`
		qargs = append(qargs, *limit)
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Round      int            `json:"round"`
				Player     int            `json:"player"`
				Outcome    string         `json:"outcome"`
				Code       sql.NullString `json:"-"`
				Error      sql.NullString `json:"-"`
				ElapsedMS  float64        `json:"elapsed_ms"`
				Candidates int            `json:"candidates"`
				Accepted   int            `json:"accepted"`
			}
			if err := rows.Scan(&r.Round, &r.Player, &r.Outcome, &r.Code, &r.Error, &r.ElapsedMS, &r.Candidates, &r.Accepted); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(struct {
				Row   any    `json:"turn"`
				Code  string `json:"code,omitempty"`
				Error string `json:"error,omitempty"`
			}{r, r.Code.String, r.Error.String})
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(games|standings|rounds|turns)")
		os.Exit(2)
	}
}

func latestRound(db *sql.DB, gameID string) (int, error) {
	var r sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(round) FROM rounds WHERE game_id=?`, gameID).Scan(&r); err != nil {
		return 0, err
	}
	if !r.Valid {
		return 0, nil
	}
	return int(r.Int64), nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
