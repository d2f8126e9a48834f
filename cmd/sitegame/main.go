package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"sitelocation.ai/internal/persistence/archive"
	"sitelocation.ai/internal/persistence/indexdb"
	persistlog "sitelocation.ai/internal/persistence/log"
	"sitelocation.ai/internal/persistence/snapshot"
	"sitelocation.ai/internal/players"
	"sitelocation.ai/internal/sim/game"
	"sitelocation.ai/internal/sim/tuning"
	"sitelocation.ai/internal/transport/observer"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		os.Exit(1)
	}
}

// run returns setup and play errors instead of exiting so deferred sinks always close.
func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sitegame", flag.ContinueOnError)
	var (
		configPath  = fs.String("config", "./configs/game.yaml", "game config path")
		playerList  = fs.String("players", "max_density,alloc_sample,random", "comma-separated strategy names ("+strings.Join(players.Names(), ", ")+")")
		seed        = fs.Int64("seed", 0, "override the config seed (0 keeps the config value)")
		rounds      = fs.Int("rounds", 0, "override n_rounds (0 keeps the config value)")
		dataDir     = fs.String("data", "./data", "runtime data directory")
		disableDB   = fs.Bool("disable_db", false, "disable the sqlite index")
		disableLog  = fs.Bool("disable_log", false, "disable the round log")
		noSnapshot  = fs.Bool("no_snapshot", false, "skip writing the final snapshot")
		observeAddr = fs.String("observe", "", "observer http listen address (empty to disable)")
		linger      = fs.Duration("linger", 0, "keep the observer endpoint up this long after the game ends")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := log.New(stdout, "[sitegame] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*configPath)
	if err != nil {
		logger.Printf("load config: %v", err)
		return err
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	if *rounds > 0 {
		tune.Rounds = *rounds
	}
	cfg, err := tune.GameConfig()
	if err != nil {
		logger.Printf("config: %v", err)
		return err
	}

	ps, err := players.FromList(*playerList, cfg.Seed)
	if err != nil {
		logger.Printf("players: %v", err)
		return err
	}

	gameID := uuid.NewString()
	gameDir := filepath.Join(*dataDir, "games", gameID)
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		logger.Printf("mkdir: %v", err)
		return err
	}

	opts := []game.Option{game.WithID(gameID), game.WithLogger(logger)}

	var roundLog *persistlog.RoundLogger
	if !*disableLog {
		roundLog = persistlog.NewRoundLogger(gameDir, gameID)
		defer roundLog.Close()
		opts = append(opts, game.WithRoundLogger(roundLog))
	}

	// Optional: read-model index (does not affect the game).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "games.sqlite"))
		if err != nil {
			logger.Printf("open index: %v", err)
			return err
		}
		defer idx.Close()
		opts = append(opts, game.WithRoundLogger(idx))
	}

	var hub *observer.Hub
	if strings.TrimSpace(*observeAddr) != "" {
		hub = observer.NewHub(logger)
		defer hub.Close()
		opts = append(opts, game.WithRoundLogger(hub))
	}

	g, err := game.New(cfg, ps, opts...)
	if err != nil {
		logger.Printf("new game: %v", err)
		return err
	}
	logger.Printf("game=%s players=%s map=%dx%d rounds=%d config_digest=%s",
		g.ID(), strings.Join(g.PlayerNames(), ","), cfg.Rows, cfg.Cols, cfg.Rounds, cfg.Digest())

	if idx != nil {
		idx.RecordGame(indexdb.GameRow{
			GameID:       g.ID(),
			ConfigDigest: cfg.Digest(),
			ConfigJSON:   string(cfg.CanonicalJSON()),
			Players:      g.PlayerNames(),
			Rounds:       cfg.Rounds,
			Seed:         cfg.Seed,
			StartedAt:    g.StartedAt(),
		})
	}

	var srv *http.Server
	if hub != nil {
		hub.Attach(g)
		mux := http.NewServeMux()
		mux.HandleFunc("/observer/bootstrap", hub.BootstrapHandler())
		mux.HandleFunc("/observer/ws", hub.WSHandler())
		srv = &http.Server{Addr: *observeAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Printf("observer listening on %s", *observeAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("observer: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, playErr := g.Play(ctx)

	snapPath := ""
	if !*noSnapshot && g.History().Len() > 1 {
		snap := snapshot.FromGame(g)
		snapPath = filepath.Join(gameDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Round))
		if err := snapshot.WriteSnapshot(snapPath, snap); err != nil {
			logger.Printf("snapshot: %v", err)
			snapPath = ""
		} else {
			logger.Printf("snapshot written: %s", snapPath)
			if dst, ok, err := archive.ArchiveFinalSnapshot(*dataDir, snapPath, snap); err != nil {
				logger.Printf("archive: %v", err)
			} else if ok {
				logger.Printf("archived: %s", dst)
			}
		}
	}

	if playErr != nil {
		logger.Printf("game=%s ended early: %v", g.ID(), playErr)
	} else {
		if idx != nil {
			idx.RecordResult(res, snapPath)
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
	}

	if srv != nil {
		if *linger > 0 && playErr == nil {
			logger.Printf("observer lingering for %s", *linger)
			select {
			case <-time.After(*linger):
			case <-ctx.Done():
			}
		}
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(shutCtx)
		cancel()
	}
	if idx != nil {
		st := idx.Stats()
		if st.DropRoundTotal+st.DropGameTotal+st.DropResultTotal > 0 || st.WriteErrTotal > 0 {
			logger.Printf("index: dropped rounds=%d games=%d results=%d write_errors=%d",
				st.DropRoundTotal, st.DropGameTotal, st.DropResultTotal, st.WriteErrTotal)
		}
	}
	return playErr
}
