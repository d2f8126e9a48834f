// Package snapshot stores a game's full history as a zstd-compressed gob with a JSON header line.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"sitelocation.ai/internal/sim/allocation"
	"sitelocation.ai/internal/sim/game"
	"sitelocation.ai/internal/sim/gridmap"
	"sitelocation.ai/internal/sim/model"
	"sitelocation.ai/internal/sim/tuning"
)

const Version = 1

type Header struct {
	Version      int       `json:"version"`
	GameID       string    `json:"game_id"`
	Round        int       `json:"round"`
	Rounds       int       `json:"rounds"`
	ConfigDigest string    `json:"config_digest"`
	Digest       string    `json:"digest"`
	CreatedAt    time.Time `json:"created_at"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Config  tuning.Tuning `json:"config"`
	Players []string      `json:"players"`

	// The map never changes during a game, so it is stored once.
	Map MapV1 `json:"map"`

	Entries []EntryV1 `json:"entries"`
}

type MapV1 struct {
	Rows       int       `json:"rows"`
	Cols       int       `json:"cols"`
	Population float64   `json:"population"`
	Seed       int64     `json:"seed"`
	Values     []float64 `json:"values"`
}

type EntryV1 struct {
	Round   int        `json:"round"`
	Digest  string     `json:"digest"`
	Players []PlayerV1 `json:"players"`
}

type PlayerV1 struct {
	ID         int              `json:"id"`
	Funds      float64          `json:"funds"`
	Revenue    float64          `json:"revenue"`
	Cost       float64          `json:"cost"`
	Stores     []model.Store    `json:"stores"`
	Placed     []model.Store    `json:"placed,omitempty"`
	Allocation []float64        `json:"allocation"`
	Turn       *game.TurnReport `json:"turn,omitempty"`
}

// FromGame captures the game's history as of its latest entry.
func FromGame(g *game.Game) SnapshotV1 {
	cfg := g.Config()
	entries := g.History().Entries()
	last := entries[len(entries)-1]

	m := entries[0].Map()
	snap := SnapshotV1{
		Header: Header{
			Version:      Version,
			GameID:       g.ID(),
			Round:        last.Round(),
			Rounds:       cfg.Rounds,
			ConfigDigest: cfg.Digest(),
			Digest:       last.Digest(),
			CreatedAt:    time.Now().UTC(),
		},
		Config:  tuning.FromGameConfig(cfg),
		Players: g.PlayerNames(),
		Map: MapV1{
			Rows:       m.Rows(),
			Cols:       m.Cols(),
			Population: m.Population(),
			Seed:       m.Seed(),
			Values:     m.Distribution().Values(),
		},
	}
	for _, e := range entries {
		ev := EntryV1{Round: e.Round(), Digest: e.Digest()}
		for _, id := range e.Players() {
			pv := PlayerV1{
				ID:      int(id),
				Funds:   e.Funds(id),
				Revenue: e.Revenue(id),
				Cost:    e.Cost(id),
				Stores:  e.StoresOf(id),
				Placed:  e.Placed(id),
			}
			if f := e.Allocation(id); f != nil {
				pv.Allocation = f.Values()
			}
			if rep, ok := e.Turn(id); ok {
				r := rep
				pv.Turn = &r
			}
			ev.Players = append(ev.Players, pv)
		}
		snap.Entries = append(snap.Entries, ev)
	}
	return snap
}

// GameConfig rebuilds the engine config the game ran with and checks it against the recorded digest.
func (s SnapshotV1) GameConfig() (game.Config, error) {
	cfg, err := s.Config.GameConfig()
	if err != nil {
		return game.Config{}, err
	}
	if s.Header.ConfigDigest != "" && cfg.Digest() != s.Header.ConfigDigest {
		return game.Config{}, fmt.Errorf("snapshot: config digest mismatch: got=%s want=%s", cfg.Digest(), s.Header.ConfigDigest)
	}
	return cfg, nil
}

// Policy returns the allocation policy recorded in the config.
func (s SnapshotV1) Policy() (allocation.Policy, error) {
	return allocation.ByName(s.Config.Allocation.Policy, s.Config.Allocation.MaxDistance)
}

// GridMap rebuilds the game map.
func (s SnapshotV1) GridMap() (*gridmap.Map, error) {
	f, err := gridmap.FieldFromValues(s.Map.Rows, s.Map.Cols, s.Map.Values)
	if err != nil {
		return nil, fmt.Errorf("snapshot: map: %w", err)
	}
	return gridmap.FromDistribution(f, s.Map.Population, s.Map.Seed)
}

// HistoryEntries rebuilds the recorded history. Recorded digests are kept as-is so they can be
// checked with game.VerifyHistory.
func (s SnapshotV1) HistoryEntries() ([]*game.Entry, error) {
	m, err := s.GridMap()
	if err != nil {
		return nil, err
	}
	out := make([]*game.Entry, 0, len(s.Entries))
	for _, ev := range s.Entries {
		d := game.EntryData{
			Round:      ev.Round,
			Map:        m,
			Stores:     model.StoresByPlayer{},
			Placed:     map[model.PlayerID][]model.Store{},
			Allocation: allocation.Allocation{},
			Funds:      map[model.PlayerID]float64{},
			Revenue:    map[model.PlayerID]float64{},
			Cost:       map[model.PlayerID]float64{},
			Turns:      map[model.PlayerID]game.TurnReport{},
			Digest:     ev.Digest,
		}
		for _, pv := range ev.Players {
			id := model.PlayerID(pv.ID)
			stores := pv.Stores
			if stores == nil {
				stores = []model.Store{}
			}
			d.Stores[id] = stores
			d.Placed[id] = pv.Placed
			d.Funds[id] = pv.Funds
			d.Revenue[id] = pv.Revenue
			d.Cost[id] = pv.Cost
			if pv.Allocation != nil {
				f, err := gridmap.FieldFromValues(s.Map.Rows, s.Map.Cols, pv.Allocation)
				if err != nil {
					return nil, fmt.Errorf("snapshot: round %d player %d allocation: %w", ev.Round, pv.ID, err)
				}
				d.Allocation[id] = f
			}
			if pv.Turn != nil {
				d.Turns[id] = *pv.Turn
			}
		}
		out = append(out, game.RestoreEntry(d))
	}
	return out, nil
}

func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob payload repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
