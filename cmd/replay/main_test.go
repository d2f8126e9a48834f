package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"sitelocation.ai/internal/players"
	"sitelocation.ai/internal/sim/allocation"
	"sitelocation.ai/internal/sim/catalogs"
	"sitelocation.ai/internal/sim/game"
	"sitelocation.ai/internal/sim/gridmap"
)

type collect struct{ rounds []game.RoundSummary }

func (c *collect) WriteRound(s game.RoundSummary) error {
	c.rounds = append(c.rounds, s)
	return nil
}

func TestRebuildFromRoundLog(t *testing.T) {
	cat, err := catalogs.NewStoreCatalog([]catalogs.StoreDef{
		{ID: "small", CapitalCost: 10, OperatingCost: 1, Attractiveness: 5, AttractivenessConstant: 1},
		{ID: "large", CapitalCost: 40, OperatingCost: 3, Attractiveness: 20, AttractivenessConstant: 1},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	cfg := game.Config{
		Rows: 12, Cols: 12, Population: 500, Seed: 11,
		Rounds: 4, StartingFunds: 100, ProfitPerCustomer: 0.5, MaxStoresPerRound: 2,
		TurnBudget: 2 * time.Second, AllocationPolicy: allocation.PolicyAttractiveness, Stores: cat,
	}
	ps, err := players.FromList("random,copycat", cfg.Seed)
	if err != nil {
		t.Fatalf("players: %v", err)
	}
	sink := &collect{}
	g, err := game.New(cfg, ps, game.WithRoundLogger(sink))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res, err := g.Play(context.Background())
	if err != nil {
		t.Fatalf("play: %v", err)
	}

	policy, _ := allocation.ByName(cfg.AllocationPolicy, cfg.MaxDistance)
	m, err := gridmap.New(cfg.Rows, cfg.Cols, cfg.Population, cfg.Seed)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	last, checked, err := rebuild(cfg, policy, m, len(ps), sink.rounds, 0)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if checked != cfg.Rounds || last.Digest() != res.Digest {
		t.Fatalf("checked=%d digest=%s want %d %s", checked, last.Digest(), cfg.Rounds, res.Digest)
	}

	_, checked, err = rebuild(cfg, policy, m, len(ps), sink.rounds, 2)
	if err != nil || checked != 2 {
		t.Fatalf("partial rebuild: checked=%d err=%v", checked, err)
	}

	sink.rounds[1].Digest = "tampered"
	if _, _, err := rebuild(cfg, policy, m, len(ps), sink.rounds, 0); !errors.Is(err, game.ErrReplayMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}
