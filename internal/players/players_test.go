package players

import (
	"context"
	"testing"
	"time"

	"sitelocation.ai/internal/sim/allocation"
	"sitelocation.ai/internal/sim/catalogs"
	"sitelocation.ai/internal/sim/game"
	"sitelocation.ai/internal/sim/gridmap"
	"sitelocation.ai/internal/sim/mathx"
	"sitelocation.ai/internal/sim/model"
)

func testConfig(t *testing.T, rows, cols int) game.Config {
	t.Helper()
	cat, err := catalogs.NewStoreCatalog([]catalogs.StoreDef{
		{ID: "small", CapitalCost: 10, OperatingCost: 1, Attractiveness: 5, AttractivenessConstant: 1},
		{ID: "large", CapitalCost: 100, OperatingCost: 3, Attractiveness: 20, AttractivenessConstant: 1},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return game.Config{
		Rows:              rows,
		Cols:              cols,
		Population:        1000,
		Seed:              3,
		Rounds:            3,
		StartingFunds:     150,
		ProfitPerCustomer: 0.5,
		MaxStoresPerRound: 2,
		TurnBudget:        2 * time.Second,
		Isolation:         game.Isolated,
		AllocationPolicy:  allocation.PolicyAttractiveness,
		Stores:            cat,
	}
}

// peakMap is flat except for one dense cell.
func peakMap(t *testing.T, rows, cols, pr, pc int) *gridmap.Map {
	t.Helper()
	f := gridmap.NewField(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			f.Set(r, c, 1)
		}
	}
	f.Set(pr, pc, 50)
	m, err := gridmap.FromDistribution(f, f.Sum(), 0)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	return m
}

func view(cfg game.Config, m *gridmap.Map, player model.PlayerID, stores model.StoresByPlayer, funds float64) game.TurnView {
	return game.TurnView{Player: player, Round: 1, Map: m, Stores: stores, Funds: funds, Config: cfg}
}

func run(t *testing.T, p game.Player, v game.TurnView) []model.Store {
	t.Helper()
	out := &game.Placement{}
	if err := p.PlaceStores(context.Background(), v, out); err != nil {
		t.Fatalf("%s: %v", p.Name(), err)
	}
	return out.Stores()
}

func TestRegistry(t *testing.T) {
	names := Names()
	if len(names) != 6 {
		t.Fatalf("names=%v", names)
	}
	for _, n := range names {
		p, err := New(n, 1)
		if err != nil {
			t.Fatalf("new %s: %v", n, err)
		}
		if p.Name() != n {
			t.Fatalf("player %s reports name %s", n, p.Name())
		}
	}
	if _, err := New("genius", 1); err == nil {
		t.Fatalf("expected unknown player error")
	}
	ps, err := FromList("random, nothing,max_density", 10)
	if err != nil || len(ps) != 3 || ps[1].Name() != "nothing" {
		t.Fatalf("from list: %v %v", ps, err)
	}
	if _, err := FromList(" , ", 0); err == nil {
		t.Fatalf("expected error for empty list")
	}
}

func TestRandomStaysInBoundsAndIsSeeded(t *testing.T) {
	cfg := testConfig(t, 12, 9)
	m := peakMap(t, 12, 9, 0, 0)
	v := view(cfg, m, 0, model.StoresByPlayer{0: nil}, 100)
	a := run(t, &Random{Seed: 5}, v)
	b := run(t, &Random{Seed: 5}, v)
	if len(a) != cfg.MaxStoresPerRound {
		t.Fatalf("placed %d want %d", len(a), cfg.MaxStoresPerRound)
	}
	for i, s := range a {
		if !cfg.InBounds(s.Pos.Row, s.Pos.Col) || !cfg.Stores.Has(s.Type) {
			t.Fatalf("bad store %+v", s)
		}
		if s != b[i] {
			t.Fatalf("same seed differs: %v vs %v", a, b)
		}
	}
}

func TestMaxDensityPicksPeakAwayFromStores(t *testing.T) {
	cfg := testConfig(t, 40, 40)
	m := peakMap(t, 40, 40, 10, 30)
	p := &MaxDensity{MinDist: 5}

	got := run(t, p, view(cfg, m, 0, model.StoresByPlayer{0: nil, 1: nil}, 150))
	if len(got) != 1 || got[0].Pos != (model.Pos{Row: 10, Col: 30}) || got[0].Type != "large" {
		t.Fatalf("got %v", got)
	}

	blocked := model.StoresByPlayer{0: nil, 1: {model.NewStore(11, 30, "small")}}
	got = run(t, p, view(cfg, m, 0, blocked, 50))
	if len(got) != 1 || got[0].Type != "small" {
		t.Fatalf("got %v", got)
	}
	if mathx.Euclid(got[0].Pos.Row, got[0].Pos.Col, 11, 30) < 5 {
		t.Fatalf("placed too close: %v", got[0])
	}

	if got := run(t, p, view(cfg, m, 0, model.StoresByPlayer{0: nil}, 5)); len(got) != 0 {
		t.Fatalf("broke player placed %v", got)
	}
}

func TestCopycat(t *testing.T) {
	cfg := testConfig(t, 10, 10)
	m := peakMap(t, 10, 10, 0, 0)
	p := &Copycat{Seed: 1}
	if got := run(t, p, view(cfg, m, 0, model.StoresByPlayer{0: nil, 1: nil}, 100)); len(got) != 0 {
		t.Fatalf("nothing to copy, got %v", got)
	}
	stores := model.StoresByPlayer{
		0: {model.NewStore(1, 1, "small")},
		1: {model.NewStore(1, 1, "large"), model.NewStore(4, 5, "large")},
	}
	got := run(t, p, view(cfg, m, 0, stores, 200))
	if len(got) != 1 || got[0] != model.NewStore(4, 5, "large") {
		t.Fatalf("got %v", got)
	}
}

func TestAllocSampleBeatsEmptyBoard(t *testing.T) {
	cfg := testConfig(t, 30, 30)
	m := peakMap(t, 30, 30, 15, 15)
	p := &AllocSample{Seed: 2, Samples: 20}
	got := run(t, p, view(cfg, m, 0, model.StoresByPlayer{0: nil, 1: nil}, 150))
	if len(got) != 1 || !cfg.InBounds(got[0].Pos.Row, got[0].Pos.Col) || got[0].Type != "large" {
		t.Fatalf("got %v", got)
	}
}

func TestAllocSampleCommitsBeforeDeadline(t *testing.T) {
	cfg := testConfig(t, 30, 30)
	m := peakMap(t, 30, 30, 15, 15)
	p := &AllocSample{Seed: 2, Samples: 1 << 30}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	out := &game.Placement{}
	err := p.PlaceStores(ctx, view(cfg, m, 0, model.StoresByPlayer{0: nil}, 150), out)
	if err == nil {
		t.Fatalf("expected context error")
	}
	if len(out.Stores()) != 1 {
		t.Fatalf("expected a committed candidate, got %v", out.Stores())
	}
}

func TestAllocSampleScoresWithConfiguredPolicy(t *testing.T) {
	cfg := testConfig(t, 30, 30)
	cfg.AllocationPolicy = allocation.PolicyClosestStore
	cfg.MaxDistance = 6
	m := peakMap(t, 30, 30, 15, 15)
	stores := model.StoresByPlayer{0: nil, 1: {model.NewStore(14, 15, "large")}}
	v := view(cfg, m, 0, stores, 150)
	p := &AllocSample{Seed: 4, Samples: 30}
	got := run(t, p, v)
	if len(got) != 1 {
		t.Fatalf("got %v", got)
	}

	// Re-draw the same samples and score them the way the game will.
	policy := allocation.ClosestStore{MaxDistance: 6}
	score := func(s model.Store) float64 {
		trial := stores.Clone()
		trial[0] = []model.Store{s}
		return m.WeightedSum(policy.Allocate(m, trial, cfg.Stores)[0])
	}
	rng := turnRand(p.Seed, v)
	best := -1.0
	for i := 0; i < p.Samples; i++ {
		if sc := score(model.NewStore(rng.Intn(30), rng.Intn(30), got[0].Type)); sc > best {
			best = sc
		}
	}
	if sc := score(got[0]); sc != best {
		t.Fatalf("placed %v scores %v under closest-store, best sample scores %v", got[0], sc, best)
	}
}

func TestAllocSampleRejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig(t, 10, 10)
	cfg.AllocationPolicy = "voronoi"
	m := peakMap(t, 10, 10, 5, 5)
	if err := (&AllocSample{Seed: 1, Samples: 5}).PlaceStores(context.Background(), view(cfg, m, 0, model.StoresByPlayer{0: nil}, 150), &game.Placement{}); err == nil {
		t.Fatalf("expected unknown policy error")
	}
}

func TestWindowDensityMatchesOracle(t *testing.T) {
	cfg := testConfig(t, 50, 50)
	m := peakMap(t, 50, 50, 40, 8)
	p := &WindowDensity{Window: 7, MinDist: 3}
	got := run(t, p, view(cfg, m, 0, model.StoresByPlayer{0: nil}, 150))
	if len(got) != 1 {
		t.Fatalf("got %v", got)
	}
	// The densest 7x7 window must contain the peak.
	r, c := got[0].Pos.Row, got[0].Pos.Col
	if mathx.AbsInt(r-40) > 3 || mathx.AbsInt(c-8) > 3 {
		t.Fatalf("center %v does not cover the peak", got[0].Pos)
	}

	// Larger window than map is clamped rather than failing.
	big := &WindowDensity{Window: 500, MinDist: 3}
	if got := run(t, big, view(cfg, m, 0, model.StoresByPlayer{0: nil}, 150)); len(got) != 1 {
		t.Fatalf("clamped window got %v", got)
	}
}

func TestStrategiesPlayFullGame(t *testing.T) {
	cfg := testConfig(t, 60, 60)
	cfg.Rounds = 3
	var ps []game.Player
	for i, n := range Names() {
		p, err := New(n, int64(i))
		if err != nil {
			t.Fatalf("new %s: %v", n, err)
		}
		ps = append(ps, p)
	}
	g, err := game.New(cfg, ps)
	if err != nil {
		t.Fatalf("game: %v", err)
	}
	res, err := g.Play(context.Background())
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if g.Failures() != 0 || g.Timeouts() != 0 || g.RuleViolations() != 0 {
		t.Fatalf("failures=%d timeouts=%d violations=%d", g.Failures(), g.Timeouts(), g.RuleViolations())
	}
	if len(res.Scores) != len(ps) {
		t.Fatalf("scores=%v", res.Scores)
	}
	if err := game.VerifyHistory(cfg, g.Policy(), g.History().Entries()); err != nil {
		t.Fatalf("verify: %v", err)
	}
}
