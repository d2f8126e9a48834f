package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sitelocation.ai/internal/sim/allocation"
	"sitelocation.ai/internal/sim/game"
)

func TestLoadRepoConfig(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "game.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg, err := tu.GameConfig()
	if err != nil {
		t.Fatalf("game config: %v", err)
	}
	def, err := Defaults().GameConfig()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.Rows != 400 || cfg.Cols != 400 || cfg.Rounds != 10 || cfg.MaxStoresPerRound != 2 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.TurnBudget != 10*time.Second || cfg.Isolation != game.Isolated {
		t.Fatalf("budget=%v isolation=%v", cfg.TurnBudget, cfg.Isolation)
	}
	if cfg.Stores.Digest() != def.Stores.Digest() {
		t.Fatalf("repo store config differs from defaults")
	}
	large, ok := cfg.StoreDef("large")
	if !ok || large.CapitalCost != 100000 || large.Attractiveness != 100 {
		t.Fatalf("large=%+v ok=%v", large, ok)
	}
}

func TestParseFillsOptionalKnobs(t *testing.T) {
	raw := []byte(`
map_size: [20, 30]
population: 500
n_rounds: 2
starting_cash: 100
max_stores_per_round: 1
place_stores_time_s: 0.25
store_config:
  kiosk: {capital_cost: 5, operating_cost: 1, attractiveness: 3, attractiveness_constant: 1}
`)
	tu, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := tu.GameConfig()
	if err != nil {
		t.Fatalf("game config: %v", err)
	}
	if cfg.Rows != 20 || cfg.Cols != 30 {
		t.Fatalf("size=%dx%d", cfg.Rows, cfg.Cols)
	}
	if cfg.TurnBudget != 250*time.Millisecond {
		t.Fatalf("budget=%v", cfg.TurnBudget)
	}
	if cfg.ProfitPerCustomer != 0.5 || cfg.Isolation != game.Isolated {
		t.Fatalf("defaults not applied: profit=%v isolation=%v", cfg.ProfitPerCustomer, cfg.Isolation)
	}
	if cfg.AllocationPolicy != allocation.PolicyAttractiveness || cfg.MaxDistance != allocation.DefaultMaxDistance {
		t.Fatalf("allocation=%s/%d", cfg.AllocationPolicy, cfg.MaxDistance)
	}
}

func TestParseStrictMode(t *testing.T) {
	raw := []byte(`
map_size: [5, 5]
population: 10
n_rounds: 1
starting_cash: 10
max_stores_per_round: 1
place_stores_time_s: 1
ignore_player_exceptions: false
allocation: {policy: closest_store, max_distance: 3}
store_config:
  s: {capital_cost: 1, operating_cost: 0, attractiveness: 1, attractiveness_constant: 0}
`)
	tu, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := tu.GameConfig()
	if err != nil {
		t.Fatalf("game config: %v", err)
	}
	if cfg.Isolation != game.Strict || cfg.AllocationPolicy != allocation.PolicyClosestStore || cfg.MaxDistance != 3 {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestParseRejects(t *testing.T) {
	base := `
population: 10
n_rounds: 1
starting_cash: 10
max_stores_per_round: 1
place_stores_time_s: 1
store_config:
  s: {capital_cost: 1, operating_cost: 0, attractiveness: 1, attractiveness_constant: 1}
`
	cases := []struct {
		name string
		doc  string
	}{
		{"missing map size", base},
		{"zero map size", "map_size: [0, 5]\n" + base},
		{"three dims", "map_size: [5, 5, 5]\n" + base},
		{"unknown key", "map_size: [5, 5]\ncolour: blue\n" + base},
		{"unknown policy", "map_size: [5, 5]\nallocation: {policy: gravity}\n" + base},
		{"no stores", `
map_size: [5, 5]
population: 10
n_rounds: 1
starting_cash: 10
max_stores_per_round: 1
place_stores_time_s: 1
store_config: {}
`},
		{"negative cost", `
map_size: [5, 5]
population: 10
n_rounds: 1
starting_cash: 10
max_stores_per_round: 1
place_stores_time_s: 1
store_config:
  s: {capital_cost: -1, operating_cost: 0, attractiveness: 1, attractiveness_constant: 1}
`},
		{"missing store field", `
map_size: [5, 5]
population: 10
n_rounds: 1
starting_cash: 10
max_stores_per_round: 1
place_stores_time_s: 1
store_config:
  s: {capital_cost: 1, operating_cost: 0}
`},
		{"not yaml", "map_size: [5, 5\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestSchemaErrorIsConfigError(t *testing.T) {
	_, err := Parse([]byte("map_size: [5, 5]\nn_rounds: 0\n"))
	var ce *game.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestValidateWithoutSchema(t *testing.T) {
	tu := Defaults()
	tu.Rounds = 0
	var ce *game.ConfigError
	if err := tu.Validate(); !errors.As(err, &ce) || ce.Field != "n_rounds" {
		t.Fatalf("expected n_rounds error, got %v", err)
	}
	tu = Defaults()
	tu.MapSize = []int{10, -1}
	if _, err := tu.GameConfig(); !errors.As(err, &ce) || ce.Field != "map_size" {
		t.Fatalf("expected map_size error, got %v", err)
	}
}

func TestFromGameConfigRoundTrip(t *testing.T) {
	cfg, err := Defaults().GameConfig()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	back, err := FromGameConfig(cfg).GameConfig()
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if back.Digest() != cfg.Digest() {
		t.Fatalf("digest changed: %s vs %s", back.Digest(), cfg.Digest())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist, got %v", err)
	}
}
