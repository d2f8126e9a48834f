// Package tuning loads the game configuration file and turns it into an engine config.
package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"sitelocation.ai/internal/sim/allocation"
	"sitelocation.ai/internal/sim/catalogs"
	"sitelocation.ai/internal/sim/game"
)

//go:embed game.schema.json
var schemaJSON string

type Tuning struct {
	MapSize           []int   `yaml:"map_size" json:"map_size"`
	Population        float64 `yaml:"population" json:"population"`
	Seed              int64   `yaml:"seed" json:"seed"`
	Rounds            int     `yaml:"n_rounds" json:"n_rounds"`
	StartingCash      float64 `yaml:"starting_cash" json:"starting_cash"`
	ProfitPerCustomer float64 `yaml:"profit_per_customer" json:"profit_per_customer"`
	MaxStoresPerRound int     `yaml:"max_stores_per_round" json:"max_stores_per_round"`
	PlaceStoresTimeS  float64 `yaml:"place_stores_time_s" json:"place_stores_time_s"`
	IgnoreExceptions  bool    `yaml:"ignore_player_exceptions" json:"ignore_player_exceptions"`
	ParallelTurns     bool    `yaml:"parallel_turns" json:"parallel_turns"`

	Allocation Allocation `yaml:"allocation" json:"allocation"`

	StoreConfig map[string]StoreConfig `yaml:"store_config" json:"store_config"`
}

type Allocation struct {
	Policy      string `yaml:"policy" json:"policy,omitempty"`
	MaxDistance int    `yaml:"max_distance" json:"max_distance,omitempty"`
}

type StoreConfig struct {
	CapitalCost            float64 `yaml:"capital_cost" json:"capital_cost"`
	OperatingCost          float64 `yaml:"operating_cost" json:"operating_cost"`
	Attractiveness         float64 `yaml:"attractiveness" json:"attractiveness"`
	AttractivenessConstant float64 `yaml:"attractiveness_constant" json:"attractiveness_constant"`
}

// Defaults returns the stock game: a 400x400 map, ten rounds and three store sizes.
func Defaults() Tuning {
	return Tuning{
		MapSize:           []int{400, 400},
		Population:        1e6,
		Rounds:            10,
		StartingCash:      70000,
		ProfitPerCustomer: 0.5,
		MaxStoresPerRound: 2,
		PlaceStoresTimeS:  10,
		IgnoreExceptions:  true,
		Allocation:        Allocation{Policy: allocation.PolicyAttractiveness, MaxDistance: allocation.DefaultMaxDistance},
		StoreConfig: map[string]StoreConfig{
			"small":  {CapitalCost: 10000, OperatingCost: 1000, Attractiveness: 25, AttractivenessConstant: 1},
			"medium": {CapitalCost: 50000, OperatingCost: 2000, Attractiveness: 50, AttractivenessConstant: 1},
			"large":  {CapitalCost: 100000, OperatingCost: 3000, Attractiveness: 100, AttractivenessConstant: 1},
		},
	}
}

// Load reads a yaml config, checks it against the embedded schema and then semantically.
// Optional knobs missing from the file take their defaults; required fields never do.
func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tuning, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Tuning{}, fmt.Errorf("game config: %w", err)
	}
	if err := validateSchema(doc); err != nil {
		return Tuning{}, err
	}

	// Keys absent from the file keep these values.
	t := Tuning{
		ProfitPerCustomer: 0.5,
		IgnoreExceptions:  true,
		Allocation:        Allocation{Policy: allocation.PolicyAttractiveness, MaxDistance: allocation.DefaultMaxDistance},
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, fmt.Errorf("game config: %w", err)
	}
	if t.Allocation.Policy == "" {
		t.Allocation.Policy = allocation.PolicyAttractiveness
	}
	if t.Allocation.MaxDistance == 0 {
		t.Allocation.MaxDistance = allocation.DefaultMaxDistance
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

var (
	schemaOnce sync.Once
	schemaVal  *jsonschema.Schema
	schemaErr  error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemaVal, schemaErr = jsonschema.CompileString("game.schema.json", schemaJSON)
	})
	return schemaVal, schemaErr
}

// validateSchema round-trips the yaml document through JSON so the validator sees JSON types.
func validateSchema(doc any) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("game config schema: %w", err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("game config: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("game config: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return &game.ConfigError{Field: "schema", Reason: err.Error()}
	}
	return nil
}

func (t Tuning) Validate() error {
	if len(t.MapSize) != 2 || t.MapSize[0] <= 0 || t.MapSize[1] <= 0 {
		return &game.ConfigError{Field: "map_size", Reason: "must be two positive integers"}
	}
	if t.Population < 0 || math.IsNaN(t.Population) || math.IsInf(t.Population, 0) {
		return &game.ConfigError{Field: "population", Reason: "must be a finite number >= 0"}
	}
	if t.Rounds <= 0 {
		return &game.ConfigError{Field: "n_rounds", Reason: "must be > 0"}
	}
	if t.MaxStoresPerRound < 0 {
		return &game.ConfigError{Field: "max_stores_per_round", Reason: "must be >= 0"}
	}
	if t.PlaceStoresTimeS <= 0 {
		return &game.ConfigError{Field: "place_stores_time_s", Reason: "must be > 0"}
	}
	if len(t.StoreConfig) == 0 {
		return &game.ConfigError{Field: "store_config", Reason: "at least one store type is required"}
	}
	if _, err := t.Catalog(); err != nil {
		return &game.ConfigError{Field: "store_config", Reason: err.Error()}
	}
	if _, err := allocation.ByName(t.Allocation.Policy, t.Allocation.MaxDistance); err != nil {
		return &game.ConfigError{Field: "allocation.policy", Reason: err.Error()}
	}
	return nil
}

// Catalog builds the store catalog from store_config.
func (t Tuning) Catalog() (catalogs.StoreCatalog, error) {
	ids := make([]string, 0, len(t.StoreConfig))
	for id := range t.StoreConfig {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	defs := make([]catalogs.StoreDef, 0, len(ids))
	for _, id := range ids {
		sc := t.StoreConfig[id]
		defs = append(defs, catalogs.StoreDef{
			ID:                     id,
			CapitalCost:            sc.CapitalCost,
			OperatingCost:          sc.OperatingCost,
			Attractiveness:         sc.Attractiveness,
			AttractivenessConstant: sc.AttractivenessConstant,
		})
	}
	return catalogs.NewStoreCatalog(defs)
}

// GameConfig builds the immutable engine config.
func (t Tuning) GameConfig() (game.Config, error) {
	if err := t.Validate(); err != nil {
		return game.Config{}, err
	}
	cat, err := t.Catalog()
	if err != nil {
		return game.Config{}, &game.ConfigError{Field: "store_config", Reason: err.Error()}
	}
	isolation := game.Isolated
	if !t.IgnoreExceptions {
		isolation = game.Strict
	}
	cfg := game.Config{
		Rows:              t.MapSize[0],
		Cols:              t.MapSize[1],
		Population:        t.Population,
		Seed:              t.Seed,
		Rounds:            t.Rounds,
		StartingFunds:     t.StartingCash,
		ProfitPerCustomer: t.ProfitPerCustomer,
		MaxStoresPerRound: t.MaxStoresPerRound,
		TurnBudget:        time.Duration(t.PlaceStoresTimeS * float64(time.Second)),
		Isolation:         isolation,
		ParallelTurns:     t.ParallelTurns,
		AllocationPolicy:  t.Allocation.Policy,
		MaxDistance:       t.Allocation.MaxDistance,
		Stores:            cat,
	}
	return cfg, cfg.Validate()
}

// FromGameConfig is the inverse of GameConfig, used when a recorded config is written back out.
func FromGameConfig(cfg game.Config) Tuning {
	t := Tuning{
		MapSize:           []int{cfg.Rows, cfg.Cols},
		Population:        cfg.Population,
		Seed:              cfg.Seed,
		Rounds:            cfg.Rounds,
		StartingCash:      cfg.StartingFunds,
		ProfitPerCustomer: cfg.ProfitPerCustomer,
		MaxStoresPerRound: cfg.MaxStoresPerRound,
		PlaceStoresTimeS:  cfg.TurnBudget.Seconds(),
		IgnoreExceptions:  cfg.Isolation == game.Isolated,
		ParallelTurns:     cfg.ParallelTurns,
		Allocation:        Allocation{Policy: cfg.AllocationPolicy, MaxDistance: cfg.MaxDistance},
		StoreConfig:       map[string]StoreConfig{},
	}
	for _, d := range cfg.Stores.Defs() {
		t.StoreConfig[d.ID] = StoreConfig{
			CapitalCost:            d.CapitalCost,
			OperatingCost:          d.OperatingCost,
			Attractiveness:         d.Attractiveness,
			AttractivenessConstant: d.AttractivenessConstant,
		}
	}
	return t
}
