package game

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"time"

	"sitelocation.ai/internal/sim/allocation"
	"sitelocation.ai/internal/sim/catalogs"
)

// IsolationMode selects what happens when a player's turn fails.
type IsolationMode int

const (
	// Isolated keeps whatever the player committed before failing and carries on with the round.
	Isolated IsolationMode = iota
	// Strict aborts the game on the first failing turn.
	Strict
)

func (m IsolationMode) String() string {
	if m == Strict {
		return "strict"
	}
	return "isolated"
}

// Config is built once per game and passed by value; nothing in the engine mutates it.
type Config struct {
	Rows       int
	Cols       int
	Population float64
	Seed       int64

	Rounds            int
	StartingFunds     float64
	ProfitPerCustomer float64
	MaxStoresPerRound int

	TurnBudget    time.Duration
	Isolation     IsolationMode
	ParallelTurns bool

	AllocationPolicy string
	MaxDistance      int

	Stores catalogs.StoreCatalog
}

func (c Config) Validate() error {
	switch {
	case c.Rows <= 0 || c.Cols <= 0:
		return &ConfigError{Field: "map_size", Reason: "dimensions must be > 0"}
	case c.Population < 0 || math.IsNaN(c.Population) || math.IsInf(c.Population, 0):
		return &ConfigError{Field: "population", Reason: "must be a finite number >= 0"}
	case c.Rounds <= 0:
		return &ConfigError{Field: "n_rounds", Reason: "must be > 0"}
	case math.IsNaN(c.StartingFunds) || math.IsInf(c.StartingFunds, 0):
		return &ConfigError{Field: "starting_cash", Reason: "must be finite"}
	case c.ProfitPerCustomer < 0 || math.IsNaN(c.ProfitPerCustomer) || math.IsInf(c.ProfitPerCustomer, 0):
		return &ConfigError{Field: "profit_per_customer", Reason: "must be a finite number >= 0"}
	case c.MaxStoresPerRound < 0:
		return &ConfigError{Field: "max_stores_per_round", Reason: "must be >= 0"}
	case c.TurnBudget <= 0:
		return &ConfigError{Field: "place_stores_time_s", Reason: "must be > 0"}
	case c.Isolation != Isolated && c.Isolation != Strict:
		return &ConfigError{Field: "ignore_player_exceptions", Reason: "unknown isolation mode"}
	case c.Stores.Len() == 0:
		return &ConfigError{Field: "store_config", Reason: "at least one store type is required"}
	}
	if _, err := allocation.ByName(c.AllocationPolicy, c.MaxDistance); err != nil {
		return &ConfigError{Field: "allocation.policy", Reason: err.Error()}
	}
	return nil
}

// StoreDef looks up a store type.
func (c Config) StoreDef(storeType string) (catalogs.StoreDef, bool) {
	return c.Stores.Lookup(storeType)
}

// InBounds reports whether (row, col) lies on the map.
func (c Config) InBounds(row, col int) bool {
	return row >= 0 && row < c.Rows && col >= 0 && col < c.Cols
}

// canonicalConfig is the stable JSON form used for digests and persistence.
type canonicalConfig struct {
	MapSize           [2]int              `json:"map_size"`
	Population        float64             `json:"population"`
	Seed              int64               `json:"seed"`
	Rounds            int                 `json:"n_rounds"`
	StartingFunds     float64             `json:"starting_cash"`
	ProfitPerCustomer float64             `json:"profit_per_customer"`
	MaxStoresPerRound int                 `json:"max_stores_per_round"`
	TurnBudgetMS      int64               `json:"place_stores_time_ms"`
	Isolation         string              `json:"isolation"`
	ParallelTurns     bool                `json:"parallel_turns"`
	AllocationPolicy  string              `json:"allocation_policy"`
	MaxDistance       int                 `json:"max_distance"`
	Stores            []catalogs.StoreDef `json:"stores"`
}

// CanonicalJSON returns the config as stable JSON (store types sorted by id).
func (c Config) CanonicalJSON() []byte {
	b, _ := json.Marshal(canonicalConfig{
		MapSize:           [2]int{c.Rows, c.Cols},
		Population:        c.Population,
		Seed:              c.Seed,
		Rounds:            c.Rounds,
		StartingFunds:     c.StartingFunds,
		ProfitPerCustomer: c.ProfitPerCustomer,
		MaxStoresPerRound: c.MaxStoresPerRound,
		TurnBudgetMS:      c.TurnBudget.Milliseconds(),
		Isolation:         c.Isolation.String(),
		ParallelTurns:     c.ParallelTurns,
		AllocationPolicy:  c.AllocationPolicy,
		MaxDistance:       c.MaxDistance,
		Stores:            c.Stores.Defs(),
	})
	return b
}

func (c Config) Digest() string {
	sum := sha256.Sum256(c.CanonicalJSON())
	return hex.EncodeToString(sum[:])
}
