// Package players holds the stock strategies the game can be run with.
package players

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"sitelocation.ai/internal/sim/game"
)

// Factory builds a player. seed makes randomized strategies reproducible.
type Factory func(seed int64) game.Player

var registry = map[string]Factory{
	"nothing":        func(int64) game.Player { return Nothing{} },
	"random":         func(seed int64) game.Player { return &Random{Seed: seed} },
	"max_density":    func(int64) game.Player { return &MaxDensity{MinDist: DefaultMinDist} },
	"copycat":        func(seed int64) game.Player { return &Copycat{Seed: seed} },
	"alloc_sample":   func(seed int64) game.Player { return &AllocSample{Seed: seed, Samples: DefaultSamples} },
	"window_density": func(int64) game.Player { return &WindowDensity{Window: DefaultWindow, MinDist: DefaultMinDist} },
}

// Names returns the registered strategy names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New builds the strategy registered under name.
func New(name string, seed int64) (game.Player, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown player %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return f(seed), nil
}

// FromList builds one player per comma-separated name. Player i is seeded with seed+i.
func FromList(list string, seed int64) ([]game.Player, error) {
	var out []game.Player
	for i, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		p, err := New(name, seed+int64(i))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no players in %q", list)
	}
	return out, nil
}

// turnRand gives each (seed, player, round) its own source so a turn that overran its budget cannot
// race with the next one.
func turnRand(seed int64, view game.TurnView) *rand.Rand {
	s := seed*1_000_003 + int64(view.Player)*7919 + int64(view.Round)
	return rand.New(rand.NewSource(s))
}
