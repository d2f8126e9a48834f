package game

import (
	"context"
	"sync"

	"sitelocation.ai/internal/sim/gridmap"
	"sitelocation.ai/internal/sim/model"
)

// Player is a strategy's decision capability.
//
// PlaceStores commits an ordered candidate list into out; earlier entries have priority when funds or
// the per-round cap run out. Whatever was committed when the call returns, fails or runs out of time
// is what the engine validates. Implementations must honour ctx and must not retain or mutate view.
type Player interface {
	Name() string
	PlaceStores(ctx context.Context, view TurnView, out *Placement) error
}

// TurnView is what a player sees on its turn. Stores is a private copy of every player's stores as of
// the previous completed round; moves made by other players this round are never visible.
type TurnView struct {
	Player model.PlayerID
	Round  int
	Map    *gridmap.Map
	Stores model.StoresByPlayer
	Funds  float64
	Config Config
}

// Own returns the viewing player's stores.
func (v TurnView) Own() []model.Store { return v.Stores[v.Player] }

// Placement collects a player's candidate stores. It is safe for concurrent use and stops accepting
// writes once the engine has taken its contents.
type Placement struct {
	mu     sync.Mutex
	stores []model.Store
	sealed bool
}

// Set replaces the committed candidates. It reports false if the turn is already over.
func (p *Placement) Set(stores ...model.Store) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sealed {
		return false
	}
	p.stores = append(p.stores[:0:0], stores...)
	return true
}

// Add appends candidates. It reports false if the turn is already over.
func (p *Placement) Add(stores ...model.Store) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sealed {
		return false
	}
	p.stores = append(p.stores, stores...)
	return true
}

// Stores returns a copy of the committed candidates.
func (p *Placement) Stores() []model.Store {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Store, len(p.stores))
	copy(out, p.stores)
	return out
}

func (p *Placement) seal() []model.Store {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sealed = true
	out := make([]model.Store, len(p.stores))
	copy(out, p.stores)
	return out
}

// PlayerFunc adapts a function to the Player interface.
type PlayerFunc struct {
	Label string
	Fn    func(ctx context.Context, view TurnView, out *Placement) error
}

func (p PlayerFunc) Name() string { return p.Label }

func (p PlayerFunc) PlaceStores(ctx context.Context, view TurnView, out *Placement) error {
	if p.Fn == nil {
		return nil
	}
	return p.Fn(ctx, view, out)
}
