package players

import (
	"context"

	"sitelocation.ai/internal/sim/game"
	"sitelocation.ai/internal/sim/model"
)

// Nothing never builds.
type Nothing struct{}

func (Nothing) Name() string { return "nothing" }

func (Nothing) PlaceStores(ctx context.Context, view game.TurnView, out *game.Placement) error {
	return nil
}

// Random fills the per-round cap with uniformly random positions and store types.
type Random struct {
	Seed int64
}

func (*Random) Name() string { return "random" }

func (p *Random) PlaceStores(ctx context.Context, view game.TurnView, out *game.Placement) error {
	rng := turnRand(p.Seed, view)
	types := view.Config.Stores.Types()
	for i := 0; i < view.Config.MaxStoresPerRound; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		out.Add(model.NewStore(
			rng.Intn(view.Config.Rows),
			rng.Intn(view.Config.Cols),
			types[rng.Intn(len(types))],
		))
	}
	return nil
}

// Copycat builds a copy of a random opponent store at a position it does not already occupy.
type Copycat struct {
	Seed int64
}

func (*Copycat) Name() string { return "copycat" }

func (p *Copycat) PlaceStores(ctx context.Context, view game.TurnView, out *game.Placement) error {
	own := map[model.Pos]bool{}
	for _, s := range view.Own() {
		own[s.Pos] = true
	}
	var targets []model.Store
	for _, id := range view.Stores.Players() {
		if id == view.Player {
			continue
		}
		for _, s := range view.Stores[id] {
			if !own[s.Pos] {
				targets = append(targets, s)
			}
		}
	}
	if len(targets) == 0 {
		return nil
	}
	rng := turnRand(p.Seed, view)
	out.Set(targets[rng.Intn(len(targets))])
	return nil
}
