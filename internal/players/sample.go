package players

import (
	"context"

	"sitelocation.ai/internal/sim/allocation"
	"sitelocation.ai/internal/sim/game"
	"sitelocation.ai/internal/sim/model"
)

const DefaultSamples = 100

// AllocSample tries Samples random positions for its largest affordable store and builds at the one
// that would capture the most population under the game's allocation policy. The best candidate so far
// is committed after every sample, so running out of time still leaves a placement.
type AllocSample struct {
	Seed    int64
	Samples int
}

func (*AllocSample) Name() string { return "alloc_sample" }

func (p *AllocSample) PlaceStores(ctx context.Context, view game.TurnView, out *game.Placement) error {
	def, ok := view.Config.Stores.LargestAffordable(view.Funds)
	if !ok || view.Config.MaxStoresPerRound == 0 {
		return nil
	}
	rng := turnRand(p.Seed, view)
	m := view.Map
	policy, err := allocation.ByName(view.Config.AllocationPolicy, view.Config.MaxDistance)
	if err != nil {
		return err
	}

	stores := view.Stores.Clone()
	own := stores[view.Player]
	best := -1.0
	var ties []model.Store
	for i := 0; i < p.Samples; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		cand := model.NewStore(rng.Intn(m.Rows()), rng.Intn(m.Cols()), def.ID)
		trial := make([]model.Store, len(own), len(own)+1)
		copy(trial, own)
		stores[view.Player] = append(trial, cand)

		alloc := policy.Allocate(m, stores, view.Config.Stores)
		score := m.WeightedSum(alloc[view.Player])
		switch {
		case score > best:
			best = score
			ties = append(ties[:0], cand)
			out.Set(cand)
		case score == best:
			ties = append(ties, cand)
		}
	}
	if len(ties) > 1 {
		out.Set(ties[rng.Intn(len(ties))])
	}
	return nil
}
