package game

import (
	"sort"

	"sitelocation.ai/internal/sim/allocation"
	"sitelocation.ai/internal/sim/gridmap"
	"sitelocation.ai/internal/sim/model"
)

// Settlement is the outcome of closing a round.
type Settlement struct {
	Stores     model.StoresByPlayer
	Allocation allocation.Allocation
	Revenue    map[model.PlayerID]float64
	Cost       map[model.PlayerID]float64
	Funds      map[model.PlayerID]float64
}

// Settle aggregates newly placed stores onto each player's cumulative list, allocates the population,
// and books revenue and cost against the previous funds. The player set is the key set of prevFunds.
// It is a pure function of its inputs.
func Settle(cfg Config, policy allocation.Policy, m *gridmap.Map, prevStores model.StoresByPlayer, prevFunds map[model.PlayerID]float64, placed map[model.PlayerID][]model.Store) Settlement {
	ids := sortedIDs(prevFunds)

	stores := make(model.StoresByPlayer, len(ids))
	for _, id := range ids {
		prev := prevStores[id]
		all := make([]model.Store, 0, len(prev)+len(placed[id]))
		all = append(all, prev...)
		all = append(all, placed[id]...)
		stores[id] = all
	}

	alloc := policy.Allocate(m, stores, cfg.Stores)

	s := Settlement{
		Stores:     stores,
		Allocation: alloc,
		Revenue:    make(map[model.PlayerID]float64, len(ids)),
		Cost:       make(map[model.PlayerID]float64, len(ids)),
		Funds:      make(map[model.PlayerID]float64, len(ids)),
	}
	for _, id := range ids {
		revenue := m.WeightedSum(alloc[id]) * cfg.ProfitPerCustomer
		cost := StoreCost(cfg, placed[id], stores[id])
		s.Revenue[id] = revenue
		s.Cost[id] = cost
		s.Funds[id] = prevFunds[id] + revenue - cost
	}
	return s
}

func sortedIDs[V any](m map[model.PlayerID]V) []model.PlayerID {
	ids := make([]model.PlayerID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
