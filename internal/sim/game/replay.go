package game

import (
	"errors"
	"fmt"

	"sitelocation.ai/internal/sim/allocation"
	"sitelocation.ai/internal/sim/gridmap"
	"sitelocation.ai/internal/sim/model"
)

var ErrReplayMismatch = errors.New("replay mismatch")

// SeedEntry builds the round-0 entry: every player starts with the configured funds and no stores.
func SeedEntry(cfg Config, policy allocation.Policy, m *gridmap.Map, players int) *Entry {
	stores := make(model.StoresByPlayer, players)
	funds := make(map[model.PlayerID]float64, players)
	zero := make(map[model.PlayerID]float64, players)
	for i := 0; i < players; i++ {
		id := model.PlayerID(i)
		stores[id] = []model.Store{}
		funds[id] = cfg.StartingFunds
		zero[id] = 0
	}
	st := Settlement{
		Stores:     stores,
		Allocation: policy.Allocate(m, stores, cfg.Stores),
		Revenue:    zero,
		Cost:       cloneFloats(zero),
		Funds:      funds,
	}
	return newEntry(0, m, st, map[model.PlayerID][]model.Store{}, map[model.PlayerID]TurnReport{})
}

// Step settles the round after prev from already accepted placements. It is the engine's round
// without the turns, used to rebuild a game from a round log.
func Step(cfg Config, policy allocation.Policy, prev *Entry, placed map[model.PlayerID][]model.Store) (*Entry, error) {
	round := prev.round + 1
	accepted := make(map[model.PlayerID][]model.Store, len(prev.funds))
	for _, id := range sortedIDs(prev.funds) {
		got, _, err := ValidateStores(cfg, id, round, placed[id], prev.funds[id])
		if err != nil {
			return nil, err
		}
		if len(got) != len(placed[id]) {
			return nil, fmt.Errorf("round %d player %d: only %d of %d stores are affordable", round, id, len(got), len(placed[id]))
		}
		accepted[id] = got
	}
	for id := range placed {
		if _, ok := prev.funds[id]; !ok {
			return nil, fmt.Errorf("round %d: unknown player %d", round, id)
		}
	}
	m := prev.m.Clone()
	st := Settle(cfg, policy, m, prev.stores, prev.funds, accepted)
	return newEntry(round, m, st, accepted, map[model.PlayerID]TurnReport{}), nil
}

func newEntry(round int, m *gridmap.Map, st Settlement, placed map[model.PlayerID][]model.Store, turns map[model.PlayerID]TurnReport) *Entry {
	e := &Entry{
		round:      round,
		m:          m,
		stores:     st.Stores,
		placed:     placed,
		allocation: st.Allocation,
		funds:      st.Funds,
		revenue:    st.Revenue,
		cost:       st.Cost,
		turns:      turns,
	}
	e.digest = e.computeDigest()
	return e
}

// Verify re-runs validation, allocation and scoring for cur from its predecessor prev and the stores
// recorded as placed in cur. It returns ErrReplayMismatch (wrapped) on the first difference.
func Verify(cfg Config, policy allocation.Policy, prev, cur *Entry) error {
	if cur.round != prev.round+1 {
		return fmt.Errorf("%w: entry %d does not follow %d", ErrReplayMismatch, cur.round, prev.round)
	}
	if prev.m == nil || cur.m == nil || !prev.m.Distribution().Equal(cur.m.Distribution()) {
		return fmt.Errorf("%w: round %d: map snapshot differs from previous round", ErrReplayMismatch, cur.round)
	}

	placed := make(map[model.PlayerID][]model.Store, len(prev.funds))
	for _, id := range sortedIDs(prev.funds) {
		recorded := cur.placed[id]
		accepted, _, err := ValidateStores(cfg, id, cur.round, recorded, prev.funds[id])
		if err != nil {
			return fmt.Errorf("%w: round %d: %w", ErrReplayMismatch, cur.round, err)
		}
		if len(accepted) != len(recorded) {
			return fmt.Errorf("%w: round %d player %d: %d of %d recorded stores accepted", ErrReplayMismatch, cur.round, id, len(accepted), len(recorded))
		}
		placed[id] = accepted
	}

	st := Settle(cfg, policy, cur.m, prev.stores, prev.funds, placed)
	for _, id := range sortedIDs(st.Funds) {
		if got, want := len(st.Stores[id]), len(cur.stores[id]); got != want {
			return fmt.Errorf("%w: round %d player %d: stores=%d recorded=%d", ErrReplayMismatch, cur.round, id, got, want)
		}
		for i, s := range st.Stores[id] {
			if s != cur.stores[id][i] {
				return fmt.Errorf("%w: round %d player %d: store %d is %v %s, recorded %v %s", ErrReplayMismatch, cur.round, id, i, s.Pos, s.Type, cur.stores[id][i].Pos, cur.stores[id][i].Type)
			}
		}
		if !st.Allocation[id].Equal(cur.allocation[id]) {
			return fmt.Errorf("%w: round %d player %d: allocation differs", ErrReplayMismatch, cur.round, id)
		}
		if st.Funds[id] != cur.funds[id] {
			return fmt.Errorf("%w: round %d player %d: funds=%v recorded=%v", ErrReplayMismatch, cur.round, id, st.Funds[id], cur.funds[id])
		}
	}

	rebuilt := newEntry(cur.round, cur.m, st, placed, nil)
	if d := rebuilt.digest; d != cur.digest {
		return fmt.Errorf("%w: round %d: digest=%s recorded=%s", ErrReplayMismatch, cur.round, d, cur.digest)
	}
	return nil
}

// VerifyHistory checks every round of a recorded history in order.
func VerifyHistory(cfg Config, policy allocation.Policy, entries []*Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: empty history", ErrReplayMismatch)
	}
	if d := entries[0].computeDigest(); d != entries[0].digest {
		return fmt.Errorf("%w: round 0: digest=%s recorded=%s", ErrReplayMismatch, d, entries[0].digest)
	}
	for i := 1; i < len(entries); i++ {
		if err := Verify(cfg, policy, entries[i-1], entries[i]); err != nil {
			return err
		}
	}
	return nil
}
