package game

import "sitelocation.ai/internal/sim/model"

// ValidateStores filters a player's ordered candidates against the round's rules.
//
// Candidates are accepted greedily in order while the per-round cap holds and the running balance
// (funds minus the capital cost of stores accepted so far) stays non-negative. The first candidate that
// cannot be afforded ends acceptance, as does reaching the cap; the remainder is dropped silently.
// An unknown store type or an off-map position is a rule violation and voids the whole turn.
func ValidateStores(cfg Config, player model.PlayerID, round int, candidates []model.Store, funds float64) ([]model.Store, float64, error) {
	accepted := make([]model.Store, 0, len(candidates))
	running := funds
	capital := 0.0
	for i, s := range candidates {
		if len(accepted) >= cfg.MaxStoresPerRound {
			break
		}
		def, ok := cfg.StoreDef(s.Type)
		if !ok {
			return nil, 0, &RuleViolationError{Player: player, Round: round, Index: i, Code: CodeRuleStoreType, Store: s}
		}
		if !cfg.InBounds(s.Pos.Row, s.Pos.Col) {
			return nil, 0, &RuleViolationError{Player: player, Round: round, Index: i, Code: CodeRuleOutOfBounds, Store: s}
		}
		if running-def.CapitalCost < 0 {
			break
		}
		running -= def.CapitalCost
		capital += def.CapitalCost
		accepted = append(accepted, s)
	}
	return accepted, capital, nil
}

// StoreCost is the capital cost of building placed plus the operating cost of every store in all.
func StoreCost(cfg Config, placed, all []model.Store) float64 {
	cost := 0.0
	for _, s := range placed {
		if def, ok := cfg.StoreDef(s.Type); ok {
			cost += def.CapitalCost
		}
	}
	for _, s := range all {
		if def, ok := cfg.StoreDef(s.Type); ok {
			cost += def.OperatingCost
		}
	}
	return cost
}
