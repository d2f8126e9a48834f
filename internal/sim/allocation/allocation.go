// Package allocation maps store placements onto per-player fractions of the population at every cell.
//
// Policies are pure: the result depends only on the map size, the store set and the catalog.
// Players are always processed in ascending id order so floating point sums are reproducible.
package allocation

import (
	"fmt"
	"strings"

	"sitelocation.ai/internal/sim/catalogs"
	"sitelocation.ai/internal/sim/gridmap"
	"sitelocation.ai/internal/sim/model"
)

const (
	PolicyAttractiveness = "attractiveness"
	PolicyClosestStore   = "closest_store"

	DefaultMaxDistance = 50
)

// Allocation is the fraction of each cell's population attributed to each player.
type Allocation map[model.PlayerID]*gridmap.Field

// Clone deep-copies every field.
func (a Allocation) Clone() Allocation {
	out := make(Allocation, len(a))
	for id, f := range a {
		if f != nil {
			out[id] = f.Clone()
		}
	}
	return out
}

type Policy interface {
	Name() string
	Allocate(m *gridmap.Map, stores model.StoresByPlayer, cat catalogs.StoreCatalog) Allocation
}

// ByName returns the policy configured under name. maxDistance only applies to the closest-store policy;
// values <= 0 select DefaultMaxDistance.
func ByName(name string, maxDistance int) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyAttractiveness:
		return Attractiveness{}, nil
	case PolicyClosestStore:
		if maxDistance <= 0 {
			maxDistance = DefaultMaxDistance
		}
		return ClosestStore{MaxDistance: maxDistance}, nil
	default:
		return nil, fmt.Errorf("unknown allocation policy %q", name)
	}
}

// Share returns the fraction of the total population allocated to a player.
func Share(m *gridmap.Map, field *gridmap.Field) float64 {
	if m == nil || field == nil || m.Population() <= 0 {
		return 0
	}
	return m.WeightedSum(field) / m.Population()
}
