package allocation

import (
	"math"

	"sitelocation.ai/internal/sim/catalogs"
	"sitelocation.ai/internal/sim/gridmap"
	"sitelocation.ai/internal/sim/mathx"
	"sitelocation.ai/internal/sim/model"
)

// Attractiveness splits each cell between players in proportion to the attractiveness of their single
// best store reaching it:
//
//	attractiveness / max(distance, 1) - attractiveness_constant, clamped at zero
//
// Stores of one player do not stack. Cells where every player scores zero are allocated to nobody.
type Attractiveness struct{}

func (Attractiveness) Name() string { return PolicyAttractiveness }

func (Attractiveness) Allocate(m *gridmap.Map, stores model.StoresByPlayer, cat catalogs.StoreCatalog) Allocation {
	rows, cols := m.Size()
	ids := stores.Players()

	best := make(map[model.PlayerID]*gridmap.Field, len(ids))
	total := gridmap.NewField(rows, cols)
	for _, id := range ids {
		b := BestAttractiveness(rows, cols, stores[id], cat)
		best[id] = b
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				total.Set(r, c, total.At(r, c)+b.At(r, c))
			}
		}
	}

	out := make(Allocation, len(ids))
	for _, id := range ids {
		b := best[id]
		f := gridmap.NewField(rows, cols)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				t := total.At(r, c)
				if t == 0 {
					continue
				}
				f.Set(r, c, b.At(r, c)/t)
			}
		}
		out[id] = f
	}
	return out
}

// BestAttractiveness returns, per cell, the attractiveness of the best store in list.
// Unknown store types contribute nothing.
func BestAttractiveness(rows, cols int, list []model.Store, cat catalogs.StoreCatalog) *gridmap.Field {
	f := gridmap.NewField(rows, cols)
	for _, s := range list {
		def, ok := cat.Lookup(s.Type)
		if !ok {
			continue
		}
		r0, r1, c0, c1 := 0, rows-1, 0, cols-1
		if reach := def.Reach(); !math.IsInf(reach, 1) {
			rad := int(math.Ceil(reach))
			r0 = mathx.MaxInt(r0, s.Pos.Row-rad)
			r1 = mathx.MinInt(r1, s.Pos.Row+rad)
			c0 = mathx.MaxInt(c0, s.Pos.Col-rad)
			c1 = mathx.MinInt(c1, s.Pos.Col+rad)
		}
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				d := mathx.Euclid(r, c, s.Pos.Row, s.Pos.Col)
				a := def.Attractiveness/math.Max(d, 1) - def.AttractivenessConstant
				if a > f.At(r, c) {
					f.Set(r, c, a)
				}
			}
		}
	}
	return f
}
