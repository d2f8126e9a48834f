package allocation

import (
	"math"

	"sitelocation.ai/internal/sim/catalogs"
	"sitelocation.ai/internal/sim/gridmap"
	"sitelocation.ai/internal/sim/mathx"
	"sitelocation.ai/internal/sim/model"
)

// ClosestStore gives a whole cell to the player owning the nearest store by Manhattan distance.
// Ties and cells farther than MaxDistance from every store go to nobody.
type ClosestStore struct {
	MaxDistance int
}

func (ClosestStore) Name() string { return PolicyClosestStore }

func (p ClosestStore) Allocate(m *gridmap.Map, stores model.StoresByPlayer, _ catalogs.StoreCatalog) Allocation {
	rows, cols := m.Size()
	ids := stores.Players()

	nearest := make([][]int, len(ids))
	for i, id := range ids {
		nearest[i] = nearestDistances(rows, cols, stores[id])
	}

	out := make(Allocation, len(ids))
	fields := make([]*gridmap.Field, len(ids))
	for i, id := range ids {
		fields[i] = gridmap.NewField(rows, cols)
		out[id] = fields[i]
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			k := r*cols + c
			winner, bestD, tied := -1, math.MaxInt, false
			for i := range ids {
				d := nearest[i][k]
				switch {
				case d < bestD:
					winner, bestD, tied = i, d, false
				case d == bestD:
					tied = true
				}
			}
			if winner < 0 || tied || bestD == math.MaxInt || bestD > p.MaxDistance {
				continue
			}
			fields[winner].Set(r, c, 1)
		}
	}
	return out
}

// nearestDistances is the row-major Manhattan distance to the nearest store; MaxInt when list is empty.
func nearestDistances(rows, cols int, list []model.Store) []int {
	out := make([]int, rows*cols)
	for i := range out {
		out[i] = math.MaxInt
	}
	for _, s := range list {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				d := mathx.Manhattan(r, c, s.Pos.Row, s.Pos.Col)
				if d < out[r*cols+c] {
					out[r*cols+c] = d
				}
			}
		}
	}
	return out
}
