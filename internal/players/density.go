package players

import (
	"context"
	"sort"

	"sitelocation.ai/internal/sim/game"
	"sitelocation.ai/internal/sim/mathx"
	"sitelocation.ai/internal/sim/model"
)

const (
	DefaultMinDist = 50
	DefaultWindow  = 60
)

// MaxDensity builds the largest affordable store on the densest cell that is at least MinDist away
// from every existing store.
type MaxDensity struct {
	MinDist float64
}

func (*MaxDensity) Name() string { return "max_density" }

func (p *MaxDensity) PlaceStores(ctx context.Context, view game.TurnView, out *game.Placement) error {
	def, ok := view.Config.Stores.LargestAffordable(view.Funds)
	if !ok || view.Config.MaxStoresPerRound == 0 {
		return nil
	}
	m := view.Map
	rows, cols := m.Size()
	cells := make([]int, rows*cols)
	for i := range cells {
		cells[i] = i
	}
	sort.SliceStable(cells, func(i, j int) bool {
		return m.At(cells[i]/cols, cells[i]%cols) > m.At(cells[j]/cols, cells[j]%cols)
	})

	existing := allPositions(view.Stores)
	for n, cell := range cells {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		r, c := cell/cols, cell%cols
		if farFrom(r, c, existing, p.MinDist) {
			out.Set(model.NewStore(r, c, def.ID))
			return nil
		}
	}
	return nil
}

// WindowDensity builds at the center of the densest Window x Window block whose center is at least
// MinDist away from every opponent store.
type WindowDensity struct {
	Window  int
	MinDist float64
}

func (*WindowDensity) Name() string { return "window_density" }

func (p *WindowDensity) PlaceStores(ctx context.Context, view game.TurnView, out *game.Placement) error {
	def, ok := view.Config.Stores.LargestAffordable(view.Funds)
	if !ok || view.Config.MaxStoresPerRound == 0 {
		return nil
	}
	m := view.Map
	h := mathx.ClampInt(p.Window, 1, m.Rows())
	w := mathx.ClampInt(p.Window, 1, m.Cols())
	sums, err := m.WindowSums(h, w)
	if err != nil {
		return err
	}

	var opponents []model.Pos
	for _, id := range view.Stores.Players() {
		if id == view.Player {
			continue
		}
		for _, s := range view.Stores[id] {
			opponents = append(opponents, s.Pos)
		}
	}

	bestR, bestC, best := -1, -1, -1.0
	anyR, anyC, anyBest := 0, 0, -1.0
	for i := 0; i < sums.Rows(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for j := 0; j < sums.Cols(); j++ {
			v := sums.At(i, j)
			r, c := i+h/2, j+w/2
			if v > anyBest {
				anyR, anyC, anyBest = r, c, v
			}
			if v > best && farFrom(r, c, opponents, p.MinDist) {
				bestR, bestC, best = r, c, v
			}
		}
	}
	if bestR < 0 {
		bestR, bestC = anyR, anyC
	}
	out.Set(model.NewStore(bestR, bestC, def.ID))
	return nil
}

func allPositions(stores model.StoresByPlayer) []model.Pos {
	var out []model.Pos
	for _, id := range stores.Players() {
		for _, s := range stores[id] {
			out = append(out, s.Pos)
		}
	}
	return out
}

func farFrom(r, c int, positions []model.Pos, minDist float64) bool {
	for _, pos := range positions {
		if mathx.Euclid(r, c, pos.Row, pos.Col) < minDist {
			return false
		}
	}
	return true
}
