// Package gridmap owns the population density grid the game is played on.
//
// A Map is immutable after construction. Round snapshots are produced with Clone, which deep-copies
// every buffer so later overlays on one round's map can never leak into another round's history.
package gridmap

import (
	"fmt"
	"math"
)

type Map struct {
	rows       int
	cols       int
	population float64
	seed       int64

	dist *Field
	// sat is the summed-area table of dist, (rows+1)×(cols+1) with a zero border.
	sat []float64
}

// New generates a seeded noise field of the given size, clipped to non-negative values and
// rescaled so that it sums to population.
func New(rows, cols int, population float64, seed int64) (*Map, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("map size must be positive: %dx%d", rows, cols)
	}
	if population < 0 || math.IsNaN(population) || math.IsInf(population, 0) {
		return nil, fmt.Errorf("population must be a finite non-negative number: %v", population)
	}

	f := perlin(rows, cols, seed)
	v := f.raw()
	for i, x := range v {
		if x < 0 {
			v[i] = 0
		}
	}
	total := f.Sum()
	if total <= 0 {
		// Degenerate noise (tiny maps sample only lattice points): spread evenly.
		for i := range v {
			v[i] = 1
		}
		total = float64(len(v))
	}
	scale := population / total
	for i := range v {
		v[i] *= scale
	}
	return newMap(f, population, seed), nil
}

// FromDistribution rebuilds a map from a recorded distribution. The field is copied.
func FromDistribution(dist *Field, population float64, seed int64) (*Map, error) {
	if dist == nil || dist.Rows() <= 0 || dist.Cols() <= 0 {
		return nil, fmt.Errorf("distribution must be non-empty")
	}
	for _, x := range dist.raw() {
		if x < 0 || math.IsNaN(x) {
			return nil, fmt.Errorf("distribution must be non-negative")
		}
	}
	return newMap(dist.Clone(), population, seed), nil
}

func newMap(dist *Field, population float64, seed int64) *Map {
	m := &Map{
		rows:       dist.Rows(),
		cols:       dist.Cols(),
		population: population,
		seed:       seed,
		dist:       dist,
	}
	m.sat = summedArea(dist)
	return m
}

func summedArea(f *Field) []float64 {
	rows, cols := f.Rows(), f.Cols()
	stride := cols + 1
	sat := make([]float64, (rows+1)*stride)
	for r := 0; r < rows; r++ {
		rowSum := 0.0
		for c := 0; c < cols; c++ {
			rowSum += f.At(r, c)
			sat[(r+1)*stride+c+1] = sat[r*stride+c+1] + rowSum
		}
	}
	return sat
}

func (m *Map) Rows() int           { return m.rows }
func (m *Map) Cols() int           { return m.cols }
func (m *Map) Size() (int, int)    { return m.rows, m.cols }
func (m *Map) Population() float64 { return m.population }
func (m *Map) Seed() int64         { return m.seed }

// At returns the population at (r, c). The caller must stay in bounds.
func (m *Map) At(r, c int) float64 { return m.dist.At(r, c) }

func (m *Map) InBounds(r, c int) bool {
	return r >= 0 && r < m.rows && c >= 0 && c < m.cols
}

// Distribution returns a copy of the population field.
func (m *Map) Distribution() *Field { return m.dist.Clone() }

// Clone returns an independent deep copy.
func (m *Map) Clone() *Map {
	sat := make([]float64, len(m.sat))
	copy(sat, m.sat)
	return &Map{
		rows:       m.rows,
		cols:       m.cols,
		population: m.population,
		seed:       m.seed,
		dist:       m.dist.Clone(),
		sat:        sat,
	}
}

// WeightedSum returns sum(population * weights). weights must match the map shape.
func (m *Map) WeightedSum(weights *Field) float64 {
	if weights == nil {
		return 0
	}
	return m.dist.Dot(weights)
}

// RegionSum returns the population inside the h×w rectangle whose top-left corner is (r, c).
// The rectangle is clipped to the map.
func (m *Map) RegionSum(r, c, h, w int) float64 {
	r0, c0 := r, c
	r1, c1 := r+h, c+w
	if r0 < 0 {
		r0 = 0
	}
	if c0 < 0 {
		c0 = 0
	}
	if r1 > m.rows {
		r1 = m.rows
	}
	if c1 > m.cols {
		c1 = m.cols
	}
	if r0 >= r1 || c0 >= c1 {
		return 0
	}
	return m.satRect(r0, c0, r1, c1)
}

// satRect sums [r0,r1)×[c0,c1) from the summed-area table.
func (m *Map) satRect(r0, c0, r1, c1 int) float64 {
	stride := m.cols + 1
	return m.sat[r1*stride+c1] - m.sat[r0*stride+c1] - m.sat[r1*stride+c0] + m.sat[r0*stride+c0]
}

// WindowSums returns, for every valid top-left offset, the population inside an h×w window.
// The result is (rows-h+1)×(cols-w+1); entry (i, j) is the window whose top-left corner is (i, j).
func (m *Map) WindowSums(h, w int) (*Field, error) {
	if h <= 0 || w <= 0 {
		return nil, fmt.Errorf("window size must be positive: %dx%d", h, w)
	}
	if h > m.rows || w > m.cols {
		return nil, fmt.Errorf("window %dx%d exceeds map %dx%d", h, w, m.rows, m.cols)
	}
	out := NewField(m.rows-h+1, m.cols-w+1)
	for i := 0; i < out.Rows(); i++ {
		for j := 0; j < out.Cols(); j++ {
			out.Set(i, j, m.satRect(i, j, i+h, j+w))
		}
	}
	return out, nil
}
