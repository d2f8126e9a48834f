package gridmap

import (
	"math"

	"sitelocation.ai/internal/sim/mathx"
)

// noiseRes is the number of gradient lattice periods per axis.
const noiseRes = 4

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func gradient(seed int64, i, j int) (float64, float64) {
	angle := 2 * math.Pi * mathx.Unit(mathx.Hash2(seed, i, j))
	return math.Cos(angle), math.Sin(angle)
}

// perlin fills a rows×cols field with 2D gradient noise in roughly [-1,1].
// Lattice gradients come from a seeded hash, so the field is a pure function of (rows, cols, seed).
func perlin(rows, cols int, seed int64) *Field {
	f := NewField(rows, cols)
	resR := mathx.MinInt(noiseRes, rows)
	resC := mathx.MinInt(noiseRes, cols)
	for r := 0; r < rows; r++ {
		y := float64(r) * float64(resR) / float64(rows)
		i0 := int(y)
		ty := y - float64(i0)
		for c := 0; c < cols; c++ {
			x := float64(c) * float64(resC) / float64(cols)
			j0 := int(x)
			tx := x - float64(j0)

			g00r, g00c := gradient(seed, i0, j0)
			g01r, g01c := gradient(seed, i0, j0+1)
			g10r, g10c := gradient(seed, i0+1, j0)
			g11r, g11c := gradient(seed, i0+1, j0+1)

			n00 := g00r*ty + g00c*tx
			n01 := g01r*ty + g01c*(tx-1)
			n10 := g10r*(ty-1) + g10c*tx
			n11 := g11r*(ty-1) + g11c*(tx-1)

			u := fade(tx)
			v := fade(ty)
			n0 := lerp(n00, n01, u)
			n1 := lerp(n10, n11, u)
			f.Set(r, c, math.Sqrt2*lerp(n0, n1, v))
		}
	}
	return f
}
