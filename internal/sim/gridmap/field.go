package gridmap

import "fmt"

// Field is a dense rows×cols grid of float64 values stored row-major.
type Field struct {
	rows int
	cols int
	v    []float64
}

func NewField(rows, cols int) *Field {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	return &Field{rows: rows, cols: cols, v: make([]float64, rows*cols)}
}

// FieldFromValues copies values (row-major) into a new field.
func FieldFromValues(rows, cols int, values []float64) (*Field, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("field size must be positive: %dx%d", rows, cols)
	}
	if len(values) != rows*cols {
		return nil, fmt.Errorf("field values: got %d want %d", len(values), rows*cols)
	}
	f := NewField(rows, cols)
	copy(f.v, values)
	return f, nil
}

func (f *Field) Rows() int { return f.rows }
func (f *Field) Cols() int { return f.cols }

func (f *Field) At(r, c int) float64 { return f.v[r*f.cols+c] }

func (f *Field) Set(r, c int, x float64) { f.v[r*f.cols+c] = x }

// Values returns a row-major copy of the field.
func (f *Field) Values() []float64 {
	out := make([]float64, len(f.v))
	copy(out, f.v)
	return out
}

func (f *Field) Clone() *Field {
	return &Field{rows: f.rows, cols: f.cols, v: f.Values()}
}

func (f *Field) Sum() float64 {
	s := 0.0
	for _, x := range f.v {
		s += x
	}
	return s
}

func (f *Field) Max() float64 {
	if len(f.v) == 0 {
		return 0
	}
	m := f.v[0]
	for _, x := range f.v[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// Dot is the element-wise product summed over the grid. Both fields must have the same shape.
func (f *Field) Dot(g *Field) float64 {
	s := 0.0
	for i, x := range f.v {
		s += x * g.v[i]
	}
	return s
}

// Equal reports exact (bitwise for finite values) equality of shape and values.
func (f *Field) Equal(g *Field) bool {
	if f == nil || g == nil {
		return f == g
	}
	if f.rows != g.rows || f.cols != g.cols {
		return false
	}
	for i := range f.v {
		if f.v[i] != g.v[i] {
			return false
		}
	}
	return true
}

// raw exposes the backing slice to package-internal hot loops.
func (f *Field) raw() []float64 { return f.v }
