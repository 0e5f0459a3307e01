package stabilizer

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a transform has no usable inverse.
var ErrSingular = errors.New("transform is singular")

// Transform is a 3x3 projective matrix stored row-major.
type Transform [9]float64

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// At returns the element at row r, column c.
func (t Transform) At(r, c int) float64 {
	return t[r*3+c]
}

// Dense returns t as a gonum matrix backed by a copy of its elements.
func (t Transform) Dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, t[:])
	return mat.NewDense(3, 3, data)
}

// FromMatrix copies a 3x3 gonum matrix into a Transform.
func FromMatrix(m mat.Matrix) Transform {
	var t Transform
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			t[r*3+c] = m.At(r, c)
		}
	}
	return t
}

// Normalize rounds every element to single precision, the precision the
// history accumulates at. It reports false if any element is not finite.
func (t Transform) Normalize() (Transform, bool) {
	var out Transform
	for i, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Transform{}, false
		}
		f := float32(v)
		if math.IsInf(float64(f), 0) {
			return Transform{}, false
		}
		out[i] = float64(f)
	}
	return out, true
}

// Inverse returns the matrix inverse of t.
func (t Transform) Inverse() (Transform, error) {
	var inv mat.Dense
	if err := inv.Inverse(t.Dense()); err != nil {
		// A finite condition number means the inverse was still computed.
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return Transform{}, fmt.Errorf("%w: %v", ErrSingular, err)
		}
	}
	out := FromMatrix(&inv)
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Transform{}, ErrSingular
		}
	}
	return out, nil
}

// Apply maps the point (x, y) through t.
func (t Transform) Apply(x, y float64) (float64, float64) {
	w := t[6]*x + t[7]*y + t[8]
	if w == 0 {
		return math.Inf(1), math.Inf(1)
	}
	return (t[0]*x + t[1]*y + t[2]) / w, (t[3]*x + t[4]*y + t[5]) / w
}

// Translation returns a pure translation transform.
func Translation(dx, dy float64) Transform {
	return Transform{
		1, 0, dx,
		0, 1, dy,
		0, 0, 1,
	}
}
