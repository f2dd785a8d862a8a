// Package affine implements the 4x4 homogeneous affine algebra used to map
// voxel indices to physical coordinates.
//
// An Affine is a plain array value: assigning or passing it copies the
// matrix, so a caller can never mutate an Affine held by someone else.
// Chains compose by ordinary matrix multiplication and read right to left,
// Compose(A1, A2, A3) applies A3 first.
package affine

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrSingularMatrix is returned when the linear block of an affine cannot be
// inverted.
var ErrSingularMatrix = errors.New("singular affine matrix")

// Affine is a 4x4 matrix in homogeneous coordinates, indexed [row][column].
type Affine [4][4]float64

// Point is a 3-D point, either a (possibly fractional) voxel index or a
// physical coordinate.
type Point [3]float64

// Identity returns the 4x4 identity affine.
func Identity() Affine {
	return Diag(1, 1, 1)
}

// Diag returns a pure scaling affine diag(x, y, z, 1).
func Diag(x, y, z float64) Affine {
	var a Affine
	a[0][0], a[1][1], a[2][2], a[3][3] = x, y, z, 1
	return a
}

// FromSlice builds an affine from 16 row-major values.
func FromSlice(v []float64) (Affine, error) {
	var a Affine
	if len(v) != 16 {
		return a, fmt.Errorf("affine needs 16 values, got %d", len(v))
	}
	for i := 0; i < 4; i++ {
		copy(a[i][:], v[4*i:4*i+4])
	}
	return a, nil
}

// Dense returns a freshly allocated gonum copy of the matrix.
func (a Affine) Dense() *mat.Dense {
	flat := make([]float64, 0, 16)
	for i := 0; i < 4; i++ {
		flat = append(flat, a[i][:]...)
	}
	return mat.NewDense(4, 4, flat)
}

func fromMatrix(m mat.Matrix) Affine {
	var a Affine
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			a[i][j] = m.At(i, j)
		}
	}
	return a
}

// Linear returns the top-left 3x3 block.
func (a Affine) Linear() *mat.Dense {
	flat := make([]float64, 0, 9)
	for i := 0; i < 3; i++ {
		flat = append(flat, a[i][:3]...)
	}
	return mat.NewDense(3, 3, flat)
}

// Translation returns the top-right 3x1 column.
func (a Affine) Translation() Point {
	return Point{a[0][3], a[1][3], a[2][3]}
}

// IsHomogeneous reports whether the bottom row is exactly [0 0 0 1].
func (a Affine) IsHomogeneous() bool {
	return a[3][0] == 0 && a[3][1] == 0 && a[3][2] == 0 && a[3][3] == 1
}

// Mul returns the matrix product a @ b.
func (a Affine) Mul(b Affine) Affine {
	var out mat.Dense
	out.Mul(a.Dense(), b.Dense())
	return fromMatrix(&out)
}

// Compose multiplies the affines left to right. Compose() is the identity.
func Compose(affines ...Affine) Affine {
	out := Identity()
	for _, a := range affines {
		out = out.Mul(a)
	}
	return out
}

// Det returns the determinant of the linear block.
func (a Affine) Det() float64 {
	return mat.Det(a.Linear())
}

// Inverse returns the matrix inverse of a. It fails with ErrSingularMatrix
// when the linear block is singular or too ill-conditioned to invert.
func (a Affine) Inverse() (Affine, error) {
	det := a.Det()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Affine{}, fmt.Errorf("%w: determinant of linear block is %v", ErrSingularMatrix, det)
	}
	var inv mat.Dense
	if err := inv.Inverse(a.Dense()); err != nil {
		return Affine{}, fmt.Errorf("%w: %v", ErrSingularMatrix, err)
	}
	return fromMatrix(&inv), nil
}

// Apply maps every point p to A*p + b, where A is the linear block of t and
// b its translation column. The input slice is not modified.
func Apply(t Affine, points []Point) []Point {
	out := make([]Point, len(points))
	if len(points) == 0 {
		return out
	}

	flat := make([]float64, 0, 3*len(points))
	for _, p := range points {
		flat = append(flat, p[:]...)
	}
	x := mat.NewDense(len(points), 3, flat)

	// Rows are points, so X * A^T gives A*p per row.
	var y mat.Dense
	y.Mul(x, t.Linear().T())

	b := t.Translation()
	for i := range out {
		for j := 0; j < 3; j++ {
			out[i][j] = y.At(i, j) + b[j]
		}
	}
	return out
}

// ApplyPoint maps a single point.
func (a Affine) ApplyPoint(p Point) Point {
	return Apply(a, []Point{p})[0]
}

// DefaultAbsTol is the absolute tolerance added to every relative bound in
// AllClose, matching the numpy allclose default.
const DefaultAbsTol = 1e-8

// AllClose reports whether |a-b| <= atol + rtol*|b| holds for every entry.
// The comparison is not symmetric: b is the reference.
func AllClose(a, b Affine, rtol, atol float64) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			x, y := a[i][j], b[i][j]
			if x == y {
				continue
			}
			if math.IsNaN(x) || math.IsNaN(y) {
				return false
			}
			if math.Abs(x-y) > atol+rtol*math.Abs(y) {
				return false
			}
		}
	}
	return true
}

// MaxRelativeError returns the largest |a-b|/|b| over all entries. Entries
// equal in both matrices and entries involving NaN are skipped; a difference
// against a zero reference entry is +Inf.
func MaxRelativeError(a, b Affine) float64 {
	worst := 0.0
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			diff := math.Abs(a[i][j] - b[i][j])
			if diff == 0 || math.IsNaN(diff) {
				continue
			}
			rel := math.Inf(1)
			if b[i][j] != 0 {
				rel = diff / math.Abs(b[i][j])
			}
			if rel > worst {
				worst = rel
			}
		}
	}
	return worst
}

// String prints the matrix row by row with five significant digits.
func (a Affine) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 4; i++ {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString("[")
		for j := 0; j < 4; j++ {
			if j > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "%.5g", a[i][j])
		}
		sb.WriteString("]")
	}
	sb.WriteString("]")
	return sb.String()
}
