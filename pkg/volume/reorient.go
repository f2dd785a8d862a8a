package volume

import (
	"errors"
	"fmt"
	"math"

	"mritk/internal/grid"
	"mritk/pkg/affine"
	"mritk/pkg/orientation"
)

// ErrAmbiguousOrientation is returned when the array axes cannot be matched
// one-to-one with the physical axes, e.g. for a 45 degree oblique scan.
var ErrAmbiguousOrientation = errors.New("ambiguous orientation")

// OrientationError reports a linear block whose dominant axes collide.
type OrientationError struct {
	// Dominant[c] is the physical axis that array axis c is most aligned with.
	Dominant [3]int
	Affine   affine.Affine
}

func (e *OrientationError) Error() string {
	return fmt.Sprintf("%v: array axes map to physical axes %v, affine %v", ErrAmbiguousOrientation, e.Dominant, e.Affine)
}

func (e *OrientationError) Unwrap() error { return ErrAmbiguousOrientation }

// axisAssignment holds, per array axis, the physical axis it is most aligned
// with and whether increasing index walks toward decreasing coordinate.
type axisAssignment struct {
	perm    [3]int
	flipped [3]bool
}

// dominantAxes finds the largest absolute entry of every column of the
// linear block. Ties go to the lowest physical axis.
func dominantAxes(a affine.Affine) (axisAssignment, error) {
	var as axisAssignment
	var used [3]bool
	for c := 0; c < 3; c++ {
		best := 0
		for r := 1; r < 3; r++ {
			if math.Abs(a[r][c]) > math.Abs(a[best][c]) {
				best = r
			}
		}
		as.perm[c] = best
		as.flipped[c] = a[best][c] < 0
		used[best] = true
	}
	if !used[0] || !used[1] || !used[2] {
		return as, &OrientationError{Dominant: as.perm, Affine: a}
	}
	return as, nil
}

// Reorient returns a copy of v whose array axes are permuted and reversed so
// that array axis i runs along physical axis i in increasing direction. The
// linear block of the new affine is then diagonal-dominant with positive
// diagonal. Values are moved, never interpolated, and trailing axes are
// carried along unchanged. The physical coordinate system stays the same: a
// voxel keeps its physical position, only its index changes.
//
// Reorient fails with ErrAmbiguousOrientation when two array axes are most
// aligned with the same physical axis. On a volume that is already
// canonical it returns an identical copy.
func Reorient(v *Volume) (*Volume, error) {
	as, err := dominantAxes(v.affine)
	if err != nil {
		return nil, err
	}

	// F maps flipped indices to original ones: i_old = (n-1) - i_flipped.
	f := affine.Identity()
	for c := 0; c < 3; c++ {
		if as.flipped[c] {
			f[c][c] = -1
			f[c][3] = float64(v.shape[c] - 1)
		}
	}

	// P maps new indices to flipped ones: flipped axis c is new axis perm[c].
	var p affine.Affine
	p[3][3] = 1
	for c := 0; c < 3; c++ {
		p[c][as.perm[c]] = 1
	}

	shape := v.Shape()
	for c := 0; c < 3; c++ {
		shape[as.perm[c]] = v.shape[c]
	}

	data := make([]float64, len(v.data))
	oldStrides := grid.Strides(v.shape)
	newIdx := make([]int, len(shape))
	oldIdx := make([]int, len(shape))
	for off := range data {
		grid.Unravel(off, shape, newIdx)
		copy(oldIdx[3:], newIdx[3:])
		for c := 0; c < 3; c++ {
			i := newIdx[as.perm[c]]
			if as.flipped[c] {
				i = v.shape[c] - 1 - i
			}
			oldIdx[c] = i
		}
		data[off] = v.data[grid.Ravel(oldIdx, oldStrides)]
	}

	return &Volume{
		shape:  shape,
		data:   data,
		affine: affine.Compose(v.affine, f, p),
	}, nil
}

// IsCanonical reports whether Reorient would leave v unchanged.
func IsCanonical(v *Volume) bool {
	as, err := dominantAxes(v.affine)
	if err != nil {
		return false
	}
	for c := 0; c < 3; c++ {
		if as.perm[c] != c || as.flipped[c] {
			return false
		}
	}
	return true
}

// AxisCodes names the direction each array axis walks toward in the world
// coordinate system world, e.g. "LPS" for a DICOM-ordered scan stored in an
// RAS frame.
func AxisCodes(v *Volume, world string) (string, error) {
	if err := orientation.Validate(world); err != nil {
		return "", err
	}
	as, err := dominantAxes(v.affine)
	if err != nil {
		return "", err
	}
	codes := make([]byte, 3)
	for c := 0; c < 3; c++ {
		codes[c] = world[as.perm[c]]
		if as.flipped[c] {
			codes[c], _ = orientation.Opposite(codes[c])
		}
	}
	return string(codes), nil
}
