package volume

import (
	"errors"
	"fmt"

	"mritk/pkg/affine"
)

// DefaultRtol is the relative tolerance used when comparing affines.
const DefaultRtol = 1e-5

// ErrSpaceMismatch is returned when two volumes do not share a voxel grid.
var ErrSpaceMismatch = errors.New("volumes not in same space")

// SpaceMismatchError carries what is needed to diagnose registration drift
// between two volumes.
type SpaceMismatchError struct {
	ShapeA, ShapeB   [3]int
	AffineA, AffineB affine.Affine
	Rtol             float64

	// MaxRelErr is the largest |a-b|/|b| over the affine entries.
	MaxRelErr float64
}

func (e *SpaceMismatchError) Error() string {
	return fmt.Sprintf("%v (relative tolerance %g). Shapes: (%v, %v), Affines: %v, %v, Affine max relative error: %.5g",
		ErrSpaceMismatch, e.Rtol, e.ShapeA, e.ShapeB, e.AffineA, e.AffineB, e.MaxRelErr)
}

func (e *SpaceMismatchError) Unwrap() error { return ErrSpaceMismatch }

// AssertSameSpace returns nil when a and b have identical spatial shapes and
// their affines agree entry-wise within rtol, using b as the reference.
// Trailing channel axes are not compared. Call it before any voxel-wise
// operation on two volumes.
func AssertSameSpace(a, b *Volume, rtol float64) error {
	sa, sb := a.SpatialShape(), b.SpatialShape()
	if sa == sb && affine.AllClose(a.affine, b.affine, rtol, affine.DefaultAbsTol) {
		return nil
	}
	return &SpaceMismatchError{
		ShapeA:    sa,
		ShapeB:    sb,
		AffineA:   a.affine,
		AffineB:   b.affine,
		Rtol:      rtol,
		MaxRelErr: affine.MaxRelativeError(a.affine, b.affine),
	}
}

// SameSpace is AssertSameSpace at DefaultRtol, reported as a bool.
func SameSpace(a, b *Volume) bool {
	return AssertSameSpace(a, b, DefaultRtol) == nil
}
