// Package volume defines the volumetric dataset, an N-dimensional array
// whose first three axes are spatial, paired with the affine that maps
// voxel indices to physical coordinates.
//
// A Volume is immutable. Constructors copy their inputs and accessors
// return copies, and every transform returns a new Volume carrying both a
// new array and a new affine.
package volume

import (
	"errors"
	"fmt"
	"math"

	"mritk/internal/grid"
	"mritk/pkg/affine"
	"mritk/pkg/orientation"
)

// ErrNotHomogeneous is returned for an affine whose bottom row is not
// [0 0 0 1].
var ErrNotHomogeneous = errors.New("affine bottom row is not [0 0 0 1]")

// Volume is a voxel array plus its voxel-to-physical affine.
type Volume struct {
	// shape has at least three entries; trailing axes are channels or time.
	shape []int

	// data is row-major, last axis fastest.
	data []float64

	affine affine.Affine
}

// New builds a Volume from a row-major array. The data and shape slices are
// copied. The affine must be homogeneous with an invertible linear block.
func New(data []float64, shape []int, a affine.Affine) (*Volume, error) {
	if err := grid.Validate(shape, 3); err != nil {
		return nil, err
	}
	if n := grid.Size(shape); n != len(data) {
		return nil, fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}
	if !a.IsHomogeneous() {
		return nil, fmt.Errorf("%w: %v", ErrNotHomogeneous, a)
	}
	if _, err := a.Inverse(); err != nil {
		return nil, err
	}
	return &Volume{
		shape:  append([]int(nil), shape...),
		data:   append([]float64(nil), data...),
		affine: a,
	}, nil
}

// Zeros returns a zero-valued volume of the given shape.
func Zeros(shape []int, a affine.Affine) (*Volume, error) {
	if err := grid.Validate(shape, 3); err != nil {
		return nil, err
	}
	return New(make([]float64, grid.Size(shape)), shape, a)
}

// WithData returns a volume with the same shape and affine as v holding a
// copy of data.
func (v *Volume) WithData(data []float64) (*Volume, error) {
	return New(data, v.shape, v.affine)
}

// Shape returns a copy of the full array shape.
func (v *Volume) Shape() []int {
	return append([]int(nil), v.shape...)
}

// SpatialShape returns the first three dimensions.
func (v *Volume) SpatialShape() [3]int {
	return [3]int{v.shape[0], v.shape[1], v.shape[2]}
}

// NumVoxels is the number of spatial voxels.
func (v *Volume) NumVoxels() int {
	return v.shape[0] * v.shape[1] * v.shape[2]
}

// Channels is the number of values stored per spatial voxel.
func (v *Volume) Channels() int {
	return grid.Size(v.shape[3:])
}

// Len is the total number of array elements.
func (v *Volume) Len() int {
	return len(v.data)
}

// Data returns a copy of the row-major array.
func (v *Volume) Data() []float64 {
	return append([]float64(nil), v.data...)
}

// Value returns the element at flat row-major offset i.
func (v *Volume) Value(i int) float64 {
	return v.data[i]
}

// At returns the element at the given multi-index. Trailing indices may be
// omitted and default to 0.
func (v *Volume) At(index ...int) float64 {
	if len(index) > len(v.shape) {
		panic(fmt.Sprintf("volume: %d indices for %d-dimensional volume", len(index), len(v.shape)))
	}
	full := make([]int, len(v.shape))
	copy(full, index)
	if !grid.Contains(v.shape, full) {
		panic(fmt.Sprintf("volume: index %v out of range for shape %v", index, v.shape))
	}
	return v.data[grid.Ravel(full, grid.Strides(v.shape))]
}

// Affine returns the voxel-to-physical affine.
func (v *Volume) Affine() affine.Affine {
	return v.affine
}

// VoxelToPhysical maps voxel indices through the affine.
func (v *Volume) VoxelToPhysical(points []affine.Point) []affine.Point {
	return affine.Apply(v.affine, points)
}

// VoxelVolumeML is the physical volume of one voxel in millilitres, assuming
// the affine is in millimetres.
func (v *Volume) VoxelVolumeML() float64 {
	return 1e-3 * math.Abs(v.affine.Det())
}

// ToCoordinateSystem relabels the physical frame of v from one named
// coordinate system to another, e.g. RAS to LPS. The array is untouched;
// only the affine changes.
func ToCoordinateSystem(v *Volume, from, to string) (*Volume, error) {
	m, err := orientation.ChangeOfCoordinates(from, to)
	if err != nil {
		return nil, err
	}
	return &Volume{
		shape:  v.Shape(),
		data:   v.Data(),
		affine: m.Mul(v.affine),
	}, nil
}
