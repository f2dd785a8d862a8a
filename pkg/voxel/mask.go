package voxel

import (
	"fmt"
	"math"

	"mritk/internal/grid"
	"mritk/pkg/volume"
)

// Mask is a boolean grid marking voxels eligible as search targets. It is
// normally three-dimensional but any number of axes is accepted.
type Mask struct {
	shape []int
	data  []bool
}

// NewMask copies a row-major boolean array into a Mask.
func NewMask(data []bool, shape []int) (*Mask, error) {
	if err := grid.Validate(shape, 1); err != nil {
		return nil, err
	}
	if n := grid.Size(shape); n != len(data) {
		return nil, fmt.Errorf("mask shape %v needs %d values, got %d", shape, n, len(data))
	}
	return &Mask{
		shape: append([]int(nil), shape...),
		data:  append([]bool(nil), data...),
	}, nil
}

// MaskFromVolume marks every spatial voxel whose first channel is finite
// and non-zero.
func MaskFromVolume(v *volume.Volume) *Mask {
	s := v.SpatialShape()
	channels := v.Channels()
	data := make([]bool, v.NumVoxels())
	for i := range data {
		x := v.Value(i * channels)
		data[i] = x != 0 && !math.IsNaN(x) && !math.IsInf(x, 0)
	}
	return &Mask{shape: s[:], data: data}
}

// Shape returns a copy of the mask shape.
func (m *Mask) Shape() []int {
	return append([]int(nil), m.shape...)
}

// NumDims is the number of mask axes.
func (m *Mask) NumDims() int {
	return len(m.shape)
}

// At reports whether the voxel at index is set. Out of range indices are
// never set.
func (m *Mask) At(index ...int) bool {
	if !grid.Contains(m.shape, index) {
		return false
	}
	return m.data[grid.Ravel(index, grid.Strides(m.shape))]
}

// Count is the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.data {
		if b {
			n++
		}
	}
	return n
}

// Coordinates lists the indices of all set voxels in row-major order.
func (m *Mask) Coordinates() [][]int {
	coords := make([][]int, 0, m.Count())
	for off, b := range m.data {
		if !b {
			continue
		}
		idx := make([]int, len(m.shape))
		grid.Unravel(off, m.shape, idx)
		coords = append(coords, idx)
	}
	return coords
}
