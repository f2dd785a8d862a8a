// Package grid holds the row-major index arithmetic shared by the volume,
// voxel and visualization packages. The last axis is the fastest varying
// one, so for a shape (X, Y, Z) the flat index of (x, y, z) is
// x*Y*Z + y*Z + z.
package grid

import "fmt"

// Size returns the number of elements of an array with the given shape.
func Size(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Strides returns the row-major strides of shape, in elements.
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	step := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = step
		step *= shape[i]
	}
	return strides
}

// Ravel converts a multi-index to a flat offset.
func Ravel(index, strides []int) int {
	off := 0
	for i, v := range index {
		off += v * strides[i]
	}
	return off
}

// Unravel writes the multi-index of flat offset off into index.
func Unravel(off int, shape, index []int) {
	for i := len(shape) - 1; i >= 0; i-- {
		index[i] = off % shape[i]
		off /= shape[i]
	}
}

// Contains reports whether index lies inside shape.
func Contains(shape, index []int) bool {
	if len(index) != len(shape) {
		return false
	}
	for i, v := range index {
		if v < 0 || v >= shape[i] {
			return false
		}
	}
	return true
}

// Validate checks that shape has at least minDims axes, all positive.
func Validate(shape []int, minDims int) error {
	if len(shape) < minDims {
		return fmt.Errorf("shape %v has %d dimensions, need at least %d", shape, len(shape), minDims)
	}
	for i, s := range shape {
		if s <= 0 {
			return fmt.Errorf("dimension %d of shape %v must be positive", i, shape)
		}
	}
	return nil
}
