// Package voxel maps physical coordinates back to voxel indices and finds
// the nearest valid voxels of a mask.
package voxel

import (
	"math"

	"mritk/pkg/affine"
)

// Index is an integer voxel coordinate.
type Index [3]int

// PhysicalToVoxel maps physical points to fractional voxel coordinates
// through the inverse of a. No bounds checking is done.
func PhysicalToVoxel(points []affine.Point, a affine.Affine) ([]affine.Point, error) {
	inv, err := a.Inverse()
	if err != nil {
		return nil, err
	}
	return affine.Apply(inv, points), nil
}

// PhysicalToVoxelIndices is PhysicalToVoxel followed by rounding to the
// nearest integer, with exact halves rounded to even (0.5 -> 0, 1.5 -> 2).
// Indices outside the array are returned as they are; use NearestValid to
// restrict them to a mask.
func PhysicalToVoxelIndices(points []affine.Point, a affine.Affine) ([]Index, error) {
	frac, err := PhysicalToVoxel(points, a)
	if err != nil {
		return nil, err
	}
	return Round(frac), nil
}

// Round rounds fractional voxel coordinates half to even.
func Round(points []affine.Point) []Index {
	out := make([]Index, len(points))
	for i, p := range points {
		for j := 0; j < 3; j++ {
			out[i][j] = int(math.RoundToEven(p[j]))
		}
	}
	return out
}

// PhysicalToValidVoxels maps physical points into the grid of a and returns,
// for each, the k nearest voxels set in mask. Points that already fall on a
// valid voxel get that voxel first.
func PhysicalToValidVoxels(points []affine.Point, a affine.Affine, mask *Mask, k int) ([][]Index, error) {
	frac, err := PhysicalToVoxel(points, a)
	if err != nil {
		return nil, err
	}
	if mask.NumDims() != 3 {
		return nil, &DimError{Want: 3, Got: mask.NumDims()}
	}
	idx, err := NewValidIndex(mask)
	if err != nil {
		return nil, err
	}

	queries := make([][]float64, len(frac))
	for i, p := range frac {
		queries[i] = []float64{p[0], p[1], p[2]}
	}
	found, err := idx.Nearest(queries, k)
	if err != nil {
		return nil, err
	}

	out := make([][]Index, len(found))
	for i, neighbours := range found {
		out[i] = make([]Index, len(neighbours))
		for n, c := range neighbours {
			out[i][n] = Index{c[0], c[1], c[2]}
		}
	}
	return out, nil
}
