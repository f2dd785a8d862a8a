// Package concentration converts T1 relaxation maps to R1 maps and computes
// contrast agent concentration from a post-contrast map and a baseline.
//
// Every voxel-wise operation on two volumes first checks that they share a
// voxel grid with volume.AssertSameSpace and aborts otherwise.
package concentration

import (
	"fmt"
	"math"

	"mritk/pkg/volume"
)

const (
	// DefaultRelaxivity is the T1 relaxivity r1 of gadobutrol in 1/(mM ms).
	DefaultRelaxivity = 0.0045

	// DefaultR1Scale converts T1 in ms to R1 in 1/s.
	DefaultR1Scale = 1000.0

	// minT1 is the smallest T1 treated as a measured value.
	minT1 = 1e-10
)

// FromT1 is the concentration for post-contrast T1 and baseline T10.
func FromT1(t1, t10, r1 float64) float64 {
	return 1 / r1 * (1/t1 - 1/t10)
}

// FromR1 is the concentration for post-contrast R1 and baseline R10.
func FromR1(rate, rate0, r1 float64) float64 {
	return 1 / r1 * (rate - rate0)
}

// T1Bounds limits which T1 values are converted to R1.
type T1Bounds struct {
	Low, High float64
}

// DefaultT1Bounds accepts every T1 of at least 1.
func DefaultT1Bounds() T1Bounds {
	return T1Bounds{Low: 1, High: math.Inf(1)}
}

// T1ToR1 returns scale/T1 for voxels with Low <= T1 <= High and NaN elsewhere.
func T1ToR1(t1 *volume.Volume, scale float64, bounds T1Bounds) (*volume.Volume, error) {
	if bounds.Low > bounds.High {
		return nil, fmt.Errorf("invalid T1 bounds [%g, %g]", bounds.Low, bounds.High)
	}
	out := make([]float64, t1.Len())
	for i := range out {
		v := t1.Value(i)
		if bounds.Low <= v && v <= bounds.High {
			out[i] = scale / v
		} else {
			out[i] = math.NaN()
		}
	}
	return t1.WithData(out)
}

// Map computes the concentration map from a post-contrast T1 map and a
// baseline T10 map, optionally restricted to mask. A voxel is computed when
// both T1 values exceed 1e-10 and the mask, if any, is non-zero there;
// all other voxels are NaN. The result lives in the grid of t10.
func Map(t1, t10, mask *volume.Volume, r1, rtol float64) (*volume.Volume, error) {
	if err := volume.AssertSameSpace(t1, t10, rtol); err != nil {
		return nil, fmt.Errorf("T1 and reference: %w", err)
	}
	if t1.Len() != t10.Len() {
		return nil, fmt.Errorf("T1 map has %d values, reference has %d", t1.Len(), t10.Len())
	}
	if mask != nil {
		if err := volume.AssertSameSpace(mask, t10, rtol); err != nil {
			return nil, fmt.Errorf("mask and reference: %w", err)
		}
	}
	if r1 <= 0 {
		return nil, fmt.Errorf("relaxivity must be positive, got %g", r1)
	}

	channels := t10.Channels()
	out := make([]float64, t10.Len())
	for i := range out {
		a, b := t1.Value(i), t10.Value(i)
		valid := a > minT1 && b > minT1
		if mask != nil {
			valid = valid && mask.Value(i/channels*mask.Channels()) != 0
		}
		if valid {
			out[i] = FromT1(a, b, r1)
		} else {
			out[i] = math.NaN()
		}
	}
	return t10.WithData(out)
}
