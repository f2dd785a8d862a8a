package concentration

import (
	"errors"
	"math"
	"testing"

	"mritk/pkg/affine"
	"mritk/pkg/volume"
)

func newVolume(t *testing.T, data []float64, a affine.Affine) *volume.Volume {
	t.Helper()
	v, err := volume.New(data, []int{2, 2, 1}, a)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return v
}

func TestFormulas(t *testing.T) {
	if got := FromT1(500, 1000, 0.0045); math.Abs(got-1/0.0045*(0.002-0.001)) > 1e-12 {
		t.Errorf("Unexpected FromT1 result %v", got)
	}
	if got := FromR1(2, 1, 0.5); got != 2 {
		t.Errorf("Expected 2, got %v", got)
	}
}

func TestT1ToR1(t *testing.T) {
	v := newVolume(t, []float64{1000, 0.5, 2000, 4000}, affine.Identity())
	r, err := T1ToR1(v, DefaultR1Scale, T1Bounds{Low: 1, High: 3000})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := []float64{1, math.NaN(), 0.5, math.NaN()}
	for i, want := range expected {
		got := r.Value(i)
		if math.IsNaN(want) != math.IsNaN(got) || (!math.IsNaN(want) && got != want) {
			t.Errorf("Voxel %d: expected %v, got %v", i, want, got)
		}
	}
	if r.Affine() != v.Affine() {
		t.Error("Affine should be preserved")
	}

	if _, err := T1ToR1(v, DefaultR1Scale, T1Bounds{Low: 10, High: 1}); err == nil {
		t.Error("Expected error for inverted bounds")
	}
}

func TestMap(t *testing.T) {
	t1 := newVolume(t, []float64{500, 800, 0, 1000}, affine.Identity())
	t10 := newVolume(t, []float64{1000, 1000, 1000, 1000}, affine.Identity())

	c, err := Map(t1, t10, nil, DefaultRelaxivity, volume.DefaultRtol)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got, want := c.Value(0), FromT1(500, 1000, DefaultRelaxivity); math.Abs(got-want) > 1e-12 {
		t.Errorf("Voxel 0: expected %v, got %v", want, got)
	}
	if !math.IsNaN(c.Value(2)) {
		t.Errorf("Voxel with zero T1 should be NaN, got %v", c.Value(2))
	}
	if c.Value(3) != 0 {
		t.Errorf("Unchanged T1 should give zero concentration, got %v", c.Value(3))
	}

	mask := newVolume(t, []float64{0, 1, 1, 1}, affine.Identity())
	c, err = Map(t1, t10, mask, DefaultRelaxivity, volume.DefaultRtol)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !math.IsNaN(c.Value(0)) || math.IsNaN(c.Value(1)) {
		t.Errorf("Mask not applied: %v", c.Data())
	}
}

// TestMapSpaceMismatch checks misaligned inputs abort the computation
func TestMapSpaceMismatch(t *testing.T) {
	t1 := newVolume(t, []float64{1, 1, 1, 1}, affine.Diag(1, 1, 1.1))
	t10 := newVolume(t, []float64{1, 1, 1, 1}, affine.Identity())
	if _, err := Map(t1, t10, nil, DefaultRelaxivity, volume.DefaultRtol); !errors.Is(err, volume.ErrSpaceMismatch) {
		t.Errorf("Expected ErrSpaceMismatch, got %v", err)
	}

	mask := newVolume(t, []float64{1, 1, 1, 1}, affine.Diag(2, 1, 1))
	if _, err := Map(t10, t10, mask, DefaultRelaxivity, volume.DefaultRtol); !errors.Is(err, volume.ErrSpaceMismatch) {
		t.Errorf("Expected ErrSpaceMismatch for mask, got %v", err)
	}
}
