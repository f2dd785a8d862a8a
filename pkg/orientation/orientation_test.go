package orientation

import (
	"errors"
	"testing"

	"mritk/pkg/affine"
)

// testAffine maps voxel (i, j, k) to RAS millimetres with 10 mm voxels.
func testAffine() affine.Affine {
	return affine.Affine{
		{10, 0, 0, -10},
		{0, 10, 0, -9},
		{0, 0, 10, -11},
		{0, 0, 0, 1},
	}
}

// TestChangeOfCoordinatesRASToLIA checks the matrix and that it maps RAS
// points to their LIA coordinates
func TestChangeOfCoordinatesRASToLIA(t *testing.T) {
	ras2lia, err := ChangeOfCoordinates("RAS", "LIA")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := affine.Affine{
		{-1, 0, 0, 0},
		{0, 0, -1, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 1},
	}
	if ras2lia != expected {
		t.Fatalf("Expected %v, got %v", expected, ras2lia)
	}

	ijk := []affine.Point{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}, {2, 1, 0}}
	xyz := []affine.Point{{-10, -9, -11}, {0, 1, -1}, {10, 11, 9}, {10, 1, -11}}
	lia := []affine.Point{{10, 11, -9}, {0, 1, 1}, {-10, -9, 11}, {-10, 11, 1}}

	T := testAffine()
	gotXYZ := affine.Apply(T, ijk)
	gotLIA := affine.Apply(ras2lia.Mul(T), ijk)
	for i := range ijk {
		if gotXYZ[i] != xyz[i] {
			t.Errorf("RAS point %d: expected %v, got %v", i, xyz[i], gotXYZ[i])
		}
		if gotLIA[i] != lia[i] {
			t.Errorf("LIA point %d: expected %v, got %v", i, lia[i], gotLIA[i])
		}
	}
}

func TestChangeOfCoordinatesIdentity(t *testing.T) {
	for _, label := range []string{"RAS", "LPS", "AIL", "SPR"} {
		m, err := ChangeOfCoordinates(label, label)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", label, err)
		}
		if m != affine.Identity() {
			t.Errorf("%s to itself: expected identity, got %v", label, m)
		}
	}
}

// allLabels enumerates every valid three-axis label.
func allLabels() []string {
	perms := [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	poles := [3][2]byte{{'R', 'L'}, {'A', 'P'}, {'S', 'I'}}
	var labels []string
	for _, p := range perms {
		for signs := 0; signs < 8; signs++ {
			b := make([]byte, 3)
			for i, ax := range p {
				b[i] = poles[ax][(signs>>i)&1]
			}
			labels = append(labels, string(b))
		}
	}
	return labels
}

// TestChangeOfCoordinatesInvolution verifies M(A,B) @ M(B,A) == I over all
// pairs of the 48 valid labels
func TestChangeOfCoordinatesInvolution(t *testing.T) {
	labels := allLabels()
	if len(labels) != 48 {
		t.Fatalf("Expected 48 labels, got %d", len(labels))
	}
	for _, a := range labels {
		for _, b := range labels {
			ab, err := ChangeOfCoordinates(a, b)
			if err != nil {
				t.Fatalf("%s->%s: %v", a, b, err)
			}
			ba, err := ChangeOfCoordinates(b, a)
			if err != nil {
				t.Fatalf("%s->%s: %v", b, a, err)
			}
			if ab.Mul(ba) != affine.Identity() {
				t.Errorf("%s<->%s: product is not identity: %v", a, b, ab.Mul(ba))
			}
		}
	}
}

func TestChangeOfCoordinatesErrors(t *testing.T) {
	tests := []struct {
		from, to string
		want     error
	}{
		{"RAX", "RAS", ErrInvalidAxisLabel},
		{"RAS", "rAS", ErrInvalidAxisLabel},
		{"RAS", "RAA", ErrUnmatchedAxis},
		{"RAS", "RA", ErrUnmatchedAxis},
		{"RRS", "RAS", ErrUnmatchedAxis},
		{"RAS", "LPR", ErrUnmatchedAxis},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			_, err := ChangeOfCoordinates(tt.from, tt.to)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			var le *LabelError
			if !errors.As(err, &le) {
				t.Fatalf("Expected *LabelError, got %T", err)
			}
			if le.Error() == "" {
				t.Error("Expected non-empty message")
			}
		})
	}
}

func TestOppositeAndFlip(t *testing.T) {
	pairs := map[byte]byte{'R': 'L', 'L': 'R', 'A': 'P', 'P': 'A', 'S': 'I', 'I': 'S'}
	for c, want := range pairs {
		got, err := Opposite(c)
		if err != nil || got != want {
			t.Errorf("Opposite(%c): expected %c, got %c (%v)", c, want, got, err)
		}
	}
	if _, err := Opposite('X'); !errors.Is(err, ErrInvalidAxisLabel) {
		t.Errorf("Expected ErrInvalidAxisLabel, got %v", err)
	}

	flipped, err := Flip(RAS)
	if err != nil || flipped != "LPI" {
		t.Errorf("Flip(RAS): expected LPI, got %q (%v)", flipped, err)
	}
}

func TestValidate(t *testing.T) {
	for _, label := range allLabels() {
		if err := Validate(label); err != nil {
			t.Errorf("%s: unexpected error %v", label, err)
		}
	}
	for _, label := range []string{"", "RA", "RASR", "RLS", "XYZ"} {
		if err := Validate(label); err == nil {
			t.Errorf("%q: expected error", label)
		}
	}
}
