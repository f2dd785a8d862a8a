// Package visualization extracts orthogonal slices and sub-regions from a
// volume and writes them as images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"mritk/internal/grid"
	"mritk/pkg/affine"
	"mritk/pkg/volume"
)

// Viewer renders slices of the first channel of a volume. Load volumes
// through volume.Reorient first so that axis x, y and z are the sagittal,
// coronal and axial directions of an RAS frame.
type Viewer struct {
	vol *volume.Volume

	// shape is the spatial shape of vol.
	shape [3]int
}

// NewViewer creates a viewer over v.
func NewViewer(v *volume.Volume) *Viewer {
	return &Viewer{vol: v, shape: v.SpatialShape()}
}

func axisIndex(axis string) (int, error) {
	switch axis {
	case "x", "X":
		return 0, nil
	case "y", "Y":
		return 1, nil
	case "z", "Z":
		return 2, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// value returns channel 0 of the voxel at (i, j, k).
func (v *Viewer) value(i, j, k int) float64 {
	off := (i*v.shape[1]+j)*v.shape[2] + k
	return v.vol.Value(off * v.vol.Channels())
}

// ExtractSlice extracts the plane at index position along axis. The image
// is rotated a quarter turn counter-clockwise, so the first in-plane axis
// runs left to right and the second bottom to top. Intensities are scaled
// to the slice's own range; NaN and infinite values render black.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	ax, err := axisIndex(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= v.shape[ax] {
		return nil, fmt.Errorf("position %d outside [0, %d) along %s", position, v.shape[ax], axis)
	}

	// a and b are the in-plane axes, in array order.
	a, b := (ax+1)%3, (ax+2)%3
	if a > b {
		a, b = b, a
	}
	na, nb := v.shape[a], v.shape[b]

	plane := make([]float64, na*nb)
	idx := [3]int{}
	idx[ax] = position
	for p := 0; p < na; p++ {
		for q := 0; q < nb; q++ {
			idx[a], idx[b] = p, q
			x := v.value(idx[0], idx[1], idx[2])
			if math.IsNaN(x) || math.IsInf(x, 0) {
				x = 0
			}
			plane[p*nb+q] = x
		}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range plane {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}

	img := image.NewGray(image.Rect(0, 0, na, nb))
	for p := 0; p < na; p++ {
		for q := 0; q < nb; q++ {
			var level uint8
			if hi > lo {
				level = uint8((plane[p*nb+q] - lo) / (hi - lo) * 255)
			}
			img.SetGray(p, nb-1-q, color.Gray{Y: level})
		}
	}
	return img, nil
}

// RelativeSlice extracts the plane at fraction frac of the way along axis,
// so 0.5 is the middle slice.
func (v *Viewer) RelativeSlice(axis string, frac float64) (image.Image, error) {
	ax, err := axisIndex(axis)
	if err != nil {
		return nil, err
	}
	pos := int(float64(v.shape[ax]) * frac)
	pos = max(0, min(v.shape[ax]-1, pos))
	return v.ExtractSlice(axis, pos)
}

// ExtractRegion crops a sub-volume. The returned affine is shifted so that
// every voxel keeps its physical position.
func (v *Viewer) ExtractRegion(start, size [3]int) (*volume.Volume, error) {
	for d := 0; d < 3; d++ {
		if start[d] < 0 {
			return nil, fmt.Errorf("start coordinates must be non-negative")
		}
		if size[d] <= 0 {
			return nil, fmt.Errorf("size dimensions must be positive")
		}
		if start[d]+size[d] > v.shape[d] {
			return nil, fmt.Errorf("region extends beyond volume boundaries")
		}
	}

	full := v.vol.Shape()
	shape := append([]int{size[0], size[1], size[2]}, full[3:]...)
	src := grid.Strides(full)
	data := make([]float64, grid.Size(shape))
	idx := make([]int, len(shape))
	for off := range data {
		grid.Unravel(off, shape, idx)
		for d := 0; d < 3; d++ {
			idx[d] += start[d]
		}
		data[off] = v.vol.Value(grid.Ravel(idx, src))
	}

	shift := affine.Identity()
	for d := 0; d < 3; d++ {
		shift[d][3] = float64(start[d])
	}
	return volume.New(data, shape, v.vol.Affine().Mul(shift))
}

// SaveSlice saves an extracted slice as PNG or, for .jpg/.jpeg names, JPEG
func SaveSlice(img image.Image, filename string) error {
	var encode func(io.Writer, image.Image) error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		encode = func(w io.Writer, m image.Image) error {
			return jpeg.Encode(w, m, &jpeg.Options{Quality: 90})
		}
	case ".png":
		encode = png.Encode
	default:
		return fmt.Errorf("unsupported image format: %s", filename)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return encode(file, img)
}

// SaveOrthogonal writes the sagittal, coronal and axial planes at the given
// relative positions to dir as <name>.<format>.
func (v *Viewer) SaveOrthogonal(dir string, fx, fy, fz float64, format string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	views := []struct {
		name, axis string
		frac       float64
	}{
		{"sagittal", "x", fx},
		{"coronal", "y", fy},
		{"axial", "z", fz},
	}
	for _, view := range views {
		img, err := v.RelativeSlice(view.axis, view.frac)
		if err != nil {
			return err
		}
		if err := SaveSlice(img, filepath.Join(dir, view.name+"."+format)); err != nil {
			return fmt.Errorf("failed to save %s view: %w", view.name, err)
		}
	}
	return nil
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	ax, err := axisIndex(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < v.shape[ax]; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
