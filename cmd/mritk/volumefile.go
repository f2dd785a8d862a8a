package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mritk/pkg/affine"
	"mritk/pkg/volume"
)

// volumeFile is the YAML document the command line reads and writes
// volumes as. Data is in row-major order; a missing affine is the identity.
type volumeFile struct {
	Shape  []int     `yaml:"shape"`
	Affine []float64 `yaml:"affine,omitempty,flow"`
	Data   []float64 `yaml:"data,flow"`
}

func loadVolume(path string) (*volume.Volume, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading volume file: %w", err)
	}
	var f volumeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("error parsing volume file %s: %w", path, err)
	}

	a := affine.Identity()
	if len(f.Affine) > 0 {
		if a, err = affine.FromSlice(f.Affine); err != nil {
			return nil, fmt.Errorf("volume file %s: %w", path, err)
		}
	}
	// An omitted data list is a ramp over the voxels, handy for quick looks.
	if f.Data == nil {
		n := 1
		for _, d := range f.Shape {
			n *= d
		}
		f.Data = make([]float64, max(n, 0))
		for i := range f.Data {
			f.Data[i] = float64(i)
		}
	}

	v, err := volume.New(f.Data, f.Shape, a)
	if err != nil {
		return nil, fmt.Errorf("volume file %s: %w", path, err)
	}
	return v, nil
}

func saveVolume(v *volume.Volume, path string) error {
	a := v.Affine()
	f := volumeFile{Shape: v.Shape(), Data: v.Data()}
	for i := 0; i < 4; i++ {
		f.Affine = append(f.Affine, a[i][:]...)
	}

	raw, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("error marshaling volume: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("error writing volume file: %w", err)
	}
	return nil
}
