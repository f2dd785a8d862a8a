package main

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mritk/pkg/affine"
	"mritk/pkg/config"
	"mritk/pkg/volume"
)

// captureOutput redirects command output into a buffer for one test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

func writeVolume(t *testing.T, dir, name string, data []float64, shape []int, a affine.Affine) string {
	t.Helper()
	v, err := volume.New(data, shape, a)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := saveVolume(v, path); err != nil {
		t.Fatalf("Failed to save volume: %v", err)
	}
	return path
}

func writeConfig(t *testing.T, dir string, edit func(*config.Config)) string {
	t.Helper()
	cfg := config.DefaultConfig()
	edit(cfg)
	path := filepath.Join(dir, "mritk.yaml")
	if err := config.SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	return path
}

func filled(n int, x float64) []float64 {
	data := make([]float64, n)
	for i := range data {
		data[i] = x
	}
	return data
}

func TestParseAffine(t *testing.T) {
	a, err := parseAffine("2,0,0,1, 0,2,0,2, 0,0,2,3, 0,0,0,1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if a[0][0] != 2 || a[2][3] != 3 {
		t.Errorf("Unexpected affine %v", a)
	}

	if a, err := parseAffine(""); err != nil || a != affine.Identity() {
		t.Errorf("Expected identity for empty flag, got %v (%v)", a, err)
	}
	if _, err := parseAffine("1,2,x"); err == nil {
		t.Error("Expected error for non-numeric value")
	}
	if _, err := parseAffine("1,2,3"); err == nil {
		t.Error("Expected error for short affine")
	}
}

func TestPointList(t *testing.T) {
	var p pointList
	if err := p.Set("1.5, 2, -3"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := p.Set("1,2"); err == nil {
		t.Error("Expected error for two coordinates")
	}
	if len(p) != 1 || p[0] != (affine.Point{1.5, 2, -3}) {
		t.Errorf("Unexpected points %v", p)
	}
}

func TestParseInts(t *testing.T) {
	got, err := parseInts("3, 4,5")
	if err != nil || len(got) != 3 || got[2] != 5 {
		t.Errorf("Unexpected result %v (%v)", got, err)
	}
	if _, err := parseInts("3,a"); err == nil {
		t.Error("Expected error")
	}
}

func TestVolumeFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := affine.Diag(2, 3, 4)
	a[0][3] = -10
	path := writeVolume(t, dir, "v.yaml", []float64{0, 1, 2, math.NaN(), 4, 5, 6, 7}, []int{2, 2, 2}, a)

	v, err := loadVolume(path)
	if err != nil {
		t.Fatalf("Failed to load volume: %v", err)
	}
	if v.Affine() != a || v.NumVoxels() != 8 {
		t.Errorf("Unexpected volume affine %v shape %v", v.Affine(), v.Shape())
	}
	if !math.IsNaN(v.Value(3)) || v.Value(7) != 7 {
		t.Errorf("Unexpected data %v", v.Data())
	}

	// Missing data becomes a ramp
	ramp := filepath.Join(dir, "ramp.yaml")
	if err := os.WriteFile(ramp, []byte("shape: [2, 2, 3]\n"), 0644); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}
	if v, err := loadVolume(ramp); err != nil || v.Value(11) != 11 {
		t.Errorf("Expected ramp volume, got %v (%v)", v, err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("shape: [2, 2, 2]\ndata: [1, 2]\n"), 0644); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}
	if _, err := loadVolume(bad); err == nil {
		t.Error("Expected error for short data")
	}
}

// TestRunReorientWorldFrame reads the world frame from the config file
func TestRunReorientWorldFrame(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, func(c *config.Config) { c.Geometry.Orientation = "LPS" })
	out := filepath.Join(dir, "canonical.yaml")
	buf := captureOutput(t)

	if err := runReorient([]string{"-shape", "2,3,4", "-config", cfgPath, "-output", out}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Input axis codes: LPS") {
		t.Errorf("Unexpected output:\n%s", buf)
	}

	v, err := loadVolume(out)
	if err != nil {
		t.Fatalf("Failed to load output: %v", err)
	}
	want := affine.Identity()
	want[0][3], want[1][3] = -1, -2
	if v.Affine() != want {
		t.Errorf("Expected canonical affine %v, got %v", want, v.Affine())
	}
}

// TestRunSameTolerance checks the config tolerance and its flag override
func TestRunSameTolerance(t *testing.T) {
	dir := t.TempDir()
	captureOutput(t)
	a := writeVolume(t, dir, "a.yaml", make([]float64, 8), []int{2, 2, 2}, affine.Identity())
	b := writeVolume(t, dir, "b.yaml", make([]float64, 8), []int{2, 2, 2}, affine.Diag(1.001, 1, 1))

	strict := filepath.Join(dir, "missing.yaml")
	if err := runSame([]string{"-a", a, "-b", b, "-config", strict}); !errors.Is(err, volume.ErrSpaceMismatch) {
		t.Errorf("Expected ErrSpaceMismatch with the default tolerance, got %v", err)
	}

	loose := writeConfig(t, dir, func(c *config.Config) { c.Geometry.Rtol = 1e-2 })
	if err := runSame([]string{"-a", a, "-b", b, "-config", loose}); err != nil {
		t.Errorf("Expected match with rtol 1e-2 from config, got %v", err)
	}
	if err := runSame([]string{"-a", a, "-b", b, "-config", loose, "-rtol", "1e-5"}); err == nil {
		t.Error("Expected -rtol to override the config")
	}
}

// TestRunVoxelMask takes the neighbour count from the config file
func TestRunVoxelMask(t *testing.T) {
	dir := t.TempDir()
	data := make([]float64, 64)
	data[0] = 1
	data[2*16+2*4+2] = 1
	mask := writeVolume(t, dir, "mask.yaml", data, []int{4, 4, 4}, affine.Identity())
	cfgPath := writeConfig(t, dir, func(c *config.Config) { c.Geometry.Neighbours = 2 })
	buf := captureOutput(t)

	if err := runVoxel([]string{"-mask", mask, "-config", cfgPath, "-point", "1.2,1.2,1.2"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "[[2 2 2] [0 0 0]]") {
		t.Errorf("Expected both valid voxels nearest first, got %q", buf)
	}

	buf.Reset()
	if err := runVoxel([]string{"-mask", mask, "-config", cfgPath, "-k", "1", "-point", "1.2,1.2,1.2"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "[[2 2 2]]") {
		t.Errorf("Expected a single neighbour, got %q", buf)
	}
}

func TestRunConcentration(t *testing.T) {
	dir := t.TempDir()
	captureOutput(t)
	cfgPath := filepath.Join(dir, "missing.yaml")
	t1 := writeVolume(t, dir, "t1.yaml", filled(8, 500), []int{2, 2, 2}, affine.Identity())
	t10 := writeVolume(t, dir, "t10.yaml", filled(8, 1000), []int{2, 2, 2}, affine.Identity())
	out := filepath.Join(dir, "c.yaml")

	if err := runConcentration([]string{"-t1", t1, "-t10", t10, "-config", cfgPath, "-output", out}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	c, err := loadVolume(out)
	if err != nil {
		t.Fatalf("Failed to load output: %v", err)
	}
	if want := (1.0/500 - 1.0/1000) / 0.0045; math.Abs(c.Value(0)-want) > 1e-12 {
		t.Errorf("Expected concentration %v, got %v", want, c.Value(0))
	}

	shifted := affine.Identity()
	shifted[0][3] = 1
	moved := writeVolume(t, dir, "moved.yaml", filled(8, 1000), []int{2, 2, 2}, shifted)
	if err := runConcentration([]string{"-t1", t1, "-t10", moved, "-config", cfgPath, "-output", out}); !errors.Is(err, volume.ErrSpaceMismatch) {
		t.Errorf("Expected ErrSpaceMismatch, got %v", err)
	}
}

// TestRunR1 applies the T1 window from the config file
func TestRunR1(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, func(c *config.Config) { c.Concentration.T1High = 1000 })
	t1 := writeVolume(t, dir, "t1.yaml", []float64{500, 2000, 0.5, 1000, 1, 1, 1, 1}, []int{2, 2, 2}, affine.Identity())
	out := filepath.Join(dir, "r1.yaml")

	if err := runR1([]string{"-t1", t1, "-config", cfgPath, "-output", out}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	r1, err := loadVolume(out)
	if err != nil {
		t.Fatalf("Failed to load output: %v", err)
	}
	if r1.Value(0) != 2 || r1.Value(3) != 1 {
		t.Errorf("Unexpected R1 values %v", r1.Data())
	}
	if !math.IsNaN(r1.Value(1)) || !math.IsNaN(r1.Value(2)) {
		t.Errorf("Expected NaN outside the T1 window, got %v", r1.Data())
	}
}

func TestRunStats(t *testing.T) {
	dir := t.TempDir()
	seg := writeVolume(t, dir, "seg.yaml", []float64{0, 1, 1, 1, 1, 2, 2, 0}, []int{2, 2, 2}, affine.Identity())
	data := writeVolume(t, dir, "data.yaml", []float64{9, 1, 2, 3, 4, 5, 6, 9}, []int{2, 2, 2}, affine.Identity())
	buf := captureOutput(t)

	if err := runStats([]string{"-seg", seg, "-data", data, "-config", filepath.Join(dir, "missing.yaml")}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	found := false
	for _, line := range strings.Split(buf.String(), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 6 && fields[0] == "2" {
			found = true
			if fields[1] != "2" || fields[3] != "5.5" {
				t.Errorf("Unexpected region 2 row %q", line)
			}
		}
	}
	if !found {
		t.Errorf("Missing region 2 in output:\n%s", buf)
	}
}

// TestRunShow writes the three views in the configured format
func TestRunShow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, func(c *config.Config) { c.View.Format = "jpg" })
	vol := writeVolume(t, dir, "v.yaml", make([]float64, 60), []int{3, 4, 5}, affine.Diag(-1, 1, 1))
	out := filepath.Join(dir, "views")

	if err := runShow([]string{"-volume", vol, "-config", cfgPath, "-output", out}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, name := range []string{"sagittal", "coronal", "axial"} {
		if _, err := os.Stat(filepath.Join(out, name+".jpg")); err != nil {
			t.Errorf("Missing %s view: %v", name, err)
		}
	}
}
