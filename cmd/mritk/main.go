package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"mritk/pkg/affine"
	"mritk/pkg/concentration"
	"mritk/pkg/config"
	"mritk/pkg/orientation"
	"mritk/pkg/stats"
	"mritk/pkg/visualization"
	"mritk/pkg/volume"
	"mritk/pkg/voxel"
)

// stdout receives command output.
var stdout io.Writer = os.Stdout

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: mritk <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  orient         print the change of coordinates affine between two labels")
	fmt.Fprintln(os.Stderr, "  reorient       print the canonical affine and axis codes of a grid")
	fmt.Fprintln(os.Stderr, "  same           check that two volumes share a voxel grid")
	fmt.Fprintln(os.Stderr, "  voxel          map physical points to voxel coordinates")
	fmt.Fprintln(os.Stderr, "  r1             convert a T1 map to an R1 map")
	fmt.Fprintln(os.Stderr, "  concentration  compute a concentration map from T1 and baseline T1")
	fmt.Fprintln(os.Stderr, "  stats          print per-region statistics of a volume")
	fmt.Fprintln(os.Stderr, "  show           write sagittal, coronal and axial images of a volume")
	fmt.Fprintln(os.Stderr, "  config         write a default configuration file")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Volumes are YAML files with shape, affine (16 values) and data keys.")
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("mritk: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	commands := map[string]func([]string) error{
		"orient":        runOrient,
		"reorient":      runReorient,
		"same":          runSame,
		"voxel":         runVoxel,
		"r1":            runR1,
		"concentration": runConcentration,
		"stats":         runStats,
		"show":          runShow,
		"config":        runConfig,
	}
	switch os.Args[1] {
	case "-h", "--help", "help":
		usage()
		return
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(1)
	}
	if err := run(os.Args[2:]); err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "mritk.yaml", "Configuration file")
}

func runOrient(args []string) error {
	fs := flag.NewFlagSet("orient", flag.ExitOnError)
	from := fs.String("from", orientation.RAS, "Source coordinate system label")
	to := fs.String("to", orientation.LPS, "Target coordinate system label")
	fs.Parse(args)

	m, err := orientation.ChangeOfCoordinates(*from, *to)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s -> %s\n", *from, *to)
	printAffine(m)
	return nil
}

// gridFlags selects a volume either from a file or from an affine and shape.
type gridFlags struct {
	volume, affine, shape *string
}

func addGridFlags(fs *flag.FlagSet) gridFlags {
	return gridFlags{
		volume: fs.String("volume", "", "Volume file; overrides -affine and -shape"),
		affine: fs.String("affine", "", "16 comma separated row-major affine values"),
		shape:  fs.String("shape", "", "Comma separated array shape, at least 3 entries"),
	}
}

func (g gridFlags) load() (*volume.Volume, error) {
	if *g.volume != "" {
		return loadVolume(*g.volume)
	}
	a, err := parseAffine(*g.affine)
	if err != nil {
		return nil, err
	}
	shape, err := parseInts(*g.shape)
	if err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return volume.Zeros(shape, a)
}

func runReorient(args []string) error {
	fs := flag.NewFlagSet("reorient", flag.ExitOnError)
	grid := addGridFlags(fs)
	output := fs.String("output", "", "Write the reoriented volume to this file")
	configPath := configFlag(fs)
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	v, err := grid.load()
	if err != nil {
		return err
	}
	codes, err := volume.AxisCodes(v, cfg.Geometry.Orientation)
	if err != nil {
		return err
	}

	// Canonical means RAS, so bring other world frames over first.
	if cfg.Geometry.Orientation != orientation.RAS {
		if v, err = volume.ToCoordinateSystem(v, cfg.Geometry.Orientation, orientation.RAS); err != nil {
			return err
		}
	}
	r, err := volume.Reorient(v)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Input axis codes: %s\n", codes)
	fmt.Fprintf(stdout, "Canonical shape: %v\n", r.Shape())
	fmt.Fprintln(stdout, "Canonical affine:")
	printAffine(r.Affine())
	if *output != "" {
		return saveVolume(r, *output)
	}
	return nil
}

func runSame(args []string) error {
	fs := flag.NewFlagSet("same", flag.ExitOnError)
	pathA := fs.String("a", "", "First volume file")
	pathB := fs.String("b", "", "Second volume file")
	rtol := fs.Float64("rtol", -1, "Relative affine tolerance (default from config)")
	configPath := configFlag(fs)
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *rtol < 0 {
		*rtol = cfg.Geometry.Rtol
	}
	a, err := loadVolume(*pathA)
	if err != nil {
		return err
	}
	b, err := loadVolume(*pathB)
	if err != nil {
		return err
	}
	if err := volume.AssertSameSpace(a, b, *rtol); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s and %s share a voxel grid\n", *pathA, *pathB)
	return nil
}

// pointList collects repeated -point flags.
type pointList []affine.Point

func (p *pointList) String() string {
	return fmt.Sprint(*p)
}

func (p *pointList) Set(s string) error {
	vals, err := parseFloats(s)
	if err != nil {
		return err
	}
	if len(vals) != 3 {
		return fmt.Errorf("point needs 3 coordinates, got %d", len(vals))
	}
	*p = append(*p, affine.Point{vals[0], vals[1], vals[2]})
	return nil
}

func runVoxel(args []string) error {
	fs := flag.NewFlagSet("voxel", flag.ExitOnError)
	affineFlag := fs.String("affine", "", "16 comma separated row-major affine values")
	round := fs.Bool("round", true, "Round to the nearest voxel index (half to even)")
	maskPath := fs.String("mask", "", "Volume file whose finite non-zero voxels are valid; its affine replaces -affine")
	k := fs.Int("k", 0, "Valid voxels per point with -mask (default from config)")
	configPath := configFlag(fs)
	var points pointList
	fs.Var(&points, "point", "Physical point x,y,z (repeatable)")
	fs.Parse(args)

	if len(points) == 0 {
		return fmt.Errorf("no points given")
	}

	if *maskPath != "" {
		cfg, err := config.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		if *k == 0 {
			*k = cfg.Geometry.Neighbours
		}
		m, err := loadVolume(*maskPath)
		if err != nil {
			return err
		}
		found, err := voxel.PhysicalToValidVoxels(points, m.Affine(), voxel.MaskFromVolume(m), *k)
		if err != nil {
			return err
		}
		for i, idx := range found {
			fmt.Fprintf(stdout, "%v -> %v\n", points[i], idx)
		}
		return nil
	}

	a, err := parseAffine(*affineFlag)
	if err != nil {
		return err
	}
	if *round {
		indices, err := voxel.PhysicalToVoxelIndices(points, a)
		if err != nil {
			return err
		}
		for i, idx := range indices {
			fmt.Fprintf(stdout, "%v -> %v\n", points[i], idx)
		}
		return nil
	}

	frac, err := voxel.PhysicalToVoxel(points, a)
	if err != nil {
		return err
	}
	for i, p := range frac {
		fmt.Fprintf(stdout, "%v -> %v\n", points[i], p)
	}
	return nil
}

func runR1(args []string) error {
	fs := flag.NewFlagSet("r1", flag.ExitOnError)
	input := fs.String("t1", "", "T1 volume file")
	output := fs.String("output", "r1.yaml", "R1 volume file to write")
	configPath := configFlag(fs)
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	t1, err := loadVolume(*input)
	if err != nil {
		return err
	}
	r1, err := concentration.T1ToR1(t1, cfg.Concentration.R1Scale, cfg.T1Bounds())
	if err != nil {
		return err
	}
	if err := saveVolume(r1, *output); err != nil {
		return err
	}
	log.Printf("wrote R1 map to %s", *output)
	return nil
}

func runConcentration(args []string) error {
	fs := flag.NewFlagSet("concentration", flag.ExitOnError)
	t1Path := fs.String("t1", "", "Post-contrast T1 volume file")
	t10Path := fs.String("t10", "", "Baseline T1 volume file")
	maskPath := fs.String("mask", "", "Optional mask volume file")
	output := fs.String("output", "concentration.yaml", "Concentration volume file to write")
	configPath := configFlag(fs)
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	t1, err := loadVolume(*t1Path)
	if err != nil {
		return err
	}
	t10, err := loadVolume(*t10Path)
	if err != nil {
		return err
	}
	var mask *volume.Volume
	if *maskPath != "" {
		if mask, err = loadVolume(*maskPath); err != nil {
			return err
		}
	}

	c, err := concentration.Map(t1, t10, mask, cfg.Concentration.Relaxivity, cfg.Geometry.Rtol)
	if err != nil {
		return err
	}
	if err := saveVolume(c, *output); err != nil {
		return err
	}
	log.Printf("wrote concentration map to %s", *output)
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	segPath := fs.String("seg", "", "Segmentation volume file")
	dataPath := fs.String("data", "", "Data volume file")
	groups := fs.Bool("groups", false, "Report the default FreeSurfer region groups instead of single labels")
	configPath := configFlag(fs)
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	seg, err := loadVolume(*segPath)
	if err != nil {
		return err
	}
	data, err := loadVolume(*dataPath)
	if err != nil {
		return err
	}

	regions := stats.LabelRegions(seg)
	if *groups {
		regions = stats.DefaultGroups()
	}
	records, err := stats.Compute(seg, data, regions, cfg.Geometry.Rtol)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%-20s %8s %10s %10s %10s %10s\n", "region", "voxels", "volume_ml", "mean", "median", "std")
	for _, r := range records {
		fmt.Fprintf(stdout, "%-20s %8d %10.4g %10.4g %10.4g %10.4g\n",
			r.Region, r.VoxelCount, r.VolumeML, r.Mean, r.Median, r.Std)
	}
	return nil
}

func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	grid := addGridFlags(fs)
	output := fs.String("output", "views", "Directory for the images")
	configPath := configFlag(fs)
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	v, err := grid.load()
	if err != nil {
		return err
	}
	if v, err = volume.Reorient(v); err != nil {
		return err
	}

	view := cfg.View
	viewer := visualization.NewViewer(v)
	if err := viewer.SaveOrthogonal(*output, view.SliceX, view.SliceY, view.SliceZ, view.Format); err != nil {
		return err
	}
	log.Printf("wrote views to %s", *output)
	return nil
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	output := fs.String("output", "mritk.yaml", "Path of the configuration file to write")
	fs.Parse(args)

	if err := config.CreateDefaultConfigFile(*output); err != nil {
		return err
	}
	log.Printf("wrote default configuration to %s", *output)
	return nil
}

func parseAffine(s string) (affine.Affine, error) {
	if s == "" {
		return affine.Identity(), nil
	}
	vals, err := parseFloats(s)
	if err != nil {
		return affine.Affine{}, fmt.Errorf("invalid affine: %w", err)
	}
	return affine.FromSlice(vals)
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func printAffine(a affine.Affine) {
	for i := 0; i < 4; i++ {
		fmt.Fprintf(stdout, "  [%8.4f %8.4f %8.4f %8.4f]\n", a[i][0], a[i][1], a[i][2], a[i][3])
	}
}
