// Package stats computes per-region summary statistics of a data volume
// over a co-registered label segmentation.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mritk/pkg/volume"
)

// Percentiles reported for every region.
var Percentiles = []int{1, 5, 25, 75, 90, 95, 99}

// Record holds the statistics of one region. Value statistics are NaN when
// the region has no finite values.
type Record struct {
	Region     string
	Labels     []int
	VoxelCount int
	VolumeML   float64

	// NumNonFinite counts region voxels whose value is NaN or infinite.
	NumNonFinite int

	Sum, Mean, Median, Std, Min, Max float64

	// PC maps a percentile from Percentiles to its value.
	PC map[int]float64
}

// LabelRegions returns one region per distinct non-zero label of seg, named
// by the label number and sorted ascending.
func LabelRegions(seg *volume.Volume) []Region {
	seen := map[int]bool{}
	for i := 0; i < seg.Len(); i++ {
		if l := int(math.Round(seg.Value(i))); l != 0 {
			seen[l] = true
		}
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	regions := make([]Region, len(labels))
	for i, l := range labels {
		regions[i] = Region{Name: strconv.Itoa(l), Labels: []int{l}}
	}
	return regions
}

// Compute summarises data over every region of seg. The two volumes must be
// in the same space and single-channel.
func Compute(seg, data *volume.Volume, regions []Region, rtol float64) ([]Record, error) {
	if err := volume.AssertSameSpace(seg, data, rtol); err != nil {
		return nil, err
	}
	if seg.Channels() != 1 || data.Channels() != 1 {
		return nil, fmt.Errorf("statistics need single-channel volumes, got %d and %d channels", seg.Channels(), data.Channels())
	}

	voxelML := seg.VoxelVolumeML()
	records := make([]Record, 0, len(regions))
	for _, r := range regions {
		in := make(map[int]bool, len(r.Labels))
		for _, l := range r.Labels {
			in[l] = true
		}

		rec := Record{
			Region: r.Name,
			Labels: append([]int(nil), r.Labels...),
		}
		var values []float64
		for i := 0; i < seg.Len(); i++ {
			if !in[int(math.Round(seg.Value(i)))] {
				continue
			}
			rec.VoxelCount++
			x := data.Value(i)
			if math.IsNaN(x) || math.IsInf(x, 0) {
				rec.NumNonFinite++
				continue
			}
			values = append(values, x)
		}
		rec.VolumeML = voxelML * float64(rec.VoxelCount)
		summarize(&rec, values)
		records = append(records, rec)
	}
	return records, nil
}

func summarize(rec *Record, values []float64) {
	rec.PC = make(map[int]float64, len(Percentiles))
	if len(values) == 0 {
		nan := math.NaN()
		rec.Sum, rec.Mean, rec.Median, rec.Std, rec.Min, rec.Max = nan, nan, nan, nan, nan, nan
		for _, p := range Percentiles {
			rec.PC[p] = nan
		}
		return
	}

	sort.Float64s(values)
	rec.Sum = floats.Sum(values)
	rec.Mean, rec.Std = stat.PopMeanStdDev(values, nil)
	rec.Min = floats.Min(values)
	rec.Max = floats.Max(values)
	rec.Median = quantile(values, 0.5)
	for _, p := range Percentiles {
		rec.PC[p] = quantile(values, float64(p)/100)
	}
}

// quantile linearly interpolates between the two closest ranks of sorted x,
// the numpy default. gonum's LinInterp interpolates the empirical CDF
// instead, which gives different medians for even-sized samples.
func quantile(x []float64, p float64) float64 {
	pos := p * float64(len(x)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return x[lo]
	}
	frac := pos - float64(lo)
	return x[lo] + frac*(x[hi]-x[lo])
}
