package voxel

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

var (
	// ErrEmptyMask is returned when a mask has no set voxels to search.
	ErrEmptyMask = errors.New("mask has no valid voxels")

	// ErrInvalidK is returned for a neighbour count below 1.
	ErrInvalidK = errors.New("neighbour count must be at least 1")
)

// DimError reports a query whose dimensionality does not match the mask.
type DimError struct {
	Want, Got int
}

func (e *DimError) Error() string {
	return fmt.Sprintf("query has %d coordinates, mask has %d dimensions", e.Got, e.Want)
}

// site is a valid voxel, or a query, as a point in index space.
type site struct {
	coord []float64
	index []int
}

// Compare implements the kdtree.Comparable interface
func (s site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return s.coord[d] - c.(site).coord[d]
}

// Dims returns the number of dimensions for the KD-tree
func (s site) Dims() int { return len(s.coord) }

// Distance returns the squared Euclidean distance between two sites
func (s site) Distance(c kdtree.Comparable) float64 {
	q := c.(site)
	d := 0.0
	for i, v := range s.coord {
		diff := v - q.coord[i]
		d += diff * diff
	}
	return d
}

// sites is a collection of site that satisfies kdtree.Interface
type sites []site

func (p sites) Index(i int) kdtree.Comparable         { return p[i] }
func (p sites) Len() int                               { return len(p) }
func (p sites) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method. Median of medians keeps the
// tree layout independent of any random source.
func (p sites) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(sitePlane{sites: p, Dim: d}, kdtree.MedianOfMedians(sitePlane{sites: p, Dim: d}))
}

// sitePlane implements sort.Interface and kdtree.SortSlicer for sites
type sitePlane struct {
	sites
	kdtree.Dim
}

func (p sitePlane) Less(i, j int) bool {
	return p.sites[i].coord[p.Dim] < p.sites[j].coord[p.Dim]
}

func (p sitePlane) Slice(start, end int) kdtree.SortSlicer {
	return sitePlane{sites: p.sites[start:end], Dim: p.Dim}
}

func (p sitePlane) Swap(i, j int) {
	p.sites[i], p.sites[j] = p.sites[j], p.sites[i]
}

// ValidIndex is a static k-d tree over the set voxels of a mask. Build it
// once and query it many times; it is safe for concurrent queries.
type ValidIndex struct {
	tree  *kdtree.Tree
	dims  int
	count int
}

// NewValidIndex indexes every set voxel of mask. It fails with ErrEmptyMask
// if there are none.
func NewValidIndex(mask *Mask) (*ValidIndex, error) {
	coords := mask.Coordinates()
	if len(coords) == 0 {
		return nil, fmt.Errorf("%w: shape %v", ErrEmptyMask, mask.shape)
	}
	points := make(sites, len(coords))
	for i, idx := range coords {
		c := make([]float64, len(idx))
		for j, v := range idx {
			c[j] = float64(v)
		}
		points[i] = site{coord: c, index: idx}
	}
	return &ValidIndex{
		tree:  kdtree.New(points, false),
		dims:  mask.NumDims(),
		count: len(points),
	}, nil
}

// Len is the number of indexed voxels.
func (x *ValidIndex) Len() int { return x.count }

// Nearest returns, for every query, the k closest indexed voxels by
// Euclidean distance, nearest first. Equal distances are ordered by voxel
// index. When k exceeds the number of indexed voxels all of them are
// returned. The result is indexed [query][neighbour][axis].
func (x *ValidIndex) Nearest(queries [][]float64, k int) ([][][]int, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if k > x.count {
		k = x.count
	}

	out := make([][][]int, len(queries))
	for qi, q := range queries {
		if len(q) != x.dims {
			return nil, &DimError{Want: x.dims, Got: len(q)}
		}

		// The k-th nearest distance bounds the search; collecting every voxel
		// within it lets ties at the boundary be settled by index.
		keeper := kdtree.NewNKeeper(k)
		x.tree.NearestSet(keeper, site{coord: q})
		radius := 0.0
		for _, item := range keeper.Heap {
			if item.Comparable != nil && item.Dist > radius {
				radius = item.Dist
			}
		}
		within := kdtree.NewDistKeeper(radius)
		x.tree.NearestSet(within, site{coord: q})

		found := make([]kdtree.ComparableDist, 0, len(within.Heap))
		for _, item := range within.Heap {
			// Skip the sentinel value
			if item.Comparable == nil {
				continue
			}
			found = append(found, item)
		}
		sort.Slice(found, func(i, j int) bool {
			if found[i].Dist != found[j].Dist {
				return found[i].Dist < found[j].Dist
			}
			return lessIndex(found[i].Comparable.(site).index, found[j].Comparable.(site).index)
		})
		if len(found) > k {
			found = found[:k]
		}

		neighbours := make([][]int, len(found))
		for n, item := range found {
			neighbours[n] = append([]int(nil), item.Comparable.(site).index...)
		}
		out[qi] = neighbours
	}
	return out, nil
}

func lessIndex(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// NearestValid builds a ValidIndex over mask and queries it once. Queries
// are (possibly fractional) voxel coordinates with one entry per mask axis.
func NearestValid(queries [][]float64, mask *Mask, k int) ([][][]int, error) {
	idx, err := NewValidIndex(mask)
	if err != nil {
		return nil, err
	}
	return idx.Nearest(queries, k)
}
