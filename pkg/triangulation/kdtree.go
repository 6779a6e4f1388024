package triangulation

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"nninterp/internal/models"
)

// site is a vertex held in the kd-tree, carrying its index into the point set.
type site struct {
	models.Point
	index int
}

func (s site) coord(d kdtree.Dim) float64 {
	if d == 0 {
		return s.X
	}
	return s.Y
}

func (s site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return s.coord(d) - c.(site).coord(d)
}

func (s site) Dims() int { return 2 }

// Distance is squared, as kdtree expects.
func (s site) Distance(c kdtree.Comparable) float64 {
	return s.Dist2(c.(site).Point)
}

type sites []site

func (s sites) Index(i int) kdtree.Comparable         { return s[i] }
func (s sites) Len() int                              { return len(s) }
func (s sites) Slice(start, end int) kdtree.Interface { return s[start:end] }

// Pivot splits at the median along d. Median of medians keeps the tree
// shape independent of any random source.
func (s sites) Pivot(d kdtree.Dim) int {
	axis := byAxis{sites: s, dim: d}
	return kdtree.Partition(axis, kdtree.MedianOfMedians(axis))
}

// byAxis orders sites along one coordinate.
type byAxis struct {
	sites
	dim kdtree.Dim
}

func (a byAxis) Less(i, j int) bool { return a.sites[i].coord(a.dim) < a.sites[j].coord(a.dim) }
func (a byAxis) Swap(i, j int)      { a.sites[i], a.sites[j] = a.sites[j], a.sites[i] }

func (a byAxis) Slice(start, end int) kdtree.SortSlicer {
	return byAxis{sites: a.sites[start:end], dim: a.dim}
}

// newSiteTree indexes a copy of points; kdtree.New reorders its input.
func newSiteTree(points []models.Point) *kdtree.Tree {
	s := make(sites, len(points))
	for i, p := range points {
		s[i] = site{Point: p, index: i}
	}
	return kdtree.New(s, false)
}
