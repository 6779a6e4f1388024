// Package triangulation provides the read-only view of a planar Delaunay
// triangulation consumed by the natural-neighbour code, plus a reference
// builder for point sets.
package triangulation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"nninterp/internal/models"
)

// Topology is the read-only triangulation adapter. Triangles are stored
// counter-clockwise. Implementations must not be mutated while any
// evaluation is in flight.
type Topology interface {
	NumPoints() int
	Point(i int) models.Point
	NumTriangles() int
	Triangle(t int) [3]int
	// Adjacent returns the triangle holding the directed edge u→v, or -1.
	Adjacent(u, v int) int
	IncidentTriangles(i int) []int
	// Neighbors returns the vertices sharing an edge with i, ascending.
	Neighbors(i int) []int
	IsBoundary(i int) bool
	// Hull returns the convex hull vertices in counter-clockwise order.
	Hull() []int
	// Locate returns a triangle containing p (boundary inclusive), or -1
	// when p lies outside the convex hull.
	Locate(p models.Point) int
	// Nearest returns the vertex closest to p.
	Nearest(p models.Point) int
	// Scale is a characteristic length of the point set, used to make
	// geometric tolerances relative.
	Scale() float64
}

type edge [2]int

// Triangulation is an immutable Delaunay triangulation of a point set.
type Triangulation struct {
	points     []models.Point
	triangles  [][3]int
	edges      map[edge]int
	vertexTris [][]int
	neighbors  [][]int
	boundary   []bool
	hull       []int
	scale      float64
	tree       *kdtree.Tree
}

var _ Topology = (*Triangulation)(nil)

func (tr *Triangulation) NumPoints() int                { return len(tr.points) }
func (tr *Triangulation) Point(i int) models.Point      { return tr.points[i] }
func (tr *Triangulation) NumTriangles() int             { return len(tr.triangles) }
func (tr *Triangulation) Triangle(t int) [3]int         { return tr.triangles[t] }
func (tr *Triangulation) IncidentTriangles(i int) []int { return tr.vertexTris[i] }
func (tr *Triangulation) Neighbors(i int) []int         { return tr.neighbors[i] }
func (tr *Triangulation) IsBoundary(i int) bool         { return tr.boundary[i] }
func (tr *Triangulation) Hull() []int                   { return tr.hull }
func (tr *Triangulation) Scale() float64                { return tr.scale }

func (tr *Triangulation) Adjacent(u, v int) int {
	if t, ok := tr.edges[edge{u, v}]; ok {
		return t
	}
	return -1
}

// Nearest returns the index of the vertex closest to p
func (tr *Triangulation) Nearest(p models.Point) int {
	c, _ := tr.tree.Nearest(site{Point: p})
	return c.(site).index
}

// Locate finds the triangle containing p with a visibility walk seeded at
// the nearest vertex. Points within a relative tolerance of an edge count
// as inside.
func (tr *Triangulation) Locate(p models.Point) int {
	if len(tr.triangles) == 0 {
		return -1
	}
	eps := 1e-12 * tr.scale * tr.scale
	t := tr.vertexTris[tr.Nearest(p)][0]

walk:
	for steps := 0; steps <= len(tr.triangles); steps++ {
		tri := tr.triangles[t]
		for k := 0; k < 3; k++ {
			u, v := tri[k], tri[(k+1)%3]
			if Orient(tr.points[u], tr.points[v], p) < -eps {
				next := tr.Adjacent(v, u)
				if next < 0 {
					return -1
				}
				t = next
				continue walk
			}
		}
		return t
	}

	// the walk only fails to terminate on badly degenerate input
	for t, tri := range tr.triangles {
		if Orient(tr.points[tri[0]], tr.points[tri[1]], p) >= -eps &&
			Orient(tr.points[tri[1]], tr.points[tri[2]], p) >= -eps &&
			Orient(tr.points[tri[2]], tr.points[tri[0]], p) >= -eps {
			return t
		}
	}
	return -1
}

// index fills the derived adjacency structures from tr.triangles.
func (tr *Triangulation) index() {
	n := len(tr.points)
	tr.edges = make(map[edge]int, 3*len(tr.triangles))
	tr.vertexTris = make([][]int, n)
	for t, tri := range tr.triangles {
		for k := 0; k < 3; k++ {
			u, v := tri[k], tri[(k+1)%3]
			tr.edges[edge{u, v}] = t
			tr.vertexTris[u] = append(tr.vertexTris[u], t)
		}
	}

	seen := make([]map[int]struct{}, n)
	tr.boundary = make([]bool, n)
	next := make(map[int]int)
	for e := range tr.edges {
		u, v := e[0], e[1]
		if seen[u] == nil {
			seen[u] = make(map[int]struct{})
		}
		if seen[v] == nil {
			seen[v] = make(map[int]struct{})
		}
		seen[u][v] = struct{}{}
		seen[v][u] = struct{}{}
		if _, ok := tr.edges[edge{v, u}]; !ok {
			tr.boundary[u] = true
			tr.boundary[v] = true
			next[u] = v
		}
	}
	tr.neighbors = make([][]int, n)
	for i := range seen {
		nb := make([]int, 0, len(seen[i]))
		for j := range seen[i] {
			nb = append(nb, j)
		}
		sort.Ints(nb)
		tr.neighbors[i] = nb
	}

	start := -1
	for u := range next {
		if start < 0 || u < start {
			start = u
		}
	}
	tr.hull = tr.hull[:0]
	for u := start; u >= 0 && len(tr.hull) < len(next); {
		tr.hull = append(tr.hull, u)
		v, ok := next[u]
		if !ok || v == start {
			break
		}
		u = v
	}

	tr.tree = newSiteTree(tr.points)
}

func boundingBox(points []models.Point) (lo, hi models.Point) {
	lo = models.Point{X: math.Inf(1), Y: math.Inf(1)}
	hi = models.Point{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, p := range points {
		lo.X = math.Min(lo.X, p.X)
		lo.Y = math.Min(lo.Y, p.Y)
		hi.X = math.Max(hi.X, p.X)
		hi.Y = math.Max(hi.Y, p.Y)
	}
	return
}
