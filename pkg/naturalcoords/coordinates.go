// Package naturalcoords computes natural-neighbour coordinates of a query
// point with respect to a Delaunay triangulation.
//
// The construction is the Bowyer-Watson cavity of the query: every triangle
// whose circumcircle strictly contains the query, grown from the triangle
// that contains it. The cavity boundary (the envelope) lists the natural
// neighbours. Sibson weights are the areas of the convex polygons cut from
// each neighbour's Voronoi cell by the query's new cell; their vertices are
// the circumcentres of the cavity triangles around the neighbour and of the
// two new triangles that share its edge to the query. Laplace weights are
// the lengths of the new Voronoi edges divided by the distance to the
// neighbour.
//
// Ties: a triangle whose circumcircle passes through the query, within a
// relative tolerance, is left out of the cavity. Its far vertex then steals
// no area and is not reported as a neighbour. The envelope is walked
// counter-clockwise starting at its lowest vertex index, so the output order
// never depends on map iteration or insertion order.
package naturalcoords

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"nninterp/internal/models"
	"nninterp/pkg/cache"
	"nninterp/pkg/triangulation"
)

// Method selects the weighting rule.
type Method int

const (
	Sibson Method = iota
	Laplace
)

func (m Method) String() string {
	switch m {
	case Sibson:
		return "sibson"
	case Laplace:
		return "laplace"
	default:
		return "unknown"
	}
}

// Kind records which branch produced a set of coordinates.
type Kind int

const (
	// Interior coordinates come from the full cavity construction.
	Interior Kind = iota
	// Vertex coordinates put all weight on a coincident data site.
	Vertex
	// Edge coordinates are linear weights along a hull edge.
	Edge
	// Extrapolated coordinates are linear weights on the hull edge closest
	// to a query outside the hull.
	Extrapolated
)

// DefaultVertexTolerance is the distance, relative to the triangulation
// scale, under which a query is treated as sitting on a data site.
const DefaultVertexTolerance = 1e-12

// Options controls the engine.
type Options struct {
	// Extrapolate projects queries outside the hull onto the closest hull
	// edge instead of failing with ErrOutOfRange.
	Extrapolate bool
	// VertexTolerance overrides DefaultVertexTolerance when positive.
	VertexTolerance float64
}

func (o Options) vertexTolerance() float64 {
	if o.VertexTolerance > 0 {
		return o.VertexTolerance
	}
	return DefaultVertexTolerance
}

// Coordinates are the natural neighbours of Point with their normalised
// weights. Indices and Weights are backed by the cache that produced them
// and are only valid until that cache is used again.
type Coordinates struct {
	Point   models.Point
	Indices []int
	Weights []float64
	Kind    Kind
}

// Len returns the number of natural neighbours
func (nc Coordinates) Len() int { return len(nc.Indices) }

// Sum returns the total weight, 1 up to rounding
func (nc Coordinates) Sum() float64 { return floats.Sum(nc.Weights) }

// Dominant returns the neighbour with the largest weight. Weights within
// 1e-12 of each other are tied and the lowest vertex index wins.
func (nc Coordinates) Dominant() int {
	if len(nc.Weights) == 0 {
		return -1
	}
	top := floats.Max(nc.Weights)
	best := -1
	for k, j := range nc.Indices {
		if nc.Weights[k] >= top-1e-12 && (best < 0 || j < best) {
			best = j
		}
	}
	return best
}

// Clone copies the coordinates out of the cache.
func (nc Coordinates) Clone() Coordinates {
	out := nc
	out.Indices = append([]int(nil), nc.Indices...)
	out.Weights = append([]float64(nil), nc.Weights...)
	return out
}

// Compute returns the natural-neighbour coordinates of q.
func Compute(topo triangulation.Topology, q models.Point, method Method, opts Options, c *cache.Cache) (Coordinates, error) {
	switch method {
	case Sibson, Laplace:
	default:
		return Coordinates{}, errors.Wrapf(models.ErrInvalidConfiguration, "unknown natural coordinate method %d", method)
	}
	c.Reset()
	scale := topo.Scale()

	v := topo.Nearest(q)
	if topo.Point(v).Dist(q) <= opts.vertexTolerance()*scale {
		return vertexCoordinates(q, v, c), nil
	}

	t := topo.Locate(q)
	if t < 0 {
		if !opts.Extrapolate {
			return Coordinates{}, errors.Wrapf(models.ErrOutOfRange, "point (%g, %g)", q.X, q.Y)
		}
		return extrapolate(topo, q, c), nil
	}

	if u, w, ok := onHullEdge(topo, t, q); ok {
		return twoPoint(topo, q, u, w, Edge, c), nil
	}

	buildCavity(topo, t, q, c)
	if err := buildEnvelope(topo, c); err != nil {
		return Coordinates{}, errors.Wrapf(err, "point (%g, %g)", q.X, q.Y)
	}

	m := len(c.Envelope)
	c.Indices = append(c.Indices, c.Envelope...)
	for i := 0; i < m; i++ {
		vi := c.Envelope[i]
		vp := c.Envelope[(i+m-1)%m]
		vn := c.Envelope[(i+1)%m]
		pi := topo.Point(vi)
		cPrev, ok1 := triangulation.Circumcenter(q, topo.Point(vp), pi)
		cNext, ok2 := triangulation.Circumcenter(q, pi, topo.Point(vn))
		if !ok1 || !ok2 {
			// q is collinear with an envelope edge; only possible when the
			// edge tolerance above was too tight
			a, b := vp, vi
			if !ok2 {
				a, b = vi, vn
			}
			c.Indices = c.Indices[:0]
			c.Weights = c.Weights[:0]
			return twoPoint(topo, q, a, b, Edge, c), nil
		}
		var w float64
		if method == Sibson {
			w = stolenArea(topo, vi, cPrev, cNext, c)
		} else {
			w = cPrev.Dist(cNext) / q.Dist(pi)
		}
		c.Weights = append(c.Weights, w)
	}

	total := floats.Sum(c.Weights)
	if !(total > 0) || math.IsInf(total, 0) {
		return Coordinates{}, errors.Wrapf(models.ErrSingularSystem, "degenerate natural neighbourhood at (%g, %g)", q.X, q.Y)
	}
	floats.Scale(1/total, c.Weights)
	return Coordinates{Point: q, Indices: c.Indices, Weights: c.Weights, Kind: Interior}, nil
}

func vertexCoordinates(q models.Point, v int, c *cache.Cache) Coordinates {
	c.Indices = append(c.Indices, v)
	c.Weights = append(c.Weights, 1)
	return Coordinates{Point: q, Indices: c.Indices, Weights: c.Weights, Kind: Vertex}
}

// twoPoint returns linear weights on segment uv at the projection of q.
func twoPoint(topo triangulation.Topology, q models.Point, u, v int, kind Kind, c *cache.Cache) Coordinates {
	s := triangulation.ProjectToSegment(topo.Point(u), topo.Point(v), q)
	if u > v {
		u, v = v, u
		s = 1 - s
	}
	c.Indices = append(c.Indices, u, v)
	c.Weights = append(c.Weights, 1-s, s)
	return Coordinates{Point: q, Indices: c.Indices, Weights: c.Weights, Kind: kind}
}

// onHullEdge reports whether q lies on a hull edge of triangle t.
func onHullEdge(topo triangulation.Topology, t int, q models.Point) (int, int, bool) {
	tri := topo.Triangle(t)
	tol := 1e-10 * topo.Scale()
	for k := 0; k < 3; k++ {
		u, v := tri[k], tri[(k+1)%3]
		if topo.Adjacent(v, u) >= 0 {
			continue
		}
		pu, pv := topo.Point(u), topo.Point(v)
		if math.Abs(triangulation.Orient(pu, pv, q)) <= tol*pu.Dist(pv) {
			return u, v, true
		}
	}
	return 0, 0, false
}

func extrapolate(topo triangulation.Topology, q models.Point, c *cache.Cache) Coordinates {
	hull := topo.Hull()
	bu, bv := hull[0], hull[0]
	best := math.Inf(1)
	for k := range hull {
		u, v := hull[k], hull[(k+1)%len(hull)]
		pu, pv := topo.Point(u), topo.Point(v)
		s := triangulation.ProjectToSegment(pu, pv, q)
		proj := models.Point{X: pu.X + s*(pv.X-pu.X), Y: pu.Y + s*(pv.Y-pu.Y)}
		if d := proj.Dist2(q); d < best {
			best, bu, bv = d, u, v
		}
	}
	return twoPoint(topo, q, bu, bv, Extrapolated, c)
}

// inCavity is a linear scan; cavities hold a handful of triangles.
func inCavity(c *cache.Cache, t int) bool {
	for _, s := range c.Cavity {
		if s == t {
			return true
		}
	}
	return false
}
