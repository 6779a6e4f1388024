package naturalcoords

import (
	"math"

	"github.com/pkg/errors"

	"nninterp/internal/models"
	"nninterp/pkg/cache"
	"nninterp/pkg/triangulation"
)

// buildCavity collects, in c.Cavity, the triangles whose circumcircle
// strictly contains q, starting from the containing triangle t.
func buildCavity(topo triangulation.Topology, t int, q models.Point, c *cache.Cache) {
	c.Cavity = append(c.Cavity, t)
	c.Visited[t] = struct{}{}
	stack := c.Neighbors[:0]
	stack = append(stack, t)
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		tri := topo.Triangle(s)
		for k := 0; k < 3; k++ {
			u, v := tri[k], tri[(k+1)%3]
			nb := topo.Adjacent(v, u)
			if nb < 0 {
				continue
			}
			if _, seen := c.Visited[nb]; seen {
				continue
			}
			c.Visited[nb] = struct{}{}
			if insideCircumcircle(topo, nb, q) {
				c.Cavity = append(c.Cavity, nb)
				stack = append(stack, nb)
			}
		}
	}
	c.Neighbors = stack
}

func insideCircumcircle(topo triangulation.Topology, t int, q models.Point) bool {
	tri := topo.Triangle(t)
	return triangulation.InCircumcircle(topo.Point(tri[0]), topo.Point(tri[1]), topo.Point(tri[2]), q)
}

// buildEnvelope writes the cavity boundary to c.Envelope as a
// counter-clockwise cycle starting at its lowest vertex.
func buildEnvelope(topo triangulation.Topology, c *cache.Cache) error {
	// boundary edges as flat (from, to) pairs
	pairs := c.Indices[:0]
	for _, t := range c.Cavity {
		tri := topo.Triangle(t)
		for k := 0; k < 3; k++ {
			u, v := tri[k], tri[(k+1)%3]
			if nb := topo.Adjacent(v, u); nb >= 0 && inCavity(c, nb) {
				continue
			}
			pairs = append(pairs, u, v)
		}
	}
	m := len(pairs) / 2
	if m < 3 {
		c.Indices = pairs[:0]
		return errors.Wrapf(models.ErrSingularSystem, "cavity envelope has %d edges", m)
	}
	start := pairs[0]
	for k := 0; k < m; k++ {
		if pairs[2*k] < start {
			start = pairs[2*k]
		}
	}

	env := c.Envelope[:0]
	cur := start
	for len(env) < m {
		env = append(env, cur)
		next := -1
		for k := 0; k < m; k++ {
			if pairs[2*k] == cur {
				next = pairs[2*k+1]
				break
			}
		}
		if next < 0 {
			c.Indices = pairs[:0]
			return errors.Wrap(models.ErrSingularSystem, "cavity envelope is not closed")
		}
		if next == start {
			break
		}
		cur = next
	}
	c.Envelope = env
	c.Indices = pairs[:0]
	if len(env) != m {
		return errors.Wrap(models.ErrSingularSystem, "cavity envelope is not a simple cycle")
	}
	return nil
}

// stolenArea is the area of the part of vi's Voronoi cell taken over by the
// query. The region is convex, so its vertices are ordered by angle about
// their centroid before the shoelace sum.
func stolenArea(topo triangulation.Topology, vi int, cPrev, cNext models.Point, c *cache.Cache) float64 {
	poly := c.Polygon[:0]
	poly = append(poly, cPrev, cNext)
	for _, t := range c.Cavity {
		tri := topo.Triangle(t)
		if tri[0] != vi && tri[1] != vi && tri[2] != vi {
			continue
		}
		cc, ok := triangulation.Circumcenter(topo.Point(tri[0]), topo.Point(tri[1]), topo.Point(tri[2]))
		if ok {
			poly = append(poly, cc)
		}
	}
	c.Polygon = poly
	return convexArea(poly)
}

func convexArea(poly []models.Point) float64 {
	n := len(poly)
	if n < 3 {
		return 0
	}
	var g models.Point
	for _, p := range poly {
		g.X += p.X
		g.Y += p.Y
	}
	g.X /= float64(n)
	g.Y /= float64(n)

	// insertion sort by angle; polygons have a handful of vertices
	for i := 1; i < n; i++ {
		p := poly[i]
		a := math.Atan2(p.Y-g.Y, p.X-g.X)
		j := i - 1
		for j >= 0 && math.Atan2(poly[j].Y-g.Y, poly[j].X-g.X) > a {
			poly[j+1] = poly[j]
			j--
		}
		poly[j+1] = p
	}

	area := 0.0
	for i := 0; i < n; i++ {
		p, q := poly[i], poly[(i+1)%n]
		area += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(area) / 2
}
