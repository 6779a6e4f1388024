package naturalcoords

import (
	"gonum.org/v1/gonum/floats"

	"nninterp/internal/models"
	"nninterp/pkg/triangulation"
)

// SiteWeights returns the Laplace weights of data site i with respect to its
// Delaunay neighbours, aligned with topo.Neighbors(i). The Voronoi edge dual
// to a hull edge is cut at the edge midpoint. The result is appended to
// dst[:0].
func SiteWeights(topo triangulation.Topology, i int, dst []float64) []float64 {
	dst = dst[:0]
	pi := topo.Point(i)
	for _, j := range topo.Neighbors(i) {
		pj := topo.Point(j)
		mid := models.Point{X: 0.5 * (pi.X + pj.X), Y: 0.5 * (pi.Y + pj.Y)}
		a := voronoiVertex(topo, topo.Adjacent(i, j), mid)
		b := voronoiVertex(topo, topo.Adjacent(j, i), mid)
		dst = append(dst, a.Dist(b)/pi.Dist(pj))
	}
	total := floats.Sum(dst)
	if total > 0 {
		floats.Scale(1/total, dst)
	} else if len(dst) > 0 {
		for k := range dst {
			dst[k] = 1 / float64(len(dst))
		}
	}
	return dst
}

func voronoiVertex(topo triangulation.Topology, t int, fallback models.Point) models.Point {
	if t < 0 {
		return fallback
	}
	tri := topo.Triangle(t)
	cc, ok := triangulation.Circumcenter(topo.Point(tri[0]), topo.Point(tri[1]), topo.Point(tri[2]))
	if !ok {
		return fallback
	}
	return cc
}
