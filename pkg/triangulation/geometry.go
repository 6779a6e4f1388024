package triangulation

import (
	"math"

	"nninterp/internal/models"
)

// Orient returns twice the signed area of the triangle abc. It is positive
// when abc turns counter-clockwise, negative when clockwise.
func Orient(a, b, c models.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// InCircle is positive when d lies strictly inside the circumcircle of the
// counter-clockwise triangle abc, negative outside and zero on the circle.
func InCircle(a, b, c, d models.Point) float64 {
	adx, ady := a.X-d.X, a.Y-d.Y
	bdx, bdy := b.X-d.X, b.Y-d.Y
	cdx, cdy := c.X-d.X, c.Y-d.Y
	return (adx*adx+ady*ady)*(bdx*cdy-cdx*bdy) -
		(bdx*bdx+bdy*bdy)*(adx*cdy-cdx*ady) +
		(cdx*cdx+cdy*cdy)*(adx*bdy-bdx*ady)
}

// circleTolerance is the relative margin by which a point must clear a
// circumcircle to count as strictly inside it.
const circleTolerance = 1e-10

// InCircumcircle reports whether d lies strictly inside the circumcircle of
// the counter-clockwise triangle abc. The InCircle determinant is compared
// against a bound on its magnitude, so points within a relative tolerance of
// the circle count as outside and co-circular ties are always excluded.
func InCircumcircle(a, b, c, d models.Point) bool {
	la, lb, lc := a.Dist2(d), b.Dist2(d), c.Dist2(d)
	bound := la*math.Sqrt(lb*lc) + lb*math.Sqrt(la*lc) + lc*math.Sqrt(la*lb)
	return InCircle(a, b, c, d) > circleTolerance*bound
}

// Circumcenter returns the centre of the circle through a, b and c. ok is
// false for collinear input.
func Circumcenter(a, b, c models.Point) (cc models.Point, ok bool) {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	d := 2 * (bx*cy - by*cx)
	if d == 0 {
		return models.Point{}, false
	}
	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	cc.X = a.X + (cy*b2-by*c2)/d
	cc.Y = a.Y + (bx*c2-cx*b2)/d
	return cc, !math.IsInf(cc.X, 0) && !math.IsInf(cc.Y, 0)
}

// Barycentric returns the barycentric coordinates of p in triangle abc.
func Barycentric(a, b, c, p models.Point) (la, lb, lc float64) {
	area := Orient(a, b, c)
	la = Orient(p, b, c) / area
	lb = Orient(a, p, c) / area
	lc = 1 - la - lb
	return
}

// ProjectToSegment returns the parameter t ∈ [0, 1] of the point on segment
// ab closest to p.
func ProjectToSegment(a, b, p models.Point) float64 {
	ab := b.Sub(a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 == 0 {
		return 0
	}
	ap := p.Sub(a)
	t := (ap.X*ab.X + ap.Y*ab.Y) / l2
	return math.Max(0, math.Min(1, t))
}
