package models

import "math"

// Point is a planar data site or query location
type Point struct {
	X, Y float64
}

// Sub returns p - q
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dist returns the Euclidean distance between two points
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Dist2 returns the squared Euclidean distance between two points
func (p Point) Dist2(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// Gradient holds the first partial derivatives (∂x, ∂y) at a point
type Gradient struct {
	X, Y float64
}

// Dot returns the directional change of the gradient along d
func (g Gradient) Dot(d Point) float64 {
	return g.X*d.X + g.Y*d.Y
}

// Hessian holds the second partial derivatives (∂xx, ∂yy, ∂xy). The
// matrix is symmetric so ∂yx is not stored.
type Hessian struct {
	XX, YY, XY float64
}

// Quad returns ½ dᵀ H d
func (h Hessian) Quad(d Point) float64 {
	return 0.5*(h.XX*d.X*d.X+h.YY*d.Y*d.Y) + h.XY*d.X*d.Y
}

// Apply returns H d
func (h Hessian) Apply(d Point) Gradient {
	return Gradient{
		X: h.XX*d.X + h.XY*d.Y,
		Y: h.XY*d.X + h.YY*d.Y,
	}
}
