package interpolation

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"nninterp/internal/models"
	"nninterp/pkg/cache"
	"nninterp/pkg/naturalcoords"
	"nninterp/pkg/parallel"
	"nninterp/pkg/triangulation"
)

// Evaluate interpolates at (x, y). c may be nil, in which case a fresh
// cache is used; pass a cache when evaluating many points on one goroutine.
func (ip *Interpolant) Evaluate(x, y float64, s Scheme, c *cache.Cache) (float64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	var grads []models.Gradient
	if s.needsGradients() {
		g, err := ip.Gradients()
		if err != nil {
			return 0, err
		}
		grads = g
	}
	if c == nil {
		c = cache.New()
	}
	return ip.evaluate(models.Point{X: x, Y: y}, s, grads, c)
}

func (ip *Interpolant) evaluate(q models.Point, s Scheme, grads []models.Gradient, c *cache.Cache) (float64, error) {
	switch s.Kind {
	case KindTriangle:
		return ip.linear(q, c)
	case KindLaplace:
		nc, err := naturalcoords.Compute(ip.topo, q, naturalcoords.Laplace, ip.coordOptions(), c)
		if err != nil {
			return 0, err
		}
		return ip.blend(nc), nil
	}

	nc, err := naturalcoords.Compute(ip.topo, q, naturalcoords.Sibson, ip.coordOptions(), c)
	if err != nil {
		return 0, err
	}
	switch {
	case s.Kind == KindNearest:
		return ip.z[nc.Dominant()], nil
	case s.D == 1 && nc.Kind != naturalcoords.Vertex:
		return ip.sibson1(nc, grads), nil
	default:
		return ip.blend(nc), nil
	}
}

// blend returns Σ λ_i z_i
func (ip *Interpolant) blend(nc naturalcoords.Coordinates) float64 {
	v := 0.0
	for k, j := range nc.Indices {
		v += nc.Weights[k] * ip.z[j]
	}
	return v
}

// sibson1 is Sibson's C¹ interpolant: the Sibson blend of the site values
// and of the first-order Taylor predictions ζ_i = z_i + ∇_i·(q - p_i),
// mixed by the weights α = Σλr / Σ(λ/r) and β = Σλr².
func (ip *Interpolant) sibson1(nc naturalcoords.Coordinates, grads []models.Gradient) float64 {
	q := nc.Point
	var z0, sInv, sZeta, sR, sR2 float64
	for k, j := range nc.Indices {
		l := nc.Weights[k]
		p := ip.topo.Point(j)
		r := q.Dist(p)
		zeta := ip.z[j] + grads[j].Dot(q.Sub(p))
		z0 += l * ip.z[j]
		sInv += l / r
		sZeta += l / r * zeta
		sR += l * r
		sR2 += l * r * r
	}
	if sInv == 0 || math.IsInf(sInv, 0) {
		return z0
	}
	zeta := sZeta / sInv
	alpha := sR / sInv
	beta := sR2
	return (alpha*z0 + beta*zeta) / (alpha + beta)
}

// linear interpolates barycentrically in the triangle containing q
func (ip *Interpolant) linear(q models.Point, c *cache.Cache) (float64, error) {
	t := ip.topo.Locate(q)
	if t < 0 {
		if !ip.extrapolate {
			return 0, errors.Wrapf(ErrOutOfRange, "point (%g, %g)", q.X, q.Y)
		}
		nc, err := naturalcoords.Compute(ip.topo, q, naturalcoords.Sibson, ip.coordOptions(), c)
		if err != nil {
			return 0, err
		}
		return ip.blend(nc), nil
	}
	tri := ip.topo.Triangle(t)
	la, lb, lc := triangulation.Barycentric(ip.topo.Point(tri[0]), ip.topo.Point(tri[1]), ip.topo.Point(tri[2]), q)
	return la*ip.z[tri[0]] + lb*ip.z[tri[1]] + lc*ip.z[tri[2]], nil
}

// EvaluateMany interpolates at every (xs[i], ys[i]). With par set the points
// are spread over one worker per core. Any failure aborts the batch and
// returns a nil slice.
func (ip *Interpolant) EvaluateMany(xs, ys []float64, s Scheme, par bool) ([]float64, error) {
	dst := make([]float64, len(xs))
	if err := ip.EvaluateInto(dst, xs, ys, s, par); err != nil {
		return nil, err
	}
	return dst, nil
}

// EvaluateInto is EvaluateMany writing into dst, which must be as long as xs.
func (ip *Interpolant) EvaluateInto(dst, xs, ys []float64, s Scheme, par bool) error {
	if len(xs) != len(ys) {
		return errors.Wrapf(ErrInvalidConfiguration, "%d x coordinates and %d y coordinates", len(xs), len(ys))
	}
	if len(dst) != len(xs) {
		return errors.Wrapf(ErrInvalidConfiguration, "destination holds %d values for %d points", len(dst), len(xs))
	}
	if err := s.Validate(); err != nil {
		return err
	}
	var grads []models.Gradient
	if s.needsGradients() {
		g, err := ip.Gradients()
		if err != nil {
			return err
		}
		grads = g
	}

	workers := ip.workers(par)
	pool := cache.NewPool(workers)
	return parallel.RunWithProgress(len(xs), workers, func(ctx context.Context, w, lo, hi int) error {
		c := pool[w]
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := ip.evaluate(models.Point{X: xs[i], Y: ys[i]}, s, grads, c)
			if err != nil {
				return errors.Wrapf(err, "query %d", i)
			}
			dst[i] = v
		}
		return nil
	}, ip.progress)
}
