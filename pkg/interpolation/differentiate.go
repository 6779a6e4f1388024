package interpolation

import (
	"context"

	"github.com/pkg/errors"

	"nninterp/internal/models"
	"nninterp/pkg/cache"
	"nninterp/pkg/derivatives"
	"nninterp/pkg/naturalcoords"
	"nninterp/pkg/parallel"
)

// Differentiate estimates the gradient and, for order 2, the Hessian of the
// interpolant at (x, y). The value at the point comes from s; the
// derivatives come from a local fit over its natural neighbours using the
// interpolant's derivative options with order and method overridden.
// Iterative needs site gradients, supplied or generated.
func (ip *Interpolant) Differentiate(x, y float64, order int, method derivatives.Method, s Scheme, c *cache.Cache) (models.Gradient, models.Hessian, error) {
	opts, grads, err := ip.differentiation(order, method, s)
	if err != nil {
		return models.Gradient{}, models.Hessian{}, err
	}
	if c == nil {
		c = cache.New()
	}
	return ip.differentiate(models.Point{X: x, Y: y}, s, opts, grads, c)
}

func (ip *Interpolant) differentiation(order int, method derivatives.Method, s Scheme) (derivatives.Options, []models.Gradient, error) {
	opts := ip.derivOpts
	opts.Order = order
	opts.Method = method
	if err := opts.Validate(); err != nil {
		return opts, nil, err
	}
	if err := s.Validate(); err != nil {
		return opts, nil, err
	}
	if method != derivatives.Iterative && !s.needsGradients() {
		return opts, nil, nil
	}
	grads, err := ip.Gradients()
	if err != nil {
		return opts, nil, err
	}
	return opts, grads, nil
}

func (ip *Interpolant) differentiate(q models.Point, s Scheme, opts derivatives.Options, grads []models.Gradient, c *cache.Cache) (models.Gradient, models.Hessian, error) {
	zq, err := ip.evaluate(q, s, grads, c)
	if err != nil {
		return models.Gradient{}, models.Hessian{}, err
	}
	nc, err := naturalcoords.Compute(ip.topo, q, naturalcoords.Sibson, ip.coordOptions(), c)
	if err != nil {
		return models.Gradient{}, models.Hessian{}, err
	}
	return derivatives.Estimate(ip.topo, ip.z, grads, q, zq, nc, opts, c)
}

// DifferentiateMany is Differentiate over aligned coordinate slices. The
// Hessian slice is nil for order 1.
func (ip *Interpolant) DifferentiateMany(xs, ys []float64, order int, method derivatives.Method, s Scheme, par bool) ([]models.Gradient, []models.Hessian, error) {
	if len(xs) != len(ys) {
		return nil, nil, errors.Wrapf(ErrInvalidConfiguration, "%d x coordinates and %d y coordinates", len(xs), len(ys))
	}
	opts, grads, err := ip.differentiation(order, method, s)
	if err != nil {
		return nil, nil, err
	}

	gs := make([]models.Gradient, len(xs))
	var hs []models.Hessian
	if order == 2 {
		hs = make([]models.Hessian, len(xs))
	}
	workers := ip.workers(par)
	pool := cache.NewPool(workers)
	err = parallel.RunWithProgress(len(xs), workers, func(ctx context.Context, w, lo, hi int) error {
		c := pool[w]
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			g, h, err := ip.differentiate(models.Point{X: xs[i], Y: ys[i]}, s, opts, grads, c)
			if err != nil {
				return errors.Wrapf(err, "query %d", i)
			}
			gs[i] = g
			if hs != nil {
				hs[i] = h
			}
		}
		return nil
	}, ip.progress)
	if err != nil {
		return nil, nil, err
	}
	return gs, hs, nil
}
