package derivatives

import (
	"github.com/pkg/errors"

	"nninterp/internal/models"
	"nninterp/pkg/cache"
	"nninterp/pkg/naturalcoords"
	"nninterp/pkg/triangulation"
)

// Estimate fits derivatives at an arbitrary point q with interpolated value
// zq over the natural neighbours in nc. Direct fits the neighbour values
// only. Iterative also matches the site gradients grads, weighting value
// rows by opts.Alpha and gradient rows by 1 - opts.Alpha.
//
// Order-2 fits extend the neighbourhood by the Delaunay neighbours of each
// natural neighbour; queries on a vertex use that vertex's neighbours. The
// Hessian is zero for order 1 or when the fit had to fall back to a linear
// basis.
func Estimate(topo triangulation.Topology, z []float64, grads []models.Gradient, q models.Point, zq float64,
	nc naturalcoords.Coordinates, opts Options, c *cache.Cache) (models.Gradient, models.Hessian, error) {
	if err := opts.Validate(); err != nil {
		return models.Gradient{}, models.Hessian{}, err
	}
	if opts.Method == Iterative && len(grads) != topo.NumPoints() {
		return models.Gradient{}, models.Hessian{}, errors.Wrap(models.ErrMissingGradient, "iterative differentiation needs site gradients")
	}

	c.ResetFit()
	if nc.Kind == naturalcoords.Vertex && nc.Len() == 1 {
		c.Ring = append(c.Ring, topo.Neighbors(nc.Indices[0])...)
	} else {
		c.Ring = append(c.Ring, nc.Indices...)
	}
	// two collinear hull sites cannot fix a planar gradient
	if opts.Order == 2 || nc.Kind == naturalcoords.Edge || nc.Kind == naturalcoords.Extrapolated {
		expand(topo, c, -1)
	}

	tol := naturalcoords.DefaultVertexTolerance * topo.Scale()
	kept := c.Ring[:0]
	for _, j := range c.Ring {
		d := topo.Point(j).Sub(q)
		if d.X*d.X+d.Y*d.Y <= tol*tol {
			continue
		}
		kept = append(kept, j)
		stage(c, d, z[j]-zq)
	}
	c.Ring = kept
	h := normalise(c, 0)

	cols := basis(opts)
	if opts.Method == Iterative {
		cols = linearCols
		if opts.Order == 2 {
			cols = quadraticCols
		}
	}
	for ; cols > 0; cols = downgrade(cols) {
		var fill rowFunc
		if opts.Method == Iterative {
			fill = gradientRows(c, grads, models.Gradient{}, opts.Alpha, h, cols)
		} else {
			fill = func(row []float64, k int) float64 {
				w := c.RowWeights[k]
				taylorRow(row, c.Offsets[k], w)
				return w * c.Targets[k]
			}
		}
		m := len(c.Offsets)
		if opts.Method == Iterative {
			m *= 3
		}
		x, err := solve(c, m, cols, fill)
		if err != nil {
			if downgrade(cols) == 0 {
				return models.Gradient{}, models.Hessian{}, errors.Wrapf(err, "point (%g, %g)", q.X, q.Y)
			}
			continue
		}
		g, hs := unscale(x, cols, h)
		return g, hs, nil
	}
	return models.Gradient{}, models.Hessian{}, errors.Wrapf(models.ErrSingularSystem, "point (%g, %g)", q.X, q.Y)
}

// gradientRows lays out the Iterative system: value rows for every staged
// sample followed by two gradient rows per sample. In scaled coordinates the
// gradient of the local model at d is g + H·d, matched against
// h·(∇z_j - base).
func gradientRows(c *cache.Cache, grads []models.Gradient, base models.Gradient, alpha, h float64, cols int) rowFunc {
	m := len(c.Offsets)
	return func(row []float64, k int) float64 {
		if k < m {
			w := alpha * c.RowWeights[k]
			taylorRow(row, c.Offsets[k], w)
			return w * c.Targets[k]
		}
		s := (k - m) / 2
		w := (1 - alpha) * c.RowWeights[s]
		d := c.Offsets[s]
		g := grads[c.Ring[s]]
		if (k-m)%2 == 0 {
			row[0] = w
			if cols >= quadraticCols {
				row[2], row[4] = w*d.X, w*d.Y
			}
			return w * h * (g.X - base.X)
		}
		row[1] = w
		if cols >= quadraticCols {
			row[3], row[4] = w*d.Y, w*d.X
		}
		return w * h * (g.Y - base.Y)
	}
}
