package derivatives

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"nninterp/internal/models"
	"nninterp/pkg/cache"
)

// Column counts of the local Taylor bases. Offsets are scaled by the
// neighbourhood radius h before the fit so all columns are O(1).
const (
	linearCols    = 2 // dx, dy
	quadraticCols = 5 // + dx²/2, dy²/2, dx·dy
	cubicCols     = 9 // + dx³/6, dy³/6, dx²·dy/2, dx·dy²/2
)

// maxCondition is the largest condition number of the normal equations
// accepted before a fit is treated as singular.
const maxCondition = 1e14

// rowFunc writes row k of the design matrix and returns its target.
type rowFunc func(row []float64, k int) float64

func downgrade(cols int) int {
	switch cols {
	case cubicCols:
		return quadraticCols
	case quadraticCols:
		return linearCols
	default:
		return 0
	}
}

// taylorRow writes the Taylor basis at the scaled offset d, times w. The
// basis is chosen by len(row).
func taylorRow(row []float64, d models.Point, w float64) {
	x, y := d.X, d.Y
	row[0], row[1] = w*x, w*y
	if len(row) >= quadraticCols {
		row[2], row[3], row[4] = w*x*x/2, w*y*y/2, w*x*y
	}
	if len(row) >= cubicCols {
		row[5], row[6] = w*x*x*x/6, w*y*y*y/6
		row[7], row[8] = w*x*x*y/2, w*x*y*y/2
	}
}

// solve builds an m×cols weighted design matrix with fill and solves the
// normal equations by Cholesky. The returned vector is backed by c.
func solve(c *cache.Cache, m, cols int, fill rowFunc) (*mat.VecDense, error) {
	if m < cols {
		return nil, errors.Wrapf(models.ErrSingularSystem, "%d rows for %d unknowns", m, cols)
	}
	a, b := c.Design(m, cols)
	for k := 0; k < m; k++ {
		b.SetVec(k, fill(a.RawRowView(k), k))
	}

	n, atb, x := c.Normal(cols)
	for i := 0; i < cols; i++ {
		for j := i; j < cols; j++ {
			s := 0.0
			for k := 0; k < m; k++ {
				row := a.RawRowView(k)
				s += row[i] * row[j]
			}
			n.SetSym(i, j, s)
		}
	}
	atb.MulVec(a.T(), b)

	chol := c.Cholesky()
	if ok := chol.Factorize(n); !ok {
		return nil, errors.Wrapf(models.ErrSingularSystem, "normal matrix not positive definite (%d unknowns)", cols)
	}
	if cond := chol.Cond(); math.IsNaN(cond) || cond > maxCondition {
		return nil, errors.Wrapf(models.ErrSingularSystem, "condition number %.3g (%d unknowns)", cond, cols)
	}
	if err := chol.SolveVecTo(x, atb); err != nil {
		return nil, errors.Wrap(models.ErrSingularSystem, err.Error())
	}
	return x, nil
}

// fitStaged fits cols columns to the samples staged in c, stepping down
// through the lower-order bases until one is solvable. It returns the
// solution and the basis that produced it.
func fitStaged(c *cache.Cache, cols int) (*mat.VecDense, int, error) {
	fill := func(row []float64, k int) float64 {
		w := c.RowWeights[k]
		taylorRow(row, c.Offsets[k], w)
		return w * c.Targets[k]
	}
	var err error
	for ; cols > 0; cols = downgrade(cols) {
		var x *mat.VecDense
		if x, err = solve(c, len(c.Offsets), cols, fill); err == nil {
			return x, cols, nil
		}
	}
	return nil, 0, err
}

// unscale reads the gradient and, for bases of at least quadratic order, the
// Hessian out of a solution in scaled coordinates.
func unscale(x *mat.VecDense, cols int, h float64) (g models.Gradient, hs models.Hessian) {
	g = models.Gradient{X: x.AtVec(0) / h, Y: x.AtVec(1) / h}
	if cols >= quadraticCols {
		h2 := h * h
		hs = models.Hessian{XX: x.AtVec(2) / h2, YY: x.AtVec(3) / h2, XY: x.AtVec(4) / h2}
	}
	return g, hs
}

// stage appends one sample to the cache. d is the unscaled offset from the
// centre of the fit.
func stage(c *cache.Cache, d models.Point, target float64) {
	c.Offsets = append(c.Offsets, d)
	c.Targets = append(c.Targets, target)
	c.RowWeights = append(c.RowWeights, 0)
}

// normalise scales the staged offsets by their largest length h and sets
// inverse-distance row weights. When blend lies in (0, 1) and c.Natural is
// aligned with the samples, the weights become
// blend·ŵ_dist + (1-blend)·ŵ_nat with ŵ_dist normalised to sum 1.
func normalise(c *cache.Cache, blend float64) float64 {
	h := 0.0
	for _, d := range c.Offsets {
		h = math.Max(h, math.Hypot(d.X, d.Y))
	}
	if h == 0 {
		return 1
	}
	total := 0.0
	for k, d := range c.Offsets {
		d = models.Point{X: d.X / h, Y: d.Y / h}
		c.Offsets[k] = d
		w := 1 / math.Hypot(d.X, d.Y)
		c.RowWeights[k] = w
		total += w
	}
	if blend > 0 && blend < 1 && len(c.Natural) == len(c.Offsets) {
		for k := range c.RowWeights {
			c.RowWeights[k] = blend*c.RowWeights[k]/total + (1-blend)*c.Natural[k]
		}
	}
	return h
}
