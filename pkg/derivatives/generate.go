package derivatives

import (
	"context"

	"github.com/pkg/errors"

	"nninterp/internal/models"
	"nninterp/pkg/cache"
	"nninterp/pkg/naturalcoords"
	"nninterp/pkg/parallel"
	"nninterp/pkg/triangulation"
)

// Result holds per-site derivatives. Hessians is nil for order-1 runs.
type Result struct {
	Gradients []models.Gradient
	Hessians  []models.Hessian
}

// Generate estimates derivatives at every data site of topo for the values
// z, spreading sites over workers goroutines. The output does not depend on
// workers.
func Generate(topo triangulation.Topology, z []float64, opts Options, workers int) (*Result, error) {
	return GenerateWithProgress(topo, z, opts, workers, nil)
}

// GenerateWithProgress is Generate with a callback invoked as each block of
// sites completes.
func GenerateWithProgress(topo triangulation.Topology, z []float64, opts Options, workers int, progress parallel.ProgressCallback) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	n := topo.NumPoints()
	if len(z) != n {
		return nil, errors.Wrapf(models.ErrInvalidConfiguration, "%d values for %d sites", len(z), n)
	}
	if workers < 1 {
		workers = 1
	}
	pool := cache.NewPool(workers)
	res := &Result{Gradients: make([]models.Gradient, n)}
	if opts.Order == 2 {
		res.Hessians = make([]models.Hessian, n)
	}

	direct := opts
	if opts.Method == Iterative {
		direct.Order = 1
	}
	err := parallel.RunWithProgress(n, workers, func(ctx context.Context, w, lo, hi int) error {
		c := pool[w]
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			g, h, err := directSite(topo, z, i, direct, c)
			if err != nil {
				return err
			}
			res.Gradients[i] = g
			if direct.Order == 2 {
				res.Hessians[i] = h
			}
		}
		return nil
	}, stage1(progress))
	if err != nil {
		return nil, err
	}
	if opts.Method != Iterative || opts.Order == 1 {
		return res, nil
	}

	// pass-1 gradients stay readable by every worker while the refined ones
	// are written out
	refined := make([]models.Gradient, n)
	err = parallel.RunWithProgress(n, workers, func(ctx context.Context, w, lo, hi int) error {
		c := pool[w]
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			refined[i], res.Hessians[i] = refineSite(topo, z, res.Gradients, i, opts, c)
		}
		return nil
	}, stage2(progress))
	if err != nil {
		return nil, err
	}
	res.Gradients = refined
	return res, nil
}

// Gradients is Generate for gradients only, using the Direct method.
func Gradients(topo triangulation.Topology, z []float64, workers int) ([]models.Gradient, error) {
	opts := DefaultOptions()
	opts.Order = 1
	res, err := Generate(topo, z, opts, workers)
	if err != nil {
		return nil, err
	}
	return res.Gradients, nil
}

func stage1(progress parallel.ProgressCallback) parallel.ProgressCallback {
	if progress == nil {
		return nil
	}
	return func(completed, total int, _ string) {
		progress(completed, total, "Estimating gradients")
	}
}

func stage2(progress parallel.ProgressCallback) parallel.ProgressCallback {
	if progress == nil {
		return nil
	}
	return func(completed, total int, _ string) {
		progress(completed, total, "Estimating Hessians")
	}
}

// directSite fits a Taylor polynomial about site i with z[i] held fixed. A
// basis that cannot be solved is replaced by the next lower one; an order-2
// fit that ends up linear reports a zero Hessian.
func directSite(topo triangulation.Topology, z []float64, i int, opts Options, c *cache.Cache) (models.Gradient, models.Hessian, error) {
	c.ResetFit()
	Ring(topo, i, opts.Order, c)
	pi := topo.Point(i)
	for _, j := range c.Ring {
		stage(c, topo.Point(j).Sub(pi), z[j]-z[i])
	}
	h := normalise(c, 0)

	x, used, err := fitStaged(c, basis(opts))
	if err != nil {
		return models.Gradient{}, models.Hessian{}, errors.Wrapf(err, "site %d", i)
	}
	g, hs := unscale(x, used, h)
	return g, hs, nil
}

// refineSite refits site i over its 2-ring with the pass-1 gradients as
// data. Value rows match the residuals z_j - z_i - ∇_i·d_j of the linear
// prediction and gradient rows match ∇_j - ∇_i; the unknowns are a gradient
// correction and the Hessian. A singular fit keeps the pass-1 gradient and
// leaves the Hessian zero.
func refineSite(topo triangulation.Topology, z []float64, grads []models.Gradient, i int, opts Options, c *cache.Cache) (models.Gradient, models.Hessian) {
	c.ResetFit()
	Ring(topo, i, 2, c)
	pi := topo.Point(i)
	gi := grads[i]
	for _, j := range c.Ring {
		d := topo.Point(j).Sub(pi)
		stage(c, d, z[j]-z[i]-gi.Dot(d))
	}

	blend := 0.0
	if opts.UseSibsonWeight {
		// the 1-ring leads c.Ring in Neighbors order; the rest get no
		// natural weight
		c.Weights = naturalcoords.SiteWeights(topo, i, c.Weights)
		c.Natural = append(c.Natural, c.Weights...)
		for len(c.Natural) < len(c.Ring) {
			c.Natural = append(c.Natural, 0)
		}
		blend = opts.Alpha
	}
	h := normalise(c, blend)

	x, err := solve(c, 3*len(c.Offsets), quadraticCols, gradientRows(c, grads, gi, opts.Alpha, h, quadraticCols))
	if err != nil {
		return gi, models.Hessian{}
	}
	dg, hs := unscale(x, quadraticCols, h)
	return models.Gradient{X: gi.X + dg.X, Y: gi.Y + dg.Y}, hs
}

func basis(opts Options) int {
	switch {
	case opts.Order == 1:
		return linearCols
	case opts.UseCubicTerms:
		return cubicCols
	default:
		return quadraticCols
	}
}

// Ring replaces c.Ring with the order-ring of site i (its Delaunay
// neighbours, plus theirs for order 2), without i and without repeats. The
// 1-ring comes first, in Neighbors order.
func Ring(topo triangulation.Topology, i, order int, c *cache.Cache) {
	c.Ring = append(c.Ring[:0], topo.Neighbors(i)...)
	if order >= 2 {
		expand(topo, c, i)
	}
}

// expand appends the neighbours of every current member of c.Ring that are
// not already present and are not skip.
func expand(topo triangulation.Topology, c *cache.Cache, skip int) {
	n := len(c.Ring)
	for k := 0; k < n; k++ {
		for _, j := range topo.Neighbors(c.Ring[k]) {
			if j != skip && !member(c.Ring, j) {
				c.Ring = append(c.Ring, j)
			}
		}
	}
}

func member(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
