// Package interpolation evaluates natural-neighbour interpolants of scattered
// planar data and estimates their derivatives at arbitrary points.
package interpolation

import (
	"sync"

	"github.com/pkg/errors"

	"nninterp/internal/models"
	"nninterp/pkg/derivatives"
	"nninterp/pkg/naturalcoords"
	"nninterp/pkg/parallel"
	"nninterp/pkg/triangulation"
)

// Error kinds returned by the interpolant. Test with errors.Is.
var (
	ErrOutOfRange           = models.ErrOutOfRange
	ErrMissingGradient      = models.ErrMissingGradient
	ErrSingularSystem       = models.ErrSingularSystem
	ErrInvalidConfiguration = models.ErrInvalidConfiguration
)

// ProgressCallback is a function that reports progress during batch
// evaluation and derivative generation
type ProgressCallback = parallel.ProgressCallback

// Interpolant binds values to the sites of a triangulation. It is safe for
// concurrent use once constructed; the triangulation and values must not be
// modified afterwards.
type Interpolant struct {
	topo        triangulation.Topology
	z           []float64
	gradients   []models.Gradient
	hessians    []models.Hessian
	derivOpts   derivatives.Options
	eager       bool
	lazy        bool
	extrapolate bool
	numCores    int
	progress    ProgressCallback

	once    sync.Once
	lazyErr error
	lazyRes *derivatives.Result
}

// Option configures an Interpolant
type Option func(*Interpolant) error

// WithGradients supplies known gradients, one per site
func WithGradients(g []models.Gradient) Option {
	return func(ip *Interpolant) error {
		if len(g) != ip.topo.NumPoints() {
			return errors.Wrapf(ErrInvalidConfiguration, "%d gradients for %d sites", len(g), ip.topo.NumPoints())
		}
		ip.gradients = g
		return nil
	}
}

// WithHessians supplies known Hessians, one per site
func WithHessians(h []models.Hessian) Option {
	return func(ip *Interpolant) error {
		if len(h) != ip.topo.NumPoints() {
			return errors.Wrapf(ErrInvalidConfiguration, "%d hessians for %d sites", len(h), ip.topo.NumPoints())
		}
		ip.hessians = h
		return nil
	}
}

// WithDerivatives generates site derivatives during New
func WithDerivatives(opts derivatives.Options) Option {
	return func(ip *Interpolant) error {
		ip.derivOpts = opts
		ip.eager = true
		ip.lazy = false
		return opts.Validate()
	}
}

// WithLazyDerivatives generates site derivatives on first use
func WithLazyDerivatives(opts derivatives.Options) Option {
	return func(ip *Interpolant) error {
		ip.derivOpts = opts
		ip.lazy = true
		ip.eager = false
		return opts.Validate()
	}
}

// WithExtrapolation evaluates queries outside the hull on the closest hull
// edge instead of failing with ErrOutOfRange
func WithExtrapolation() Option {
	return func(ip *Interpolant) error {
		ip.extrapolate = true
		return nil
	}
}

// WithNumCores caps the worker count of parallel calls and derivative
// generation. Zero means one worker per CPU.
func WithNumCores(n int) Option {
	return func(ip *Interpolant) error {
		if n < 0 {
			return errors.Wrapf(ErrInvalidConfiguration, "numCores must not be negative, got %d", n)
		}
		ip.numCores = n
		return nil
	}
}

// WithProgress installs a progress callback
func WithProgress(cb ProgressCallback) Option {
	return func(ip *Interpolant) error {
		ip.progress = cb
		return nil
	}
}

// New creates an interpolant over topo with one value per site.
func New(topo triangulation.Topology, z []float64, opts ...Option) (*Interpolant, error) {
	if topo == nil {
		return nil, errors.Wrap(ErrInvalidConfiguration, "nil triangulation")
	}
	if len(z) != topo.NumPoints() {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "%d values for %d sites", len(z), topo.NumPoints())
	}
	ip := &Interpolant{
		topo:      topo,
		z:         z,
		derivOpts: derivatives.DefaultOptions(),
	}
	for _, opt := range opts {
		if err := opt(ip); err != nil {
			return nil, err
		}
	}
	if ip.eager {
		res, err := derivatives.GenerateWithProgress(topo, z, ip.derivOpts, ip.workers(true), ip.progress)
		if err != nil {
			return nil, err
		}
		ip.adopt(res)
	}
	return ip, nil
}

// Topology returns the triangulation the interpolant was built on
func (ip *Interpolant) Topology() triangulation.Topology { return ip.topo }

// Values returns the site values
func (ip *Interpolant) Values() []float64 { return ip.z }

// Gradients returns the site gradients, generating them first when lazy
// derivatives are configured. It fails with ErrMissingGradient when none are
// available.
func (ip *Interpolant) Gradients() ([]models.Gradient, error) {
	g, _, err := ip.siteDerivatives()
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errors.Wrap(ErrMissingGradient, "no gradients supplied or generated")
	}
	return g, nil
}

// Hessians returns the site Hessians, or nil when none are available.
func (ip *Interpolant) Hessians() ([]models.Hessian, error) {
	_, h, err := ip.siteDerivatives()
	return h, err
}

// siteDerivatives resolves lazy generation at most once. Supplied derivatives
// take precedence over generated ones.
func (ip *Interpolant) siteDerivatives() ([]models.Gradient, []models.Hessian, error) {
	if !ip.lazy {
		return ip.gradients, ip.hessians, nil
	}
	ip.once.Do(func() {
		ip.lazyRes, ip.lazyErr = derivatives.GenerateWithProgress(ip.topo, ip.z, ip.derivOpts, ip.workers(true), ip.progress)
	})
	if ip.lazyErr != nil {
		return nil, nil, ip.lazyErr
	}
	g, h := ip.gradients, ip.hessians
	if g == nil {
		g = ip.lazyRes.Gradients
	}
	if h == nil {
		h = ip.lazyRes.Hessians
	}
	return g, h, nil
}

func (ip *Interpolant) adopt(res *derivatives.Result) {
	if ip.gradients == nil {
		ip.gradients = res.Gradients
	}
	if ip.hessians == nil {
		ip.hessians = res.Hessians
	}
}

func (ip *Interpolant) workers(par bool) int {
	return parallel.Workers(par, ip.numCores)
}

func (ip *Interpolant) coordOptions() naturalcoords.Options {
	return naturalcoords.Options{Extrapolate: ip.extrapolate}
}
