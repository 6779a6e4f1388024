// Package derivatives estimates gradients and Hessians at the data sites of a
// triangulation by local weighted least squares over each site's natural
// neighbours.
package derivatives

import (
	"github.com/pkg/errors"

	"nninterp/internal/models"
)

// Method selects how derivatives are generated.
type Method int

const (
	// Direct solves one least-squares problem per site.
	Direct Method = iota
	// Iterative estimates gradients first, then refits the residuals of the
	// linear prediction together with the neighbouring gradients for a
	// refined gradient and the Hessian.
	Iterative
)

func (m Method) String() string {
	switch m {
	case Direct:
		return "direct"
	case Iterative:
		return "iterative"
	default:
		return "unknown"
	}
}

// Options configures derivative generation.
type Options struct {
	Method Method
	// Order is 1 for gradients only, 2 for gradients and Hessians.
	Order int
	// UseCubicTerms adds cubic columns to order-2 Direct fits. The cubic
	// coefficients are discarded.
	UseCubicTerms bool
	// Alpha in (0, 1) weights value rows (alpha) against gradient rows
	// (1 - alpha) in Iterative fits. In the second Iterative pass it also
	// blends inverse-distance weights (alpha) with natural neighbour
	// weights (1 - alpha).
	Alpha float64
	// UseSibsonWeight enables the natural neighbour part of the blend.
	UseSibsonWeight bool
}

// DefaultOptions returns order-2 Direct generation with cubic terms,
// alpha 0.1 and natural-neighbour weighting on.
func DefaultOptions() Options {
	return Options{
		Method:          Direct,
		Order:           2,
		UseCubicTerms:   true,
		Alpha:           0.1,
		UseSibsonWeight: true,
	}
}

// Validate reports options outside their allowed ranges.
func (o Options) Validate() error {
	switch o.Method {
	case Direct, Iterative:
	default:
		return errors.Wrapf(models.ErrInvalidConfiguration, "unknown derivative method %d", o.Method)
	}
	if o.Order != 1 && o.Order != 2 {
		return errors.Wrapf(models.ErrInvalidConfiguration, "derivative order must be 1 or 2, got %d", o.Order)
	}
	if !(o.Alpha > 0 && o.Alpha < 1) {
		return errors.Wrapf(models.ErrInvalidConfiguration, "alpha must lie in (0, 1), got %g", o.Alpha)
	}
	return nil
}
