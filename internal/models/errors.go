package models

import "github.com/pkg/errors"

// Error kinds surfaced by the interpolation core. Callers match them with
// errors.Is; the returned errors carry extra context via errors.Wrapf.
var (
	// ErrOutOfRange is returned for a query outside the convex hull when no
	// extrapolation has been configured.
	ErrOutOfRange = errors.New("query point outside the convex hull")

	// ErrMissingGradient is returned when a C¹ scheme is requested from an
	// interpolant that has no gradients and no way to derive them.
	ErrMissingGradient = errors.New("gradients required but not available")

	// ErrSingularSystem is returned when a local least-squares system is rank
	// deficient even after dropping to a linear fit.
	ErrSingularSystem = errors.New("singular least-squares system")

	// ErrInvalidConfiguration covers bad options, unsupported scheme/order
	// combinations and misaligned inputs.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
