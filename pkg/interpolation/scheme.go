package interpolation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"nninterp/internal/models"
)

// Kind names an interpolation scheme
type Kind int

const (
	KindSibson Kind = iota
	KindLaplace
	KindTriangle
	KindNearest
)

func (k Kind) String() string {
	switch k {
	case KindSibson:
		return "sibson"
	case KindLaplace:
		return "laplace"
	case KindTriangle:
		return "triangle"
	case KindNearest:
		return "nearest"
	default:
		return "unknown"
	}
}

// ParseKind maps a scheme name, as used in configuration files, to its Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sibson":
		return KindSibson, nil
	case "laplace":
		return KindLaplace, nil
	case "triangle":
		return KindTriangle, nil
	case "nearest":
		return KindNearest, nil
	default:
		return 0, errors.Wrapf(models.ErrInvalidConfiguration, "unknown interpolation method %q", name)
	}
}

// Scheme selects how a value is blended from the natural neighbours. D is
// the smoothness of Sibson interpolation (0 or 1) and is ignored by the
// other kinds.
type Scheme struct {
	Kind Kind
	D    int
}

// Sibson returns the Sibson scheme with smoothness d
func Sibson(d int) Scheme { return Scheme{Kind: KindSibson, D: d} }

// Laplace returns the Laplace (non-Sibsonian) scheme
func Laplace() Scheme { return Scheme{Kind: KindLaplace} }

// Triangle returns piecewise-linear interpolation on the triangulation
func Triangle() Scheme { return Scheme{Kind: KindTriangle} }

// Nearest returns the value of the dominant natural neighbour
func Nearest() Scheme { return Scheme{Kind: KindNearest} }

// Validate reports unknown kinds and Sibson smoothness outside {0, 1}.
func (s Scheme) Validate() error {
	switch s.Kind {
	case KindSibson:
		if s.D != 0 && s.D != 1 {
			return errors.Wrapf(models.ErrInvalidConfiguration, "sibson smoothness must be 0 or 1, got %d", s.D)
		}
	case KindLaplace, KindTriangle, KindNearest:
	default:
		return errors.Wrapf(models.ErrInvalidConfiguration, "unknown scheme kind %d", s.Kind)
	}
	return nil
}

func (s Scheme) String() string {
	if s.Kind == KindSibson {
		return fmt.Sprintf("sibson(%d)", s.D)
	}
	return s.Kind.String()
}

// needsGradients reports whether evaluation reads site gradients
func (s Scheme) needsGradients() bool {
	return s.Kind == KindSibson && s.D == 1
}
