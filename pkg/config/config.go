// Package config provides configuration loading and management for nninterp.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"nninterp/internal/models"
	"nninterp/pkg/derivatives"
	"nninterp/pkg/interpolation"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Interpolation scheme parameters
	Interpolation struct {
		// Method is one of sibson, laplace, triangle or nearest
		Method string `yaml:"method"`

		// Smoothness is the Sibson continuity order, 0 or 1
		Smoothness int `yaml:"smoothness"`

		// Extrapolate evaluates queries outside the hull on the closest hull edge
		Extrapolate bool `yaml:"extrapolate"`
	} `yaml:"interpolation"`

	// Derivative generation parameters
	Derivatives struct {
		// Generate estimates site derivatives when the interpolant is built
		Generate bool `yaml:"generate"`

		// Lazy defers generation to the first evaluation that needs it
		Lazy bool `yaml:"lazy"`

		// Method is direct or iterative
		Method string `yaml:"method"`

		// Order is 1 for gradients, 2 for gradients and Hessians
		Order int `yaml:"order"`

		// UseCubicTerms adds cubic columns to order-2 direct fits
		UseCubicTerms bool `yaml:"useCubicTerms"`

		// Alpha weights distance against natural neighbour weights, in (0, 1)
		Alpha float64 `yaml:"alpha"`

		// UseSibsonWeight enables natural neighbour weights in the iterative pass
		UseSibsonWeight bool `yaml:"useSibsonWeight"`
	} `yaml:"derivatives"`

	// Processing parameters
	Processing struct {
		// Parallel spreads batch calls over several workers
		Parallel bool `yaml:"parallel"`

		// NumCores caps the worker count; 0 uses every CPU
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}
	d := derivatives.DefaultOptions()

	cfg.Interpolation.Method = "sibson"
	cfg.Interpolation.Smoothness = 0
	cfg.Interpolation.Extrapolate = false

	cfg.Derivatives.Generate = false
	cfg.Derivatives.Lazy = true
	cfg.Derivatives.Method = d.Method.String()
	cfg.Derivatives.Order = d.Order
	cfg.Derivatives.UseCubicTerms = d.UseCubicTerms
	cfg.Derivatives.Alpha = d.Alpha
	cfg.Derivatives.UseSibsonWeight = d.UseSibsonWeight

	cfg.Processing.Parallel = true
	cfg.Processing.NumCores = 0

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks every field against its allowed range
func (cfg *Config) Validate() error {
	if _, err := cfg.Scheme(); err != nil {
		return err
	}
	if _, err := cfg.DerivativeOptions(); err != nil {
		return err
	}
	if cfg.Processing.NumCores < 0 {
		return errors.Wrapf(models.ErrInvalidConfiguration, "processing.numCores must not be negative, got %d", cfg.Processing.NumCores)
	}
	if cfg.Derivatives.Generate && cfg.Derivatives.Lazy {
		return errors.Wrap(models.ErrInvalidConfiguration, "derivatives.generate and derivatives.lazy are exclusive")
	}
	return nil
}

// Scheme returns the configured interpolation scheme
func (cfg *Config) Scheme() (interpolation.Scheme, error) {
	kind, err := interpolation.ParseKind(cfg.Interpolation.Method)
	if err != nil {
		return interpolation.Scheme{}, errors.Wrap(err, "interpolation.method")
	}
	s := interpolation.Scheme{Kind: kind, D: cfg.Interpolation.Smoothness}
	if err := s.Validate(); err != nil {
		return interpolation.Scheme{}, errors.Wrap(err, "interpolation.smoothness")
	}
	return s, nil
}

// DerivativeOptions returns the configured derivative generation options
func (cfg *Config) DerivativeOptions() (derivatives.Options, error) {
	opts := derivatives.Options{
		Order:           cfg.Derivatives.Order,
		UseCubicTerms:   cfg.Derivatives.UseCubicTerms,
		Alpha:           cfg.Derivatives.Alpha,
		UseSibsonWeight: cfg.Derivatives.UseSibsonWeight,
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Derivatives.Method)) {
	case "direct":
		opts.Method = derivatives.Direct
	case "iterative":
		opts.Method = derivatives.Iterative
	default:
		return opts, errors.Wrapf(models.ErrInvalidConfiguration, "derivatives.method: unknown method %q", cfg.Derivatives.Method)
	}
	if err := opts.Validate(); err != nil {
		return opts, errors.Wrap(err, "derivatives")
	}
	return opts, nil
}

// InterpolantOptions translates the configuration into interpolant options
func (cfg *Config) InterpolantOptions() ([]interpolation.Option, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var opts []interpolation.Option
	if cfg.Interpolation.Extrapolate {
		opts = append(opts, interpolation.WithExtrapolation())
	}
	d, _ := cfg.DerivativeOptions()
	switch {
	case cfg.Derivatives.Generate:
		opts = append(opts, interpolation.WithDerivatives(d))
	case cfg.Derivatives.Lazy:
		opts = append(opts, interpolation.WithLazyDerivatives(d))
	}
	numCores := cfg.Processing.NumCores
	if !cfg.Processing.Parallel {
		numCores = 1
	}
	opts = append(opts, interpolation.WithNumCores(numCores))
	return opts, nil
}
