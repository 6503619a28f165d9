package deform

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid deformer config")

// Config holds the tunable parameters of the deformation stages.
type Config struct {
	// Projection stops once |f - iso| is within this tolerance.
	ProjectionTolerance float64 `json:"projection_tolerance"`
	// Projection gives up after this many steps. The vertex keeps its best
	// position and is counted as not converged.
	MaxProjectionSteps int `json:"max_projection_steps"`
	// StepSize scales each projection step p += StepSize*(iso-f)*unit(grad f).
	StepSize float64 `json:"step_size"`
	// MaxGradientAngle in degrees. Projection stops when the field gradient
	// turns by more than this between steps, which happens where two bone
	// fields meet in a contact region.
	MaxGradientAngle float64 `json:"max_gradient_angle"`

	// RelaxFactor in [0,1] blends a vertex toward its tangential target.
	RelaxFactor     float64 `json:"relax_factor"`
	RelaxIterations int     `json:"relax_iterations"`

	// SmoothFactor in [0,1] blends a corrected vertex toward the mean of its
	// neighbours. Zero disables smoothing.
	SmoothFactor     float64 `json:"smooth_factor"`
	SmoothIterations int     `json:"smooth_iterations"`

	// Workers bounds the goroutines of a stage. Zero means GOMAXPROCS.
	Workers int `json:"workers"`
}

// DefaultConfig returns the documented default parameters.
func DefaultConfig() Config {
	return Config{
		ProjectionTolerance: 1e-4,
		MaxProjectionSteps:  10,
		StepSize:            1,
		MaxGradientAngle:    55,
		RelaxFactor:         0.5,
		RelaxIterations:     1,
		SmoothFactor:        0.1,
		SmoothIterations:    1,
	}
}

// Validate checks the parameters are in range.
func (c Config) Validate() error {
	switch {
	case c.ProjectionTolerance <= 0:
		return fmt.Errorf("%w: projection tolerance must be positive", ErrInvalidConfig)
	case c.MaxProjectionSteps < 0:
		return fmt.Errorf("%w: negative max projection steps", ErrInvalidConfig)
	case c.StepSize <= 0 || c.StepSize > 2:
		return fmt.Errorf("%w: step size %g not in (0,2]", ErrInvalidConfig, c.StepSize)
	case c.MaxGradientAngle <= 0 || c.MaxGradientAngle > 180:
		return fmt.Errorf("%w: max gradient angle %g not in (0,180]", ErrInvalidConfig, c.MaxGradientAngle)
	case c.RelaxFactor < 0 || c.RelaxFactor > 1:
		return fmt.Errorf("%w: relax factor %g not in [0,1]", ErrInvalidConfig, c.RelaxFactor)
	case c.SmoothFactor < 0 || c.SmoothFactor > 1:
		return fmt.Errorf("%w: smooth factor %g not in [0,1]", ErrInvalidConfig, c.SmoothFactor)
	case c.RelaxIterations < 0 || c.SmoothIterations < 0:
		return fmt.Errorf("%w: negative iteration count", ErrInvalidConfig)
	case c.Workers < 0:
		return fmt.Errorf("%w: negative worker count", ErrInvalidConfig)
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Workers
}

// LoadConfig reads a JSON config file. Fields absent from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}
