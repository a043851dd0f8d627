package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Tuning collects the tunable parameters of the segmentation and
// metrics pipeline. The defaults were chosen empirically against
// recorded road course sessions; override individual values in the
// config file under the "tuning" key.
type Tuning struct {
	// distance normalization
	MinSamples     int     `mapstructure:"min-samples"`      // fewer samples -> degenerate lap
	WrapFraction   float64 `mapstructure:"wrap-fraction"`    // drop > fraction*trackLength -> seam wrap
	MinWrapJump    float64 `mapstructure:"min-wrap-jump"`    // absolute floor for wrap detection (m)
	NoiseTolerance float64 `mapstructure:"noise-tolerance"`  // backward jitter clamped below this (m)

	// corner detection
	GridStep           float64 `mapstructure:"grid-step"`           // resampling step (m)
	SmoothWindow       int     `mapstructure:"smooth-window"`       // moving window for curvature (grid points)
	CurvatureThreshold float64 `mapstructure:"curvature-threshold"` // steering rate per meter
	MinCornerLength    float64 `mapstructure:"min-corner-length"`   // shorter runs are noise (m)
	MinStraightLength  float64 `mapstructure:"min-straight-length"` // shorter gaps merge into a complex (m)
	CoverageTolerance  float64 `mapstructure:"coverage-tolerance"`  // segment sum vs track length (m)

	// reference lap selection
	SmoothnessQuantile float64 `mapstructure:"smoothness-quantile"` // exclusion percentile for erratic laps

	// metrics
	BrakeThreshold    float64 `mapstructure:"brake-threshold"`    // pressure counting as braking
	ThrottleThreshold float64 `mapstructure:"throttle-threshold"` // position counting as full throttle
}

func DefaultTuning() *Tuning {
	return &Tuning{
		MinSamples:         10,
		WrapFraction:       0.5,
		MinWrapJump:        50.0,
		NoiseTolerance:     10.0,
		GridStep:           1.0,
		SmoothWindow:       5,
		CurvatureThreshold: 0.003,
		MinCornerLength:    10.0,
		MinStraightLength:  20.0,
		CoverageTolerance:  1.0,
		SmoothnessQuantile: 0.75,
		BrakeThreshold:     0.1,
		ThrottleThreshold:  0.95,
	}
}

// LoadTuning merges values below the "tuning" config key into the
// defaults. Absent keys keep their default.
func LoadTuning(v *viper.Viper) (*Tuning, error) {
	ret := DefaultTuning()
	if sub := v.Sub("tuning"); sub != nil {
		if err := sub.Unmarshal(ret); err != nil {
			return nil, fmt.Errorf("invalid tuning config: %w", err)
		}
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (t *Tuning) Validate() error {
	if t.GridStep <= 0 {
		return fmt.Errorf("grid-step must be positive, got %f", t.GridStep)
	}
	if t.SmoothWindow < 1 {
		return fmt.Errorf("smooth-window must be >= 1, got %d", t.SmoothWindow)
	}
	if t.WrapFraction <= 0 || t.WrapFraction > 1 {
		return fmt.Errorf("wrap-fraction must be in (0,1], got %f", t.WrapFraction)
	}
	if t.SmoothnessQuantile <= 0 || t.SmoothnessQuantile >= 1 {
		return fmt.Errorf("smoothness-quantile must be in (0,1), got %f", t.SmoothnessQuantile)
	}
	if t.MinCornerLength <= 0 || t.MinStraightLength <= 0 {
		return fmt.Errorf("segment length minimums must be positive")
	}
	return nil
}
