// Package distance converts raw lap distance channels into monotonic
// track coordinates. Raw values wrap at the start/finish seam and may
// contain standing start noise or small backward jitter.
package distance

import (
	"fmt"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/log"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/config"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
)

// DegenerateDistanceError signals an unusable raw distance channel.
type DegenerateDistanceError struct {
	Reason  string
	Samples int
}

func (e *DegenerateDistanceError) Error() string {
	return fmt.Sprintf("degenerate distance channel (%d samples): %s", e.Samples, e.Reason)
}

// Result of a normalization run.
type Result struct {
	// strictly non-decreasing, 0 at lap start
	Normalized []float64
	// detected track length (max raw value before the first wrap)
	TrackLength float64
	// sample indices where a seam wrap was detected
	WrapIndices []int
}

type Normalizer struct {
	tuning *config.Tuning
	l      *log.Logger
}

type Option func(*Normalizer)

func WithTuning(arg *config.Tuning) Option {
	return func(n *Normalizer) { n.tuning = arg }
}

func WithLogger(arg *log.Logger) Option {
	return func(n *Normalizer) { n.l = arg }
}

func NewNormalizer(opts ...Option) *Normalizer {
	ret := &Normalizer{
		tuning: config.DefaultTuning(),
		l:      log.Default().Named("distance"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Normalize converts raw lap distance values into a non-decreasing
// coordinate starting at 0. A drop larger than the wrap threshold is
// the seam wrap and adds the track length estimate to the running
// offset. Smaller backward jitter is clamped to the previous value.
func (n *Normalizer) Normalize(raw []float64) (*Result, error) {
	if len(raw) < n.tuning.MinSamples {
		return nil, &DegenerateDistanceError{
			Reason:  fmt.Sprintf("need at least %d samples", n.tuning.MinSamples),
			Samples: len(raw),
		}
	}
	if constant(raw) {
		return nil, &DegenerateDistanceError{
			Reason:  "distance channel is constant",
			Samples: len(raw),
		}
	}

	trackLength := n.estimateTrackLength(raw)
	wrapThreshold := n.tuning.WrapFraction * trackLength
	if wrapThreshold < n.tuning.MinWrapJump {
		wrapThreshold = n.tuning.MinWrapJump
	}

	normalized := make([]float64, len(raw))
	wrapIndices := []int{}
	offset := 0.0
	normalized[0] = raw[0]
	for i := 1; i < len(raw); i++ {
		drop := raw[i-1] - raw[i]
		if drop > wrapThreshold {
			// seam wrap
			offset += trackLength
			wrapIndices = append(wrapIndices, i)
		}
		normalized[i] = raw[i] + offset
		if normalized[i] < normalized[i-1] {
			// backward jitter below the wrap threshold, clamp
			if normalized[i-1]-normalized[i] <= n.tuning.NoiseTolerance {
				normalized[i] = normalized[i-1]
			} else {
				// larger artifact, keep monotonicity anyway
				n.l.Debug("clamping large backward jump",
					log.Int("index", i),
					log.Float64("delta", normalized[i-1]-normalized[i]))
				normalized[i] = normalized[i-1]
			}
		}
	}

	// rebase to 0 at lap start
	base := normalized[0]
	for i := range normalized {
		normalized[i] -= base
	}

	return &Result{
		Normalized:  normalized,
		TrackLength: trackLength,
		WrapIndices: wrapIndices,
	}, nil
}

// NormalizeSeries normalizes the distance channel of a series in place
// (filling NormalizedDist) and returns the result.
func (n *Normalizer) NormalizeSeries(s *model.SampleSeries) (*Result, error) {
	raw, ok := s.Channel(model.ChannelDistance)
	if !ok {
		return nil, &DegenerateDistanceError{Reason: "distance channel absent"}
	}
	res, err := n.Normalize(raw)
	if err != nil {
		return nil, err
	}
	s.NormalizedDist = res.Normalized
	return res, nil
}

// estimateTrackLength finds the maximum raw value before the first
// seam wrap. With no wrap present this is the overall maximum.
func (n *Normalizer) estimateTrackLength(raw []float64) float64 {
	maxVal := raw[0]
	for i := 1; i < len(raw); i++ {
		if raw[i-1]-raw[i] > n.tuning.MinWrapJump {
			break
		}
		if raw[i] > maxVal {
			maxVal = raw[i]
		}
	}
	return maxVal
}

func constant(vals []float64) bool {
	for i := 1; i < len(vals); i++ {
		if vals[i] != vals[0] {
			return false
		}
	}
	return true
}
