// Package reference picks the lap a track layout is derived from.
// Fast laps driven erratically make poor templates, so candidates are
// ranked by steering smoothness before lap time decides.
package reference

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/log"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/config"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/processing/distance"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/telemetry"
)

// NoValidReferenceLapError signals that a session contains no lap
// usable as layout reference.
type NoValidReferenceLapError struct {
	SessionID string
	Reason    string
}

func (e *NoValidReferenceLapError) Error() string {
	return fmt.Sprintf("no valid reference lap in session %s: %s", e.SessionID, e.Reason)
}

// Result is the selected reference lap with its normalized telemetry.
type Result struct {
	Lap         model.Lap
	Series      *model.SampleSeries // NormalizedDist filled
	TrackLength float64
}

type candidate struct {
	lap         model.Lap
	series      *model.SampleSeries
	trackLength float64
	smoothness  float64 // variance of the steering derivative, lower is smoother
	brakingCV   float64
}

type Selector struct {
	tuning     *config.Tuning
	l          *log.Logger
	normalizer *distance.Normalizer
}

type Option func(*Selector)

func WithTuning(arg *config.Tuning) Option {
	return func(s *Selector) { s.tuning = arg }
}

func WithLogger(arg *log.Logger) Option {
	return func(s *Selector) { s.l = arg }
}

func NewSelector(opts ...Option) *Selector {
	ret := &Selector{
		tuning: config.DefaultTuning(),
		l:      log.Default().Named("reference"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.normalizer = distance.NewNormalizer(
		distance.WithTuning(ret.tuning),
		distance.WithLogger(ret.l),
	)
	return ret
}

// Select picks the reference lap of a session: among complete valid
// laps the erratic ones (steering derivative variance above the
// configured quantile) are excluded, then the fastest remaining lap
// wins, ties broken by lowest lap number. Laps with unusable distance
// data are skipped with a warning.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *Selector) Select(
	ctx context.Context, reader telemetry.Reader, session *model.Session,
) (*Result, error) {
	candidates := s.collectCandidates(ctx, reader, session)
	if len(candidates) == 0 {
		return nil, &NoValidReferenceLapError{
			SessionID: session.SessionID,
			Reason:    "no complete valid lap with usable telemetry",
		}
	}

	kept := s.excludeErratic(candidates)
	best := kept[0]
	for _, c := range kept[1:] {
		lt, bt := *c.lap.LapTime, *best.lap.LapTime
		if lt < bt || (lt == bt && c.lap.LapNumber < best.lap.LapNumber) {
			best = c
		}
	}
	s.l.Info("reference lap selected",
		log.String("session", session.SessionID),
		log.Int("lap", best.lap.LapNumber),
		log.Float64("lapTime", *best.lap.LapTime),
		log.Float64("steeringVariance", best.smoothness),
		log.Float64("brakingCV", best.brakingCV),
		log.Int("candidates", len(candidates)),
		log.Int("afterExclusion", len(kept)))
	return &Result{
		Lap:         best.lap,
		Series:      best.series,
		TrackLength: best.trackLength,
	}, nil
}

// SelectLap forces a specific lap as reference, bypassing the ranking.
// The lap must still be valid, complete and carry usable telemetry.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *Selector) SelectLap(
	ctx context.Context, reader telemetry.Reader, session *model.Session, lapNo int,
) (*Result, error) {
	for _, lap := range session.Laps {
		if lap.LapNumber != lapNo {
			continue
		}
		if !lap.Valid || lap.LapTime == nil {
			return nil, &NoValidReferenceLapError{
				SessionID: session.SessionID,
				Reason:    fmt.Sprintf("lap %d is not a complete valid lap", lapNo),
			}
		}
		c, err := s.buildCandidate(ctx, reader, session.SessionID, lap)
		if err != nil {
			return nil, &NoValidReferenceLapError{
				SessionID: session.SessionID,
				Reason:    fmt.Sprintf("lap %d: %v", lapNo, err),
			}
		}
		return &Result{Lap: c.lap, Series: c.series, TrackLength: c.trackLength}, nil
	}
	return nil, fmt.Errorf("%w: session %s lap %d", telemetry.ErrLapNotFound,
		session.SessionID, lapNo)
}

//nolint:whitespace // can't make both editor and linter happy
func (s *Selector) collectCandidates(
	ctx context.Context, reader telemetry.Reader, session *model.Session,
) []candidate {
	ret := []candidate{}
	for _, lap := range session.Laps {
		if !lap.Valid || lap.LapTime == nil {
			continue
		}
		c, err := s.buildCandidate(ctx, reader, session.SessionID, lap)
		if err != nil {
			s.l.Warn("skipping reference candidate",
				log.String("session", session.SessionID),
				log.Int("lap", lap.LapNumber),
				log.ErrorField(err))
			continue
		}
		ret = append(ret, c)
	}
	return ret
}

//nolint:whitespace // can't make both editor and linter happy
func (s *Selector) buildCandidate(
	ctx context.Context, reader telemetry.Reader, sessionID string, lap model.Lap,
) (candidate, error) {
	series, err := reader.SampleSeries(ctx, sessionID, lap.LapNumber)
	if err != nil {
		return candidate{}, err
	}
	res, err := s.normalizer.NormalizeSeries(series)
	if err != nil {
		return candidate{}, err
	}
	steering, _ := series.Channel(model.ChannelSteering)
	brake, _ := series.Channel(model.ChannelBrake)
	return candidate{
		lap:         lap,
		series:      series,
		trackLength: res.TrackLength,
		smoothness:  steeringVariance(series.NormalizedDist, steering),
		brakingCV:   brakingCV(brake, s.tuning.BrakeThreshold),
	}, nil
}

// excludeErratic drops candidates whose steering variance exceeds the
// configured quantile of all candidates. If that would empty the set
// (all laps equally erratic) the exclusion is skipped.
func (s *Selector) excludeErratic(candidates []candidate) []candidate {
	if len(candidates) < 2 {
		return candidates
	}
	variances := make([]float64, len(candidates))
	for i, c := range candidates {
		variances[i] = c.smoothness
	}
	sorted := append([]float64{}, variances...)
	sort.Float64s(sorted)
	cutoff := stat.Quantile(s.tuning.SmoothnessQuantile, stat.Empirical, sorted, nil)

	kept := []candidate{}
	for _, c := range candidates {
		if c.smoothness <= cutoff {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		s.l.Warn("smoothness exclusion would drop all laps, skipping",
			log.Float64("cutoff", cutoff))
		return candidates
	}
	return kept
}

// steeringVariance computes the variance of the steering derivative
// with respect to normalized distance.
func steeringVariance(normDist, steering []float64) float64 {
	n := len(steering)
	if n < 2 || len(normDist) != n {
		return math.Inf(1)
	}
	derivs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		dx := normDist[i] - normDist[i-1]
		if dx <= 0 {
			continue
		}
		derivs = append(derivs, (steering[i]-steering[i-1])/dx)
	}
	if len(derivs) < 2 {
		return math.Inf(1)
	}
	return stat.Variance(derivs, nil)
}

// brakingCV is the coefficient of variation of brake pressure while
// braking. It is reported for diagnostics, selection gates on steering
// smoothness only.
func brakingCV(brake []float64, threshold float64) float64 {
	applied := []float64{}
	for _, b := range brake {
		if b > threshold {
			applied = append(applied, b)
		}
	}
	if len(applied) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(applied, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}
