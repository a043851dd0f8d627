// Package layout builds versioned track layouts from a session's
// reference lap.
package layout

import (
	"context"
	"errors"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/log"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/config"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/processing/corner"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/processing/reference"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/telemetry"
)

type Builder struct {
	tuning   *config.Tuning
	l        *log.Logger
	selector *reference.Selector
	detector *corner.Detector
}

type Option func(*Builder)

func WithTuning(arg *config.Tuning) Option {
	return func(b *Builder) { b.tuning = arg }
}

func WithLogger(arg *log.Logger) Option {
	return func(b *Builder) { b.l = arg }
}

func NewBuilder(opts ...Option) *Builder {
	ret := &Builder{
		tuning: config.DefaultTuning(),
		l:      log.Default().Named("layout"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.selector = reference.NewSelector(
		reference.WithTuning(ret.tuning),
		reference.WithLogger(ret.l),
	)
	ret.detector = corner.NewDetector(
		corner.WithTuning(ret.tuning),
		corner.WithLogger(ret.l),
	)
	return ret
}

// Build derives a layout from the session's reference lap. The new
// layout carries priorVersion+1 so lap metrics computed against an
// older layout become stale. When segmentation fails the layout
// degrades to a single whole-track straight and records a warning
// instead of failing the build.
//
//nolint:whitespace // can't make both editor and linter happy
func (b *Builder) Build(
	ctx context.Context, reader telemetry.Reader, session *model.Session, priorVersion int,
) (*model.TrackLayout, error) {
	ref, err := b.selector.Select(ctx, reader, session)
	if err != nil {
		return nil, err
	}
	return b.fromReference(session, ref, priorVersion)
}

// BuildWithLap is Build with a caller-chosen reference lap.
//
//nolint:whitespace // can't make both editor and linter happy
func (b *Builder) BuildWithLap(
	ctx context.Context, reader telemetry.Reader, session *model.Session,
	priorVersion, lapNo int,
) (*model.TrackLayout, error) {
	ref, err := b.selector.SelectLap(ctx, reader, session, lapNo)
	if err != nil {
		return nil, err
	}
	return b.fromReference(session, ref, priorVersion)
}

//nolint:whitespace // can't make both editor and linter happy
func (b *Builder) fromReference(
	session *model.Session, ref *reference.Result, priorVersion int,
) (*model.TrackLayout, error) {
	ret := &model.TrackLayout{
		Track:              session.TrackID(),
		Version:            priorVersion + 1,
		TrackLength:        ref.TrackLength,
		ReferenceLapNumber: ref.Lap.LapNumber,
		ReferenceSessionID: session.SessionID,
	}

	steering, _ := ref.Series.Channel(model.ChannelSteering)
	speed, _ := ref.Series.Channel(model.ChannelSpeed)
	segments, err := b.detector.Detect(
		ref.Series.NormalizedDist, steering, speed, ref.TrackLength)

	var segErr *corner.SegmentationError
	switch {
	case err == nil:
		ret.Segments = segments
	case errors.As(err, &segErr):
		b.l.Warn("segmentation failed, using single straight fallback",
			log.String("track", ret.Track.String()),
			log.String("reason", segErr.Reason))
		ret.Segments = corner.FallbackLayout(ref.TrackLength)
		ret.DetectionWarning = segErr.Reason
	default:
		return nil, err
	}

	b.l.Info("layout built",
		log.String("track", ret.Track.String()),
		log.Int("version", ret.Version),
		log.Float64("trackLength", ret.TrackLength),
		log.Int("segments", len(ret.Segments)),
		log.Int("referenceLap", ret.ReferenceLapNumber))
	return ret, nil
}
