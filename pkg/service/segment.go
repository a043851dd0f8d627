// Package service orchestrates layout building, metrics computation
// and the two cache tiers behind a single API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/log"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cache"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/config"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/processing/distance"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/processing/layout"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/processing/metrics"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/telemetry"
)

// comparison thresholds for key difference detection
const (
	notableSpeedDelta    = 2.0 // m/s
	notableBrakingDelta  = 5.0 // m
	notableThrottleDelta = 5.0 // m
	topSegments          = 3
)

type SegmentService struct {
	tuning     *config.Tuning
	l          *log.Logger
	reader     telemetry.Reader
	store      cache.Store
	builder    *layout.Builder
	calculator *metrics.Calculator
	normalizer *distance.Normalizer
	locks      keyedMutex
}

type Option func(*SegmentService)

func WithTuning(arg *config.Tuning) Option {
	return func(s *SegmentService) { s.tuning = arg }
}

func WithLogger(arg *log.Logger) Option {
	return func(s *SegmentService) { s.l = arg }
}

func NewSegmentService(reader telemetry.Reader, store cache.Store, opts ...Option) *SegmentService {
	ret := &SegmentService{
		tuning: config.DefaultTuning(),
		l:      log.Default().Named("service"),
		reader: reader,
		store:  store,
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.builder = layout.NewBuilder(
		layout.WithTuning(ret.tuning),
		layout.WithLogger(ret.l))
	ret.calculator = metrics.NewCalculator(
		metrics.WithTuning(ret.tuning),
		metrics.WithLogger(ret.l))
	ret.normalizer = distance.NewNormalizer(
		distance.WithTuning(ret.tuning),
		distance.WithLogger(ret.l))
	return ret
}

// GetLayout returns the track layout for the session's track, building
// and caching it on first use. Concurrent requests for the same track
// build at most once.
func (s *SegmentService) GetLayout(ctx context.Context, sessionID string) (*model.TrackLayout, error) {
	session, err := s.reader.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.layoutForSession(ctx, session)
}

//nolint:whitespace // can't make both editor and linter happy
func (s *SegmentService) layoutForSession(
	ctx context.Context, session *model.Session,
) (*model.TrackLayout, error) {
	track := session.TrackID()
	unlock := s.locks.lock("layout:" + track.Key())
	defer unlock()

	cached, err := s.store.GetLayout(ctx, track)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return nil, err
	}
	built, err := s.builder.Build(ctx, s.reader, session, 0)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutLayout(ctx, built); err != nil {
		return nil, err
	}
	return built, nil
}

// RegenerateLayout discards the cached layout of the session's track
// and builds a fresh one with a bumped version. With lapNo > 0 that
// lap is forced as reference instead of the automatic selection.
// Cached lap metrics stay in place, the version bump makes them stale.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *SegmentService) RegenerateLayout(
	ctx context.Context, sessionID string, lapNo int,
) (*model.TrackLayout, error) {
	session, err := s.reader.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	track := session.TrackID()
	unlock := s.locks.lock("layout:" + track.Key())
	defer unlock()

	priorVersion := 0
	if prior, err := s.store.GetLayout(ctx, track); err == nil {
		priorVersion = prior.Version
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		return nil, err
	}

	var built *model.TrackLayout
	if lapNo > 0 {
		built, err = s.builder.BuildWithLap(ctx, s.reader, session, priorVersion, lapNo)
	} else {
		built, err = s.builder.Build(ctx, s.reader, session, priorVersion)
	}
	if err != nil {
		return nil, err
	}
	if err := s.store.PutLayout(ctx, built); err != nil {
		return nil, err
	}
	s.l.Info("layout regenerated",
		log.String("track", track.String()),
		log.Int("priorVersion", priorVersion),
		log.Int("version", built.Version))
	return built, nil
}

// GetLapMetrics returns the segment metrics of one lap. Cached entries
// are only served while their layout version matches the current
// layout; stale or missing entries are recomputed and stored.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *SegmentService) GetLapMetrics(
	ctx context.Context, sessionID string, lapNo int,
) (*model.LapSegmentMetrics, error) {
	session, err := s.reader.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	lo2, err := s.layoutForSession(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.lapMetrics(ctx, session, lo2, lapNo)
}

//nolint:whitespace // can't make both editor and linter happy
func (s *SegmentService) lapMetrics(
	ctx context.Context, session *model.Session, lo2 *model.TrackLayout, lapNo int,
) (*model.LapSegmentMetrics, error) {
	unlock := s.locks.lock(fmt.Sprintf("lap:%s#%d", session.SessionID, lapNo))
	defer unlock()

	cached, err := s.store.GetLapMetrics(ctx, session.SessionID, lapNo)
	if err == nil && cached.LayoutVersion == lo2.Version {
		return cached, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return nil, err
	}
	if err == nil {
		s.l.Debug("cached lap metrics stale",
			log.String("session", session.SessionID),
			log.Int("lap", lapNo),
			log.Int("cachedVersion", cached.LayoutVersion),
			log.Int("layoutVersion", lo2.Version))
	}

	computed, err := s.computeLapMetrics(ctx, session, lo2, lapNo)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutLapMetrics(ctx, computed); err != nil {
		return nil, err
	}
	return computed, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *SegmentService) computeLapMetrics(
	ctx context.Context, session *model.Session, lo2 *model.TrackLayout, lapNo int,
) (*model.LapSegmentMetrics, error) {
	lap, err := findLap(session, lapNo)
	if err != nil {
		return nil, err
	}
	series, err := s.reader.SampleSeries(ctx, session.SessionID, lapNo)
	if err != nil {
		return nil, err
	}
	if _, err := s.normalizer.NormalizeSeries(series); err != nil {
		return nil, err
	}
	ret, err := s.calculator.Compute(series, lap, lo2)
	if err != nil {
		return nil, err
	}

	if session.SessionID == lo2.ReferenceSessionID && lapNo == lo2.ReferenceLapNumber {
		// the reference lap compared to itself
		metrics.ApplyReferenceDeltas(ret, ret)
		return ret, nil
	}
	refSession := session
	if lo2.ReferenceSessionID != session.SessionID {
		if refSession, err = s.reader.Session(ctx, lo2.ReferenceSessionID); err != nil {
			s.l.Warn("reference session unavailable, deltas omitted",
				log.String("session", lo2.ReferenceSessionID),
				log.ErrorField(err))
			return ret, nil
		}
	}
	refMetrics, err := s.lapMetrics(ctx, refSession, lo2, lo2.ReferenceLapNumber)
	if err != nil {
		s.l.Warn("reference lap metrics unavailable, deltas omitted",
			log.String("session", lo2.ReferenceSessionID),
			log.Int("lap", lo2.ReferenceLapNumber),
			log.ErrorField(err))
		return ret, nil
	}
	metrics.ApplyReferenceDeltas(ret, refMetrics)
	return ret, nil
}

// SegmentsForLap returns the layout and the lap's metrics in one call.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *SegmentService) SegmentsForLap(
	ctx context.Context, sessionID string, lapNo int,
) (*model.TrackLayout, *model.LapSegmentMetrics, error) {
	session, err := s.reader.Session(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	lo2, err := s.layoutForSession(ctx, session)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.lapMetrics(ctx, session, lo2, lapNo)
	if err != nil {
		return nil, nil, err
	}
	return lo2, m, nil
}

// CompareSegments diffs two laps of a session segment by segment.
// With referenceLap <= 0 the layout's reference lap is used. A
// non-empty segmentIDs restricts the comparison to those segments.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *SegmentService) CompareSegments(
	ctx context.Context, sessionID string, targetLap, referenceLap int, segmentIDs []string,
) (*model.SegmentComparison, error) {
	session, err := s.reader.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	lo2, err := s.layoutForSession(ctx, session)
	if err != nil {
		return nil, err
	}
	if referenceLap <= 0 {
		referenceLap = lo2.ReferenceLapNumber
	}
	target, err := s.lapMetrics(ctx, session, lo2, targetLap)
	if err != nil {
		return nil, err
	}
	ref, err := s.lapMetrics(ctx, session, lo2, referenceLap)
	if err != nil {
		return nil, err
	}
	return buildComparison(sessionID, lo2, target, ref, segmentIDs), nil
}

// InvalidateSession drops all cached lap metrics of a session, e.g.
// after its telemetry file was re-recorded.
func (s *SegmentService) InvalidateSession(ctx context.Context, sessionID string) error {
	s.l.Info("invalidating session", log.String("session", sessionID))
	return s.store.DeleteSession(ctx, sessionID)
}

//nolint:whitespace // can't make both editor and linter happy
func buildComparison(
	sessionID string, lo2 *model.TrackLayout, target, ref *model.LapSegmentMetrics,
	segmentIDs []string,
) *model.SegmentComparison {
	refByID := lo.KeyBy(ref.Segments, func(m model.SegmentMetrics) string { return m.SegmentID })
	wanted := func(id string) bool {
		return len(segmentIDs) == 0 || lo.Contains(segmentIDs, id)
	}

	ret := &model.SegmentComparison{
		SessionID:    sessionID,
		TargetLap:    target.LapNumber,
		ReferenceLap: ref.LapNumber,
		TrackLength:  lo2.TrackLength,
		Entries:      make([]model.SegmentComparisonEntry, 0, len(target.Segments)),
	}
	for i := range target.Segments {
		t := &target.Segments[i]
		if !wanted(t.SegmentID) {
			continue
		}
		entry := model.SegmentComparisonEntry{
			SegmentID:      t.SegmentID,
			TargetTime:     t.SegmentTime,
			TargetMinSpeed: t.MinSpeed,
		}
		if r, ok := refByID[t.SegmentID]; ok {
			entry.ReferenceTime = r.SegmentTime
			entry.ReferenceMinSpeed = r.MinSpeed
			if t.SegmentTime != nil && r.SegmentTime != nil {
				entry.TimeDelta = model.Ptr(*t.SegmentTime - *r.SegmentTime)
				ret.TotalTimeDelta += *entry.TimeDelta
			}
			if t.MinSpeed != nil && r.MinSpeed != nil {
				entry.MinSpeedDelta = model.Ptr(*t.MinSpeed - *r.MinSpeed)
			}
			entry.KeyDifferences = keyDifferences(t, &r)
		}
		ret.Entries = append(ret.Entries, entry)
	}

	withDelta := lo.Filter(ret.Entries, func(e model.SegmentComparisonEntry, _ int) bool {
		return e.TimeDelta != nil
	})
	sort.Slice(withDelta, func(i, j int) bool { return *withDelta[i].TimeDelta > *withDelta[j].TimeDelta })
	for i := 0; i < len(withDelta) && i < topSegments; i++ {
		if *withDelta[i].TimeDelta > 0 {
			ret.LargestLosses = append(ret.LargestLosses, withDelta[i].SegmentID)
		}
	}
	for i := len(withDelta) - 1; i >= 0 && len(ret.LargestGains) < topSegments; i-- {
		if *withDelta[i].TimeDelta < 0 {
			ret.LargestGains = append(ret.LargestGains, withDelta[i].SegmentID)
		}
	}
	return ret
}

// keyDifferences describes the notable metric gaps of a segment in
// human readable form.
func keyDifferences(t, r *model.SegmentMetrics) []string {
	ret := []string{}
	diff := func(a, b *float64) (float64, bool) {
		if a == nil || b == nil {
			return 0, false
		}
		return *a - *b, true
	}
	if d, ok := diff(t.MinSpeed, r.MinSpeed); ok && math.Abs(d) >= notableSpeedDelta {
		ret = append(ret, fmt.Sprintf("min speed %+.1f m/s", d))
	}
	if d, ok := diff(t.EntrySpeed, r.EntrySpeed); ok && math.Abs(d) >= notableSpeedDelta {
		ret = append(ret, fmt.Sprintf("entry speed %+.1f m/s", d))
	}
	if d, ok := diff(t.ExitSpeed, r.ExitSpeed); ok && math.Abs(d) >= notableSpeedDelta {
		ret = append(ret, fmt.Sprintf("exit speed %+.1f m/s", d))
	}
	if d, ok := diff(t.BrakingDistance, r.BrakingDistance); ok && math.Abs(d) >= notableBrakingDelta {
		ret = append(ret, fmt.Sprintf("braking distance %+.1f m", d))
	}
	if d, ok := diff(t.ThrottleApplication, r.ThrottleApplication); ok &&
		math.Abs(d) >= notableThrottleDelta {
		ret = append(ret, fmt.Sprintf("throttle application %+.1f m", d))
	}
	return ret
}

func findLap(session *model.Session, lapNo int) (model.Lap, error) {
	for _, lap := range session.Laps {
		if lap.LapNumber == lapNo {
			return lap, nil
		}
	}
	return model.Lap{}, fmt.Errorf("%w: session %s lap %d",
		telemetry.ErrLapNotFound, session.SessionID, lapNo)
}

// keyedMutex serializes work per string key so identical computations
// do not run concurrently.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
