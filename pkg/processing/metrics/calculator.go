// Package metrics computes per-segment driving metrics of a lap
// against a track layout. Boundary values (entry/mid/exit speed,
// segment times) are linearly interpolated over normalized distance so
// they do not depend on where samples happen to fall.
package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/log"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/config"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
)

type Calculator struct {
	tuning *config.Tuning
	l      *log.Logger
}

type Option func(*Calculator)

func WithTuning(arg *config.Tuning) Option {
	return func(c *Calculator) { c.tuning = arg }
}

func WithLogger(arg *log.Logger) Option {
	return func(c *Calculator) { c.l = arg }
}

func NewCalculator(opts ...Option) *Calculator {
	ret := &Calculator{
		tuning: config.DefaultTuning(),
		l:      log.Default().Named("metrics"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Compute derives segment metrics for one lap. The series must carry
// NormalizedDist (see the distance package). Segments without any
// sample are marked incomplete with all metrics null except the
// boundary-interpolated segment time where the data allows it.
//
//nolint:whitespace // can't make both editor and linter happy
func (c *Calculator) Compute(
	series *model.SampleSeries, lap model.Lap, lo *model.TrackLayout,
) (*model.LapSegmentMetrics, error) {
	if len(series.NormalizedDist) == 0 {
		return nil, fmt.Errorf("series for session %s lap %d has no normalized distance",
			series.SessionID, series.LapNumber)
	}
	timestamps, ok := series.Channel(model.ChannelTimestamp)
	if !ok || len(timestamps) != len(series.NormalizedDist) {
		return nil, fmt.Errorf("timestamp channel missing or misaligned (session %s lap %d)",
			series.SessionID, series.LapNumber)
	}

	ret := &model.LapSegmentMetrics{
		SessionID:     series.SessionID,
		LapNumber:     series.LapNumber,
		LayoutVersion: lo.Version,
		TrackLength:   lo.TrackLength,
		TotalTime:     lap.LapTime,
		Segments:      make([]model.SegmentMetrics, 0, len(lo.Segments)),
	}
	for i := range lo.Segments {
		ret.Segments = append(ret.Segments, c.segmentMetrics(series, &lo.Segments[i], lo.TrackLength))
	}
	return ret, nil
}

// ApplyReferenceDeltas fills TimeDeltaToReference on target from the
// segment times of ref. Segments missing a time on either side keep a
// null delta.
func ApplyReferenceDeltas(target, ref *model.LapSegmentMetrics) {
	refTimes := make(map[string]*float64, len(ref.Segments))
	for i := range ref.Segments {
		refTimes[ref.Segments[i].SegmentID] = ref.Segments[i].SegmentTime
	}
	for i := range target.Segments {
		seg := &target.Segments[i]
		rt, ok := refTimes[seg.SegmentID]
		if !ok || rt == nil || seg.SegmentTime == nil {
			seg.TimeDeltaToReference = nil
			continue
		}
		seg.TimeDeltaToReference = model.Ptr(*seg.SegmentTime - *rt)
	}
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Calculator) segmentMetrics(
	series *model.SampleSeries, seg *model.Segment, trackLength float64,
) model.SegmentMetrics {
	ret := model.SegmentMetrics{SegmentID: seg.SegmentID}
	nd := series.NormalizedDist
	timestamps, _ := series.Channel(model.ChannelTimestamp)
	ret.SegmentTime = c.segmentTime(nd, timestamps, seg)

	inRange := indicesInSegment(nd, seg)
	if len(inRange) == 0 {
		c.l.Debug("segment without samples",
			log.String("session", series.SessionID),
			log.Int("lap", series.LapNumber),
			log.String("segment", seg.SegmentID))
		ret.Incomplete = true
		return ret
	}

	speed, _ := series.Channel(model.ChannelSpeed)
	brake, _ := series.Channel(model.ChannelBrake)
	throttle, _ := series.Channel(model.ChannelThrottle)
	steering, _ := series.Channel(model.ChannelSteering)

	entryDist := seg.StartDist
	if seg.EntryDist != nil {
		entryDist = *seg.EntryDist
	}
	exitDist := seg.EndDist
	if seg.ExitDist != nil {
		exitDist = *seg.ExitDist
	}
	ret.EntrySpeed = model.Ptr(interpolate(nd, speed, entryDist))
	ret.ExitSpeed = model.Ptr(interpolate(nd, speed, exitDist))
	if seg.ApexDist != nil {
		ret.MidSpeed = model.Ptr(interpolate(nd, speed, *seg.ApexDist))
	} else {
		mid := seg.StartDist + seg.Length(trackLength)/2
		if mid >= trackLength {
			mid -= trackLength
		}
		ret.MidSpeed = model.Ptr(interpolate(nd, speed, mid))
	}

	minV, maxV, sum := speed[inRange[0]], speed[inRange[0]], 0.0
	for _, i := range inRange {
		v := speed[i]
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
		sum += v
	}
	ret.MinSpeed = model.Ptr(minV)
	ret.MaxSpeed = model.Ptr(maxV)
	ret.AvgSpeed = model.Ptr(sum / float64(len(inRange)))

	c.pedalMetrics(&ret, nd, brake, throttle, inRange, seg, trackLength)
	ret.SteeringSmoothness = steeringSmoothness(nd, steering, inRange)
	return ret
}

// segmentTime is the interpolated timestamp difference between the
// segment boundaries. For a seam-wrapping segment the two halves on
// either side of the seam are added. Segments entirely outside the
// sampled distance range have no time.
func (c *Calculator) segmentTime(nd, timestamps []float64, seg *model.Segment) *float64 {
	if seg.EndDist >= seg.StartDist {
		if seg.StartDist > nd[len(nd)-1] || seg.EndDist < nd[0] {
			return nil
		}
		t := interpolate(nd, timestamps, seg.EndDist) - interpolate(nd, timestamps, seg.StartDist)
		if t < 0 {
			return nil
		}
		return model.Ptr(t)
	}
	head := interpolate(nd, timestamps, seg.EndDist) - timestamps[0]
	tail := timestamps[len(timestamps)-1] - interpolate(nd, timestamps, seg.StartDist)
	t := head + tail
	if t < 0 {
		return nil
	}
	return model.Ptr(t)
}

// pedalMetrics derives the apex-anchored brake and throttle metrics:
// braking distance runs from the first braking sample to the apex,
// throttle application from the apex to the first sample back on
// throttle. Both stay null on segments without an apex.
//
//nolint:whitespace // can't make both editor and linter happy
func (c *Calculator) pedalMetrics(
	ret *model.SegmentMetrics, nd, brake, throttle []float64,
	inRange []int, seg *model.Segment, trackLength float64,
) {
	offset := func(d float64) float64 {
		off := d - seg.StartDist
		if off < 0 {
			off += trackLength
		}
		return off
	}

	maxBrake := 0.0
	firstBrakeOff := -1.0
	for _, i := range inRange {
		if brake[i] > maxBrake {
			maxBrake = brake[i]
		}
		if firstBrakeOff < 0 && brake[i] > c.tuning.BrakeThreshold {
			firstBrakeOff = offset(nd[i])
		}
	}
	ret.MaxBrakePressure = model.Ptr(maxBrake)

	if seg.ApexDist == nil {
		return
	}
	apexOff := offset(*seg.ApexDist)
	if firstBrakeOff >= 0 {
		ret.BrakingDistance = model.Ptr(apexOff - firstBrakeOff)
	}
	for _, i := range inRange {
		off := offset(nd[i])
		if off < apexOff {
			continue
		}
		if throttle[i] > c.tuning.ThrottleThreshold {
			ret.ThrottleApplication = model.Ptr(off - apexOff)
			break
		}
	}
}

// steeringSmoothness is the inverse variance of the steering derivative
// within the segment. Null when too few samples or when the steering
// trace is perfectly constant.
func steeringSmoothness(nd, steering []float64, inRange []int) *float64 {
	derivs := []float64{}
	for k := 1; k < len(inRange); k++ {
		i, j := inRange[k-1], inRange[k]
		if j != i+1 {
			// gap in the index run (wrap segment), no derivative across it
			continue
		}
		dx := nd[j] - nd[i]
		if dx <= 0 {
			continue
		}
		derivs = append(derivs, (steering[j]-steering[i])/dx)
	}
	if len(derivs) < 2 {
		return nil
	}
	variance := stat.Variance(derivs, nil)
	if variance == 0 || math.IsNaN(variance) {
		return nil
	}
	return model.Ptr(1 / variance)
}

// indicesInSegment returns the sample indices whose normalized distance
// falls into [start,end), honoring seam wrap. Indices come out in
// sample order.
func indicesInSegment(nd []float64, seg *model.Segment) []int {
	ret := []int{}
	for i, d := range nd {
		if inSegment(d, seg) {
			ret = append(ret, i)
		}
	}
	return ret
}

func inSegment(d float64, seg *model.Segment) bool {
	if seg.EndDist >= seg.StartDist {
		return d >= seg.StartDist && d < seg.EndDist
	}
	return d >= seg.StartDist || d < seg.EndDist
}

// interpolate evaluates the piecewise linear function through (xs, ys)
// at t, clamping outside the sampled range. xs must be non-decreasing.
func interpolate(xs, ys []float64, t float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	if t <= xs[0] {
		return ys[0]
	}
	if t >= xs[n-1] {
		return ys[n-1]
	}
	lo := sort.SearchFloat64s(xs, t)
	hi := lo
	lo--
	dx := xs[hi] - xs[lo]
	if dx == 0 {
		return ys[hi]
	}
	frac := (t - xs[lo]) / dx
	return ys[lo] + frac*(ys[hi]-ys[lo])
}
