//nolint:funlen // readability
package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/testsupport/gendata"
)

var testTrack = gendata.TrackSpec{
	Length:  1000,
	Corners: []gendata.CornerSpec{{Start: 400, End: 460, Steer: 0.3}},
}

func testLayout() *model.TrackLayout {
	return &model.TrackLayout{
		Track:              model.TrackID{Name: "testtrack"},
		Version:            3,
		TrackLength:        1000,
		ReferenceLapNumber: 1,
		ReferenceSessionID: "s1",
		Segments: []model.Segment{
			{SegmentID: "S1", SegmentType: model.SegmentStraight, StartDist: 0, EndDist: 400},
			{
				SegmentID: "T1", SegmentType: model.SegmentCorner,
				StartDist: 400, EndDist: 460,
				EntryDist: model.Ptr(400.0), ApexDist: model.Ptr(430.0), ExitDist: model.Ptr(459.0),
			},
			{SegmentID: "S2", SegmentType: model.SegmentStraight, StartDist: 460, EndDist: 1000},
		},
	}
}

func testSeries(t *testing.T, opts gendata.LapOpts) (*model.SampleSeries, model.Lap) {
	t.Helper()
	channels := gendata.Lap(testTrack, opts)
	series := &model.SampleSeries{
		SessionID:      "s1",
		LapNumber:      1,
		Channels:       channels,
		NormalizedDist: channels[model.ChannelDistance],
	}
	return series, gendata.LapMeta(1, channels)
}

func TestCalculator_Compute(t *testing.T) {
	series, lap := testSeries(t, gendata.LapOpts{Speed: 50, ApexSpeed: 25})
	c := NewCalculator()
	got, err := c.Compute(series, lap, testLayout())
	assert.NoError(t, err)

	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, 1, got.LapNumber)
	assert.Equal(t, 3, got.LayoutVersion)
	assert.Equal(t, lap.LapTime, got.TotalTime)
	assert.Len(t, got.Segments, 3)

	s1 := got.Segments[0]
	assert.False(t, s1.Incomplete)
	assert.InDelta(t, 50, *s1.EntrySpeed, 0.001)
	assert.InDelta(t, 50, *s1.MidSpeed, 0.001)
	assert.InDelta(t, 50, *s1.MinSpeed, 0.001)
	assert.InDelta(t, 50, *s1.AvgSpeed, 0.001)
	// 400m at 50 m/s
	assert.InDelta(t, 8.0, *s1.SegmentTime, 0.001)
	// the brake zone before the corner lies in this straight
	assert.InDelta(t, 0.8, *s1.MaxBrakePressure, 0.001)
	// apex-anchored metrics stay null on segments without an apex
	assert.Nil(t, s1.BrakingDistance)
	assert.Nil(t, s1.ThrottleApplication)
	// constant steering on a straight: variance 0, smoothness undefined
	assert.Nil(t, s1.SteeringSmoothness)

	t1 := got.Segments[1]
	assert.False(t, t1.Incomplete)
	assert.InDelta(t, 50, *t1.EntrySpeed, 0.5)
	// mid speed is interpolated at the apex, the slowest point
	assert.InDelta(t, 25, *t1.MidSpeed, 0.5)
	assert.InDelta(t, 50, *t1.ExitSpeed, 1.0)
	assert.InDelta(t, 25, *t1.MinSpeed, 0.001)
	// trail braking from corner entry down to the apex
	assert.InDelta(t, 30, *t1.BrakingDistance, 2.1)
	assert.InDelta(t, 0.8, *t1.MaxBrakePressure, 0.001)
	// back on full throttle 3/4 into the corner, 16m past the apex
	assert.InDelta(t, 16, *t1.ThrottleApplication, 2.1)
	assert.NotNil(t, t1.SteeringSmoothness)
	// slower than at straight pace, faster than apex pace all the way
	assert.Greater(t, *t1.SegmentTime, 60.0/50.0)
	assert.Less(t, *t1.SegmentTime, 60.0/25.0)

	// deltas are not filled by Compute
	assert.Nil(t, s1.TimeDeltaToReference)
}

func TestCalculator_wrapSegmentTime(t *testing.T) {
	series, lap := testSeries(t, gendata.LapOpts{Speed: 50, ApexSpeed: 50})
	lo := &model.TrackLayout{
		Version:     1,
		TrackLength: 1000,
		Segments: []model.Segment{
			{SegmentID: "S1", SegmentType: model.SegmentStraight, StartDist: 30, EndDist: 950},
			{SegmentID: "T1", SegmentType: model.SegmentCorner, StartDist: 950, EndDist: 30},
		},
	}
	c := NewCalculator()
	got, err := c.Compute(series, lap, lo)
	assert.NoError(t, err)

	// 80m across the seam at 50 m/s
	wrapped := got.Segments[1]
	assert.False(t, wrapped.Incomplete)
	assert.InDelta(t, 1.6, *wrapped.SegmentTime, 0.05)
	assert.InDelta(t, 50, *wrapped.MinSpeed, 0.5)
}

func TestCalculator_segmentWithoutSamples(t *testing.T) {
	series := &model.SampleSeries{
		SessionID: "s1",
		LapNumber: 1,
		Channels: map[string][]float64{
			model.ChannelTimestamp: {0, 1, 2},
			model.ChannelDistance:  {0, 50, 100},
			model.ChannelSpeed:     {50, 50, 50},
			model.ChannelSteering:  {0, 0, 0},
			model.ChannelThrottle:  {1, 1, 1},
			model.ChannelBrake:     {0, 0, 0},
		},
		NormalizedDist: []float64{0, 50, 100},
	}
	lo := &model.TrackLayout{
		Version:     1,
		TrackLength: 1000,
		Segments: []model.Segment{
			{SegmentID: "S1", SegmentType: model.SegmentStraight, StartDist: 0, EndDist: 200},
			{SegmentID: "S2", SegmentType: model.SegmentStraight, StartDist: 600, EndDist: 700},
		},
	}
	c := NewCalculator()
	got, err := c.Compute(series, model.Lap{LapNumber: 1}, lo)
	assert.NoError(t, err)

	empty := got.Segments[1]
	assert.True(t, empty.Incomplete)
	assert.Nil(t, empty.EntrySpeed)
	assert.Nil(t, empty.SegmentTime)
	assert.Nil(t, empty.MinSpeed)
	assert.Nil(t, empty.BrakingDistance)
}

func TestApplyReferenceDeltas(t *testing.T) {
	target := &model.LapSegmentMetrics{Segments: []model.SegmentMetrics{
		{SegmentID: "S1", SegmentTime: model.Ptr(8.5)},
		{SegmentID: "T1", SegmentTime: model.Ptr(2.0)},
		{SegmentID: "S2", SegmentTime: nil},
	}}
	ref := &model.LapSegmentMetrics{Segments: []model.SegmentMetrics{
		{SegmentID: "S1", SegmentTime: model.Ptr(8.0)},
		{SegmentID: "T1", SegmentTime: model.Ptr(2.2)},
		{SegmentID: "S2", SegmentTime: model.Ptr(10.0)},
	}}
	ApplyReferenceDeltas(target, ref)

	assert.InDelta(t, 0.5, *target.Segments[0].TimeDeltaToReference, 0.001)
	assert.InDelta(t, -0.2, *target.Segments[1].TimeDeltaToReference, 0.001)
	assert.Nil(t, target.Segments[2].TimeDeltaToReference)
}

func TestApplyReferenceDeltas_selfIsZero(t *testing.T) {
	m := &model.LapSegmentMetrics{Segments: []model.SegmentMetrics{
		{SegmentID: "S1", SegmentTime: model.Ptr(8.0)},
	}}
	ApplyReferenceDeltas(m, m)
	assert.InDelta(t, 0.0, *m.Segments[0].TimeDeltaToReference, 0.001)
}
