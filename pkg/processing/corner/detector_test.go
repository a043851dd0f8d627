//nolint:funlen // readability
package corner

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/testsupport/gendata"
)

const trackLength = 1000.0

func detectorInput(t *testing.T, track gendata.TrackSpec) (normDist, steering, speed []float64) {
	t.Helper()
	channels := gendata.Lap(track, gendata.LapOpts{SampleStep: 1})
	return channels[model.ChannelDistance],
		channels[model.ChannelSteering],
		channels[model.ChannelSpeed]
}

func TestDetector_singleCorner(t *testing.T) {
	track := gendata.TrackSpec{
		Length:  trackLength,
		Corners: []gendata.CornerSpec{{Start: 400, End: 460, Steer: 0.3}},
	}
	normDist, steering, speed := detectorInput(t, track)

	d := NewDetector()
	segments, err := d.Detect(normDist, steering, speed, trackLength)
	assert.NoError(t, err)
	assert.Len(t, segments, 3)

	assert.Equal(t, model.SegmentStraight, segments[0].SegmentType)
	assert.Equal(t, "S1", segments[0].SegmentID)
	assert.Equal(t, 0.0, segments[0].StartDist)

	corner := segments[1]
	assert.Equal(t, model.SegmentCorner, corner.SegmentType)
	assert.Equal(t, "T1", corner.SegmentID)
	assert.InDelta(t, 400, corner.StartDist, 3)
	assert.InDelta(t, 460, corner.EndDist, 3)
	if assert.NotNil(t, corner.ApexDist) {
		// slowest point is mid corner
		assert.InDelta(t, 430, *corner.ApexDist, 3)
	}

	assert.Equal(t, model.SegmentStraight, segments[2].SegmentType)
	assert.Equal(t, "S2", segments[2].SegmentID)
	assert.InDelta(t, trackLength, segments[2].EndDist, 0.001)

	assertFullCoverage(t, segments)
}

func TestDetector_cornerAcrossSeam(t *testing.T) {
	track := gendata.TrackSpec{
		Length:  trackLength,
		Corners: []gendata.CornerSpec{{Start: 950, End: 30, Steer: 0.3}},
	}
	normDist, steering, speed := detectorInput(t, track)

	d := NewDetector()
	segments, err := d.Detect(normDist, steering, speed, trackLength)
	assert.NoError(t, err)
	assert.Len(t, segments, 2)

	// ascending start order: the straight first, the wrapping corner last
	straight := segments[0]
	corner := segments[1]
	assert.Equal(t, model.SegmentStraight, straight.SegmentType)
	assert.Equal(t, model.SegmentCorner, corner.SegmentType)
	assert.InDelta(t, 950, corner.StartDist, 3)
	assert.InDelta(t, 30, corner.EndDist, 3)
	assert.Less(t, corner.EndDist, corner.StartDist, "corner must wrap the seam")

	assertFullCoverage(t, segments)
}

func TestDetector_closeCornersMergeToComplex(t *testing.T) {
	track := gendata.TrackSpec{
		Length: trackLength,
		Corners: []gendata.CornerSpec{
			{Start: 300, End: 340, Steer: 0.3},
			{Start: 350, End: 390, Steer: 0.3},
		},
	}
	normDist, steering, speed := detectorInput(t, track)

	d := NewDetector()
	segments, err := d.Detect(normDist, steering, speed, trackLength)
	assert.NoError(t, err)
	assert.Len(t, segments, 3)

	complexSeg := segments[1]
	assert.Equal(t, model.SegmentComplex, complexSeg.SegmentType)
	assert.Equal(t, "C1", complexSeg.SegmentID)
	assert.InDelta(t, 300, complexSeg.StartDist, 3)
	assert.InDelta(t, 390, complexSeg.EndDist, 3)

	assertFullCoverage(t, segments)
}

func TestDetector_noCorners(t *testing.T) {
	track := gendata.TrackSpec{Length: trackLength}
	normDist, steering, speed := detectorInput(t, track)

	d := NewDetector()
	_, err := d.Detect(normDist, steering, speed, trackLength)
	var segErr *SegmentationError
	assert.ErrorAs(t, err, &segErr)
}

func TestDetector_deterministic(t *testing.T) {
	track := gendata.TrackSpec{
		Length: trackLength,
		Corners: []gendata.CornerSpec{
			{Start: 200, End: 250, Steer: 0.3},
			{Start: 600, End: 680, Steer: 0.5},
		},
	}
	normDist, steering, speed := detectorInput(t, track)

	d := NewDetector()
	first, err := d.Detect(normDist, steering, speed, trackLength)
	assert.NoError(t, err)
	second, err := d.Detect(normDist, steering, speed, trackLength)
	assert.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("detection not deterministic: %s", diff)
	}
}

func TestFallbackLayout(t *testing.T) {
	segments := FallbackLayout(trackLength)
	assert.Len(t, segments, 1)
	assert.Equal(t, "S1", segments[0].SegmentID)
	assert.Equal(t, model.SegmentStraight, segments[0].SegmentType)
	assert.Equal(t, trackLength, segments[0].EndDist)
}

func assertFullCoverage(t *testing.T, segments []model.Segment) {
	t.Helper()
	sum := 0.0
	for i := range segments {
		sum += segments[i].Length(trackLength)
	}
	assert.InDelta(t, trackLength, sum, 1.0)
	// consecutive segments tile without holes
	for i := 1; i < len(segments); i++ {
		prevEnd := segments[i-1].EndDist
		if prevEnd < segments[i-1].StartDist {
			continue // wrapping segment, closes at the seam
		}
		assert.InDelta(t, prevEnd, segments[i].StartDist, 0.001,
			"gap between segment %d and %d", i-1, i)
	}
}
