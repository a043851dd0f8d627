package layout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/testsupport/gendata"
)

var testTrack = gendata.TrackSpec{
	Length:  1000,
	Corners: []gendata.CornerSpec{{Start: 400, End: 460, Steer: 0.3}},
}

func testSession(t *testing.T, track gendata.TrackSpec) (*gendata.Reader, *model.Session) {
	t.Helper()
	reader := gendata.NewReader()
	reader.AddSession("s1", "testtrack", "grand prix")
	reader.AddLap("s1", 1, gendata.Lap(track, gendata.LapOpts{Speed: 50}))
	reader.AddLap("s1", 2, gendata.Lap(track, gendata.LapOpts{Speed: 45}))
	session, err := reader.Session(context.Background(), "s1")
	assert.NoError(t, err)
	return reader, session
}

func TestBuilder_Build(t *testing.T) {
	reader, session := testSession(t, testTrack)

	b := NewBuilder()
	got, err := b.Build(context.Background(), reader, session, 0)
	assert.NoError(t, err)

	assert.Equal(t, model.TrackID{Name: "testtrack", Variant: "grand prix"}, got.Track)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, 1, got.ReferenceLapNumber, "fastest smooth lap")
	assert.Equal(t, "s1", got.ReferenceSessionID)
	assert.InDelta(t, 1000, got.TrackLength, 5)
	assert.Len(t, got.Segments, 3)
	assert.Empty(t, got.DetectionWarning)
}

func TestBuilder_versionIncrements(t *testing.T) {
	reader, session := testSession(t, testTrack)

	b := NewBuilder()
	got, err := b.Build(context.Background(), reader, session, 4)
	assert.NoError(t, err)
	assert.Equal(t, 5, got.Version)
}

func TestBuilder_fallbackOnStraightOnlyTrack(t *testing.T) {
	// steering flat all lap: no corners detectable
	reader, session := testSession(t, gendata.TrackSpec{Length: 1000})

	b := NewBuilder()
	got, err := b.Build(context.Background(), reader, session, 0)
	assert.NoError(t, err, "segmentation failure degrades, it does not fail the build")

	assert.NotEmpty(t, got.DetectionWarning)
	assert.Len(t, got.Segments, 1)
	single := got.Segments[0]
	assert.Equal(t, model.SegmentStraight, single.SegmentType)
	assert.Equal(t, 0.0, single.StartDist)
	assert.InDelta(t, got.TrackLength, single.EndDist, 0.001)
}

func TestBuilder_withForcedLap(t *testing.T) {
	reader, session := testSession(t, testTrack)

	b := NewBuilder()
	got, err := b.BuildWithLap(context.Background(), reader, session, 0, 2)
	assert.NoError(t, err)
	assert.Equal(t, 2, got.ReferenceLapNumber)
}
