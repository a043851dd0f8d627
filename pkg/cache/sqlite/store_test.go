package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cache"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleLayout() *model.TrackLayout {
	return &model.TrackLayout{
		Track:              model.TrackID{Name: "testtrack", Variant: "grand prix"},
		Version:            1,
		TrackLength:        1000,
		ReferenceLapNumber: 3,
		ReferenceSessionID: "s1",
		Segments: []model.Segment{
			{SegmentID: "S1", SegmentType: model.SegmentStraight, StartDist: 0, EndDist: 400},
			{
				SegmentID: "T1", SegmentType: model.SegmentCorner,
				StartDist: 400, EndDist: 460,
				EntryDist: model.Ptr(400.0), ApexDist: model.Ptr(430.0), ExitDist: model.Ptr(459.0),
			},
		},
	}
}

func TestStore_layoutRoundtrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.GetLayout(ctx, model.TrackID{Name: "testtrack", Variant: "grand prix"})
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	layout := sampleLayout()
	assert.NoError(t, s.PutLayout(ctx, layout))

	got, err := s.GetLayout(ctx, layout.Track)
	assert.NoError(t, err)
	assert.Equal(t, layout, got)

	// upsert with a bumped version
	layout.Version = 2
	assert.NoError(t, s.PutLayout(ctx, layout))
	got, err = s.GetLayout(ctx, layout.Track)
	assert.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

func TestStore_lapMetricsRoundtrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.GetLapMetrics(ctx, "s1", 3)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	m := &model.LapSegmentMetrics{
		SessionID:     "s1",
		LapNumber:     3,
		LayoutVersion: 1,
		TrackLength:   1000,
		TotalTime:     model.Ptr(92.5),
		Segments: []model.SegmentMetrics{
			{SegmentID: "T1", MinSpeed: model.Ptr(25.0), SegmentTime: model.Ptr(2.1)},
			{SegmentID: "S2", Incomplete: true},
		},
	}
	assert.NoError(t, s.PutLapMetrics(ctx, m))

	got, err := s.GetLapMetrics(ctx, "s1", 3)
	assert.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestStore_corruptEntryIsMiss(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	layout := sampleLayout()
	assert.NoError(t, s.PutLayout(ctx, layout))
	_, err := s.db.ExecContext(ctx,
		"UPDATE track_layout SET payload = ? WHERE track_key = ?",
		"{not json", layout.Track.Key())
	assert.NoError(t, err)

	_, err = s.GetLayout(ctx, layout.Track)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	m := &model.LapSegmentMetrics{SessionID: "s1", LapNumber: 1, LayoutVersion: 1}
	assert.NoError(t, s.PutLapMetrics(ctx, m))
	_, err = s.db.ExecContext(ctx,
		"UPDATE lap_metrics SET payload = ? WHERE session_id = ?", "xx", "s1")
	assert.NoError(t, err)

	_, err = s.GetLapMetrics(ctx, "s1", 1)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestStore_deleteSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for lapNo := 1; lapNo <= 3; lapNo++ {
		m := &model.LapSegmentMetrics{SessionID: "s1", LapNumber: lapNo, LayoutVersion: 1}
		assert.NoError(t, s.PutLapMetrics(ctx, m))
	}
	other := &model.LapSegmentMetrics{SessionID: "s2", LapNumber: 1, LayoutVersion: 1}
	assert.NoError(t, s.PutLapMetrics(ctx, other))

	assert.NoError(t, s.DeleteSession(ctx, "s1"))
	for lapNo := 1; lapNo <= 3; lapNo++ {
		_, err := s.GetLapMetrics(ctx, "s1", lapNo)
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
	}
	_, err := s.GetLapMetrics(ctx, "s2", 1)
	assert.NoError(t, err)
}

func TestStore_persistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path)
	assert.NoError(t, err)
	layout := sampleLayout()
	assert.NoError(t, s.PutLayout(context.Background(), layout))
	assert.NoError(t, s.Close())

	reopened, err := Open(path)
	assert.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.GetLayout(context.Background(), layout.Track)
	assert.NoError(t, err)
	assert.Equal(t, layout, got)
}
