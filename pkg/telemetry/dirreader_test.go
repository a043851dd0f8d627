package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
)

const sampleSession = `{
  "session_id": "s1",
  "track_name": "testtrack",
  "track_layout_variant": "grand prix",
  "laps": [
    {"lap_number": 1, "start_time": 0, "end_time": 20, "lap_time": 20, "valid": true},
    {"lap_number": 2, "start_time": 20, "end_time": 0, "lap_time": null, "valid": false}
  ],
  "channels": {
    "1": {
      "SessionTime": [0, 1, 2],
      "LapDist": [0, 50, 100],
      "Speed": [50, 50, 50],
      "SteeringWheelAngle": [0, 0.1, 0],
      "Throttle": [1, 1, 1],
      "Brake": [0, 0, 0]
    }
  }
}`

func writeSession(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write session file: %v", err)
	}
}

func TestDirReader(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "s1.json", sampleSession)

	r, err := NewDirReader(dir)
	assert.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	session, err := r.Session(ctx, "s1")
	assert.NoError(t, err)
	assert.Equal(t, "testtrack", session.TrackName)
	assert.Equal(t, model.TrackID{Name: "testtrack", Variant: "grand prix"}, session.TrackID())
	assert.Len(t, session.Laps, 2)
	assert.Nil(t, session.Laps[1].LapTime)

	series, err := r.SampleSeries(ctx, "s1", 1)
	assert.NoError(t, err)
	assert.Equal(t, 3, series.Len())

	_, err = r.SampleSeries(ctx, "s1", 2)
	assert.ErrorIs(t, err, ErrLapNotFound)

	_, err = r.Session(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDirReader_missingChannel(t *testing.T) {
	dir := t.TempDir()
	// no Brake channel
	writeSession(t, dir, "s1.json", `{
	  "session_id": "s1", "track_name": "t",
	  "laps": [{"lap_number": 1, "valid": true}],
	  "channels": {"1": {
	    "SessionTime": [0], "LapDist": [0], "Speed": [0],
	    "SteeringWheelAngle": [0], "Throttle": [0]
	  }}
	}`)

	r, err := NewDirReader(dir)
	assert.NoError(t, err)
	defer r.Close()

	_, err = r.SampleSeries(context.Background(), "s1", 1)
	var chanErr *ChannelMissingError
	if assert.ErrorAs(t, err, &chanErr) {
		assert.Equal(t, model.ChannelBrake, chanErr.Channel)
	}
}

func TestDirReader_notADir(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "s1.json", sampleSession)
	_, err := NewDirReader(filepath.Join(dir, "s1.json"))
	assert.Error(t, err)
	_, err = NewDirReader(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
