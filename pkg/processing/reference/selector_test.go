//nolint:funlen // readability
package reference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/testsupport/gendata"
)

var testTrack = gendata.TrackSpec{
	Length:  1000,
	Corners: []gendata.CornerSpec{{Start: 400, End: 460, Steer: 0.3}},
}

func TestSelector_Select(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(r *gendata.Reader)
		wantLap int
		wantErr bool
	}{
		{
			name: "fastest smooth lap wins",
			setup: func(r *gendata.Reader) {
				r.AddLap("s1", 1, gendata.Lap(testTrack, gendata.LapOpts{Speed: 45}))
				r.AddLap("s1", 2, gendata.Lap(testTrack, gendata.LapOpts{Speed: 50}))
				r.AddLap("s1", 3, gendata.Lap(testTrack, gendata.LapOpts{Speed: 40}))
			},
			wantLap: 2,
		},
		{
			name: "fastest lap excluded when erratic",
			setup: func(r *gendata.Reader) {
				// lap 1 is fastest but driven with heavy steering jitter
				r.AddLap("s1", 1, gendata.Lap(testTrack, gendata.LapOpts{Speed: 55, Jitter: 0.2}))
				r.AddLap("s1", 2, gendata.Lap(testTrack, gendata.LapOpts{Speed: 50}))
				r.AddLap("s1", 3, gendata.Lap(testTrack, gendata.LapOpts{Speed: 45}))
				r.AddLap("s1", 4, gendata.Lap(testTrack, gendata.LapOpts{Speed: 44}))
				r.AddLap("s1", 5, gendata.Lap(testTrack, gendata.LapOpts{Speed: 43}))
			},
			wantLap: 2,
		},
		{
			name: "tie on lap time breaks to lowest lap number",
			setup: func(r *gendata.Reader) {
				r.AddLap("s1", 4, gendata.Lap(testTrack, gendata.LapOpts{Speed: 50}))
				r.AddLap("s1", 2, gendata.Lap(testTrack, gendata.LapOpts{Speed: 50}))
				r.AddLap("s1", 7, gendata.Lap(testTrack, gendata.LapOpts{Speed: 50}))
			},
			wantLap: 2,
		},
		{
			name: "invalid laps are ignored",
			setup: func(r *gendata.Reader) {
				r.AddInvalidLap("s1", 1)
				r.AddLap("s1", 2, gendata.Lap(testTrack, gendata.LapOpts{Speed: 40}))
			},
			wantLap: 2,
		},
		{
			name:    "no laps at all",
			setup:   func(r *gendata.Reader) {},
			wantErr: true,
		},
		{
			name: "only invalid laps",
			setup: func(r *gendata.Reader) {
				r.AddInvalidLap("s1", 1)
				r.AddInvalidLap("s1", 2)
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := gendata.NewReader()
			reader.AddSession("s1", "testtrack", "")
			tt.setup(reader)
			session, err := reader.Session(context.Background(), "s1")
			assert.NoError(t, err)

			s := NewSelector()
			got, err := s.Select(context.Background(), reader, session)
			if tt.wantErr {
				var refErr *NoValidReferenceLapError
				assert.ErrorAs(t, err, &refErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantLap, got.Lap.LapNumber)
			assert.InDelta(t, 1000, got.TrackLength, 5)
			assert.NotEmpty(t, got.Series.NormalizedDist)
		})
	}
}

func TestSelector_SelectLap(t *testing.T) {
	reader := gendata.NewReader()
	reader.AddSession("s1", "testtrack", "")
	reader.AddLap("s1", 1, gendata.Lap(testTrack, gendata.LapOpts{Speed: 50}))
	reader.AddLap("s1", 2, gendata.Lap(testTrack, gendata.LapOpts{Speed: 45}))
	reader.AddInvalidLap("s1", 3)
	session, err := reader.Session(context.Background(), "s1")
	assert.NoError(t, err)

	s := NewSelector()

	got, err := s.SelectLap(context.Background(), reader, session, 2)
	assert.NoError(t, err)
	assert.Equal(t, 2, got.Lap.LapNumber)

	_, err = s.SelectLap(context.Background(), reader, session, 3)
	var refErr *NoValidReferenceLapError
	assert.ErrorAs(t, err, &refErr)

	_, err = s.SelectLap(context.Background(), reader, session, 99)
	assert.Error(t, err)
}
