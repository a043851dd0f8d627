package gendata

import (
	"context"
	"fmt"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/telemetry"
)

// Reader is an in-memory telemetry.Reader over generated sessions.
type Reader struct {
	sessions map[string]*model.Session
	series   map[string]map[int]map[string][]float64
	// Calls counts SampleSeries invocations per session#lap, handy for
	// asserting cache behavior.
	Calls map[string]int
}

var _ telemetry.Reader = (*Reader)(nil)

func NewReader() *Reader {
	return &Reader{
		sessions: make(map[string]*model.Session),
		series:   make(map[string]map[int]map[string][]float64),
		Calls:    make(map[string]int),
	}
}

// AddSession registers a session with the given track identity.
func (r *Reader) AddSession(sessionID, trackName, variant string) {
	r.sessions[sessionID] = &model.Session{
		SessionID:   sessionID,
		TrackName:   trackName,
		TrackLayout: variant,
	}
	r.series[sessionID] = make(map[int]map[string][]float64)
}

// AddLap attaches generated channels as a lap of the session.
func (r *Reader) AddLap(sessionID string, lapNo int, channels map[string][]float64) {
	session := r.sessions[sessionID]
	session.Laps = append(session.Laps, LapMeta(lapNo, channels))
	r.series[sessionID][lapNo] = channels
}

// AddInvalidLap attaches a lap without usable telemetry (off-track,
// incomplete).
func (r *Reader) AddInvalidLap(sessionID string, lapNo int) {
	session := r.sessions[sessionID]
	session.Laps = append(session.Laps, model.Lap{LapNumber: lapNo, Valid: false})
}

func (r *Reader) Session(ctx context.Context, sessionID string) (*model.Session, error) {
	if s, ok := r.sessions[sessionID]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", telemetry.ErrSessionNotFound, sessionID)
}

//nolint:whitespace // can't make both editor and linter happy
func (r *Reader) SampleSeries(
	ctx context.Context, sessionID string, lapNo int,
) (*model.SampleSeries, error) {
	laps, ok := r.series[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", telemetry.ErrSessionNotFound, sessionID)
	}
	channels, ok := laps[lapNo]
	if !ok {
		return nil, fmt.Errorf("%w: session %s lap %d", telemetry.ErrLapNotFound, sessionID, lapNo)
	}
	r.Calls[fmt.Sprintf("%s#%d", sessionID, lapNo)]++
	ret := &model.SampleSeries{
		SessionID: sessionID,
		LapNumber: lapNo,
		Channels:  channels,
	}
	if err := telemetry.ValidateChannels(ret); err != nil {
		return nil, err
	}
	return ret, nil
}
