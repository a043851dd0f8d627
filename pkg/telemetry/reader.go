package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
)

var ErrSessionNotFound = errors.New("session not found")

var ErrLapNotFound = errors.New("lap not found")

// ChannelMissingError signals that a required telemetry channel is
// absent from a session's recorded data.
type ChannelMissingError struct {
	SessionID string
	LapNumber int
	Channel   string
}

func (e *ChannelMissingError) Error() string {
	return fmt.Sprintf("channel %s missing for session %s lap %d",
		e.Channel, e.SessionID, e.LapNumber)
}

// Reader provides access to recorded telemetry. Implementations must
// return aligned columns for all channels of a lap.
type Reader interface {
	// Session returns the session metadata including its laps.
	Session(ctx context.Context, sessionID string) (*model.Session, error)
	// SampleSeries returns one lap of per-sample data. All required
	// channels (model.RequiredChannels) are guaranteed present and of
	// equal length, otherwise a *ChannelMissingError is returned.
	SampleSeries(ctx context.Context, sessionID string, lapNo int) (*model.SampleSeries, error)
}

// ValidateChannels checks presence and alignment of the required
// channels of a series.
func ValidateChannels(s *model.SampleSeries) error {
	n := -1
	for _, name := range model.RequiredChannels() {
		c, ok := s.Channel(name)
		if !ok {
			return &ChannelMissingError{
				SessionID: s.SessionID,
				LapNumber: s.LapNumber,
				Channel:   name,
			}
		}
		if n == -1 {
			n = len(c)
		} else if len(c) != n {
			return fmt.Errorf("channel %s length %d does not match %d (session %s lap %d)",
				name, len(c), n, s.SessionID, s.LapNumber)
		}
	}
	return nil
}
