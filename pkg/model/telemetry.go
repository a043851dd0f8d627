package model

// channel names as recorded by the telemetry logger
const (
	ChannelTimestamp = "SessionTime"
	ChannelDistance  = "LapDist"
	ChannelSpeed     = "Speed"
	ChannelSteering  = "SteeringWheelAngle"
	ChannelThrottle  = "Throttle"
	ChannelBrake     = "Brake"
)

// RequiredChannels lists the channels segmentation and metrics depend
// on. A SampleSeries may carry more, these must be present.
func RequiredChannels() []string {
	return []string{
		ChannelTimestamp,
		ChannelDistance,
		ChannelSpeed,
		ChannelSteering,
		ChannelThrottle,
		ChannelBrake,
	}
}

// SampleSeries holds one lap of telemetry as aligned per-sample
// columns, addressed by channel name. NormalizedDist is filled in by
// the distance normalizer, it is not part of the recorded data.
type SampleSeries struct {
	SessionID      string
	LapNumber      int
	Channels       map[string][]float64
	NormalizedDist []float64
}

func (s *SampleSeries) Len() int {
	if c, ok := s.Channels[ChannelTimestamp]; ok {
		return len(c)
	}
	for _, c := range s.Channels {
		return len(c)
	}
	return 0
}

// Channel returns the samples for a named channel, second return value
// reports presence. Callers that require a channel should map absence
// to telemetry.ChannelMissingError.
func (s *SampleSeries) Channel(name string) ([]float64, bool) {
	c, ok := s.Channels[name]
	return c, ok
}

type Lap struct {
	LapNumber int      `json:"lap_number"`
	StartTime float64  `json:"start_time"`
	EndTime   float64  `json:"end_time"`
	LapTime   *float64 `json:"lap_time"`
	Valid     bool     `json:"valid"`
}

type Session struct {
	SessionID   string `json:"session_id"`
	TrackName   string `json:"track_name"`
	TrackLayout string `json:"track_layout_variant"`
	Laps        []Lap  `json:"laps"`
}

func (s *Session) TrackID() TrackID {
	return TrackID{Name: s.TrackName, Variant: s.TrackLayout}
}
