package model

import "strings"

type SegmentType string

const (
	SegmentCorner   SegmentType = "corner"
	SegmentStraight SegmentType = "straight"
	SegmentComplex  SegmentType = "complex"
)

// TrackID identifies a track layout variant. It is the Tier 1 cache key.
type TrackID struct {
	Name    string `json:"track_name"`
	Variant string `json:"track_layout_variant"`
}

func (t TrackID) String() string {
	if t.Variant == "" {
		return t.Name
	}
	return t.Name + "/" + t.Variant
}

// Key returns a filesystem/database safe representation.
func (t TrackID) Key() string {
	repl := strings.NewReplacer(" ", "_", "/", "_")
	if t.Variant == "" {
		return repl.Replace(t.Name)
	}
	return repl.Replace(t.Name) + "__" + repl.Replace(t.Variant)
}

// field names below are the persisted cache contract, keep them stable
//
//nolint:tagliatelle // cache file compatibility
type Segment struct {
	SegmentID   string      `json:"segment_id"`
	SegmentType SegmentType `json:"segment_type"`
	StartDist   float64     `json:"start_dist"`
	EndDist     float64     `json:"end_dist"`
	EntryDist   *float64    `json:"entry_dist"`
	ApexDist    *float64    `json:"apex_dist"`
	ExitDist    *float64    `json:"exit_dist"`
}

// Length returns the covered distance, accounting for segments that
// wrap around the start/finish seam.
func (s *Segment) Length(trackLength float64) float64 {
	if s.EndDist >= s.StartDist {
		return s.EndDist - s.StartDist
	}
	return trackLength - s.StartDist + s.EndDist
}

//nolint:tagliatelle // cache file compatibility
type TrackLayout struct {
	Track              TrackID   `json:"track"`
	Version            int       `json:"version"`
	TrackLength        float64   `json:"track_length"`
	Segments           []Segment `json:"segments"`
	ReferenceLapNumber int       `json:"reference_lap_number"`
	ReferenceSessionID string    `json:"reference_session_id"`
	// set when detection fell back to a single whole-track straight
	DetectionWarning string `json:"detection_warning,omitempty"`
}

//nolint:tagliatelle // cache file compatibility
type SegmentMetrics struct {
	SegmentID            string   `json:"segment_id"`
	EntrySpeed           *float64 `json:"entry_speed"`
	MidSpeed             *float64 `json:"mid_speed"`
	ExitSpeed            *float64 `json:"exit_speed"`
	MinSpeed             *float64 `json:"min_speed"`
	MaxSpeed             *float64 `json:"max_speed"`
	AvgSpeed             *float64 `json:"avg_speed"`
	SegmentTime          *float64 `json:"segment_time"`
	TimeDeltaToReference *float64 `json:"time_delta_to_reference"`
	BrakingDistance      *float64 `json:"braking_distance"`
	MaxBrakePressure     *float64 `json:"max_brake_pressure"`
	ThrottleApplication  *float64 `json:"throttle_application"`
	SteeringSmoothness   *float64 `json:"steering_smoothness"`
	Incomplete           bool     `json:"incomplete,omitempty"`
}

//nolint:tagliatelle // cache file compatibility
type LapSegmentMetrics struct {
	SessionID     string           `json:"session_id"`
	LapNumber     int              `json:"lap_number"`
	LayoutVersion int              `json:"layout_version"`
	TrackLength   float64          `json:"track_length"`
	TotalTime     *float64         `json:"total_time"`
	Segments      []SegmentMetrics `json:"segments"`
}

// SegmentComparisonEntry holds the per-segment diff of two laps.
//
//nolint:tagliatelle // client compatibility
type SegmentComparisonEntry struct {
	SegmentID         string   `json:"segment_id"`
	TargetTime        *float64 `json:"target_time"`
	ReferenceTime     *float64 `json:"reference_time"`
	TimeDelta         *float64 `json:"time_delta"`
	TargetMinSpeed    *float64 `json:"target_min_speed"`
	ReferenceMinSpeed *float64 `json:"reference_min_speed"`
	MinSpeedDelta     *float64 `json:"min_speed_delta"`
	KeyDifferences    []string `json:"key_differences,omitempty"`
}

//nolint:tagliatelle // client compatibility
type SegmentComparison struct {
	SessionID       string                   `json:"session_id"`
	TargetLap       int                      `json:"target_lap"`
	ReferenceLap    int                      `json:"reference_lap"`
	TrackLength     float64                  `json:"track_length"`
	TotalTimeDelta  float64                  `json:"total_time_delta"`
	Entries         []SegmentComparisonEntry `json:"entries"`
	LargestLosses   []string                 `json:"largest_time_loss_segments"`
	LargestGains    []string                 `json:"largest_time_gain_segments"`
}

func Ptr[T any](v T) *T { return &v }
