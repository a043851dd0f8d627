// Package gendata builds synthetic telemetry for tests: laps driven at
// known speeds over tracks with known corner locations, so expected
// segmentation and metrics can be computed by hand.
package gendata

import (
	"math"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
)

// TrackSpec describes the synthetic track a lap is generated on.
type TrackSpec struct {
	Length  float64
	Corners []CornerSpec
}

// CornerSpec places a corner on the track. Steering ramps from 0 to
// Steer over the first half and back to 0 over the second half, which
// yields a steering derivative well above typical detection
// thresholds for corners a few tens of meters long.
type CornerSpec struct {
	Start float64
	End   float64
	Steer float64
}

// contains reports whether dist lies in the corner, honoring corners
// placed across the start/finish seam (End < Start).
func (c CornerSpec) contains(dist, trackLength float64) bool {
	if c.End >= c.Start {
		return dist >= c.Start && dist < c.End
	}
	return dist >= c.Start || dist < c.End
}

// offsetInto returns how far dist lies into the corner.
func (c CornerSpec) offsetInto(dist, trackLength float64) float64 {
	if dist >= c.Start {
		return dist - c.Start
	}
	return trackLength - c.Start + dist
}

func (c CornerSpec) length(trackLength float64) float64 {
	if c.End >= c.Start {
		return c.End - c.Start
	}
	return trackLength - c.Start + c.End
}

// LapOpts tunes lap generation.
type LapOpts struct {
	// average speed on straights (m/s), default 50
	Speed float64
	// speed at corner apex (m/s), default half of Speed
	ApexSpeed float64
	// distance between samples (m), default 2
	SampleStep float64
	// meters of braking before each corner entry, default 40
	BrakeZone float64
	// adds alternating steering jitter of this amplitude everywhere
	Jitter float64
	// lap start time offset (s)
	StartTime float64
}

func (o *LapOpts) defaults() {
	if o.Speed == 0 {
		o.Speed = 50
	}
	if o.ApexSpeed == 0 {
		o.ApexSpeed = o.Speed / 2
	}
	if o.SampleStep == 0 {
		o.SampleStep = 2
	}
	if o.BrakeZone == 0 {
		o.BrakeZone = 40
	}
}

// Lap generates one lap of channel columns over the track. The
// distance channel runs 0..Length without wrap; use WrapDistances to
// shift the seam into the middle of the lap.
func Lap(track TrackSpec, opts LapOpts) map[string][]float64 {
	opts.defaults()
	n := int(track.Length/opts.SampleStep) + 1

	dist := make([]float64, n)
	speed := make([]float64, n)
	steering := make([]float64, n)
	throttle := make([]float64, n)
	brake := make([]float64, n)
	timestamps := make([]float64, n)

	t := opts.StartTime
	for i := 0; i < n; i++ {
		d := float64(i) * opts.SampleStep
		if d > track.Length {
			d = track.Length
		}
		dist[i] = d
		speed[i] = opts.Speed
		throttle[i] = 1.0

		for _, c := range track.Corners {
			if c.contains(d, track.Length) {
				cl := c.length(track.Length)
				off := c.offsetInto(d, track.Length)
				// triangular steering profile, slowest at mid corner
				frac := off / cl
				shape := 1 - math.Abs(2*frac-1)
				steering[i] = c.Steer * shape
				speed[i] = opts.Speed - (opts.Speed-opts.ApexSpeed)*shape
				// trail braking into the corner, back on throttle on exit
				switch {
				case frac < 0.25:
					brake[i] = 0.8
					throttle[i] = 0
				case frac < 0.75:
					throttle[i] = 0
				default:
					throttle[i] = 1
				}
			} else if inBrakeZone(d, c, opts.BrakeZone, track.Length) {
				brake[i] = 0.8
				throttle[i] = 0
			}
		}
		if opts.Jitter > 0 {
			if i%2 == 0 {
				steering[i] += opts.Jitter
			} else {
				steering[i] -= opts.Jitter
			}
		}
		timestamps[i] = t
		if i < n-1 {
			t += opts.SampleStep / speed[i]
		}
	}

	return map[string][]float64{
		model.ChannelTimestamp: timestamps,
		model.ChannelDistance:  dist,
		model.ChannelSpeed:     speed,
		model.ChannelSteering:  steering,
		model.ChannelThrottle:  throttle,
		model.ChannelBrake:     brake,
	}
}

func inBrakeZone(d float64, c CornerSpec, zone, trackLength float64) bool {
	start := c.Start - zone
	if start >= 0 {
		return d >= start && d < c.Start
	}
	return d >= trackLength+start || d < c.Start
}

// WrapDistances shifts the distance channel so the lap starts at
// startAt and wraps through the seam, as recorded laps that cross the
// start/finish line do.
func WrapDistances(channels map[string][]float64, startAt, trackLength float64) {
	dist := channels[model.ChannelDistance]
	for i := range dist {
		dist[i] = math.Mod(dist[i]+startAt, trackLength)
	}
}

// LapMeta derives the Lap entry matching generated channels.
func LapMeta(lapNo int, channels map[string][]float64) model.Lap {
	ts := channels[model.ChannelTimestamp]
	lapTime := ts[len(ts)-1] - ts[0]
	return model.Lap{
		LapNumber: lapNo,
		StartTime: ts[0],
		EndTime:   ts[len(ts)-1],
		LapTime:   model.Ptr(lapTime),
		Valid:     true,
	}
}
