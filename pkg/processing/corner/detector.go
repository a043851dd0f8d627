// Package corner derives the segment list of a track layout from the
// reference lap's steering and speed channels. Steering is resampled
// onto a uniform distance grid; the smoothed magnitude of its
// derivative serves as a curvature proxy, no 2-D geometry is involved.
package corner

import (
	"fmt"
	"math"
	"sort"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/log"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/config"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
)

// SegmentationError signals that no usable corner structure was found.
// Callers recover by falling back to a single whole-track straight.
type SegmentationError struct {
	Reason string
}

func (e *SegmentationError) Error() string {
	return fmt.Sprintf("segmentation failed: %s", e.Reason)
}

type Detector struct {
	tuning *config.Tuning
	l      *log.Logger
}

type Option func(*Detector)

func WithTuning(arg *config.Tuning) Option {
	return func(d *Detector) { d.tuning = arg }
}

func WithLogger(arg *log.Logger) Option {
	return func(d *Detector) { d.l = arg }
}

func NewDetector(opts ...Option) *Detector {
	ret := &Detector{
		tuning: config.DefaultTuning(),
		l:      log.Default().Named("corner"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// candidate corner in grid coordinates
type run struct {
	startIdx int
	length   int // grid points, may wrap past the seam
}

// Detect produces the ordered segment list for a layout. normDist,
// steering and speed are aligned per-sample columns; normDist must be
// non-decreasing (see the distance package).
//
//nolint:whitespace // can't make both editor and linter happy
func (d *Detector) Detect(
	normDist, steering, speed []float64, trackLength float64,
) ([]model.Segment, error) {
	if len(normDist) != len(steering) || len(normDist) != len(speed) {
		return nil, &SegmentationError{Reason: "channel lengths differ"}
	}
	step := d.tuning.GridStep
	m := int(trackLength / step)
	if m < 2*d.tuning.SmoothWindow {
		return nil, &SegmentationError{
			Reason: fmt.Sprintf("track too short for grid (%d points)", m),
		}
	}

	gridSteer := resample(normDist, steering, m, step)
	gridSpeed := resample(normDist, speed, m, step)
	curv := curvature(gridSteer, step, d.tuning.SmoothWindow)

	runs := cornerRuns(curv, d.tuning.CurvatureThreshold)
	corners := make([]model.Segment, 0, len(runs))
	for _, r := range runs {
		if float64(r.length)*step < d.tuning.MinCornerLength {
			// noise, folded into the surrounding straight
			continue
		}
		corners = append(corners, d.cornerSegment(r, gridSpeed, m, step, trackLength))
	}
	if len(corners) == 0 {
		return nil, &SegmentationError{Reason: "no corners detected"}
	}
	d.l.Debug("corner candidates",
		log.Int("runs", len(runs)), log.Int("corners", len(corners)))

	sort.Slice(corners, func(i, j int) bool { return corners[i].StartDist < corners[j].StartDist })
	merged := d.mergeAdjacent(corners, gridSpeed, step, trackLength)
	segments := d.fillStraights(merged, trackLength)

	sort.Slice(segments, func(i, j int) bool { return segments[i].StartDist < segments[j].StartDist })
	if err := d.checkCoverage(segments, trackLength); err != nil {
		return nil, err
	}
	assignIDs(segments)
	return segments, nil
}

// cornerSegment converts a grid run into a corner segment with
// entry/apex/exit markers. Runs spanning the seam yield end < start.
//
//nolint:whitespace // can't make both editor and linter happy
func (d *Detector) cornerSegment(
	r run, gridSpeed []float64, m int, step, trackLength float64,
) model.Segment {
	bound := func(i int) float64 {
		// the last grid cell absorbs the sub-step remainder
		if i >= m {
			i -= m
		}
		if i == 0 {
			return 0
		}
		return float64(i) * step
	}
	start := bound(r.startIdx)
	var end float64
	if r.startIdx+r.length >= m && r.startIdx != 0 {
		if r.startIdx+r.length == m {
			end = trackLength
		} else {
			end = bound(r.startIdx + r.length) // wraps, end < start
		}
	} else {
		end = bound(r.startIdx + r.length)
		if end == 0 {
			end = trackLength
		}
	}

	lastIdx := (r.startIdx + r.length - 1) % m
	exit := bound(lastIdx)
	apex := d.apexDist(r.startIdx, r.length, gridSpeed, m, step)
	return model.Segment{
		SegmentType: model.SegmentCorner,
		StartDist:   start,
		EndDist:     end,
		EntryDist:   model.Ptr(start),
		ApexDist:    model.Ptr(apex),
		ExitDist:    model.Ptr(exit),
	}
}

// apexDist finds the grid point of minimum speed within a run, ties
// broken by lowest distance.
func (d *Detector) apexDist(startIdx, length int, gridSpeed []float64, m int, step float64) float64 {
	bestIdx := startIdx % m
	for k := 1; k < length; k++ {
		idx := (startIdx + k) % m
		cur := gridSpeed[idx]
		best := gridSpeed[bestIdx]
		if cur < best || (cur == best && idx < bestIdx) {
			bestIdx = idx
		}
	}
	return float64(bestIdx) * step
}

// mergeAdjacent folds corners separated by less than the minimum
// straight length into complex segments. The pass is circular so a
// short gap across the seam merges too.
//
//nolint:whitespace // can't make both editor and linter happy
func (d *Detector) mergeAdjacent(
	corners []model.Segment, gridSpeed []float64, step, trackLength float64,
) []model.Segment {
	if len(corners) < 2 {
		return corners
	}
	circGap := func(from, to float64) float64 {
		g := to - from
		if g < 0 {
			g += trackLength
		}
		return g
	}
	merged := make([]model.Segment, 0, len(corners))
	merged = append(merged, corners[0])
	for _, cur := range corners[1:] {
		last := &merged[len(merged)-1]
		if circGap(last.EndDist, cur.StartDist) < d.tuning.MinStraightLength {
			d.mergeInto(last, cur, gridSpeed, step, trackLength)
			continue
		}
		merged = append(merged, cur)
	}
	// seam: short gap between the last and the first corner
	if len(merged) >= 2 {
		last := &merged[len(merged)-1]
		first := merged[0]
		if circGap(last.EndDist, first.StartDist) < d.tuning.MinStraightLength {
			d.mergeInto(last, first, gridSpeed, step, trackLength)
			merged = merged[1:]
		}
	}
	return merged
}

// mergeInto extends last to span the gap and next, forming a complex.
// Entry is taken from the first component, exit from the last, the
// apex is the lowest speed point across the whole span.
//
//nolint:whitespace // can't make both editor and linter happy
func (d *Detector) mergeInto(
	last *model.Segment, next model.Segment, gridSpeed []float64, step, trackLength float64,
) {
	last.SegmentType = model.SegmentComplex
	last.EndDist = next.EndDist
	last.ExitDist = next.ExitDist
	last.ApexDist = model.Ptr(d.spanApex(last.StartDist, last.EndDist, gridSpeed, step, trackLength))
}

// spanApex finds the minimum speed grid point in [start,end), circular.
func (d *Detector) spanApex(start, end float64, gridSpeed []float64, step, trackLength float64) float64 {
	m := len(gridSpeed)
	startIdx := int(start / step)
	span := end - start
	if span <= 0 {
		span += trackLength
	}
	length := int(span / step)
	if length < 1 {
		length = 1
	}
	return d.apexDist(startIdx, length, gridSpeed, m, step)
}

// fillStraights adds straight segments into the gaps between corners.
// Remaining gaps are at least the minimum straight length except at
// the seam, where a short remainder is folded into the adjacent
// corner to keep the union covering the full track.
func (d *Detector) fillStraights(corners []model.Segment, trackLength float64) []model.Segment {
	ret := make([]model.Segment, 0, 2*len(corners)+1)
	wraps := func(s model.Segment) bool { return s.EndDist < s.StartDist }
	hasWrap := false
	for i := range corners {
		if wraps(corners[i]) {
			hasWrap = true
		}
	}

	for i := range corners {
		ret = append(ret, corners[i])
		next := corners[(i+1)%len(corners)]
		from := corners[i].EndDist
		to := next.StartDist
		if wraps(corners[i]) || (i == len(corners)-1 && hasWrap) {
			// gap after a wrapping corner stays in low coordinates
			if to > from {
				ret = append(ret, straight(from, to))
			}
			continue
		}
		if i < len(corners)-1 {
			ret = append(ret, straight(from, to))
			continue
		}
		// gap from the last corner across the seam to the first
		if trackLength-from >= d.tuning.MinStraightLength {
			ret = append(ret, straight(from, trackLength))
		} else if trackLength > from {
			ret[len(ret)-1].EndDist = trackLength
		}
		if to >= d.tuning.MinStraightLength {
			ret = append(ret, straight(0, to))
		} else if to > 0 {
			ret[0].StartDist = 0
		}
	}
	return ret
}

func straight(from, to float64) model.Segment {
	return model.Segment{
		SegmentType: model.SegmentStraight,
		StartDist:   from,
		EndDist:     to,
	}
}

func (d *Detector) checkCoverage(segments []model.Segment, trackLength float64) error {
	sum := 0.0
	for i := range segments {
		sum += segments[i].Length(trackLength)
	}
	if math.Abs(sum-trackLength) > d.tuning.CoverageTolerance {
		return &SegmentationError{
			Reason: fmt.Sprintf("segments cover %.1fm of %.1fm track", sum, trackLength),
		}
	}
	return nil
}

// assignIDs labels segments with per-type counters in ascending
// distance order. The scheme is a pure function of the ordered list,
// so structurally identical regenerations keep their IDs.
func assignIDs(segments []model.Segment) {
	cornerNum, straightNum, complexNum := 1, 1, 1
	for i := range segments {
		switch segments[i].SegmentType {
		case model.SegmentCorner:
			segments[i].SegmentID = fmt.Sprintf("T%d", cornerNum)
			cornerNum++
		case model.SegmentStraight:
			segments[i].SegmentID = fmt.Sprintf("S%d", straightNum)
			straightNum++
		case model.SegmentComplex:
			segments[i].SegmentID = fmt.Sprintf("C%d", complexNum)
			complexNum++
		}
	}
}

// FallbackLayout returns the degenerate single straight segment list
// used when detection finds no corners.
func FallbackLayout(trackLength float64) []model.Segment {
	return []model.Segment{{
		SegmentID:   "S1",
		SegmentType: model.SegmentStraight,
		StartDist:   0,
		EndDist:     trackLength,
	}}
}

// curvature computes the smoothed magnitude of the steering derivative
// over distance on the circular grid.
func curvature(gridSteer []float64, step float64, window int) []float64 {
	m := len(gridSteer)
	raw := make([]float64, m)
	for i := 0; i < m; i++ {
		prev := gridSteer[(i-1+m)%m]
		next := gridSteer[(i+1)%m]
		raw[i] = math.Abs(next-prev) / (2 * step)
	}
	return smoothCircular(raw, window)
}

// smoothCircular applies a centered moving average on a circular array.
func smoothCircular(vals []float64, window int) []float64 {
	if window <= 1 {
		return vals
	}
	m := len(vals)
	half := window / 2
	out := make([]float64, m)
	for i := 0; i < m; i++ {
		sum := 0.0
		count := 0
		for k := -half; k <= half; k++ {
			sum += vals[(i+k+m)%m]
			count++
		}
		out[i] = sum / float64(count)
	}
	return out
}

// cornerRuns finds maximal runs above the curvature threshold on the
// circular grid. A run touching both ends of the grid is one run
// spanning the seam.
func cornerRuns(curv []float64, threshold float64) []run {
	m := len(curv)
	in := func(i int) bool { return curv[i%m] > threshold }

	// find a starting point outside any corner
	start := -1
	for i := 0; i < m; i++ {
		if !in(i) {
			start = i
			break
		}
	}
	if start == -1 {
		// the whole lap is one corner
		return []run{{startIdx: 0, length: m}}
	}

	runs := []run{}
	i := start
	for scanned := 0; scanned < m; {
		if !in(i) {
			i = (i + 1) % m
			scanned++
			continue
		}
		r := run{startIdx: i}
		for scanned < m && in(i) {
			r.length++
			i = (i + 1) % m
			scanned++
		}
		runs = append(runs, r)
	}
	return runs
}

// resample maps a per-sample channel onto the uniform distance grid
// using linear interpolation. xs must be non-decreasing.
func resample(xs, ys []float64, m int, step float64) []float64 {
	out := make([]float64, m)
	for i := 0; i < m; i++ {
		out[i] = interpolate(xs, ys, float64(i)*step)
	}
	return out
}

// interpolate evaluates the piecewise linear function through (xs, ys)
// at t, clamping outside the sampled range.
func interpolate(xs, ys []float64, t float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	if t <= xs[0] {
		return ys[0]
	}
	if t >= xs[n-1] {
		return ys[n-1]
	}
	lo := sort.SearchFloat64s(xs, t)
	// xs[lo] >= t, lo > 0
	hi := lo
	lo--
	dx := xs[hi] - xs[lo]
	if dx == 0 {
		return ys[hi]
	}
	frac := (t - xs[lo]) / dx
	return ys[lo] + frac*(ys[hi]-ys[lo])
}
