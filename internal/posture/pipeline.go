package posture

import (
	"log/slog"
	"math"
	"time"

	"github.com/sitsmart/coach/internal/config"
	"github.com/sitsmart/coach/internal/pose"
)

// requiredLandmarks are the points every metric derivation needs. A frame
// missing any of them degrades frame-wide, since all three metrics come
// from the same detection result.
var requiredLandmarks = []pose.Landmark{
	pose.Nose,
	pose.LeftShoulder,
	pose.RightShoulder,
	pose.LeftElbow,
	pose.LeftWrist,
}

// Pipeline converts landmark frames into posture statuses: metric
// extraction, windowed smoothing, then classification. One frame in, one
// status out. Not safe for concurrent use; drive it from a single
// goroutine.
type Pipeline struct {
	classifier Classifier
	cal        config.Calibration

	angles    *Window[float64]
	distances *Window[float64]
	gazes     *Window[Gaze]

	seq uint64
	now func() time.Time
}

// NewPipeline creates a pipeline with the given calibration and smoothing
// window size.
func NewPipeline(cal config.Calibration, window int) *Pipeline {
	return &Pipeline{
		classifier: NewClassifier(cal),
		cal:        cal,
		angles:     NewWindow[float64](window),
		distances:  NewWindow[float64](window),
		gazes:      NewWindow[Gaze](window),
		now:        time.Now,
	}
}

// Process derives one Status from one frame. A frame with no usable
// detection yields the single move-into-frame line and leaves every
// smoothing window untouched, so one bad frame cannot skew the median or
// the vote. Any panic inside a cycle becomes an internal-error status;
// a single frame's failure never stops the pipeline.
func (p *Pipeline) Process(f pose.Frame) (st Status) {
	p.seq++
	st = Status{Seq: p.seq}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("frame cycle panicked", "panic", r, "frame_seq", f.Seq)
			st.Lines = []string{StatusInternalError}
		}
	}()

	st.GeneratedAt = p.now()

	if !f.Detected || !f.Has(requiredLandmarks...) {
		st.Lines = []string{StatusMoveIntoFrame}
		return st
	}

	st.Lines = []string{
		p.elbowLine(f),
		p.distanceLine(f),
		p.gazeLine(f),
	}
	return st
}

func (p *Pipeline) elbowLine(f pose.Frame) string {
	shoulder, _ := f.Point(pose.LeftShoulder)
	elbow, _ := f.Point(pose.LeftElbow)
	wrist, _ := f.Point(pose.LeftWrist)

	raw := ElbowAngle(shoulder, elbow, wrist)
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return StatusElbowFallback
	}
	p.angles.Push(raw)

	smoothed, ok := Median(p.angles)
	if !ok {
		return StatusElbowFallback
	}
	return p.classifier.ElbowLine(smoothed)
}

func (p *Pipeline) distanceLine(f pose.Frame) string {
	gap, ok := ShoulderGapPx(f)
	if !ok {
		return StatusDistanceFallback
	}
	raw := EstimateDistance(gap, p.cal)
	if raw == 0 {
		// Degenerate geometry; skip the window so the median stays honest
		return StatusDistanceFallback
	}
	p.distances.Push(raw)

	smoothed, ok := Median(p.distances)
	if !ok {
		return StatusDistanceFallback
	}
	return p.classifier.DistanceLine(smoothed)
}

func (p *Pipeline) gazeLine(f pose.Frame) string {
	nose, _ := f.Point(pose.Nose)
	left, _ := f.Point(pose.LeftShoulder)
	right, _ := f.Point(pose.RightShoulder)

	p.gazes.Push(ClassifyGaze(nose.X, left.X, right.X, p.cal.GazeDeadband))

	voted, ok := Majority(p.gazes)
	if !ok {
		return StatusGazeFallback
	}
	return p.classifier.GazeLine(voted)
}
