package posture

import "time"

// Status lines that carry no measured value.
const (
	StatusMoveIntoFrame     = "Move into Frame"
	StatusInternalError     = "Internal Error"
	StatusCameraUnavailable = "Camera not detected"
	StatusElbowFallback     = "Adjust Elbow Angle (move into frame)"
	StatusDistanceFallback  = "Re-center for distance"
	StatusGazeFallback      = "Re-center for gaze"
)

// Status is one posture verdict: an ordered set of short text lines
// (elbow, distance, gaze), or a single fallback line. Immutable once
// produced.
type Status struct {
	Lines       []string  `json:"lines"`
	Seq         uint64    `json:"seq"`
	GeneratedAt time.Time `json:"generated_at"`
}

// IsFallback reports whether this status is a single frame-wide fallback
// rather than a per-metric assessment.
func (s Status) IsFallback() bool {
	return len(s.Lines) == 1
}
