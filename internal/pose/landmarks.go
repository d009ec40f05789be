// Package pose supplies body landmark frames from the camera worker process.
package pose

import "time"

// Landmark names a tracked anatomical point. Values match the wire names
// emitted by the pose worker (mediapipe convention).
type Landmark string

const (
	Nose          Landmark = "nose"
	LeftEye       Landmark = "left_eye"
	RightEye      Landmark = "right_eye"
	LeftShoulder  Landmark = "left_shoulder"
	RightShoulder Landmark = "right_shoulder"
	LeftElbow     Landmark = "left_elbow"
	RightElbow    Landmark = "right_elbow"
	LeftWrist     Landmark = "left_wrist"
	RightWrist    Landmark = "right_wrist"
	LeftHip       Landmark = "left_hip"
	RightHip      Landmark = "right_hip"
)

// Point is a landmark position normalized to the frame, both axes in [0,1].
type Point struct {
	X          float64
	Y          float64
	Visibility float64
}

// Frame is one sampled detection result. Detected=false is the explicit
// "no body found" variant; Points is only populated when Detected is true.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int // source frame pixels
	Height    int
	Detected  bool
	Points    map[Landmark]Point
	Preview   []byte // optional JPEG of the source frame
}

// Point returns the named landmark, reporting whether it is present.
func (f Frame) Point(l Landmark) (Point, bool) {
	p, ok := f.Points[l]
	return p, ok
}

// PixelPoint returns the landmark position in source-frame pixels.
func (f Frame) PixelPoint(l Landmark) (x, y float64, ok bool) {
	p, ok := f.Points[l]
	if !ok {
		return 0, 0, false
	}
	return p.X * float64(f.Width), p.Y * float64(f.Height), true
}

// Has reports whether every named landmark is present.
func (f Frame) Has(landmarks ...Landmark) bool {
	for _, l := range landmarks {
		if _, ok := f.Points[l]; !ok {
			return false
		}
	}
	return true
}
