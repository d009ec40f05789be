// Package posture derives posture metrics from landmark frames, smooths
// them over short temporal windows, and classifies them into status lines.
package posture

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/sitsmart/coach/internal/config"
	"github.com/sitsmart/coach/internal/pose"
)

// Gaze is the discrete horizontal gaze label. Values double as the
// user-facing status text.
type Gaze string

const (
	GazeLeft   Gaze = "Looking Left"
	GazeRight  Gaze = "Looking Right"
	GazeCenter Gaze = "Looking Center"
)

// distanceEpsilon is the smallest shoulder gap, in pixels, considered a
// real measurement.
const distanceEpsilon = 1e-6

// ElbowAngle computes the angle at vertex b between rays b->a and b->c,
// in degrees, always in [0, 180]. Coincident points yield 0 rather than
// an error; the function is total.
func ElbowAngle(a, b, c pose.Point) float64 {
	rad := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	deg := math.Abs(rad * 180 / math.Pi)
	if deg > 180 {
		deg = 360 - deg
	}
	return deg
}

// ShoulderGapPx returns the Euclidean distance between the shoulders in
// source-frame pixels.
func ShoulderGapPx(f pose.Frame) (float64, bool) {
	lx, ly, ok := f.PixelPoint(pose.LeftShoulder)
	if !ok {
		return 0, false
	}
	rx, ry, ok := f.PixelPoint(pose.RightShoulder)
	if !ok {
		return 0, false
	}
	return floats.Distance([]float64{lx, ly}, []float64{rx, ry}, 2), true
}

// EstimateDistance converts a shoulder pixel gap to viewer distance in cm
// using the pinhole model. Returns 0 when the distance is undefined
// (gap at or below epsilon, or a non-finite result).
func EstimateDistance(gapPx float64, cal config.Calibration) float64 {
	if gapPx <= distanceEpsilon {
		return 0
	}
	cm := (cal.FocalLengthPx * cal.ShoulderWidthCM) / gapPx
	if math.IsInf(cm, 0) || math.IsNaN(cm) || cm <= 0 {
		return 0
	}
	return cm
}

// ClassifyGaze labels the nose position relative to the shoulder midpoint.
// The deadband suppresses flicker from small natural head movement.
func ClassifyGaze(noseX, leftShoulderX, rightShoulderX, deadband float64) Gaze {
	center := (leftShoulderX + rightShoulderX) / 2
	diff := noseX - center
	switch {
	case diff < -deadband:
		return GazeLeft
	case diff > deadband:
		return GazeRight
	default:
		return GazeCenter
	}
}
