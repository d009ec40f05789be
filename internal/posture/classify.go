package posture

import (
	"fmt"

	"github.com/sitsmart/coach/internal/config"
)

// Classifier maps smoothed metric values to status text against fixed
// calibration bands.
type Classifier struct {
	cal config.Calibration
}

// NewClassifier creates a classifier for the given calibration.
func NewClassifier(cal config.Calibration) Classifier {
	return Classifier{cal: cal}
}

// ElbowLine labels a smoothed elbow angle in degrees. The displayed value
// is truncated, not rounded.
func (c Classifier) ElbowLine(deg float64) string {
	v := int(deg)
	if deg >= c.cal.ElbowMinDeg && deg <= c.cal.ElbowMaxDeg {
		return fmt.Sprintf("Elbow Angle OK (%d°)", v)
	}
	return fmt.Sprintf("Adjust Elbow Angle (%d°)", v)
}

// DistanceLine labels a smoothed viewer distance in centimeters.
func (c Classifier) DistanceLine(cm float64) string {
	v := int(cm)
	switch {
	case cm < c.cal.DistMinCM:
		return fmt.Sprintf("Too Close (%d cm)", v)
	case cm > c.cal.DistMaxCM:
		return fmt.Sprintf("Too Far (%d cm)", v)
	default:
		return fmt.Sprintf("Distance OK (%d cm)", v)
	}
}

// GazeLine labels a voted gaze direction.
func (c Classifier) GazeLine(g Gaze) string {
	return string(g)
}
