package posture

import (
	"testing"
	"time"

	"github.com/sitsmart/coach/internal/pose"
)

// goodFrame has a 90° left elbow, a 195px shoulder gap (100cm at default
// calibration) and a nose exactly at the shoulder midpoint.
func goodFrame(seq uint64) pose.Frame {
	return pose.Frame{
		Seq:      seq,
		Width:    640,
		Height:   480,
		Detected: true,
		Points: map[pose.Landmark]pose.Point{
			pose.Nose:          {X: 0.40234375, Y: 0.1},
			pose.LeftShoulder:  {X: 0.25, Y: 0.2},
			pose.RightShoulder: {X: 0.5546875, Y: 0.2},
			pose.LeftElbow:     {X: 0.25, Y: 0.4},
			pose.LeftWrist:     {X: 0.45, Y: 0.4},
		},
	}
}

func TestProcessSteadyPosture(t *testing.T) {
	p := NewPipeline(testCalibration(), 7)

	var st Status
	for i := uint64(1); i <= 8; i++ {
		st = p.Process(goodFrame(i))
	}

	want := []string{
		"Elbow Angle OK (90°)",
		"Distance OK (100 cm)",
		"Looking Center",
	}
	if len(st.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %v", len(want), st.Lines)
	}
	for i, line := range want {
		if st.Lines[i] != line {
			t.Errorf("line %d: expected %q, got %q", i, line, st.Lines[i])
		}
	}
	if st.Seq != 8 {
		t.Errorf("expected status seq 8, got %d", st.Seq)
	}
}

func TestProcessNoDetection(t *testing.T) {
	p := NewPipeline(testCalibration(), 7)

	st := p.Process(pose.Frame{Seq: 1, Detected: false})

	if len(st.Lines) != 1 || st.Lines[0] != StatusMoveIntoFrame {
		t.Errorf("expected single fallback line, got %v", st.Lines)
	}
	if !st.IsFallback() {
		t.Error("expected fallback status")
	}
	if p.angles.Len() != 0 || p.distances.Len() != 0 || p.gazes.Len() != 0 {
		t.Error("no-detection frame must not touch the smoothing windows")
	}
}

func TestProcessMissingLandmarkDegradesFrameWide(t *testing.T) {
	p := NewPipeline(testCalibration(), 7)

	f := goodFrame(1)
	delete(f.Points, pose.LeftWrist)

	st := p.Process(f)
	if len(st.Lines) != 1 || st.Lines[0] != StatusMoveIntoFrame {
		t.Errorf("expected frame-wide fallback, got %v", st.Lines)
	}
	if p.gazes.Len() != 0 {
		t.Error("partial frame must not feed any window, even for metrics it could serve")
	}
}

func TestProcessBadFrameDoesNotSkewWindows(t *testing.T) {
	p := NewPipeline(testCalibration(), 7)

	for i := uint64(1); i <= 3; i++ {
		p.Process(goodFrame(i))
	}
	p.Process(pose.Frame{Seq: 4, Detected: false})
	st := p.Process(goodFrame(5))

	if st.Lines[0] != "Elbow Angle OK (90°)" {
		t.Errorf("median skewed by dropped frame: %v", st.Lines)
	}
	if p.angles.Len() != 4 {
		t.Errorf("expected 4 angle samples, got %d", p.angles.Len())
	}
}

func TestProcessUndefinedDistance(t *testing.T) {
	p := NewPipeline(testCalibration(), 7)

	f := goodFrame(1)
	// Coincident shoulders make the pixel gap zero.
	f.Points[pose.RightShoulder] = f.Points[pose.LeftShoulder]

	st := p.Process(f)
	if len(st.Lines) != 3 {
		t.Fatalf("expected per-metric lines, got %v", st.Lines)
	}
	if st.Lines[1] != StatusDistanceFallback {
		t.Errorf("expected distance fallback, got %q", st.Lines[1])
	}
	if p.distances.Len() != 0 {
		t.Error("undefined distance must not enter the window")
	}
	if p.angles.Len() != 1 {
		t.Error("other metrics must still sample normally")
	}
}

func TestProcessOutOfBandMetrics(t *testing.T) {
	p := NewPipeline(testCalibration(), 1)

	f := goodFrame(1)
	// Folded arm: wrist pulled back toward the shoulder gives a 36.87°
	// angle at the elbow, below the OK band.
	f.Points[pose.LeftWrist] = pose.Point{X: 0.25, Y: 0.25}
	// Wide shoulder gap reads as very close.
	f.Points[pose.LeftShoulder] = pose.Point{X: 0.1, Y: 0.2}
	f.Points[pose.RightShoulder] = pose.Point{X: 0.9, Y: 0.2}
	f.Points[pose.Nose] = pose.Point{X: 0.9, Y: 0.1}

	st := p.Process(f)

	if st.Lines[0] != "Adjust Elbow Angle (36°)" {
		t.Errorf("expected elbow adjustment, got %q", st.Lines[0])
	}
	// gap = 0.8*640 = 512px -> 650*30/512 = 38.08cm, truncated to 38
	if st.Lines[1] != "Too Close (38 cm)" {
		t.Errorf("expected too close, got %q", st.Lines[1])
	}
	if st.Lines[2] != string(GazeRight) {
		t.Errorf("expected looking right, got %q", st.Lines[2])
	}
}

func TestProcessRecoversFromPanic(t *testing.T) {
	p := NewPipeline(testCalibration(), 7)
	p.now = func() time.Time { panic("clock exploded") }

	st := p.Process(goodFrame(1))
	if len(st.Lines) != 1 || st.Lines[0] != StatusInternalError {
		t.Errorf("expected internal error status, got %v", st.Lines)
	}

	p.now = time.Now
	st = p.Process(goodFrame(2))
	if len(st.Lines) != 3 {
		t.Errorf("pipeline must keep processing after a failed cycle, got %v", st.Lines)
	}
	if st.Seq != 2 {
		t.Errorf("expected seq 2, got %d", st.Seq)
	}
}

func TestClassifierBoundaries(t *testing.T) {
	c := NewClassifier(testCalibration())

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"elbow lower bound", c.ElbowLine(50), "Elbow Angle OK (50°)"},
		{"elbow below band", c.ElbowLine(49.9), "Adjust Elbow Angle (49°)"},
		{"elbow upper bound", c.ElbowLine(180), "Elbow Angle OK (180°)"},
		{"elbow truncates", c.ElbowLine(90.9), "Elbow Angle OK (90°)"},
		{"distance lower bound", c.DistanceLine(70), "Distance OK (70 cm)"},
		{"distance upper bound", c.DistanceLine(100), "Distance OK (100 cm)"},
		{"distance below band", c.DistanceLine(69.9), "Too Close (69 cm)"},
		{"distance above band", c.DistanceLine(100.1), "Too Far (100 cm)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, tt.got)
			}
		})
	}
}
