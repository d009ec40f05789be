package posture

import (
	"math"
	"testing"

	"github.com/sitsmart/coach/internal/config"
	"github.com/sitsmart/coach/internal/pose"
)

func testCalibration() config.Calibration {
	return config.Calibration{
		FocalLengthPx:   650,
		ShoulderWidthCM: 30,
		ElbowMinDeg:     50,
		ElbowMaxDeg:     180,
		DistMinCM:       70,
		DistMaxCM:       100,
		GazeDeadband:    0.03,
	}
}

func TestElbowAngle(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c pose.Point
		want    float64
	}{
		{
			name: "right angle",
			a:    pose.Point{X: 0.3, Y: 0.2},
			b:    pose.Point{X: 0.3, Y: 0.4},
			c:    pose.Point{X: 0.5, Y: 0.4},
			want: 90,
		},
		{
			name: "straight arm",
			a:    pose.Point{X: 0.1, Y: 0.5},
			b:    pose.Point{X: 0.3, Y: 0.5},
			c:    pose.Point{X: 0.5, Y: 0.5},
			want: 180,
		},
		{
			name: "folded arm",
			a:    pose.Point{X: 0.5, Y: 0.5},
			b:    pose.Point{X: 0.3, Y: 0.5},
			c:    pose.Point{X: 0.5, Y: 0.5},
			want: 0,
		},
		{
			name: "reflex side resolves under 180",
			a:    pose.Point{X: 0.3, Y: 0.2},
			b:    pose.Point{X: 0.3, Y: 0.4},
			c:    pose.Point{X: 0.1, Y: 0.4},
			want: 90,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ElbowAngle(tt.a, tt.b, tt.c)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %v°, got %v°", tt.want, got)
			}
		})
	}
}

func TestElbowAngleRange(t *testing.T) {
	// Any triple must land in [0, 180] and never produce NaN.
	points := []pose.Point{
		{X: 0, Y: 0}, {X: 0.1, Y: 0.9}, {X: 0.5, Y: 0.5}, {X: 1, Y: 0.2},
	}
	for _, a := range points {
		for _, b := range points {
			for _, c := range points {
				got := ElbowAngle(a, b, c)
				if math.IsNaN(got) || got < 0 || got > 180 {
					t.Fatalf("angle out of range for (%v,%v,%v): %v", a, b, c, got)
				}
			}
		}
	}
}

func TestElbowAngleDegenerate(t *testing.T) {
	p := pose.Point{X: 0.3, Y: 0.3}
	q := pose.Point{X: 0.6, Y: 0.3}

	// Coincident vertex points must not panic; atan2(0,0) = 0.
	if got := ElbowAngle(p, p, q); math.IsNaN(got) {
		t.Errorf("a=b must stay finite, got NaN")
	}
	if got := ElbowAngle(q, p, p); math.IsNaN(got) {
		t.Errorf("b=c must stay finite, got NaN")
	}
}

func TestEstimateDistance(t *testing.T) {
	cal := testCalibration()

	if got := EstimateDistance(195, cal); got != 100 {
		t.Errorf("gap 195px: expected 100cm, got %v", got)
	}
	if got := EstimateDistance(0, cal); got != 0 {
		t.Errorf("zero gap must be undefined, got %v", got)
	}
	if got := EstimateDistance(-10, cal); got != 0 {
		t.Errorf("negative gap must be undefined, got %v", got)
	}
	if got := EstimateDistance(distanceEpsilon/2, cal); got != 0 {
		t.Errorf("sub-epsilon gap must be undefined, got %v", got)
	}
}

func TestEstimateDistanceMonotonic(t *testing.T) {
	cal := testCalibration()
	prev := math.Inf(1)
	for gap := 50.0; gap <= 500; gap += 25 {
		d := EstimateDistance(gap, cal)
		if d <= 0 {
			t.Fatalf("gap %v: expected defined distance", gap)
		}
		if d >= prev {
			t.Fatalf("distance not decreasing: gap %v -> %v, previous %v", gap, d, prev)
		}
		prev = d
	}
}

func TestShoulderGapPx(t *testing.T) {
	f := pose.Frame{
		Width:  640,
		Height: 480,
		Points: map[pose.Landmark]pose.Point{
			pose.LeftShoulder:  {X: 0.25, Y: 0.2},
			pose.RightShoulder: {X: 0.5546875, Y: 0.2},
		},
	}
	gap, ok := ShoulderGapPx(f)
	if !ok {
		t.Fatal("expected a gap")
	}
	if math.Abs(gap-195) > 1e-9 {
		t.Errorf("expected 195px, got %v", gap)
	}

	delete(f.Points, pose.RightShoulder)
	if _, ok := ShoulderGapPx(f); ok {
		t.Error("missing shoulder must report ok=false")
	}
}

func TestClassifyGaze(t *testing.T) {
	const left, right = 0.3, 0.5 // midpoint 0.4
	tests := []struct {
		name  string
		noseX float64
		want  Gaze
	}{
		{"exact center", 0.4, GazeCenter},
		{"left of midpoint", 0.35, GazeLeft},
		{"right of midpoint", 0.45, GazeRight},
		{"inside deadband left", 0.39, GazeCenter},
		{"inside deadband right", 0.41, GazeCenter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyGaze(tt.noseX, left, right, 0.03); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
