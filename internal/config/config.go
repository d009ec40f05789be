// Package config handles coach configuration
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/sitsmart/coach/internal/errors"
)

// Calibration groups the fixed constants of the posture model. Defaults match
// a typical laptop webcam and an average adult shoulder width.
type Calibration struct {
	FocalLengthPx   float64 // rough webcam focal length
	ShoulderWidthCM float64 // assumed real shoulder width
	ElbowMinDeg     float64 // lower bound of the OK elbow band
	ElbowMaxDeg     float64
	DistMinCM       float64 // perfect distance band
	DistMaxCM       float64
	GazeDeadband    float64 // normalized units around shoulder center
}

type Config struct {
	HTTPAddr       string
	WorkerCommand  string // pose worker entry point
	CameraIndex    int
	FrameWidth     int
	FrameHeight    int
	SmoothWindow   int           // samples per metric smoothing window
	SampleInterval time.Duration // worker frame cadence
	UIRefresh      time.Duration // feedback push cadence
	ReadRetryDelay time.Duration // wait after a camera read failure
	SendPreviews   bool          // worker attaches JPEG previews to frames
	Calibration    Calibration
}

func Load() *Config {
	return &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", "127.0.0.1:8743"),
		WorkerCommand:  getEnv("POSE_WORKER", "scripts/pose_worker.py"),
		CameraIndex:    getEnvInt("CAMERA_INDEX", 0),
		FrameWidth:     getEnvInt("FRAME_WIDTH", 640),
		FrameHeight:    getEnvInt("FRAME_HEIGHT", 480),
		SmoothWindow:   getEnvInt("SMOOTH_WINDOW", 7),
		SampleInterval: getEnvDuration("SAMPLE_INTERVAL", 50*time.Millisecond),
		UIRefresh:      getEnvDuration("UI_REFRESH", 400*time.Millisecond),
		ReadRetryDelay: getEnvDuration("READ_RETRY_DELAY", 500*time.Millisecond),
		SendPreviews:   getEnvBool("SEND_PREVIEWS", true),
		Calibration: Calibration{
			FocalLengthPx:   getEnvFloat("FOCAL_LENGTH_PX", 650),
			ShoulderWidthCM: getEnvFloat("SHOULDER_WIDTH_CM", 30),
			ElbowMinDeg:     getEnvFloat("ELBOW_MIN_DEG", 50),
			ElbowMaxDeg:     getEnvFloat("ELBOW_MAX_DEG", 180),
			DistMinCM:       getEnvFloat("DIST_MIN_CM", 70),
			DistMaxCM:       getEnvFloat("DIST_MAX_CM", 100),
			GazeDeadband:    getEnvFloat("GAZE_DEADBAND", 0.03),
		},
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.SmoothWindow < 1 {
		return errors.Newf(errors.CodeConfigInvalid, "smooth window must be >= 1, got %d", c.SmoothWindow)
	}
	if c.Calibration.FocalLengthPx <= 0 {
		return errors.Newf(errors.CodeConfigInvalid, "focal length must be positive, got %v", c.Calibration.FocalLengthPx)
	}
	if c.Calibration.ShoulderWidthCM <= 0 {
		return errors.Newf(errors.CodeConfigInvalid, "shoulder width must be positive, got %v", c.Calibration.ShoulderWidthCM)
	}
	if c.Calibration.ElbowMinDeg > c.Calibration.ElbowMaxDeg {
		return errors.Newf(errors.CodeConfigInvalid, "elbow band inverted: %v > %v", c.Calibration.ElbowMinDeg, c.Calibration.ElbowMaxDeg)
	}
	if c.Calibration.DistMinCM > c.Calibration.DistMaxCM {
		return errors.Newf(errors.CodeConfigInvalid, "distance band inverted: %v > %v", c.Calibration.DistMinCM, c.Calibration.DistMaxCM)
	}
	if c.Calibration.GazeDeadband < 0 {
		return errors.Newf(errors.CodeConfigInvalid, "gaze deadband must be >= 0, got %v", c.Calibration.GazeDeadband)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
