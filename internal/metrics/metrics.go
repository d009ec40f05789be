// Package metrics exposes coach counters via Prometheus.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application counters. Hot-path code updates plain
// atomics; Prometheus reads them lazily through GaugeFunc collectors.
type Metrics struct {
	FramesReceived  atomic.Uint64
	FramesProcessed atomic.Uint64
	FramesStatic    atomic.Uint64 // skipped by the similarity gate
	FramesDropped   atomic.Uint64 // landmark frames lost before processing
	NoDetection     atomic.Uint64
	StatusOverwrite atomic.Uint64 // statuses replaced before the sink drained them
	ProcessErrors   atomic.Uint64
	WorkerRestarts  atomic.Uint64
	WorkerUp        atomic.Uint64 // 0 = down, 1 = up

	registry *prometheus.Registry
}

// New creates a Metrics instance with registered Prometheus collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	gauges := []struct {
		name string
		help string
		val  *atomic.Uint64
	}{
		{"coach_frames_received_total", "Landmark frames received from the pose worker", &m.FramesReceived},
		{"coach_frames_processed_total", "Frames run through the posture pipeline", &m.FramesProcessed},
		{"coach_frames_static_total", "Frames skipped as near-identical to the previous one", &m.FramesStatic},
		{"coach_frames_dropped_total", "Frames dropped before processing", &m.FramesDropped},
		{"coach_no_detection_total", "Frames with no body detected", &m.NoDetection},
		{"coach_status_overwrites_total", "Statuses overwritten before the sink consumed them", &m.StatusOverwrite},
		{"coach_process_errors_total", "Frame cycles that failed", &m.ProcessErrors},
		{"coach_worker_restarts_total", "Pose worker restarts", &m.WorkerRestarts},
		{"coach_worker_up", "Whether the pose worker is running (0/1)", &m.WorkerUp},
	}

	for _, g := range gauges {
		val := g.val
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(val.Load()) },
		))
	}
}

// Handler returns the Prometheus exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
