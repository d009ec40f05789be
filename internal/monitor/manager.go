// Package monitor runs the posture monitoring loop: it supervises the
// pose worker, feeds landmark frames through the pipeline, and publishes
// the newest status for the feedback surfaces.
package monitor

import (
	"bytes"
	"context"
	"image/jpeg"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/nfnt/resize"

	"github.com/sitsmart/coach/internal/config"
	"github.com/sitsmart/coach/internal/errors"
	"github.com/sitsmart/coach/internal/metrics"
	"github.com/sitsmart/coach/internal/pose"
	"github.com/sitsmart/coach/internal/posture"
	"github.com/sitsmart/coach/internal/resilience"
	"github.com/sitsmart/coach/internal/syncx"
)

// FrameSource is the pose worker seen from the monitor. Satisfied by
// *pose.Worker; tests substitute a fake.
type FrameSource interface {
	Start(ctx context.Context) error
	Output() <-chan pose.Frame
	Done() <-chan struct{}
	Stop()
}

// SourceFactory builds a fresh FrameSource for each worker (re)start.
type SourceFactory func() (FrameSource, error)

// similarityThreshold is the max perception-hash bit distance at which
// two previews count as the same scene.
const similarityThreshold = 5

// stalenessTimeout is how long the loop tolerates frame silence from a
// live worker before reporting the camera gone.
const stalenessTimeout = 5 * time.Second

// Manager owns the monitoring loop and the status hand-off slot.
type Manager struct {
	cfg        *config.Config
	met        *metrics.Metrics
	newSource  SourceFactory
	pipeline   *posture.Pipeline
	slot       *syncx.Slot[posture.Status]
	snapshot   *syncx.Guard[[]byte]
	breaker    *resilience.Breaker
	paused     atomic.Bool
	lastFrame  atomic.Int64 // unix nanos of the newest frame
	prevHash   *goimagehash.ImageHash
	prevStatus posture.Status

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewManager wires a manager; Start launches the loop.
func NewManager(cfg *config.Config, met *metrics.Metrics, factory SourceFactory) *Manager {
	return &Manager{
		cfg:       cfg,
		met:       met,
		newSource: factory,
		pipeline:  posture.NewPipeline(cfg.Calibration, cfg.SmoothWindow),
		slot:      syncx.NewSlot[posture.Status](),
		snapshot:  syncx.NewGuard[[]byte](nil),
		breaker:   resilience.NewBreaker(resilience.BreakerConfig{}),
		done:      make(chan struct{}),
	}
}

// Start launches the monitoring loop.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.run(ctx)
}

// Stop cancels the loop and waits for it to finish.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		<-m.done
	})
}

// Latest returns the newest status without consuming it.
func (m *Manager) Latest() (posture.Status, bool) {
	return m.slot.Peek()
}

// TakeNewest drains the slot: the newest unconsumed status, or ok=false
// when nothing new arrived since the last take.
func (m *Manager) TakeNewest() (posture.Status, bool) {
	return m.slot.Take()
}

// SetPaused suspends or resumes frame processing without stopping the
// worker. While paused, frames are drained and discarded.
func (m *Manager) SetPaused(paused bool) {
	m.paused.Store(paused)
	slog.Info("monitoring pause state changed", "paused", paused)
}

// Paused reports whether processing is suspended.
func (m *Manager) Paused() bool { return m.paused.Load() }

// Snapshot returns the latest camera preview as a JPEG, downscaled to at
// most maxWidth pixels wide. maxWidth <= 0 returns the original.
func (m *Manager) Snapshot(maxWidth int) ([]byte, error) {
	raw := m.snapshot.Get()
	if len(raw) == 0 {
		return nil, errors.New(errors.CodeUnavailable, "no preview captured yet")
	}
	if maxWidth <= 0 {
		return raw, nil
	}

	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeFrameDecodeFailed, "decoding preview")
	}
	if img.Bounds().Dx() <= maxWidth {
		return raw, nil
	}

	thumb := resize.Resize(uint(maxWidth), 0, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "encoding thumbnail")
	}
	return buf.Bytes(), nil
}

// run supervises the worker: start, consume until exit, back off, restart.
// The loop exits only on context cancellation.
func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	first := true
	for {
		if ctx.Err() != nil {
			return
		}

		if err := m.breaker.Allow(); err != nil {
			// Restart storm; report the camera gone and sit out the window.
			m.publish(posture.Status{Lines: []string{posture.StatusCameraUnavailable}, GeneratedAt: time.Now()})
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}

		src, err := m.startSource(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("pose worker unavailable", "error", err)
			m.breaker.Failure()
			m.publish(posture.Status{Lines: []string{posture.StatusCameraUnavailable}, GeneratedAt: time.Now()})
			continue
		}

		if !first {
			m.met.WorkerRestarts.Add(1)
		}
		first = false
		m.met.WorkerUp.Store(1)
		m.lastFrame.Store(time.Now().UnixNano())

		m.consume(ctx, src)

		m.met.WorkerUp.Store(0)
		src.Stop()
		if ctx.Err() != nil {
			return
		}
		slog.Warn("pose worker lost, restarting")
		m.breaker.Failure()
	}
}

// startSource builds and starts a worker, retrying transient failures
// with backoff.
func (m *Manager) startSource(ctx context.Context) (FrameSource, error) {
	var src FrameSource
	err := resilience.Retry(ctx, resilience.WorkerRetryConfig(), func() error {
		s, err := m.newSource()
		if err != nil {
			return err
		}
		if err := s.Start(ctx); err != nil {
			return err
		}
		src = s
		return nil
	})
	return src, err
}

// consume processes frames from one worker until it exits or the context
// is cancelled.
func (m *Manager) consume(ctx context.Context, src FrameSource) {
	staleness := time.NewTicker(time.Second)
	defer staleness.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-src.Done():
			return
		case f := <-src.Output():
			m.handleFrame(f)
		case <-staleness.C:
			if m.paused.Load() {
				continue
			}
			silent := time.Since(time.Unix(0, m.lastFrame.Load()))
			if silent > stalenessTimeout {
				slog.Warn("no frames from pose worker", "silent_for", silent)
				m.publish(posture.Status{Lines: []string{posture.StatusCameraUnavailable}, GeneratedAt: time.Now()})
			}
		}
	}
}

func (m *Manager) handleFrame(f pose.Frame) {
	m.met.FramesReceived.Add(1)
	m.lastFrame.Store(time.Now().UnixNano())
	m.breaker.Success()

	if len(f.Preview) > 0 {
		m.snapshot.Set(f.Preview)
	}

	if m.paused.Load() {
		return
	}

	if m.isStatic(f) {
		m.met.FramesStatic.Add(1)
		// Scene unchanged; republish the last verdict so the slot stays fresh.
		if m.prevStatus.Seq != 0 {
			m.publish(m.prevStatus)
		}
		return
	}

	st := m.pipeline.Process(f)
	m.met.FramesProcessed.Add(1)
	if st.IsFallback() {
		switch st.Lines[0] {
		case posture.StatusMoveIntoFrame:
			m.met.NoDetection.Add(1)
		case posture.StatusInternalError:
			m.met.ProcessErrors.Add(1)
		}
	}

	m.prevStatus = st
	m.publish(st)
}

// isStatic gates the pipeline on scene change: when the preview hashes
// to the same perception hash as the previous frame, the posture verdict
// cannot have moved either. Frames without previews always process.
func (m *Manager) isStatic(f pose.Frame) bool {
	if len(f.Preview) == 0 {
		return false
	}

	img, err := jpeg.Decode(bytes.NewReader(f.Preview))
	if err != nil {
		return false
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false
	}

	prev := m.prevHash
	m.prevHash = hash
	if prev == nil {
		return false
	}

	dist, err := hash.Distance(prev)
	if err != nil {
		return false
	}
	return dist <= similarityThreshold
}

func (m *Manager) publish(st posture.Status) {
	if m.slot.Publish(st) {
		m.met.StatusOverwrite.Add(1)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
