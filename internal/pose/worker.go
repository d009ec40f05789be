package pose

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sitsmart/coach/internal/errors"
)

// Config controls how the camera worker process is launched.
type Config struct {
	Command        string // worker executable (shebang script or binary)
	CameraIndex    int
	Width          int
	Height         int
	SampleInterval time.Duration // worker frame cadence
	ReadRetryDelay time.Duration // worker wait after a camera read failure
	SendPreviews   bool
	OutputBuffer   int // frame channel capacity
}

// Worker runs the pose detection process and streams landmark frames.
// The subprocess owns the camera and the body-landmark model; this side
// only decodes its output and manages its lifecycle.
type Worker struct {
	cfg Config

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	outCh  chan Frame
	doneCh chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	active   atomic.Bool
	stopOnce sync.Once

	framesRead    atomic.Uint64
	framesDropped atomic.Uint64
	decodeErrors  atomic.Uint64
}

// Stats is a snapshot of worker counters.
type Stats struct {
	FramesRead    uint64
	FramesDropped uint64
	DecodeErrors  uint64
}

// NewWorker creates a worker; it is not started.
func NewWorker(cfg Config) (*Worker, error) {
	if cfg.Command == "" {
		return nil, errors.New(errors.CodeConfigInvalid, "worker command is required")
	}
	if cfg.OutputBuffer <= 0 {
		cfg.OutputBuffer = 8
	}
	return &Worker{
		cfg:    cfg,
		outCh:  make(chan Frame, cfg.OutputBuffer),
		doneCh: make(chan struct{}),
	}, nil
}

// Output returns the channel of decoded landmark frames.
func (w *Worker) Output() <-chan Frame { return w.outCh }

// Done is closed once the worker process has exited and its readers stopped.
func (w *Worker) Done() <-chan struct{} { return w.doneCh }

// Start launches the worker process and its reader goroutines.
func (w *Worker) Start(ctx context.Context) error {
	if w.active.Load() {
		return errors.New(errors.CodeInternal, "worker already started")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	args := []string{
		"--camera", fmt.Sprintf("%d", w.cfg.CameraIndex),
		"--width", fmt.Sprintf("%d", w.cfg.Width),
		"--height", fmt.Sprintf("%d", w.cfg.Height),
		"--interval-ms", fmt.Sprintf("%d", w.cfg.SampleInterval.Milliseconds()),
		"--retry-ms", fmt.Sprintf("%d", w.cfg.ReadRetryDelay.Milliseconds()),
	}
	if w.cfg.SendPreviews {
		args = append(args, "--previews")
	}

	w.cmd = exec.CommandContext(w.ctx, w.cfg.Command, args...)

	var err error
	if w.stdin, err = w.cmd.StdinPipe(); err != nil {
		w.cancel()
		return errors.Wrap(err, errors.CodeWorkerStartFailed, "creating stdin pipe")
	}
	if w.stdout, err = w.cmd.StdoutPipe(); err != nil {
		w.cancel()
		return errors.Wrap(err, errors.CodeWorkerStartFailed, "creating stdout pipe")
	}
	if w.stderr, err = w.cmd.StderrPipe(); err != nil {
		w.cancel()
		return errors.Wrap(err, errors.CodeWorkerStartFailed, "creating stderr pipe")
	}

	if err := w.cmd.Start(); err != nil {
		w.cancel()
		return errors.Wrap(err, errors.CodeWorkerStartFailed, "starting pose worker")
	}

	w.active.Store(true)
	slog.Info("pose worker started", "command", w.cfg.Command, "pid", w.cmd.Process.Pid)

	w.wg.Add(3)
	go w.readFrames()
	go w.logStderr()
	go w.waitProcess()

	go func() {
		w.wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// readFrames decodes landmark frames from worker stdout and fans them out.
func (w *Worker) readFrames() {
	defer w.wg.Done()

	for {
		wf, err := readMessage(w.stdout)
		if err == io.EOF {
			slog.Debug("pose worker stdout closed")
			return
		}
		if err != nil {
			if errors.IsCode(err, errors.CodeFrameDecodeFailed) {
				// Single bad message; stream framing is still intact
				w.decodeErrors.Add(1)
				slog.Error("dropping undecodable frame", "error", err)
				continue
			}
			if w.ctx.Err() == nil {
				slog.Error("pose worker stream failed", "error", err)
			}
			return
		}

		if wf.Error != "" {
			slog.Warn("pose worker reported error", "error", wf.Error, "seq", wf.Seq)
			continue
		}

		w.framesRead.Add(1)

		select {
		case w.outCh <- wf.toFrame():
		default:
			w.framesDropped.Add(1)
			slog.Debug("frame buffer full, dropping frame", "seq", wf.Seq)
		}
	}
}

// logStderr maps worker log lines onto slog levels.
func (w *Worker) logStderr() {
	defer w.wg.Done()

	scanner := bufio.NewScanner(w.stderr)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case containsAny(line, "[ERROR]", "[CRITICAL]"):
			slog.Error("pose worker", "log", line)
		case containsAny(line, "[WARNING]", "[WARN]"):
			slog.Warn("pose worker", "log", line)
		default:
			slog.Debug("pose worker", "log", line)
		}
	}
}

// waitProcess reaps the worker process so it cannot linger as a zombie.
func (w *Worker) waitProcess() {
	defer w.wg.Done()

	err := w.cmd.Wait()
	w.active.Store(false)

	if err != nil && w.ctx.Err() == nil {
		slog.Error("pose worker exited unexpectedly", "error", err)
		return
	}
	slog.Info("pose worker exited")
}

// SetPreviews toggles JPEG previews without restarting the worker.
func (w *Worker) SetPreviews(enabled bool) error {
	if !w.active.Load() || w.stdin == nil {
		return errors.New(errors.CodeWorkerExited, "worker not running")
	}
	return writeCommand(w.stdin, "set_previews", map[string]any{"enabled": enabled})
}

// Stop shuts the worker down: stdin close signals a graceful exit, then a
// bounded wait, then a kill. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		if w.stdin != nil {
			_ = writeCommand(w.stdin, "stop", nil)
			_ = w.stdin.Close()
		}

		waited := make(chan struct{})
		go func() {
			w.wg.Wait()
			close(waited)
		}()

		select {
		case <-waited:
		case <-time.After(2 * time.Second):
			slog.Warn("pose worker stop timeout, killing process")
			if w.cmd != nil && w.cmd.Process != nil {
				_ = w.cmd.Process.Kill()
			}
			<-waited
		}

		if w.cancel != nil {
			w.cancel()
		}
		w.active.Store(false)

		slog.Info("pose worker stopped",
			"frames_read", w.framesRead.Load(),
			"frames_dropped", w.framesDropped.Load(),
		)
	})
}

// Running reports whether the worker process is alive.
func (w *Worker) Running() bool { return w.active.Load() }

// Stats returns current counters.
func (w *Worker) Stats() Stats {
	return Stats{
		FramesRead:    w.framesRead.Load(),
		FramesDropped: w.framesDropped.Load(),
		DecodeErrors:  w.decodeErrors.Load(),
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, substr := range substrs {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
