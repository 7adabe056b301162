package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"github.com/kozaktomas/attendance-scanner/internal/stability"
)

// FrameSource delivers frames. Read blocks until a frame is available.
type FrameSource interface {
	Read(ctx context.Context) (image.Image, error)
}

// Status is a snapshot of the runner for display.
type Status struct {
	Running             bool            `json:"running"`
	Busy                bool            `json:"busy"`
	CameraOnline        bool            `json:"camera_online"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	Gate                stability.State `json:"gate"`
	Frames              int64           `json:"frames"`
	Scans               int64           `json:"scans"`
	Accepted            int64           `json:"accepted"`
	Rejected            int64           `json:"rejected"`
	LastResult          *Result         `json:"last_result,omitempty"`
	StartedAt           time.Time       `json:"started_at,omitzero"`
}

// Runner pulls frames from Source and hands them to Pipeline. Frame reads
// happen on the calling goroutine; processing runs in the background with
// at most one frame in flight, so frames arriving while busy are dropped.
type Runner struct {
	Source   FrameSource
	Pipeline *Pipeline
	// Interval is the minimum spacing between processing starts.
	Interval time.Duration
	// Cooldown is the pause after the gate settled on an identity.
	Cooldown time.Duration
	// OnResult is called from the processing goroutine for every result.
	OnResult func(Result)

	busy    atomic.Bool
	wg      sync.WaitGroup
	waitFor func(failures int) time.Duration

	mu         sync.RWMutex
	status     Status
	lastStart  time.Time
	lastSettle time.Time
}

// Run loops until ctx is cancelled. It waits for the frame in flight before
// returning ctx.Err(). A ledger write in flight is not cut short by the
// cancellation.
func (r *Runner) Run(ctx context.Context) error {
	if r.Source == nil || r.Pipeline == nil {
		return errors.New("runner: source and pipeline are required")
	}
	interval := r.Interval
	if interval <= 0 {
		interval = constants.DefaultScanInterval
	}
	cooldown := r.Cooldown
	if cooldown < 0 {
		cooldown = 0
	}

	r.mu.Lock()
	r.status.Running = true
	r.status.CameraOnline = true
	r.status.StartedAt = time.Now()
	r.mu.Unlock()

	defer func() {
		r.wg.Wait()
		r.mu.Lock()
		r.status.Running = false
		r.mu.Unlock()
	}()

	slog.Info("scanner started", "interval", interval, "cooldown", cooldown)

	wait := r.waitFor
	if wait == nil {
		wait = backoff
	}

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			slog.Info("scanner stopping")
			return err
		}

		frame, err := r.Source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			failures++
			r.acquisitionFailed(failures, err)
			select {
			case <-ctx.Done():
			case <-time.After(wait(failures)):
			}
			continue
		}
		if failures > 0 {
			r.acquisitionRecovered(failures)
			failures = 0
		}

		r.mu.Lock()
		r.status.Frames++
		r.mu.Unlock()

		if r.ready(time.Now(), interval, cooldown) {
			r.dispatch(ctx, frame)
		}
	}
}

// ready reports whether a new processing task may start at now.
func (r *Runner) ready(now time.Time, interval, cooldown time.Duration) bool {
	if r.busy.Load() {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.lastStart.IsZero() && now.Sub(r.lastStart) < interval {
		return false
	}
	if !r.lastSettle.IsZero() && now.Sub(r.lastSettle) < cooldown {
		return false
	}
	return true
}

func (r *Runner) dispatch(ctx context.Context, frame image.Image) {
	if !r.busy.CompareAndSwap(false, true) {
		return
	}
	r.mu.Lock()
	r.lastStart = time.Now()
	r.mu.Unlock()

	// The write must not be interrupted by a shutdown; it gets its own deadline.
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.LedgerWriteTimeout)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.busy.Store(false)
		defer cancel()
		defer func() {
			if p := recover(); p != nil {
				slog.Error("frame processing panicked", "panic", fmt.Sprint(p))
			}
		}()

		res := r.Pipeline.ProcessFrame(taskCtx, frame)
		r.record(res)
		if r.OnResult != nil {
			r.OnResult(res)
		}
	}()
}

func (r *Runner) record(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Scans++
	switch res.Kind {
	case Accepted:
		r.status.Accepted++
	case Rejected:
		if res.Reason != ReasonNoCode {
			r.status.Rejected++
		}
	}
	if res.Settled() {
		r.lastSettle = time.Now()
	}
	if res.Kind != Rejected || res.Reason != ReasonNoCode {
		r.status.LastResult = &res
	}
}

func (r *Runner) acquisitionFailed(failures int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.ConsecutiveFailures = failures
	if failures == constants.AcquisitionOfflineAfter {
		r.status.CameraOnline = false
		slog.Error("camera offline", "failures", failures, "error", err)
		return
	}
	slog.Warn("failed to read frame", "failures", failures, "error", err)
}

func (r *Runner) acquisitionRecovered(failures int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.CameraOnline {
		slog.Info("camera back online", "after_failures", failures)
	}
	r.status.CameraOnline = true
	r.status.ConsecutiveFailures = 0
}

// Status returns a snapshot of the runner.
func (r *Runner) Status() Status {
	r.mu.RLock()
	s := r.status
	r.mu.RUnlock()
	s.Busy = r.busy.Load()
	if r.Pipeline != nil {
		s.Gate = r.Pipeline.GateState()
	}
	return s
}

// backoff returns the wait after the given number of consecutive failures:
// base * 2^(failures-1), capped.
func backoff(failures int) time.Duration {
	if failures < 1 {
		return 0
	}
	delay := constants.AcquisitionBackoffBase
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= constants.AcquisitionBackoffMax {
			return constants.AcquisitionBackoffMax
		}
	}
	return delay
}
