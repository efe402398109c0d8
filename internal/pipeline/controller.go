// SPDX-License-Identifier: MIT

/*
Package pipeline wires capture, accumulation, analysis and publication
into the per-frame loop.

The Controller registers one listener on its capture Source. Every
delivered frame is appended to the store, the current window is
snapshotted, analyzed and summarized, and one Update is published. A
separate timer empties the store every reset interval. Both run against
a store that serializes its own operations, so a reset may land between
any two steps of a tick.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"micscope/internal/analysis"
	"micscope/internal/capture"
	applog "micscope/internal/log"
	"micscope/internal/permission"

	"github.com/go-audio/audio"
)

var (
	// ErrPermissionDenied is returned by Start when microphone access is
	// refused. The controller stays inert.
	ErrPermissionDenied = errors.New("pipeline: microphone permission denied")
	// ErrCaptureStart wraps a failure of the capture source to start.
	ErrCaptureStart = errors.New("pipeline: capture failed to start")
	// ErrClosed is returned by Start after Teardown.
	ErrClosed = errors.New("pipeline: controller torn down")
)

// Store is the accumulation store the controller drives.
type Store interface {
	Append(frame *audio.IntBuffer)
	Reset()
	Snapshot() []float64
}

var _ Store = (*analysis.SampleBuffer)(nil)

// Options tune the per-tick computation.
type Options struct {
	Buckets       int           // Bars per chart.
	WaveformBias  float64       // Added to every waveform bucket mean.
	ResetInterval time.Duration // Store reset period; zero disables the timer.
}

// Controller owns the capture lifecycle and the per-frame loop.
type Controller struct {
	source   capture.Source
	perm     permission.Checker
	store    Store
	analyzer analysis.Analyzer
	sink     Sink
	opts     Options

	state atomic.Int32

	// stepMu serializes ticks with Teardown; closed is set under it.
	stepMu      sync.Mutex
	closed      bool
	seq         uint64
	last        Update
	publishErrs uint64

	lifeMu   sync.Mutex // Protects started, listener and the reset timer.
	started  bool
	listener *capture.Listener
	resetCh  chan time.Duration
	doneCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a controller. It does not touch the source until Start.
func New(source capture.Source, perm permission.Checker, store Store, analyzer analysis.Analyzer, sink Sink, opts Options) *Controller {
	if opts.Buckets <= 0 {
		opts.Buckets = analysis.DefaultBuckets
	}
	c := &Controller{
		source:   source,
		perm:     perm,
		store:    store,
		analyzer: analyzer,
		sink:     sink,
		opts:     opts,
	}
	c.last = Update{
		State:    AwaitingFirstFrame,
		Waveform: make([]float64, opts.Buckets),
		Spectrum: make([]float64, opts.Buckets),
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Last returns the most recently published update, or the zero update
// before the first tick.
func (c *Controller) Last() Update {
	c.stepMu.Lock()
	defer c.stepMu.Unlock()
	return c.last
}

// Start asks for permission, attaches to the source and begins capture.
// A second call while running is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}
	if c.started {
		return nil
	}

	granted, err := c.perm.Request(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if !granted {
		return ErrPermissionDenied
	}

	c.listener = c.source.AddListener(c.HandleFrame)
	c.startResetTimer()

	if err := c.source.Start(); err != nil {
		c.stopResetTimer()
		c.listener.Remove()
		c.listener = nil
		return fmt.Errorf("%w: %w", ErrCaptureStart, err)
	}

	c.started = true
	applog.Infof("Pipeline: capture started, awaiting first frame.")
	return nil
}

// HandleFrame runs one tick for frame. It is the source listener and
// is a no-op after Teardown.
func (c *Controller) HandleFrame(frame *audio.IntBuffer) {
	c.stepMu.Lock()
	defer c.stepMu.Unlock()
	if c.closed {
		return
	}

	c.store.Append(frame)
	window := c.store.Snapshot()

	c.seq++
	if len(window) == 0 {
		// Reset landed between append and snapshot.
		upd := c.last
		upd.Seq = c.seq
		upd.Time = time.Now()
		upd.Skipped = true
		c.publish(upd)
		return
	}

	if c.state.CompareAndSwap(int32(AwaitingFirstFrame), int32(Streaming)) {
		applog.Infof("Pipeline: first frame received, streaming.")
	}

	waveform := analysis.Offset(analysis.Summarize(window, c.opts.Buckets), c.opts.WaveformBias)

	spectrum := make([]float64, c.opts.Buckets)
	if mags, err := c.analyzer.Analyze(window); err != nil {
		applog.Debugf("Pipeline: analysis failed: %v", err)
	} else {
		spectrum = analysis.Summarize(mags, c.opts.Buckets)
	}

	lo, hi := analysis.MinMax(window)
	c.publish(Update{
		Seq:      c.seq,
		Time:     time.Now(),
		State:    Streaming,
		Waveform: waveform,
		Spectrum: spectrum,
		Min:      lo,
		Max:      hi,
		Samples:  len(window),
	})
}

// publish records upd as the latest update and hands it to the sink.
// Called with stepMu held.
func (c *Controller) publish(upd Update) {
	c.last = upd
	if c.sink == nil {
		return
	}
	if err := c.sink.Publish(upd); err != nil {
		c.publishErrs++
		if c.publishErrs == 1 || c.publishErrs%100 == 0 {
			applog.Warnf("Pipeline: publish failed (%d so far): %v", c.publishErrs, err)
		}
	}
}

// SetResetInterval changes the reset period of a running controller.
// Non-positive values are ignored.
func (c *Controller) SetResetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	c.opts.ResetInterval = d
	if c.resetCh == nil {
		return
	}
	select {
	case c.resetCh <- d:
	default:
		// A pending change is replaced by draining and resending.
		select {
		case <-c.resetCh:
		default:
		}
		c.resetCh <- d
	}
}

// startResetTimer launches the periodic store reset. Called with lifeMu held.
func (c *Controller) startResetTimer() {
	if c.opts.ResetInterval <= 0 {
		return
	}
	c.resetCh = make(chan time.Duration, 1)
	c.doneCh = make(chan struct{})
	resetCh, doneCh := c.resetCh, c.doneCh
	ticker := time.NewTicker(c.opts.ResetInterval)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.store.Reset()
				applog.Debugf("Pipeline: store reset.")
			case d := <-resetCh:
				ticker.Reset(d)
				applog.Infof("Pipeline: reset interval now %s.", d)
			case <-doneCh:
				return
			}
		}
	}()
}

// stopResetTimer stops the reset goroutine and waits for it. Called
// with lifeMu held.
func (c *Controller) stopResetTimer() {
	if c.doneCh == nil {
		return
	}
	close(c.doneCh)
	c.wg.Wait()
	c.doneCh = nil
	c.resetCh = nil
}

func (c *Controller) isClosed() bool {
	c.stepMu.Lock()
	defer c.stepMu.Unlock()
	return c.closed
}

// Teardown stops the reset timer, detaches from the source and stops
// capture. No append or analysis runs after it returns. It is
// idempotent and safe on a controller that never started.
func (c *Controller) Teardown() error {
	// Waits for an in-flight tick; later ticks see closed and return.
	c.stepMu.Lock()
	c.closed = true
	c.stepMu.Unlock()

	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.stopResetTimer()
	if c.listener != nil {
		c.listener.Remove()
		c.listener = nil
	}
	wasStarted := c.started
	c.started = false

	if err := c.source.Stop(); err != nil {
		return fmt.Errorf("pipeline: stopping capture: %w", err)
	}
	if wasStarted {
		applog.Infof("Pipeline: torn down.")
	}
	return nil
}
