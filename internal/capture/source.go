// SPDX-License-Identifier: MIT

/*
Package capture provides producers of fixed-size mono sample frames.

Every Source emits *audio.IntBuffer frames of Config.BufferSize samples
at roughly SampleRate/BufferSize Hz to its listeners. Frames are freshly
allocated per emission and must be treated as immutable by listeners.

Listeners run on the source's own dispatch goroutine, one frame at a
time. When listeners fall behind, frames queue in a small channel and
are dropped by the source once it is full; the hot audio callback never
blocks.
*/
package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
)

// Source is a capture collaborator.
type Source interface {
	// Start begins capture. Calling Start on a running source is a no-op.
	Start() error
	// Stop ends capture. It is idempotent and safe before Start.
	Stop() error
	// AddListener registers fn for every emitted frame.
	AddListener(fn func(*audio.IntBuffer)) *Listener
}

// Config holds capture parameters.
type Config struct {
	BufferSize       int // Samples per frame.
	SampleRate       int // Hz.
	BitsPerChannel   int // 8, 16, 24 or 32.
	ChannelsPerFrame int // Fixed at 1.
}

var (
	errBufferSize = errors.New("capture: buffer size must be positive")
	errSampleRate = errors.New("capture: sample rate must be positive")
	errBitDepth   = errors.New("capture: bits per channel must be 8, 16, 24 or 32")
	errChannels   = errors.New("capture: only mono capture is supported")
)

// Validate checks the capture parameters.
func (c Config) Validate() error {
	switch {
	case c.BufferSize <= 0:
		return errBufferSize
	case c.SampleRate <= 0:
		return errSampleRate
	case c.ChannelsPerFrame != 1:
		return errChannels
	}
	switch c.BitsPerChannel {
	case 8, 16, 24, 32:
		return nil
	default:
		return errBitDepth
	}
}

// FrameInterval is the wall-clock duration covered by one frame.
func (c Config) FrameInterval() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.BufferSize) * time.Second / time.Duration(c.SampleRate)
}

func (c Config) String() string {
	return fmt.Sprintf("%d samples @ %d Hz, %d-bit, %d ch", c.BufferSize, c.SampleRate, c.BitsPerChannel, c.ChannelsPerFrame)
}

// newFrame tags samples with the capture parameters.
func (c Config) newFrame(samples []int) *audio.IntBuffer {
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: c.ChannelsPerFrame,
			SampleRate:  c.SampleRate,
		},
		Data:           samples,
		SourceBitDepth: c.BitsPerChannel,
	}
}

// Listener is a registration returned by AddListener.
type Listener struct {
	id   uint64
	hub  *hub
	once sync.Once
}

// Remove detaches the listener. It is idempotent. A frame already being
// delivered to the listener may still complete after Remove returns.
func (l *Listener) Remove() {
	if l == nil || l.hub == nil {
		return
	}
	l.once.Do(func() { l.hub.remove(l.id) })
}

// queueDepth bounds the frames waiting for the dispatch goroutine.
const queueDepth = 8

// hub fans frames out to listeners from a single dispatch goroutine.
type hub struct {
	mu        sync.RWMutex
	listeners map[uint64]func(*audio.IntBuffer)
	nextID    uint64

	queue   chan *audio.IntBuffer
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

func newHub() *hub {
	return &hub{listeners: make(map[uint64]func(*audio.IntBuffer))}
}

func (h *hub) add(fn func(*audio.IntBuffer)) *Listener {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.listeners[h.nextID] = fn
	return &Listener{id: h.nextID, hub: h}
}

func (h *hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.listeners, id)
	h.mu.Unlock()
}

// start launches the dispatch goroutine. Callers serialize start/stop.
func (h *hub) start() {
	h.queue = make(chan *audio.IntBuffer, queueDepth)
	h.done = make(chan struct{})
	queue, done := h.queue, h.done

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case frame := <-queue:
				h.dispatch(frame)
			case <-done:
				return
			}
		}
	}()
}

// stop ends the dispatch goroutine and waits for it. Queued frames are
// discarded.
func (h *hub) stop() {
	if h.done == nil {
		return
	}
	close(h.done)
	h.wg.Wait()
	h.done = nil
	h.queue = nil
}

// offer queues a frame without blocking; it reports false when dropped.
// Only called between start and stop.
func (h *hub) offer(queue chan<- *audio.IntBuffer, frame *audio.IntBuffer) bool {
	select {
	case queue <- frame:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

func (h *hub) dispatch(frame *audio.IntBuffer) {
	h.mu.RLock()
	fns := make([]func(*audio.IntBuffer), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(frame)
	}
}

// Dropped returns the number of frames discarded because listeners
// could not keep up.
func (h *hub) Dropped() uint64 {
	return h.dropped.Load()
}
