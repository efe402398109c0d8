// SPDX-License-Identifier: MIT
package analysis

import (
	"sync"

	"github.com/go-audio/audio"
)

// SampleBuffer accumulates captured frames until the next Reset. The
// observation window is the most recent windowFrames frames of that
// history, concatenated oldest first.
//
// Append and Reset are the only mutators; Snapshot only reads. All
// three are safe for concurrent use.
type SampleBuffer struct {
	mu           sync.RWMutex
	frames       [][]int // Frame data, shared with the producer and never written.
	samples      int     // Total samples across frames.
	windowFrames int
}

// NewSampleBuffer creates an empty buffer whose window spans the last
// windowFrames frames. Values below 1 select the latest frame only.
func NewSampleBuffer(windowFrames int) *SampleBuffer {
	if windowFrames < 1 {
		windowFrames = 1
	}
	return &SampleBuffer{windowFrames: windowFrames}
}

// Append adds a frame to the accumulation store. Nil and zero-length
// frames are ignored. The frame's data must not be modified afterwards.
func (b *SampleBuffer) Append(frame *audio.IntBuffer) {
	if frame == nil || len(frame.Data) == 0 {
		return
	}

	b.mu.Lock()
	b.frames = append(b.frames, frame.Data)
	b.samples += len(frame.Data)
	b.mu.Unlock()
}

// Reset discards every accumulated frame.
func (b *SampleBuffer) Reset() {
	b.mu.Lock()
	b.frames = nil
	b.samples = 0
	b.mu.Unlock()
}

// Snapshot returns a float64 copy of the current observation window.
// It returns an empty slice (never nil) when nothing has been appended
// since the last reset.
func (b *SampleBuffer) Snapshot() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	first := max(len(b.frames)-b.windowFrames, 0)
	n := 0
	for _, f := range b.frames[first:] {
		n += len(f)
	}

	window := make([]float64, 0, n)
	for _, f := range b.frames[first:] {
		for _, s := range f {
			window = append(window, float64(s))
		}
	}
	return window
}

// Len returns the number of samples accumulated since the last reset.
func (b *SampleBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.samples
}

// Frames returns the number of frames accumulated since the last reset.
func (b *SampleBuffer) Frames() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.frames)
}
