// SPDX-License-Identifier: MIT
package pipeline

import (
	"math"
	"time"
)

// WaveformMax is the fixed bar-chart ceiling for biased 16-bit waveform
// summaries.
const WaveformMax = 65535

// State is the controller lifecycle state.
type State int32

const (
	AwaitingFirstFrame State = iota
	Streaming
)

func (s State) String() string {
	switch s {
	case AwaitingFirstFrame:
		return "awaiting-first-frame"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// MarshalText lets sinks encode the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Update is what the controller publishes once per tick. Slices are
// shared between consecutive updates when a tick is skipped and must
// not be modified by sinks.
type Update struct {
	Seq      uint64    `json:"seq"`
	Time     time.Time `json:"time"`
	State    State     `json:"state"`
	Waveform []float64 `json:"waveform"` // Bucket means plus the waveform bias.
	Spectrum []float64 `json:"spectrum"` // Bucket means of the one-sided magnitudes.
	Min      float64   `json:"min"`      // Raw window minimum.
	Max      float64   `json:"max"`      // Raw window maximum.
	Samples  int       `json:"samples"`  // Window length behind this update.
	Skipped  bool      `json:"skipped"`  // True when the window was empty and the previous summaries were republished.
}

// Sink receives published updates. Publish is called from the pipeline
// goroutine and must not block on slow consumers.
type Sink interface {
	Publish(Update) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Update) error

// Publish calls f.
func (f SinkFunc) Publish(u Update) error { return f(u) }

// Bars converts values into height fractions value/max. A zero,
// negative or non-finite max yields all-zero bars, as does any
// non-finite ratio.
func Bars(values []float64, max float64) []float64 {
	bars := make([]float64, len(values))
	if max <= 0 || math.IsNaN(max) || math.IsInf(max, 0) {
		return bars
	}
	for i, v := range values {
		f := v / max
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		bars[i] = f
	}
	return bars
}

// WaveformBars scales the waveform summary against WaveformMax.
func (u Update) WaveformBars() []float64 {
	return Bars(u.Waveform, WaveformMax)
}

// SpectrumBars scales the spectrum summary against its own maximum.
func (u Update) SpectrumBars() []float64 {
	peak := 0.0
	for _, v := range u.Spectrum {
		peak = math.Max(peak, v)
	}
	return Bars(u.Spectrum, peak)
}
