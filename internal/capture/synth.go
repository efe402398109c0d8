// SPDX-License-Identifier: MIT
package capture

import (
	"micscope/pkg/utils"

	"github.com/go-audio/audio"
)

// SynthSource emits a continuous sine tone. It stands in for the
// microphone when no audio hardware is available.
type SynthSource struct {
	*clocked
	frequency float64
	amplitude float64
	offset    int // Next sample index, owned by the ticker goroutine.
}

var _ Source = (*SynthSource)(nil)

// NewSynthSource returns a sine source at frequency Hz with amplitude
// in [0, 1] of full scale for cfg.BitsPerChannel.
func NewSynthSource(cfg Config, frequency, amplitude float64) *SynthSource {
	amplitude = min(max(amplitude, 0), 1)
	s := &SynthSource{frequency: frequency, amplitude: amplitude}
	s.clocked = newClocked("SynthSource", cfg, s.next)
	return s
}

func (s *SynthSource) next() *audio.IntBuffer {
	samples := utils.GenerateSineWaveAt(s.cfg.BufferSize, s.offset,
		float64(s.cfg.SampleRate), s.frequency, s.amplitude, s.cfg.BitsPerChannel)
	s.offset += s.cfg.BufferSize
	return s.cfg.newFrame(samples)
}
