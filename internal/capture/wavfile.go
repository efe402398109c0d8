// SPDX-License-Identifier: MIT
package capture

import (
	"fmt"
	"os"

	applog "micscope/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource replays a mono WAV file in real time, looping at the end.
// The file is decoded once at construction.
type WAVSource struct {
	*clocked
	samples []int
	pos     int // Owned by the ticker goroutine.
}

var _ Source = (*WAVSource)(nil)

// NewWAVSource decodes path and returns a source pacing it at
// cfg.BufferSize samples per frame. The file's sample rate and bit
// depth replace the ones in cfg.
func NewWAVSource(path string, cfg Config) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wav %s: not a valid PCM WAV file", path)
	}
	if dec.NumChans != 1 {
		return nil, fmt.Errorf("wav %s: %d channels, only mono is supported", path, dec.NumChans)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav %s: %w", path, err)
	}
	if len(buf.Data) == 0 {
		return nil, fmt.Errorf("wav %s: no samples", path)
	}

	if int(dec.SampleRate) != cfg.SampleRate || int(dec.BitDepth) != cfg.BitsPerChannel {
		applog.Infof("WAVSource: using file format %d Hz/%d-bit instead of %d Hz/%d-bit",
			dec.SampleRate, dec.BitDepth, cfg.SampleRate, cfg.BitsPerChannel)
	}
	cfg.SampleRate = int(dec.SampleRate)
	cfg.BitsPerChannel = int(dec.BitDepth)

	s := &WAVSource{samples: buf.Data}
	s.clocked = newClocked("WAVSource", cfg, s.next)
	return s, nil
}

// Config returns the effective capture parameters.
func (s *WAVSource) Config() Config {
	return s.cfg
}

func (s *WAVSource) next() *audio.IntBuffer {
	frame := make([]int, s.cfg.BufferSize)
	for i := range frame {
		frame[i] = s.samples[s.pos]
		s.pos++
		if s.pos == len(s.samples) {
			s.pos = 0
		}
	}
	return s.cfg.newFrame(frame)
}
