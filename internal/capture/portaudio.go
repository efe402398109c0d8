// SPDX-License-Identifier: MIT
package capture

import (
	"fmt"
	"sync"

	applog "micscope/internal/log"

	"github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"
)

// PortAudioSource captures mono frames from a PortAudio input device.
// PortAudio must be initialized (see Initialize) before Start.
//
// The stream callback runs on PortAudio's real-time thread; it converts
// the buffer into a new frame and hands it to the dispatch goroutine
// without blocking.
type PortAudioSource struct {
	cfg      Config
	deviceID int
	hub      *hub

	mu     sync.Mutex // Serializes Start/Stop.
	stream *portaudio.Stream
	queue  chan<- *audio.IntBuffer
}

var _ Source = (*PortAudioSource)(nil)

// NewPortAudioSource returns a source for the given device index
// (config.MinDeviceID selects the system default input).
func NewPortAudioSource(cfg Config, deviceID int) *PortAudioSource {
	return &PortAudioSource{cfg: cfg, deviceID: deviceID, hub: newHub()}
}

// Start opens and starts the input stream.
func (s *PortAudioSource) Start() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return nil
	}

	device, err := InputDevice(s.deviceID)
	if err != nil {
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: s.cfg.ChannelsPerFrame,
			Latency:  device.DefaultLowInputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // Capture only
			Device:   nil,
		},
		FramesPerBuffer: s.cfg.BufferSize,
		SampleRate:      float64(s.cfg.SampleRate),
	}

	s.hub.start()
	s.queue = s.hub.queue

	stream, err := portaudio.OpenStream(params, s.callback())
	if err != nil {
		s.hub.stop()
		return fmt.Errorf("open stream on %q: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		s.hub.stop()
		return fmt.Errorf("start stream on %q: %w", device.Name, err)
	}
	s.stream = stream

	applog.Infof("PortAudioSource: capturing from %q (%s)", device.Name, s.cfg)
	return nil
}

// callback picks the PortAudio sample format for the configured depth.
// 24-bit capture reads 32-bit words and drops the padding byte.
func (s *PortAudioSource) callback() any {
	queue := s.queue
	switch s.cfg.BitsPerChannel {
	case 8:
		return func(in []int8) {
			frame := make([]int, len(in))
			for i, v := range in {
				frame[i] = int(v)
			}
			s.hub.offer(queue, s.cfg.newFrame(frame))
		}
	case 24, 32:
		shift := uint(32 - s.cfg.BitsPerChannel)
		return func(in []int32) {
			frame := make([]int, len(in))
			for i, v := range in {
				frame[i] = int(v >> shift)
			}
			s.hub.offer(queue, s.cfg.newFrame(frame))
		}
	default:
		return func(in []int16) {
			frame := make([]int, len(in))
			for i, v := range in {
				frame[i] = int(v)
			}
			s.hub.offer(queue, s.cfg.newFrame(frame))
		}
	}
}

// Stop stops and closes the stream. Safe to call repeatedly and before
// Start.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}

	stream := s.stream
	s.stream = nil

	stopErr := stream.Stop()
	closeErr := stream.Close()
	s.hub.stop()
	applog.Infof("PortAudioSource: stopped (%d frames dropped)", s.hub.Dropped())

	if stopErr != nil {
		return fmt.Errorf("stop stream: %w", stopErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close stream: %w", closeErr)
	}
	return nil
}

// AddListener registers fn for every captured frame.
func (s *PortAudioSource) AddListener(fn func(*audio.IntBuffer)) *Listener {
	return s.hub.add(fn)
}
