// SPDX-License-Identifier: MIT
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"micscope/pkg/utils"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

var testConfig = Config{
	BufferSize:       64,
	SampleRate:       8000, // 8ms per frame
	BitsPerChannel:   16,
	ChannelsPerFrame: 1,
}

func collectFrames(t *testing.T, src Source, n int) []*audio.IntBuffer {
	t.Helper()
	frames := make(chan *audio.IntBuffer, n)
	l := src.AddListener(func(f *audio.IntBuffer) {
		select {
		case frames <- f:
		default:
		}
	})
	defer l.Remove()

	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	var got []*audio.IntBuffer
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-timeout:
			t.Fatalf("received %d of %d frames", len(got), n)
		}
	}
	return got
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"zero buffer", func(c *Config) { c.BufferSize = 0 }, errBufferSize},
		{"negative rate", func(c *Config) { c.SampleRate = -1 }, errSampleRate},
		{"stereo", func(c *Config) { c.ChannelsPerFrame = 2 }, errChannels},
		{"12-bit", func(c *Config) { c.BitsPerChannel = 12 }, errBitDepth},
		{"24-bit", func(c *Config) { c.BitsPerChannel = 24 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfigFrameInterval(t *testing.T) {
	cfg := Config{BufferSize: 2048, SampleRate: 44100, BitsPerChannel: 16, ChannelsPerFrame: 1}
	got := cfg.FrameInterval()
	if got < 46*time.Millisecond || got > 47*time.Millisecond {
		t.Errorf("FrameInterval() = %s, want ~46.4ms", got)
	}
	if (Config{}).FrameInterval() != 0 {
		t.Error("zero config should have zero interval")
	}
}

func TestHub_ListenersAndRemove(t *testing.T) {
	h := newHub()
	var a, b atomic.Int32
	la := h.add(func(*audio.IntBuffer) { a.Add(1) })
	h.add(func(*audio.IntBuffer) { b.Add(1) })

	frame := testConfig.newFrame([]int{1})
	h.dispatch(frame)
	la.Remove()
	la.Remove() // Idempotent
	h.dispatch(frame)

	if a.Load() != 1 || b.Load() != 2 {
		t.Errorf("deliveries a=%d b=%d, want 1 and 2", a.Load(), b.Load())
	}

	var nilListener *Listener
	nilListener.Remove()
}

func TestHub_OfferDropsWhenFull(t *testing.T) {
	h := newHub()
	queue := make(chan *audio.IntBuffer, 1)
	frame := testConfig.newFrame([]int{1})

	if !h.offer(queue, frame) {
		t.Fatal("first offer should be queued")
	}
	if h.offer(queue, frame) {
		t.Fatal("second offer should be dropped")
	}
	if h.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", h.Dropped())
	}
}

func TestSynthSource_Frames(t *testing.T) {
	src := NewSynthSource(testConfig, 1000, 0.5)
	frames := collectFrames(t, src, 3)

	for i, f := range frames {
		if len(f.Data) != testConfig.BufferSize {
			t.Errorf("frame %d: %d samples, want %d", i, len(f.Data), testConfig.BufferSize)
		}
		if f.Format.SampleRate != 8000 || f.Format.NumChannels != 1 || f.SourceBitDepth != 16 {
			t.Errorf("frame %d: format %+v depth %d", i, f.Format, f.SourceBitDepth)
		}
		for _, v := range f.Data {
			if v > 16384 || v < -16384 {
				t.Fatalf("frame %d: sample %d exceeds half scale", i, v)
			}
		}
	}

	// The tone starts at phase 0 and continues across frames.
	if frames[0].Data[0] != 0 {
		t.Errorf("first sample = %d, want 0 (phase 0)", frames[0].Data[0])
	}
	want := utils.GenerateSineWaveAt(1, testConfig.BufferSize, 8000, 1000, 0.5, 16)[0]
	if frames[1].Data[0] != want {
		t.Errorf("frame 1 starts at %d, want %d", frames[1].Data[0], want)
	}
}

func TestSynthSource_StopIsIdempotent(t *testing.T) {
	src := NewSynthSource(testConfig, 440, 1)

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := src.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	var count atomic.Int32
	src.AddListener(func(*audio.IntBuffer) { count.Add(1) })

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	after := count.Load()
	time.Sleep(5 * testConfig.FrameInterval())
	if count.Load() != after {
		t.Errorf("frames delivered after Stop: %d -> %d", after, count.Load())
	}
}

func TestSynthSource_InvalidConfig(t *testing.T) {
	cfg := testConfig
	cfg.ChannelsPerFrame = 2
	if err := NewSynthSource(cfg, 440, 1).Start(); !errors.Is(err, errChannels) {
		t.Errorf("Start() = %v, want errChannels", err)
	}
}

func writeWAV(t *testing.T, samples []int, sampleRate, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:   samples,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWAVSource_ReplaysAndLoops(t *testing.T) {
	samples := make([]int, 100)
	for i := range samples {
		samples[i] = i - 50
	}
	path := writeWAV(t, samples, 16000, 1)

	src, err := NewWAVSource(path, testConfig)
	if err != nil {
		t.Fatalf("NewWAVSource: %v", err)
	}
	if src.Config().SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want file rate 16000", src.Config().SampleRate)
	}

	frames := collectFrames(t, src, 2)
	var got []int
	for _, f := range frames {
		got = append(got, f.Data...)
	}
	// 128 samples from a 100-sample file: wraps after index 99.
	for i, v := range got {
		if want := samples[i%len(samples)]; v != want {
			t.Fatalf("sample %d = %d, want %d", i, v, want)
		}
	}
}

func TestWAVSource_Errors(t *testing.T) {
	if _, err := NewWAVSource(filepath.Join(t.TempDir(), "missing.wav"), testConfig); err == nil {
		t.Error("expected error for missing file")
	}

	junk := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(junk, []byte("not a wav file at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewWAVSource(junk, testConfig); err == nil {
		t.Error("expected error for invalid file")
	}

	stereo := writeWAV(t, make([]int, 64), 8000, 2)
	if _, err := NewWAVSource(stereo, testConfig); err == nil || !strings.Contains(err.Error(), "mono") {
		t.Errorf("expected mono error, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return []*portaudio.DeviceInfo{
			{Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
			{Name: "USB Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
		}, nil
	}

	var out bytes.Buffer
	if err := ListDevices(&out); err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if !strings.Contains(out.String(), "[1] USB Mic") {
		t.Errorf("missing input device:\n%s", out.String())
	}
	if strings.Contains(out.String(), "Speakers") {
		t.Errorf("output-only device listed:\n%s", out.String())
	}

	if _, err := InputDevice(0); err == nil {
		t.Error("expected error for output-only device")
	}
	if _, err := InputDevice(5); err == nil {
		t.Error("expected error for out of range device")
	}
	if d, err := InputDevice(1); err != nil || d.Name != "USB Mic" {
		t.Errorf("InputDevice(1) = %v, %v", d, err)
	}
}

func TestHostDevices_Error(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	if _, err := HostDevices(); err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}
