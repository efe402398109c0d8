// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for the capture and analysis pipeline.
const (
	DefaultDeviceID        = MinDeviceID // System default input
	DefaultSampleRate      = 44100       // Hz
	DefaultFramesPerBuffer = 2048        // ~46ms per frame at 44.1kHz
	DefaultBitsPerChannel  = 16
	DefaultChannels        = 1 // Mono only
	DefaultPermission      = PermissionGranted

	DefaultBuckets       = 32
	DefaultWindowFrames  = 1 // Analyze the most recent frame only
	DefaultResetInterval = 5 * time.Second
	DefaultFFTBackend    = BackendGonum
	DefaultFFTWindow     = "rectangular"
	DefaultWaveformBias  = 32767.5 // 16-bit signed mid-point shift into [0, 65535]

	DefaultSource          = SourcePortAudio
	DefaultSynthFrequency  = 440.0
	DefaultSynthAmplitude  = 0.5
	DefaultWebSocketAddr   = "127.0.0.1:8080"
	DefaultUDPTargetAddr   = "127.0.0.1:9090"
	DefaultLogEveryUpdates = 100

	MinDeviceID     = -1 // -1 represents the system default device
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 65536
)

// Source kinds.
const (
	SourcePortAudio = "portaudio"
	SourceWAV       = "wav"
	SourceSynth     = "synth"
)

// Transform backends.
const (
	BackendGonum = "gonum"
	BackendGoDSP = "godsp"
)

// Permission answers for the static permission checker.
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			BitsPerChannel:  DefaultBitsPerChannel,
			Channels:        DefaultChannels,
			Permission:      DefaultPermission,
		},
		Analysis: AnalysisConfig{
			Buckets:       DefaultBuckets,
			WindowFrames:  DefaultWindowFrames,
			ResetInterval: DefaultResetInterval,
			FFTBackend:    DefaultFFTBackend,
			FFTWindow:     DefaultFFTWindow,
			WaveformBias:  DefaultWaveformBias,
		},
		Source: SourceConfig{
			Kind:           DefaultSource,
			SynthFrequency: DefaultSynthFrequency,
			SynthAmplitude: DefaultSynthAmplitude,
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddress: DefaultWebSocketAddr,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTargetAddr,
			LogEvery:         DefaultLogEveryUpdates,
		},
		UI: UIConfig{
			TUI: true,
		},
	}
}
