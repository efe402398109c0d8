// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	applog "micscope/internal/log"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration, loaded from YAML and then
// overridden by environment variables and command line flags.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Forces debug logging.
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error.
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Source    SourceConfig    `yaml:"source"`
	Transport TransportConfig `yaml:"transport"`
	UI        UIConfig        `yaml:"ui"`

	Command string `yaml:"-"` // One-off command from the CLI (e.g. "list").
	Path    string `yaml:"-"` // File the config was loaded from, empty for defaults.
}

// AudioConfig describes the capture stream.
type AudioConfig struct {
	InputDevice     int    `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      int    `yaml:"sample_rate"`       // Hz.
	FramesPerBuffer int    `yaml:"frames_per_buffer"` // Samples per captured frame.
	BitsPerChannel  int    `yaml:"bits_per_channel"`  // 8, 16, 24 or 32.
	Channels        int    `yaml:"channels"`          // Fixed at 1.
	Permission      string `yaml:"permission"`        // granted or denied.
}

// AnalysisConfig controls windowing, transform and summarization.
type AnalysisConfig struct {
	Buckets       int           `yaml:"buckets"`        // Summary length.
	WindowFrames  int           `yaml:"window_frames"`  // Most recent frames under analysis.
	ResetInterval time.Duration `yaml:"reset_interval"` // Accumulation store reset period.
	FFTBackend    string        `yaml:"fft_backend"`    // gonum or godsp.
	FFTWindow     string        `yaml:"fft_window"`     // rectangular, hann, hamming, ...
	WaveformBias  float64       `yaml:"waveform_bias"`  // Added to each waveform bucket mean.
}

// SourceConfig selects the capture implementation.
type SourceConfig struct {
	Kind           string  `yaml:"kind"`            // portaudio, wav or synth.
	WAVPath        string  `yaml:"wav_path"`        // Input for the wav source.
	SynthFrequency float64 `yaml:"synth_frequency"` // Hz, synth source only.
	SynthAmplitude float64 `yaml:"synth_amplitude"` // 0..1 of full scale, synth source only.
}

// TransportConfig holds the outbound rendering sinks.
type TransportConfig struct {
	WebSocketEnabled bool   `yaml:"websocket_enabled"`
	WebSocketAddress string `yaml:"websocket_address"` // host:port, clients connect to /ws.
	UDPEnabled       bool   `yaml:"udp_enabled"`
	UDPTargetAddress string `yaml:"udp_target_address"` // host:port.
	LogEvery         int    `yaml:"log_every"`          // Log one update in N at debug, 0 disables.
}

// UIConfig holds presentation toggles.
type UIConfig struct {
	TUI bool `yaml:"tui"` // Terminal bar charts.
}

var (
	errInvalidSampleRate = fmt.Errorf("audio.sample_rate must be within [%d, %d]", MinSampleRate, MaxSampleRate)
	errInvalidFrames     = fmt.Errorf("audio.frames_per_buffer must be within [1, %d]", MaxBufferFrames)
	errInvalidChannels   = errors.New("audio.channels must be 1")
	errInvalidBits       = errors.New("audio.bits_per_channel must be one of 8, 16, 24, 32")
	errInvalidPermission = errors.New("audio.permission must be granted or denied")
	errInvalidBuckets    = errors.New("analysis.buckets must be positive")
	errInvalidWindow     = errors.New("analysis.window_frames must be positive")
	errInvalidReset      = errors.New("analysis.reset_interval must be positive")
	errInvalidBackend    = errors.New("analysis.fft_backend must be gonum or godsp")
	errInvalidSource     = errors.New("source.kind must be portaudio, wav or synth")
	errMissingWAVPath    = errors.New("source.wav_path must be set for the wav source")
	errMissingWSAddr     = errors.New("transport.websocket_address must be set when websocket is enabled")
	errMissingUDPAddr    = errors.New("transport.udp_target_address must be set when UDP is enabled")
)

// LoadConfig loads configuration from path. An empty path looks for
// config.yaml in the working directory and falls back to built-in
// defaults when none exists. Environment overrides are applied after
// the file, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.Path = path
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return errInvalidSampleRate
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		return errInvalidFrames
	}
	if a.Channels != 1 {
		return errInvalidChannels
	}
	if !slices.Contains([]int{8, 16, 24, 32}, a.BitsPerChannel) {
		return errInvalidBits
	}
	if a.Permission != PermissionGranted && a.Permission != PermissionDenied {
		return errInvalidPermission
	}

	an := c.Analysis
	if an.Buckets <= 0 {
		return errInvalidBuckets
	}
	if an.WindowFrames <= 0 {
		return errInvalidWindow
	}
	if an.ResetInterval <= 0 {
		return errInvalidReset
	}
	if an.FFTBackend != BackendGonum && an.FFTBackend != BackendGoDSP {
		return errInvalidBackend
	}

	switch c.Source.Kind {
	case SourcePortAudio, SourceSynth:
	case SourceWAV:
		if c.Source.WAVPath == "" {
			return errMissingWAVPath
		}
	default:
		return errInvalidSource
	}

	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		return errMissingWSAddr
	}
	if c.Transport.UDPEnabled && c.Transport.UDPTargetAddress == "" {
		return errMissingUDPAddr
	}

	return nil
}

// applyEnvOverrides reads ENV_* variables on top of the file values.
// Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			applog.Debugf("Config: overriding debug from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Debugf("Config: overriding log_level from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_SOURCE"); ok {
		c.Source.Kind = val
		applog.Debugf("Config: overriding source.kind from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_RESET_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Analysis.ResetInterval = dur
			applog.Debugf("Config: overriding analysis.reset_interval from env: %s", dur)
		}
	}

	// ENV_WS_* and ENV_UDP_* are transport specific.
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
			applog.Debugf("Config: overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		applog.Debugf("Config: overriding transport.websocket_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			applog.Debugf("Config: overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Debugf("Config: overriding transport.udp_target_address from env: %s", val)
	}
}
