// SPDX-License-Identifier: MIT

// Package cmd parses the command line into a validated configuration.
package cmd

import (
	"fmt"
	"time"

	"micscope/internal/config"
	"micscope/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagValues mirrors the config fields that can be set on the command line.
type flagValues struct {
	configPath    string
	device        int
	sampleRate    int
	frames        int
	bits          int
	permission    string
	buckets       int
	windowFrames  int
	resetInterval time.Duration
	backend       string
	window        string
	source        string
	wavPath       string
	synthFreq     float64
	websocket     string
	udp           string
	noTUI         bool
	verbose       bool
	logLevel      string
}

// ParseArgs parses args (without the program name). It returns a nil
// config and nil error when cobra handled the invocation itself, as
// with --help or --version.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildInfo()
	var (
		fv  flagValues
		cfg *config.Config
	)

	load := func(c *cobra.Command, command string) error {
		loaded, err := config.LoadConfig(fv.configPath)
		if err != nil {
			return err
		}
		fv.apply(c.Flags(), loaded)
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid flags: %w", err)
		}
		loaded.Command = command
		cfg = loaded
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", buildInfo.Version, buildInfo.Commit, buildInfo.Time),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(c *cobra.Command, args []string) error {
			return load(c, "")
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return load(c, "list")
		},
	}
	rootCmd.AddCommand(listCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&fv.configPath, "config", "", "Path to a YAML config file (default ./config.yaml if present)")

	// Capture
	flags.IntVarP(&fv.device, "device", "d", config.DefaultDeviceID,
		"Input device ID, -1 for the system default. Use 'list' to see devices.")
	flags.IntVarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate, "Sample rate in Hz")
	flags.IntVarP(&fv.frames, "frames-per-buffer", "b", config.DefaultFramesPerBuffer, "Samples per captured frame")
	flags.IntVar(&fv.bits, "bits", config.DefaultBitsPerChannel, "Bits per sample (8, 16, 24 or 32)")
	flags.StringVar(&fv.permission, "permission", config.DefaultPermission, "Microphone permission answer: granted or denied")
	flags.StringVar(&fv.source, "source", config.DefaultSource, "Capture source: portaudio, wav or synth")
	flags.StringVar(&fv.wavPath, "wav", "", "WAV file to replay (implies --source wav)")
	flags.Float64Var(&fv.synthFreq, "synth-frequency", config.DefaultSynthFrequency, "Tone frequency in Hz for --source synth")

	// Analysis
	flags.IntVar(&fv.buckets, "buckets", config.DefaultBuckets, "Bars per chart")
	flags.IntVar(&fv.windowFrames, "window-frames", config.DefaultWindowFrames, "Most recent frames analyzed per tick")
	flags.DurationVar(&fv.resetInterval, "reset-interval", config.DefaultResetInterval, "Sample store reset period")
	flags.StringVar(&fv.backend, "backend", config.DefaultFFTBackend, "Transform backend: gonum or godsp")
	flags.StringVar(&fv.window, "window", config.DefaultFFTWindow, "Analysis window: rectangular, hann, hamming, blackman, ...")

	// Output
	flags.StringVar(&fv.websocket, "websocket", "", "Serve updates over WebSocket on this address")
	flags.StringVar(&fv.udp, "udp", "", "Send updates as UDP datagrams to this address")
	flags.BoolVar(&fv.noTUI, "no-tui", false, "Disable the terminal charts")

	// Logging
	flags.BoolVarP(&fv.verbose, "verbose", "v", false, "Show debug output")
	flags.StringVar(&fv.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply copies explicitly set flags over the loaded configuration.
func (fv *flagValues) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := fs.Changed

	if set("device") {
		cfg.Audio.InputDevice = fv.device
	}
	if set("sample-rate") {
		cfg.Audio.SampleRate = fv.sampleRate
	}
	if set("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = fv.frames
	}
	if set("bits") {
		cfg.Audio.BitsPerChannel = fv.bits
	}
	if set("permission") {
		cfg.Audio.Permission = fv.permission
	}
	if set("source") {
		cfg.Source.Kind = fv.source
	}
	if set("wav") {
		cfg.Source.WAVPath = fv.wavPath
		if !set("source") {
			cfg.Source.Kind = config.SourceWAV
		}
	}
	if set("synth-frequency") {
		cfg.Source.SynthFrequency = fv.synthFreq
	}
	if set("buckets") {
		cfg.Analysis.Buckets = fv.buckets
	}
	if set("window-frames") {
		cfg.Analysis.WindowFrames = fv.windowFrames
	}
	if set("reset-interval") {
		cfg.Analysis.ResetInterval = fv.resetInterval
	}
	if set("backend") {
		cfg.Analysis.FFTBackend = fv.backend
	}
	if set("window") {
		cfg.Analysis.FFTWindow = fv.window
	}
	if set("websocket") {
		cfg.Transport.WebSocketEnabled = fv.websocket != ""
		cfg.Transport.WebSocketAddress = fv.websocket
	}
	if set("udp") {
		cfg.Transport.UDPEnabled = fv.udp != ""
		cfg.Transport.UDPTargetAddress = fv.udp
	}
	if set("no-tui") {
		cfg.UI.TUI = !fv.noTUI
	}
	if set("verbose") {
		cfg.Debug = cfg.Debug || fv.verbose
	}
	if set("log-level") {
		cfg.LogLevel = fv.logLevel
	}
}
