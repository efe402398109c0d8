// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"micscope/cmd"
	"micscope/internal/analysis"
	"micscope/internal/capture"
	"micscope/internal/config"
	applog "micscope/internal/log"
	"micscope/internal/permission"
	"micscope/internal/pipeline"
	"micscope/internal/transport"
	"micscope/internal/transport/udp"
	"micscope/internal/tui"
	"micscope/pkg/build"

	tea "github.com/charmbracelet/bubbletea"
)

// tuiLogFile receives log output while the terminal charts own the screen.
const tuiLogFile = "micscope.log"

// main runs in three phases:
//
// 1. Startup: build info, flags and config, logging, one-off commands.
// 2. Streaming: permission, capture and the per-frame pipeline feeding
// the sinks until the user quits or a signal arrives.
// 3. Shutdown: controller teardown, then sinks and PortAudio.
func main() {
	buildErr := build.Initialize()

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if cfg == nil {
		return // --help or --version
	}

	applog.Configure(cfg.LogLevel, cfg.Debug)
	if buildErr != nil {
		applog.Debugf("Build: %v", buildErr)
	}

	if cfg.Command == "list" {
		if err := listDevices(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	if err := run(cfg); err != nil {
		applog.Fatalf("%v", err)
	}
}

func listDevices() error {
	if err := capture.Initialize(); err != nil {
		return err
	}
	defer capture.Terminate()
	return capture.ListDevices(os.Stdout)
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ui *tui.Program
	if cfg.UI.TUI {
		f, err := tea.LogToFile(tuiLogFile, "")
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		applog.SetOutput(f)
		ui = tui.NewProgram(build.GetBuildInfo().Name, cfg.Analysis.Buckets)
	}

	source, closeSource, err := newSource(cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	analyzer, err := analysis.NewSpectralAnalyzer(analysis.Backend(cfg.Analysis.FFTBackend), cfg.Analysis.FFTWindow)
	if err != nil {
		return err
	}

	sinks, err := newSinks(cfg)
	if err != nil {
		return err
	}
	if ui != nil {
		sinks = append(sinks, ui)
	}
	defer sinks.Close()

	ctrl := pipeline.New(source, permission.FromConfig(cfg.Audio.Permission),
		analysis.NewSampleBuffer(cfg.Analysis.WindowFrames), analyzer, sinks,
		pipeline.Options{
			Buckets:       cfg.Analysis.Buckets,
			WaveformBias:  cfg.Analysis.WaveformBias,
			ResetInterval: cfg.Analysis.ResetInterval,
		})
	defer func() {
		if err := ctrl.Teardown(); err != nil {
			applog.Errorf("Teardown: %v", err)
		}
	}()

	if cfg.Path != "" {
		err := config.Watch(ctx, cfg.Path, func(next *config.Config) {
			applog.Configure(next.LogLevel, next.Debug)
			ctrl.SetResetInterval(next.Analysis.ResetInterval)
		})
		if err != nil {
			applog.Warnf("Config: hot reload disabled: %v", err)
		}
	}

	if err := ctrl.Start(ctx); err != nil {
		var status string
		switch {
		case errors.Is(err, pipeline.ErrPermissionDenied):
			status = "Microphone permission denied."
		case errors.Is(err, pipeline.ErrCaptureStart):
			status = "Microphone capture failed to start."
		default:
			return err
		}
		// Stay up with empty charts until the user quits.
		applog.Warnf("%s %v", status, err)
		if ui != nil {
			ui.SetStatus(status)
		}
	}

	if ui == nil {
		<-ctx.Done()
		applog.Infof("Shutting down.")
		return nil
	}

	go func() {
		<-ctx.Done()
		ui.Close()
	}()
	return ui.Run()
}

// newSource builds the configured capture source and its cleanup.
func newSource(cfg *config.Config) (capture.Source, func(), error) {
	ccfg := capture.Config{
		BufferSize:       cfg.Audio.FramesPerBuffer,
		SampleRate:       cfg.Audio.SampleRate,
		BitsPerChannel:   cfg.Audio.BitsPerChannel,
		ChannelsPerFrame: cfg.Audio.Channels,
	}
	noop := func() {}

	switch cfg.Source.Kind {
	case config.SourceSynth:
		return capture.NewSynthSource(ccfg, cfg.Source.SynthFrequency, cfg.Source.SynthAmplitude), noop, nil
	case config.SourceWAV:
		src, err := capture.NewWAVSource(cfg.Source.WAVPath, ccfg)
		if err != nil {
			return nil, nil, err
		}
		return src, noop, nil
	default:
		if err := capture.Initialize(); err != nil {
			return nil, nil, err
		}
		terminate := func() {
			if err := capture.Terminate(); err != nil {
				applog.Errorf("%v", err)
			}
		}
		return capture.NewPortAudioSource(ccfg, cfg.Audio.InputDevice), terminate, nil
	}
}

// newSinks builds the network and logging sinks.
func newSinks(cfg *config.Config) (transport.Fanout, error) {
	var sinks transport.Fanout
	if cfg.Transport.LogEvery > 0 {
		sinks = append(sinks, transport.NewLoggingSink(cfg.Transport.LogEvery))
	}
	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketSink(cfg.Transport.WebSocketAddress)
		if err != nil {
			sinks.Close()
			return nil, fmt.Errorf("websocket sink: %w", err)
		}
		sinks = append(sinks, ws)
	}
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			sinks.Close()
			return nil, fmt.Errorf("udp sink: %w", err)
		}
		pub, err := udp.NewPublisher(udp.DefaultInterval, sender)
		if err != nil {
			sender.Close()
			sinks.Close()
			return nil, err
		}
		pub.Start()
		sinks = append(sinks, pub)
	}
	return sinks, nil
}
