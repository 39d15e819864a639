// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"moodscope/cmd"
	"moodscope/internal/audio"
	"moodscope/internal/config"
	"moodscope/internal/log"
	"moodscope/internal/observe"
	"moodscope/internal/session"
	"moodscope/internal/transport"
	"moodscope/internal/transport/udp"
	"moodscope/internal/tui"
	"moodscope/pkg/build"
)

const shutdownTimeout = 3 * time.Second

// main is the entry point. The program flow is divided into three phases:
//
// 1. Startup: build info, arguments and configuration, logging, one-off
// commands such as device listing.
//
// 2. Running: the session ticks at the frame rate and publishes every result
// to the enabled transports and the terminal monitor.
//
// 3. Shutdown: on a signal, a failed component or the monitor quitting, the
// session stops first so no result is delivered to a closed transport.
func main() {
	// ==================== STARTUP PHASE ====================

	if err := build.Initialize(); err != nil {
		log.Debugf("development build: %v", err)
	}

	// One thread for the analysis tick, one for transports and the UI.
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg == nil {
		return // --help or --version
	}

	closeLog, err := setupLogging(cfg)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closeLog()

	switch cfg.Command {
	case cmd.CommandList:
		if err := listDevices(); err != nil {
			log.Fatalf("list devices: %v", err)
		}
	case cmd.CommandRun:
		if err := run(cfg); err != nil {
			log.Fatalf("%v", err)
		}
	}
}

// setupLogging applies level and format. With the monitor on screen, logs
// go to moodscope.log instead of the terminal.
func setupLogging(cfg *config.Config) (func(), error) {
	level, _ := log.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = log.LevelDebug
	}
	log.SetLevel(level)
	log.SetFormat(cfg.LogFormat)

	if !cfg.TUIMode {
		return func() {}, nil
	}
	f, err := os.OpenFile("moodscope.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return func() { _ = f.Close() }, nil
}

func listDevices() error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return audio.ListDevices(os.Stdout)
}

// ==================== RUNNING PHASE ====================

func run(cfg *config.Config) error {
	info := build.GetBuildInfo()
	log.Infof("%s", info)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observe.Discard()
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		provider, err := observe.InitProvider(observe.ProviderConfig{ServiceVersion: info.Version})
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = provider.Shutdown(sctx)
		}()
		metrics = provider.Metrics
		metricsHandler = provider.Handler
	}

	source, err := audio.NewSource(cfg.Audio, time.Now)
	if err != nil {
		return err
	}

	sess := session.New(source,
		session.WithFrameInterval(cfg.Analysis.FrameInterval()),
		session.WithSensitivity(cfg.Analysis.Sensitivity),
		session.WithMetrics(metrics),
	)

	g, gctx := errgroup.WithContext(ctx)
	var closers []func() error

	// Transports
	if cfg.Transport.WebSocketEnabled {
		var routes []transport.Route
		if metricsHandler != nil {
			routes = append(routes, transport.Route{Pattern: "/metrics", Handler: metricsHandler})
		}
		ws := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr, routes...)
		sess.Subscribe(transport.Subscriber(ws, nil))
		closers = append(closers, ws.Close)
		g.Go(ws.ListenAndServe)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return abort(stop, g, closers, err)
		}
		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender)
		if err != nil {
			_ = sender.Close()
			return abort(stop, g, closers, err)
		}
		publisher.Start()
		sess.Subscribe(transport.Subscriber(publisher, nil))
		closers = append(closers, publisher.Close)
	}

	if cfg.Transport.LogResults {
		lt := transport.NewLoggingTransport(cfg.Transport.LogInterval)
		sess.Subscribe(transport.Subscriber(lt, nil))
		closers = append(closers, lt.Close)
	}

	if metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		closers = append(closers, func() error {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
		g.Go(func() error {
			log.Infof("serving metrics on %s/metrics", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	// CRITICAL: Start acquires the device; results flow from the first tick.
	if err := sess.Start(); err != nil {
		return abort(stop, g, closers, err)
	}

	g.Go(func() error {
		return sess.Run(gctx)
	})

	var program *tea.Program
	if cfg.TUIMode {
		feed := tui.NewFeed()
		sess.Subscribe(feed.Push)
		closers = append(closers, func() error { feed.Close(); return nil })

		program = tea.NewProgram(tui.NewMonitor(sess, feed.Results(), sourceName(cfg)), tea.WithAltScreen())
		g.Go(func() error {
			_, err := program.Run()
			stop() // quitting the monitor ends the run
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("monitor: %w", err)
			}
			return nil
		})
	} else {
		fmt.Printf("Analysing %s. Press Ctrl+C to stop, '%s --help' for usage information.\n", sourceName(cfg), info.Name)
	}

	// ==================== SHUTDOWN PHASE ====================

	g.Go(func() error {
		<-gctx.Done()
		if err := sess.Stop(); err != nil {
			log.Warnf("stop session: %v", err)
		}
		if program != nil {
			program.Quit()
		}
		closeAll(closers)
		return nil
	})

	return g.Wait()
}

// abort unwinds a run that failed before the session started: it cancels
// the group, closes what was already opened and waits for the servers.
func abort(stop context.CancelFunc, g *errgroup.Group, closers []func() error, err error) error {
	stop()
	closeAll(closers)
	_ = g.Wait()
	return err
}

func closeAll(closers []func() error) {
	for _, c := range closers {
		if err := c(); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	}
}

func sourceName(cfg *config.Config) string {
	if cfg.Audio.Source == config.SourceWAV {
		return cfg.Audio.WAVPath
	}
	if cfg.Audio.InputDevice == config.DefaultDeviceID {
		return "default input"
	}
	return fmt.Sprintf("device %d", cfg.Audio.InputDevice)
}
