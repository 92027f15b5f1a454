package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/visionegg/visionegg-sub000/internal/config"
	"github.com/visionegg/visionegg-sub000/internal/message"
	"github.com/visionegg/visionegg-sub000/internal/param"
	"github.com/visionegg/visionegg-sub000/internal/presentation"
	"github.com/visionegg/visionegg-sub000/internal/remote"
	"github.com/visionegg/visionegg-sub000/internal/stimulus"
	"github.com/visionegg/visionegg-sub000/internal/timing"
	"github.com/visionegg/visionegg-sub000/internal/triallog"
)

// #region main
func main() {
	configPath := flag.String("config", envOr("STIM_CONFIG", ""), "path to YAML configuration (defaults when empty)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.Log, *debug)
	slog.SetDefault(logger)
	threshold, err := message.ParseLevel(strings.ToUpper(cfg.Log.Level))
	if err != nil {
		slog.Warn("unknown log level, using info", "level", cfg.Log.Level)
		threshold = message.Info
	}
	sink := message.NewLogger(logger, threshold)

	slog.Info("starting stimd",
		"instance_id", cfg.InstanceID,
		"config", *configPath,
		"refresh_hz", cfg.Monitor.RefreshHz,
		"db", cfg.DBPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := run(ctx, cancel, cfg, sink); err != nil {
		slog.Error("stimd stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("stimd stopped")
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug || strings.EqualFold(cfg.Level, "trivial") {
		opts.Level = slog.LevelDebug
	}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// #endregion main

// #region run
// run wires storage, the display loop and the control transports, then drives
// the display on the calling goroutine until ctx is done.
func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, sink message.Sink) error {
	store, err := triallog.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open trial log: %w", err)
	}
	defer store.Close()

	stim, err := stimulus.NewGrating(nil)
	if err != nil {
		return err
	}

	var clock presentation.Clock = presentation.WallClock{}
	if cfg.Monitor.LockTimeToFrames {
		clock = presentation.NewFixedRateClock(cfg.Monitor.RefreshHz, 0)
	}
	retrace := time.NewTicker(time.Duration(float64(time.Second) / cfg.Monitor.RefreshHz))
	defer retrace.Stop()

	screen := &headlessScreen{}
	reg := remote.NewRegistry()
	trig := remote.NewTrigger()

	var reports *remote.MQTTHandler
	p, err := presentation.New(presentation.Options{
		Viewports: []presentation.Viewport{&gratingViewport{screen: screen, target: stim, clock: clock}},
		Swapper:   presentation.SwapFunc(func() { <-retrace.C }),
		Clock:     clock,
		Sink:      sink,
		Timing: timing.Config{
			RefreshHz:          cfg.Monitor.RefreshHz,
			ImplausibleFPS:     cfg.Timing.ImplausibleFPS,
			Tolerance:          cfg.Timing.Tolerance,
			LongestFrameFactor: cfg.Timing.LongestFrameFactor,
		},
		Overrides: map[string]param.Value{
			presentation.FieldDuration:      param.Float(cfg.Trial.Duration),
			presentation.FieldDurationUnit:  param.String(cfg.Trial.DurationUnit),
			presentation.FieldCollectTiming: param.Bool(cfg.Trial.CollectTiming),
		},
		OnTrialEnd: func(rep *presentation.TrialReport) {
			rec, err := store.RecordTrial(triallog.NewTrialRecord(*rep))
			if err != nil {
				slog.Error("failed to record trial", "error", err)
				return
			}
			slog.Info("trial finished",
				"trial_id", rec.TrialID,
				"frames", rep.Frames,
				"elapsed_sec", rep.Elapsed,
				"measured_fps", rep.MeasuredFPS,
				"anomalies", len(rep.Anomalies),
			)
			if reports != nil {
				// queued; the render loop never waits on the broker
				if err := reports.Publish(cfg.MQTT.Topics.Reports, map[string]any{
					"trial_id": rec.TrialID,
					"report":   rep,
				}); err != nil {
					slog.Warn("failed to publish trial report", "error", err)
				}
			}
		},
	})
	if err != nil {
		return err
	}

	if _, err := stimulus.Expose(reg, p, stim); err != nil {
		return err
	}
	if err := p.Bind(p.Parameters(), presentation.FieldEnterGoLoop, trig); err != nil {
		return fmt.Errorf("bind go trigger: %w", err)
	}
	reg.OnSwap(func(ev remote.SwapEvent) {
		if err := store.LogSwap(triallog.NewSwapEntry(ev)); err != nil {
			slog.Error("failed to log swap", "name", ev.Name, "error", err)
		}
		slog.Info("controller swap", "name", ev.Name, "origin", ev.Origin, "accepted", ev.Accepted, "reason", ev.Reason)
	})

	if cfg.Remote.TCPAddr != "" {
		srv := remote.NewTCPServer(reg, remote.TCPOptions{
			Trigger:      trig,
			OnQuit:       cancel,
			Sink:         sink,
			CommandRate:  cfg.Remote.CommandRate,
			CommandBurst: cfg.Remote.CommandBurst,
		})
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Remote.TCPAddr); err != nil {
				slog.Error("tcp control server failed", "addr", cfg.Remote.TCPAddr, "error", err)
				cancel()
			}
		}()
		slog.Info("tcp control server listening", "addr", cfg.Remote.TCPAddr)
	}

	if cfg.Remote.GRPCAddr != "" {
		ln, err := net.Listen("tcp", cfg.Remote.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Remote.GRPCAddr, err)
		}
		gs := grpc.NewServer()
		remote.RegisterControlServer(gs, remote.NewRPCServer(reg, trig))
		go func() {
			if err := gs.Serve(ln); err != nil {
				slog.Error("grpc control server failed", "error", err)
			}
		}()
		defer gs.GracefulStop()
		slog.Info("grpc control server listening", "addr", cfg.Remote.GRPCAddr)
	}

	if cfg.MQTT.Enabled {
		clientID := fmt.Sprintf("stimd-%s-%s", cfg.InstanceID, uuid.New().String()[:8])
		client, err := remote.ConnectMQTT(cfg.MQTT.Broker, clientID, 10*time.Second)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		h := remote.NewMQTTHandler(client, reg, trig, remote.MQTTOptions{
			ControlTopic:  cfg.MQTT.Topics.Control,
			ResponseTopic: cfg.MQTT.Topics.Responses,
			QoS:           cfg.MQTT.QoS,
		})
		if err := h.Start(ctx); err != nil {
			return err
		}
		defer h.Stop()
		reports = h
	}

	slog.Info("stimulus ready", "names", reg.Names(), "duration", p.Duration().String())
	return p.RunForever(ctx)
}

// #endregion run

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
