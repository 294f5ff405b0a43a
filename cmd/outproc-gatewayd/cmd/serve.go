package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sentinelgate/outproc-gateway/internal/adapter/outbound/localbroker"
	"github.com/sentinelgate/outproc-gateway/internal/adapter/outbound/pairsocket"
	"github.com/sentinelgate/outproc-gateway/internal/config"
	"github.com/sentinelgate/outproc-gateway/internal/domain/outprocmod"
	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
	"github.com/sentinelgate/outproc-gateway/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Drive the configured remote module through its lifecycle",
	Long: `serve loads the configured module, runs Create -> Start, and keeps
the proxy running until interrupted, at which point it runs Destroy and
exits.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}))
	if path := config.ConfigFileUsed(); path != "" {
		logger.Info("loaded config", "file", path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	reg := prometheus.NewRegistry()
	var metrics outbound.Metrics = telemetry.NewRecorder(telemetry.NewMetrics(reg))
	if cfg.Telemetry.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Telemetry.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
	}

	if cfg.Telemetry.TracingEnabled {
		shutdown, err := telemetry.InitTracing(ctx, "outproc-gatewayd")
		if err != nil {
			logger.Warn("tracing init failed, continuing without tracing", "error", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}

		metricsShutdown, err := telemetry.InitMetricsExport(ctx)
		if err != nil {
			logger.Warn("stdout metrics export init failed, continuing with Prometheus only", "error", err)
		} else {
			defer func() { _ = metricsShutdown(context.Background()) }()
			if rec, ok := metrics.(*telemetry.Recorder); ok {
				if mirrored, err := telemetry.NewMirroredRecorder(rec); err != nil {
					logger.Warn("otel metrics mirror init failed, continuing with Prometheus only", "error", err)
				} else {
					metrics = mirrored
				}
			}
		}
	}

	broker := localbroker.New()

	modCfg := &outprocmod.Config{
		ControlURI:        cfg.Module.ControlURI,
		MessageURI:        cfg.Module.MessageURI,
		ModuleArgs:        cfg.Module.Args,
		LifecycleMode:     parseLifecycleMode(cfg.Module.LifecycleMode),
		RemoteMessageWait: time.Duration(cfg.Module.RemoteMessageWaitMS) * time.Millisecond,
		DestroyRetries:    cfg.Module.DestroyRetries,
		QueueLimit:        cfg.Module.QueueLimit,
	}

	mod, err := outprocmod.Create(ctx, modCfg, broker, transportFactory(), logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create module: %w", err)
	}

	sub, unsubscribe := broker.Subscribe(mod.ID(), 256)
	defer unsubscribe()
	go func() {
		for msg := range sub {
			logger.Debug("published message from module host", "module_id", mod.ID(), "bytes", len(msg.Payload))
		}
	}()

	if err := mod.Start(); err != nil {
		mod.Destroy()
		return fmt.Errorf("failed to start module: %w", err)
	}
	logger.Info("module started", "module_id", mod.ID(), "control_uri", cfg.Module.ControlURI, "message_uri", cfg.Module.MessageURI)

	<-ctx.Done()
	logger.Info("shutting down")
	mod.Destroy()
	logger.Info("outproc-gatewayd stopped")
	return nil
}

func transportFactory() outbound.TransportFactory {
	return func() outbound.Transport { return pairsocket.New() }
}

func parseLifecycleMode(s string) outprocmod.LifecycleMode {
	if s == "async" {
		return outprocmod.Async
	}
	return outprocmod.Sync
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
