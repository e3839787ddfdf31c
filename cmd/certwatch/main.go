package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"certwatch/internal/alert"
	"certwatch/internal/config"
	"certwatch/internal/history"
	"certwatch/internal/liveness"
	"certwatch/internal/logger"
	"certwatch/internal/metrics"
	"certwatch/internal/monitor"
	"certwatch/internal/probe"
	"certwatch/internal/registration"
	"certwatch/internal/renderer"
	"certwatch/internal/server"
	"certwatch/internal/targets"
	"certwatch/pkg/models"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	if cfg.App.ShowVersion {
		printVersion(os.Stdout)
		return 0
	}

	// Initialize logger
	log, err := logger.Init(cfg.App.LogLevel, cfg.App.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	list, err := targets.Load(cfg.Scan.TargetsPath)
	if err != nil {
		log.Error("failed to load targets", slog.String("error", err.Error()))
		return 1
	}

	log.Info("application starting",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("build_time", BuildTime),
		slog.String("config", cfg.String()),
		slog.Int("targets", len(list)))

	var resolver probe.Resolver = probe.NewSystemResolver()
	if cfg.Scan.Nameserver != "" {
		resolver = probe.NewDNSResolver(cfg.Scan.Nameserver, cfg.Scan.ProbeTimeout)
	}

	opts := monitor.Options{
		Concurrency:     cfg.Scan.Concurrency,
		LivenessTimeout: cfg.Scan.LivenessTimeout,
	}
	if cfg.Scan.Registration {
		opts.Registration = registration.NewChecker(cfg.Scan.RegistrationTimeout)
	}
	mon := monitor.New(
		probe.NewCoordinator(probe.NewProber(resolver), cfg.Scan.ProbeTimeout),
		liveness.NewChecker(),
		opts,
	)

	collector := metrics.NewCollector()
	runner := &monitor.Runner{
		Monitor:   mon,
		Renderer:  newRenderer(cfg.App.Output),
		Out:       os.Stdout,
		Recipient: cfg.Alert.Recipient,
		Observers: []monitor.Observer{collector},
		Delivered: collector.AlertsDelivered,
	}
	if n := newNotifier(cfg.Alert); n != nil {
		runner.Notifier = n
	}

	var store *history.Store
	if cfg.History.DBPath != "" {
		store, err = history.Open(cfg.History.DBPath)
		if err != nil {
			log.Error("failed to open history database",
				slog.String("path", cfg.History.DBPath),
				slog.String("error", err.Error()))
			return 1
		}
		defer store.Close()
		runner.History = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Enabled() {
		return serve(ctx, cfg, runner, list, collector, store)
	}

	if _, err := runner.Run(ctx, list); err != nil {
		log.Error("scan failed", slog.String("error", err.Error()))
		return 1
	}

	if cfg.Metrics.PushgatewayURL != "" {
		if err := collector.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, cfg.Metrics.PushTimeout); err != nil {
			log.Error("failed to push metrics",
				slog.String("url", cfg.Metrics.PushgatewayURL),
				slog.String("error", err.Error()))
		}
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, runner *monitor.Runner, list []models.Target, collector *metrics.Collector, store *history.Store) int {
	log := logger.Get()

	var hist server.HistoryReader
	if store != nil {
		hist = store
	}
	handler := server.NewHandler(cfg, collector.Handler(), hist)
	defer handler.Close()
	runner.Observers = append(runner.Observers, handler)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.RequestIDMiddleware(server.LoggingMiddleware(handler.Router())),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting http server", slog.String("address", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- runner.Loop(ctx, list, cfg.Server.Interval)
	}()

	code := 0
	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("server failed", slog.String("error", err.Error()))
			code = 1
		}
	case err := <-loopErr:
		if err != nil {
			log.Error("scan loop failed", slog.String("error", err.Error()))
			code = 1
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", slog.String("error", err.Error()))
	}
	return code
}

func newRenderer(output string) renderer.Renderer {
	if output == "json" {
		return renderer.NewJSONRenderer()
	}
	return renderer.NewTextRenderer()
}

// newNotifier combines the configured alert channels, or returns nil when
// none is configured.
func newNotifier(cfg config.AlertConfig) alert.Notifier {
	var channels alert.MultiNotifier
	if cfg.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookToken, cfg.WebhookFormat, cfg.Timeout))
	}
	if email := alert.NewEmailNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, cfg.Timeout); email != nil {
		channels = append(channels, email)
	}

	switch len(channels) {
	case 0:
		return nil
	case 1:
		return channels[0]
	default:
		return channels
	}
}
