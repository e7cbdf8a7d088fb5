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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chideracloud/blue-green-deployment/internal/accesslog"
	"github.com/chideracloud/blue-green-deployment/internal/alerting"
	"github.com/chideracloud/blue-green-deployment/internal/api"
	"github.com/chideracloud/blue-green-deployment/internal/config"
	"github.com/chideracloud/blue-green-deployment/internal/events"
	"github.com/chideracloud/blue-green-deployment/internal/history"
	"github.com/chideracloud/blue-green-deployment/internal/metrics"
	"github.com/chideracloud/blue-green-deployment/internal/stream"
	"github.com/chideracloud/blue-green-deployment/internal/tail"
)

// wsAlert is the payload pushed to websocket subscribers for each
// resolved alert.
type wsAlert struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Pool    string `json:"pool"`
	Message string `json:"message"`
	Outcome string `json:"outcome"`
	At      string `json:"at"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	format := accesslog.DefaultFormat()
	if cfg.FormatFile != "" {
		format, err = accesslog.LoadFormat(cfg.FormatFile)
		if err != nil {
			slog.Error("failed to load log format", "error", err, "path", cfg.FormatFile)
			os.Exit(1)
		}
	}
	parser := accesslog.NewParser(format)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	sender := alerting.NewSlackSender(alerting.SlackConfig{
		WebhookURL: cfg.WebhookURL,
		Timeout:    cfg.WebhookTimeout,
	})
	if !sender.Configured() {
		slog.Warn("SLACK_WEBHOOK_URL not set, alerts will only be logged")
	}
	if cfg.Maintenance {
		slog.Warn("maintenance mode active, alerts are suppressed")
	}

	var journal *history.Journal
	if cfg.HistoryDSN != "" {
		journal, err = history.Open(cfg.HistoryDSN)
		if err != nil {
			slog.Warn("failed to open alert journal, continuing without history", "error", err)
			journal = nil
		} else if err := journal.Migrate(); err != nil {
			slog.Warn("failed to migrate alert journal, continuing without history", "error", err)
			journal.Close()
			journal = nil
		}
	}

	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.NewPublisher(cfg.NATSURL, "bluegreen-watcher")
		if err != nil {
			slog.Warn("failed to connect to NATS, continuing without event publishing", "error", err)
			publisher = nil
		} else {
			slog.Info("connected to NATS", "url", cfg.NATSURL)
		}
	}

	hub := stream.NewHub()

	// Each resolved delivery fans out to the journal, the event stream,
	// and the live websocket feed.
	onResult := func(ev alerting.Event, deliveryErr error) {
		outcome := history.OutcomeSent
		if deliveryErr != nil {
			outcome = history.OutcomeDeliveryFailed
			m.DeliveryFailures.Inc()
		}
		if journal != nil {
			if err := journal.Record(ev, outcome); err != nil {
				slog.Error("failed to journal alert", "error", err, "id", ev.ID)
			}
		}
		if publisher != nil {
			publisher.PublishAlert(ev, outcome)
		}
		hub.Broadcast(wsAlert{
			ID:      ev.ID,
			Kind:    string(ev.Kind),
			Pool:    string(ev.Pool),
			Message: ev.Text(),
			Outcome: outcome,
			At:      ev.At.UTC().Format(time.RFC3339),
		})
	}

	disp := alerting.NewDispatcher(alerting.DispatcherConfig{
		Cooldown:    cfg.AlertCooldown,
		Maintenance: cfg.Maintenance,
		Retries:     cfg.WebhookRetries,
	}, sender, onResult)

	emit := func(ev alerting.Event) bool {
		ok := disp.Dispatch(ev)
		if ok {
			m.AlertsDispatched.WithLabelValues(string(ev.Kind), string(ev.Pool)).Inc()
		} else {
			m.AlertsSuppressed.Inc()
		}
		return ok
	}

	failover := alerting.NewFailoverDetector(cfg.PrimaryPool, emit)
	errRate := alerting.NewErrorRateDetector(alerting.ErrorRateConfig{
		WindowSize: cfg.WindowSize,
		Threshold:  cfg.ErrorRateThreshold,
		Cooldown:   cfg.AlertCooldown,
	}, emit)

	handleLine := func(line string) {
		m.LinesRead.Inc()
		rec, ok := parser.Parse(line)
		if !ok {
			m.ParseSkips.Inc()
			slog.Debug("skipping unparseable line", "line", line)
			return
		}
		if rec.ServerError() {
			m.ServerErrors.Inc()
		}
		if rec.RequestTime > 0 {
			m.RequestDurationSec.Observe(rec.RequestTime)
		}
		failover.Observe(rec)
		errRate.Observe(rec)
	}

	apiHandler := api.NewHandler(api.Config{
		JWTSecret:   cfg.JWTSecret,
		PrimaryPool: cfg.PrimaryPool,
		Maintenance: cfg.Maintenance,
		WebhookSet:  sender.Configured(),
	}, failover, errRate, journal, hub)

	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		slog.Info("watcher API listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tailer := tail.New(tail.Config{
		Path:         cfg.LogPath,
		PollInterval: cfg.PollInterval,
		OpenRetries:  cfg.LogOpenRetries,
		Offset:       -1,
	})
	tailDone := make(chan error, 1)
	go func() {
		tailDone <- tailer.Run(ctx, handleLine)
	}()

	apiHandler.SetReady(true)
	slog.Info("watching access log",
		"path", cfg.LogPath,
		"primary_pool", cfg.PrimaryPool,
		"window_size", cfg.WindowSize,
		"threshold", cfg.ErrorRateThreshold)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-tailDone:
		if err != nil {
			slog.Error("tailer failed", "error", err)
			exitCode = 1
		} else {
			slog.Info("tailer stopped")
		}
	}

	apiHandler.SetReady(false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := disp.Shutdown(shutdownCtx); err != nil {
		slog.Warn("abandoned queued alerts on shutdown", "error", err)
	}
	if journal != nil {
		journal.Close()
	}
	if publisher != nil {
		publisher.Close()
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
