// Command snmpcollector is the orchestrator process: it reconciles the
// inventory CSV and server config YAML into scheduled poll jobs, runs the
// poll → decode → translate → enrich → publish pipeline, and serves until
// interrupted (SIGINT / SIGTERM).
//
// Usage:
//
//	snmpcollector [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/app"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/config"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/poller"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "snmpcollector: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		logLevel string
		logFmt   string
		collID   string
		workers  int
		bufSize  int

		inventoryPath string
		configPath    string

		refreshInterval int
		realtimeFreq    int
		matchingFreq    int
		onetimeFreq     int

		eventIndex  string
		metricIndex string
		metaIndex   string

		translatorURL     string
		translatorTimeout int
		eventsGatewayURL  string
		metricsGatewayURL string

		enumOn    bool
		counterOn bool

		poolMaxIdle int
		poolIdleSec int
	)

	flag.StringVar(&logLevel, "loglevel", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFmt, "log.fmt", "json", "Log format: json, text")
	flag.StringVar(&collID, "collector.id", "", "Collector instance ID (default: hostname)")
	flag.IntVar(&workers, "poller.workers", 500, "Number of concurrent poller workers")
	flag.IntVar(&bufSize, "pipeline.buffer.size", 10000, "Inter-stage channel buffer size")

	flag.StringVar(&inventoryPath, "inventory", envOr("INVENTORY_PATH", "/etc/snmp_collector/inventory.csv"), "Path to the inventory CSV")
	flag.StringVar(&configPath, "config", envOr("CONFIG_PATH", "/etc/snmp_collector/config.yaml"), "Path to the server config YAML")

	flag.IntVar(&refreshInterval, "refresh_interval", 60, "Seconds between reconcile_inventory passes")
	flag.IntVar(&realtimeFreq, "realtime_task_frequency", 30, "Seconds between liveness checks")
	flag.IntVar(&matchingFreq, "matching_task_frequency", 15, "Seconds between dynamic profile-matching passes")
	flag.IntVar(&onetimeFreq, "onetime_task_frequency", 1, "Minutes between pending one-time walk drains")

	flag.StringVar(&eventIndex, "event_index", "netops", "Destination index for events")
	flag.StringVar(&metricIndex, "metric_index", "em_metrics", "Destination index for metrics")
	flag.StringVar(&metaIndex, "meta_index", "", "Destination index for meta events (default: event_index)")

	flag.StringVar(&translatorURL, "translator.url", envOr("MIBS_SERVER_URL", ""), "Translation service base URL")
	flag.IntVar(&translatorTimeout, "translator.timeout", 3, "Per-attempt translator HTTP timeout in seconds (1-5)")
	flag.StringVar(&eventsGatewayURL, "gateway.events.url", envOr("OTEL_SERVER_LOGS_URL", ""), "Events ingest gateway URL")
	flag.StringVar(&metricsGatewayURL, "gateway.metrics.url", envOr("OTEL_SERVER_METRICS_URL", ""), "Metrics ingest gateway URL")

	flag.BoolVar(&enumOn, "processor.enum.enable", false, "Enable enum resolution")
	flag.BoolVar(&counterOn, "processor.counter.delta", false, "Enable counter delta computation")

	flag.IntVar(&poolMaxIdle, "snmp.pool.max.idle", 2, "Max idle connections per device")
	flag.IntVar(&poolIdleSec, "snmp.pool.idle.timeout", 30, "Idle connection timeout in seconds")

	flag.Parse()

	logger, err := buildLogger(logLevel, logFmt)
	if err != nil {
		return err
	}

	if translatorTimeout < 1 || translatorTimeout > 5 {
		return fmt.Errorf("-translator.timeout must be in [1, 5], got %d", translatorTimeout)
	}
	if metaIndex == "" {
		metaIndex = eventIndex
	}

	cfg := app.Config{
		ConfigPaths: config.Paths{
			Inventory: inventoryPath,
			Server:    configPath,
			Enums:     envOr("PROCESSOR_SNMP_ENUM_DEFINITIONS_DIRECTORY_PATH", "/etc/snmp_collector/snmp/enums"),
		},
		CollectorID:            collID,
		PollerWorkers:          workers,
		BufferSize:             bufSize,
		EnumEnabled:            enumOn,
		CounterDeltaEnabled:    counterOn,
		EventIndex:             eventIndex,
		MetricIndex:            metricIndex,
		MetaIndex:              metaIndex,
		TranslatorURL:          translatorURL,
		TranslatorTimeout:      time.Duration(translatorTimeout) * time.Second,
		EventsGatewayURL:       eventsGatewayURL,
		MetricsGatewayURL:      metricsGatewayURL,
		RefreshIntervalSeconds: refreshInterval,
		RealtimeTaskFrequency:  time.Duration(realtimeFreq) * time.Second,
		MatchingTaskFrequency:  time.Duration(matchingFreq) * time.Second,
		OnetimeTaskFrequency:   time.Duration(onetimeFreq) * time.Minute,
		PoolOptions: poller.PoolOptions{
			MaxIdlePerDevice: poolMaxIdle,
			IdleTimeout:      time.Duration(poolIdleSec) * time.Second,
		},
	}

	application := app.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	logger.Info("snmpcollector: running — press Ctrl-C to stop")

	<-ctx.Done()
	logger.Info("snmpcollector: received shutdown signal")

	application.Stop()
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}

	return slog.New(handler), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
