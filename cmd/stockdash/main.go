// Command stockdash is a terminal dashboard for a tracked list of stocks.
//
// Without a subcommand it prints usage. "stockdash tui" starts the
// interactive dashboard; the other subcommands script the same backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/google/subcommands"

	"stockdash/internal/config"
	"stockdash/internal/metrics"
	"stockdash/internal/util"
	"stockdash/pkg/stockapi"
)

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "dev"

var configPath = flag.String("config", defaultConfigPath(), "path to the YAML configuration file")

func defaultConfigPath() string {
	if p := os.Getenv("STOCKDASH_CONFIG"); p != "" {
		return p
	}
	return "config/stockdash.yaml"
}

// env bundles what every subcommand needs once the configuration is read.
type env struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	client  *stockapi.Client
	closer  io.Closer
}

// setup loads the configuration and builds the logger and API client.
// Interactive use logs to the rotating file; scripted use logs JSON to stdout.
func setup(toFile bool) (*env, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	e := &env{cfg: cfg, metrics: metrics.New()}
	if toFile {
		logger, closer, err := util.NewFileLogger(cfg.Logging.Level, cfg.Logging.File)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		e.log, e.closer = logger, closer
	} else {
		e.log = util.NewLogger(cfg.Logging.Level)
	}
	util.SetDefault(e.log)

	e.client = stockapi.NewClient(cfg.API.BaseURL,
		stockapi.WithTimeout(cfg.API.Timeout),
		stockapi.WithRetries(cfg.API.Retries),
		stockapi.WithRateLimit(cfg.API.RateLimitPerMin),
		stockapi.WithLogger(e.log),
		stockapi.WithMetrics(e.metrics),
	)
	return e, nil
}

func (e *env) Close() {
	if e.closer != nil {
		e.closer.Close()
	}
}

// startMetrics starts the /metrics listener when an address is configured.
// The returned function stops it.
func (e *env) startMetrics() func() {
	if e.cfg.Metrics.Addr == "" {
		return func() {}
	}
	srv := metrics.NewServer(e.cfg.Metrics.Addr, e.metrics, e.log)
	srv.Start()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			e.log.Warn("stopping metrics server", "error", err)
		}
	}
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&tuiCmd{}, "")
	commander.Register(&listCmd{}, "stocks")
	commander.Register(&addCmd{}, "stocks")
	commander.Register(&removeCmd{}, "stocks")
	commander.Register(&holdCmd{}, "stocks")
	commander.Register(&exportCmd{}, "archive")
	commander.Register(&historyCmd{}, "archive")
	commander.Register(&demoServerCmd{}, "backend")
	commander.Register(&versionCmd{}, "")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
