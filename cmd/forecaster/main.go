// Package main runs the forecaster: scheduled forecast passes over a store,
// the HTTP API, and one-off forecasts of CSV files.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/sartorproj/revforecast/api"
	"github.com/sartorproj/revforecast/config"
	"github.com/sartorproj/revforecast/pipeline"
	"github.com/sartorproj/revforecast/store"
	"github.com/sartorproj/revforecast/store/mysql"
	"github.com/sartorproj/revforecast/store/sqlite"
	"github.com/sartorproj/revforecast/telemetry"
)

const serviceName = "revforecast"

const usage = `usage: forecaster <command> [flags]

commands:
  run        forecast every stored entity once
  schedule   forecast every stored entity on REVFORECAST_SCHEDULE_INTERVAL
  serve      serve the HTTP API
  csv        forecast every entity in a CSV file
  load       import a CSV file or World Bank indicators into the store`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run", "schedule", "serve":
		return runService(ctx, cmd, rest, cfg, logger, stdout)
	case "csv":
		return runCSV(rest, cfg, logger, stdout)
	case "load":
		return runLoad(ctx, rest, cfg, logger, stdout)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		return mysql.Open(ctx, cfg.MySQLDSN)
	default:
		return sqlite.Open(cfg.SQLitePath)
	}
}

func runService(ctx context.Context, cmd string, args []string, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	withSchedule := fs.Bool("schedule", false, "serve: also run scheduled forecast passes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	shutdown, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	runner := pipeline.New(st, pipeline.Options{
		Horizon:          cfg.Horizon,
		Workers:          cfg.Workers,
		ClampNonNegative: cfg.ClampNonNegative,
		WriteBaseline:    cfg.WriteBaseline,
		Search:           cfg.SearchConfig(),
	}, logger, pipeline.NewMetrics(reg))

	switch cmd {
	case "run":
		summary, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	case "schedule":
		return runner.Schedule(ctx, cfg.ScheduleInterval)
	}

	var scheduled func(context.Context) error
	if *withSchedule {
		scheduled = func(ctx context.Context) error {
			return runner.Schedule(ctx, cfg.ScheduleInterval)
		}
	}
	return serveAPI(ctx, cfg.HTTPAddr, api.NewServer(st, runner, logger, reg).Handler(), logger, scheduled)
}

// serveAPI runs the HTTP server and, when scheduled is set, the scheduler.
// It returns once both have stopped; the first failure stops the other.
func serveAPI(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger, scheduled func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if scheduled != nil {
		g.Go(func() error {
			if err := scheduled(gctx); err != nil {
				return fmt.Errorf("scheduler: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return serve(gctx, addr, handler, logger)
	})
	return g.Wait()
}

func serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}
