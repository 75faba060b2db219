package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/costhound/costhound/telemetry"
	"github.com/costhound/costhound/types"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled scans continuously",
	Long: `Run costhound in daemon mode.

The daemon submits a scheduled scan for every configured account at the
configured interval, executes them through the scan queue, and serves
Prometheus metrics. Shutdown is graceful on SIGTERM/SIGINT: running
scans finish, queued ones stay pending for resubmission.`,
	Example: `  costhound daemon --config costhound.toml`,
	RunE:    runDaemonCmd,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemonCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if len(a.cfg.Daemon.Accounts) == 0 {
		return fmt.Errorf("daemon mode needs at least one account in [daemon] accounts")
	}

	ctx := cmd.Context()
	shutdownOTEL, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    a.cfg.OTEL.ServiceName,
		ServiceVersion: version,
		OTELEndpoint:   a.cfg.OTEL.Endpoint,
		Insecure:       a.cfg.OTEL.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTEL(shutdownCtx)
	}()

	logger := telemetry.NewLogger("daemon")
	logger.Info().
		Str("interval", a.cfg.Daemon.Interval.String()).
		Int("metrics_port", a.cfg.Daemon.MetricsPort).
		Strs("accounts", a.cfg.Daemon.Accounts).
		Msg("daemon starting")

	var g run.Group

	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	// Scan queue workers
	{
		queueCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return a.eng.Queue().Run(queueCtx)
		}, func(error) {
			cancel()
		})
	}

	// Prometheus metrics endpoint
	{
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Daemon.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Add(func() error {
			return server.ListenAndServe()
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		})
	}

	// Interval scheduler
	{
		schedCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return runScheduler(schedCtx, a, logger)
		}, func(error) {
			cancel()
		})
	}

	err = g.Run()

	var sig run.SignalError
	if errors.As(err, &sig) {
		logger.Info().Str("signal", sig.Signal.String()).Msg("daemon stopped")
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// runScheduler submits one scheduled scan per account per tick. A full
// queue is backpressure, not an error: the account is skipped until the
// next tick.
func runScheduler(ctx context.Context, a *app, logger *telemetry.Logger) error {
	submitAll := func() {
		for _, accountID := range a.cfg.Daemon.Accounts {
			job, err := a.eng.CreateScan(ctx, accountID, types.ScanKindScheduled)
			if err != nil {
				logger.WithContext(ctx).Error().
					Str("account_id", accountID).
					Err(err).
					Msg("create scheduled scan failed")
				continue
			}
			handle, err := a.eng.SubmitScan(ctx, job.ID)
			if err != nil {
				logger.WithContext(ctx).Warn().
					Str("account_id", accountID).
					Str("scan_id", job.ID).
					Err(err).
					Msg("submit scheduled scan failed")
				continue
			}
			logger.WithContext(ctx).Info().
				Str("account_id", accountID).
				Str("scan_id", job.ID).
				Str("handle", handle).
				Msg("scheduled scan submitted")
		}
	}

	submitAll()

	ticker := time.NewTicker(a.cfg.Daemon.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			submitAll()
		}
	}
}
