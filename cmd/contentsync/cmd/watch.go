package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/contentsync/internal/pipeline"
	"github.com/Aman-CERP/contentsync/internal/telemetry"
	"github.com/Aman-CERP/contentsync/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var metricsAddr string
	var rebuildFirst, forcePolling, verbose bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Synchronize repository changes as they happen",
		Long: `Watch the repository file. Every saved change is diffed against the
previous snapshot, turned into mutation events, debounced, and synchronized.
A file that fails to parse is reported and the previous snapshot is kept.

With --metrics-addr, Prometheus metrics are served on /metrics and pass
progress on /status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dir, err := absDir(projectDir)
			if err != nil {
				return err
			}
			a, err := openApp(ctx, dir, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			runner := newReportingRunner(a, cmd.OutOrStdout(), verbose)
			if rebuildFirst {
				events, err := rebuildEvents(cmd, a, false)
				if err != nil {
					return err
				}
				if _, err := runner.Run(ctx, events); err != nil {
					slog.Error("initial rebuild had failed passes", slog.String("error", err.Error()))
				}
			}

			debounce, _ := a.cfg.DebounceWindow()
			poll, _ := a.cfg.PollInterval()
			svc, err := watcher.NewService(a.cfg.Repository.Path, a.repo, a.cached, runner, watcher.Options{
				DebounceWindow: debounce,
				PollInterval:   poll,
				ForcePolling:   forcePolling,
			})
			if err != nil {
				return err
			}

			if metricsAddr == "" {
				metricsAddr = a.cfg.Watch.MetricsAddr
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (index %s). Press Ctrl+C to stop.\n",
				a.cfg.Repository.Path, a.cfg.Index.Name)

			return serveWatch(ctx, svc, metricsAddr, a.metrics, a.pipe.Progress())
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /status on this address (e.g. :9464)")
	cmd.Flags().BoolVar(&rebuildFirst, "rebuild", false, "Synchronize every node before watching")
	cmd.Flags().BoolVar(&forcePolling, "poll", false, "Poll the file instead of using filesystem notifications")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every pass, not only failures")

	return cmd
}

// serveWatch runs the watch service and, if addr is set, the metrics
// server until ctx is cancelled or either fails.
func serveWatch(ctx context.Context, svc *watcher.Service, addr string, metrics *telemetry.Metrics, progress *pipeline.Progress) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return svc.Run(gctx)
	})

	if addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           newMetricsMux(metrics, progress),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("serving metrics", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// watchStatus is the /status payload.
type watchStatus struct {
	Progress       pipeline.ProgressSnapshot `json:"progress"`
	RecentFailures []telemetry.PassFailure   `json:"recent_failures"`
}

func newMetricsMux(metrics *telemetry.Metrics, progress *pipeline.Progress) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(watchStatus{
			Progress:       progress.Snapshot(),
			RecentFailures: metrics.RecentFailures(),
		})
	})
	return mux
}
