package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/picomind/pkg/heartbeat"
	"github.com/sipeed/picomind/pkg/logger"
	"github.com/sipeed/picomind/pkg/monitor"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled consolidation, the memory monitor and the metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				return runServe(cmd.Context(), a, cmd.OutOrStdout())
			})
		},
	}
}

// consolidateAndSave is the scheduled maintenance job.
func (a *app) consolidateAndSave() error {
	evicted := a.store.Consolidate()
	if err := a.save(); err != nil {
		return err
	}
	logger.InfoCF("cli", "Scheduled consolidation complete", map[string]interface{}{
		"evicted":   evicted,
		"remaining": a.store.Len(),
	})
	return nil
}

func metricsMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
	})
	return mux
}

// runServe blocks until ctx is cancelled, then saves the store once more.
func runServe(ctx context.Context, a *app, w io.Writer) error {
	hb := heartbeat.NewHeartbeatService(a.cfg.Consolidation.Schedule, a.cfg.Consolidation.Enabled)
	hb.SetOnTick(a.consolidateAndSave)
	switch err := hb.Start(); {
	case errors.Is(err, heartbeat.ErrDisabled):
		fmt.Fprintln(w, "Scheduled consolidation disabled")
	case err != nil:
		return err
	default:
		defer hb.Stop()
		if next, err := hb.NextRun(); err == nil {
			fmt.Fprintf(w, "Consolidation scheduled %q, next run %s\n", hb.Schedule(), next.Format(time.RFC3339))
		}
	}

	if a.cfg.Monitor.Enabled {
		watcher, err := monitor.New(a.cfg.MemoryDir(), func(c monitor.Change) {
			logger.InfoCF("cli", "Memory directory changed", map[string]interface{}{
				"path": c.Path,
				"op":   c.Op,
			})
		})
		if err != nil {
			return err
		}
		defer watcher.Close()
		go watcher.Run(ctx)
		fmt.Fprintf(w, "Monitoring %s\n", a.cfg.MemoryDir())
	}

	if a.cfg.Metrics.Enabled {
		srv := &http.Server{
			Addr:              a.cfg.Metrics.Addr,
			Handler:           metricsMux(a),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.ErrorCF("cli", "Metrics server failed", map[string]interface{}{"error": err.Error()})
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(w, "Metrics on http://%s/metrics\n", a.cfg.Metrics.Addr)
	}

	<-ctx.Done()
	logger.InfoC("cli", "Shutting down")
	return a.save()
}
