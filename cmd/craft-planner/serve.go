package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rsned/craft-market-planner/internal/crafting/db"
	"github.com/rsned/craft-market-planner/internal/crafting/mcp"
)

// snapshotRetention is how long listing snapshots are kept for the stale
// fallback.
const snapshotRetention = 7 * 24 * time.Hour

func newServeCommand() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Serve the planner tools over the Model Context Protocol on stdin/stdout.

Examples:
  craft-planner serve
  craft-planner serve --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "",
		"Address for the Prometheus /metrics endpoint (overrides metrics.addr)")

	return cmd
}

func runServe(ctx context.Context, metricsAddr string) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if n, err := a.blacklist.PruneExpired(ctx, time.Now()); err != nil {
		a.logger.Warn("failed to prune blacklist", "error", err)
	} else if n > 0 {
		a.logger.Info("pruned expired blacklist entries", "count", n)
	}
	if n, err := db.NewMarketStore(a.db).PruneSnapshots(ctx, snapshotRetention); err != nil {
		a.logger.Warn("failed to prune snapshots", "error", err)
	} else if n > 0 {
		a.logger.Info("pruned old listing snapshots", "count", n)
	}

	if metricsAddr == "" {
		metricsAddr = a.cfg.Metrics.Addr
	}
	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsMux(a),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("metrics endpoint listening", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics endpoint failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	server := mcp.NewServer(a.engine, a.logger,
		mcp.WithBlacklist(a.blacklist, a.cfg.Shopping.BlacklistDuration),
	)

	a.logger.Info("starting MCP server", "db", a.cfg.Database.Path, "data_center", a.cfg.Shopping.HomeDataCenter)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

func metricsMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return mux
}
