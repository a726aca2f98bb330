package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/lightning-data-service/internal/adapter/fmi"
	httpadapter "github.com/couchcryptid/lightning-data-service/internal/adapter/http"
	"github.com/couchcryptid/lightning-data-service/internal/observability"
	"github.com/couchcryptid/lightning-data-service/internal/pipeline"
	"github.com/spf13/cobra"
)

func newServeCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll continuously and serve observations over HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := global.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sinks, err := openSinks(ctx, cfg, cfg.StoreEnabled, logger)
			if err != nil {
				return err
			}
			defer sinks.Close(logger)

			metrics := observability.NewMetrics()
			client := fmi.NewClient(cfg.FMIBaseURL, cfg.FetchTimeout, metrics, logger)
			p := pipeline.New(client, sinks.sinks, pipelineOptions(cfg), logger, metrics)

			poller := pipeline.NewPoller(p, pipeline.PollerConfig{
				Interval: cfg.PollInterval,
				Lookback: cfg.Lookback,
				Persist:  len(sinks.sinks) > 0,
			}, nil, logger, metrics)

			checks := httpadapter.Checks{poller}
			if sinks.store != nil {
				checks = append(checks, sinks.store)
			}
			srv := httpadapter.NewServer(cfg.HTTPAddr, checks, p, logger)

			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", "error", err)
					stop()
				}
			}()

			pollerDone := make(chan struct{})
			go func() {
				defer close(pollerDone)
				if err := poller.Run(ctx); err != nil {
					logger.Error("poller error", "error", err)
				}
			}()

			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
			select {
			case <-pollerDone:
			case <-shutdownCtx.Done():
				logger.Warn("poller did not stop before shutdown timeout")
			}

			logger.Info("shutdown complete")
			return nil
		},
	}
}
