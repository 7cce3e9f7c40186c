package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/sweep"
	"github.com/AntonStoeckl/library-circulation/httpapi"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
	requestTimeout    = 30 * time.Second

	logMsgListening      = "http server listening"
	logMsgShuttingDown   = "shutting down"
	logMsgSchedulerOff   = "daily sweep disabled, run the sweep command from cron instead"
	logMsgSweepScheduled = "daily sweep enabled"
	logAttrAddr          = "addr"
	logAttrSweepAt       = "sweep_at"
	logAttrCORSOrigins   = "cors_origins"
)

func newServeCommand(envFile *string) *cobra.Command {
	var (
		noScheduler     bool
		allowedOrigins  []string
		idempotencySize int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the daily sweep",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime(ctx, *envFile, true)
			if err != nil {
				return err
			}

			defer func() { _ = rt.close() }()

			handlers, err := rt.handlers()
			if err != nil {
				return err
			}

			router, err := httpapi.NewRouter(handlers,
				httpapi.WithLogger(rt.logger),
				httpapi.WithAllowedOrigins(allowedOrigins...),
				httpapi.WithIdempotencyCacheSize(idempotencySize),
				httpapi.WithRequestTimeout(requestTimeout),
			)
			if err != nil {
				return err
			}

			var scheduler dailySweep

			if noScheduler {
				rt.logger.Info(logMsgSchedulerOff)
			} else {
				fines, holds, sweepErr := rt.sweepers()
				if sweepErr != nil {
					return sweepErr
				}

				runner, sweepErr := sweep.NewRunner(fines, holds,
					sweep.WithLogger(rt.logger),
					sweep.WithTimeOfDay(rt.cfg.SweepAt),
				)
				if sweepErr != nil {
					return sweepErr
				}

				rt.logger.Info(logMsgSweepScheduled, logAttrSweepAt, rt.cfg.SweepAt.String())
				scheduler = runner
			}

			server := &http.Server{
				Addr:              rt.cfg.HTTPAddr,
				Handler:           router,
				ReadHeaderTimeout: readHeaderTimeout,
			}

			rt.logger.Info(logMsgListening, logAttrAddr, server.Addr, logAttrCORSOrigins, allowedOrigins)

			return serveUntilDone(ctx, server, scheduler, rt.logger)
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run the daily sweep in this process")
	cmd.Flags().StringSliceVar(&allowedOrigins, "cors-origin", nil, "origins allowed to call the API from a browser")
	cmd.Flags().IntVar(&idempotencySize, "idempotency-cache-size", 4096, "number of Idempotency-Key responses to remember")

	return cmd
}

type dailySweep interface {
	Run(ctx context.Context) error
}

// serveUntilDone runs the server and, when scheduler is not nil, the daily sweep until ctx ends
// or one of them fails. It returns after the server has shut down.
func serveUntilDone(ctx context.Context, server *http.Server, scheduler dailySweep, logger circulation.Logger) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if serveErr := server.ListenAndServe(); !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(logMsgShuttingDown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if scheduler != nil {
		group.Go(func() error {
			return scheduler.Run(groupCtx)
		})
	}

	return group.Wait()
}
