package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/depscout/depscout/internal/api"
	"github.com/depscout/depscout/pkg/config"
	"github.com/depscout/depscout/pkg/fetch"
	"github.com/depscout/depscout/pkg/gradle"
	"github.com/depscout/depscout/pkg/pipeline"
	"github.com/depscout/depscout/pkg/scheduler"
)

// shutdownGrace bounds how long in-flight HTTP requests may drain.
const shutdownGrace = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis service",
		Long:  `Serve starts the asynchronous analysis API: POST /analyze submits a job, GET /status/{id} polls it, DELETE /jobs/{id} cancels it.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			settings, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				settings.ListenAddr = listenAddr
			}

			runner, err := pipeline.NewRunner(
				fetch.NewClient(settings.WorkspaceRoot),
				&gradle.Collector{GradlePath: settings.GradlePath},
				settings.PipelineOptions(),
				logger,
			)
			if err != nil {
				return err
			}

			sched := scheduler.New(settings.SchedulerConfig(), runner.Run, logger)
			defer sched.Close()

			svc := api.NewService(sched, logger)
			srv := api.NewServer(settings.ListenAddr, svc.Router(), logger)

			logger.Info("starting service",
				"addr", settings.ListenAddr,
				"cap", settings.ConcurrencyCap,
				"timeout", settings.JobTimeout.Std())

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return err
				}
				return <-errCh
			}
		},
	}

	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "bind address (overrides config)")
	return cmd
}
