package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dreschagin/vrops-selfmon/internal/bootstrap"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var inputs bootstrap.Inputs

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Collect on a schedule and serve the run API",
		Long: `Collect every SCHEDULE_INTERVAL (first run immediately) and serve:

Endpoints:
  /healthz, /readyz       Probes
  /metrics                Prometheus metrics
  /ws                     Live run events
  /api/v1/runs/latest     Last run summary
  /api/v1/runs/status     Scheduler status
  POST /api/v1/runs       Trigger a run
  /api/v1/series          Archived samples of one metric
  /api/v1/reports         Uploaded report files

Example:
  selfmon-collector serve -c credentials.json -o object_list.json -r ./reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(inputs)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("Starting vROps self-monitoring collector", "interval", cfg.Schedule.Interval.String())

			app, err := bootstrap.New(ctx, cfg, log, inputs, bootstrap.ModeServe)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			return app.Serve(ctx)
		},
	}

	addInputFlags(cmd, &inputs)

	return cmd
}
