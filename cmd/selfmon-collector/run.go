package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dreschagin/vrops-selfmon/internal/bootstrap"
)

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	var inputs bootstrap.Inputs

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single metric collection",
		Long: `Run one collection: acquire a token, check the cluster state, collect every
service in the object list, export the per-node reports and release the token.

Example:
  selfmon-collector run -c credentials.json -o object_list.json -r ./reports
  selfmon-collector run -c credentials.json -o object_list.json -r ./reports --window 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollection(cmd, inputs)
		},
	}

	addInputFlags(cmd, &inputs)

	return cmd
}

func runCollection(cmd *cobra.Command, inputs bootstrap.Inputs) error {
	cfg, log, err := loadConfig(inputs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log, inputs, bootstrap.ModeRun)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	summary, err := app.RunOnce(ctx)
	if err != nil {
		// the runner and the run itself already logged the cause
		return errRunFailed
	}

	log.Debug("Run finished", "run_id", summary.RunID, "seconds", formatSeconds(summary.Duration()))
	return nil
}
