package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreschagin/vrops-selfmon/internal/bootstrap"
	"github.com/dreschagin/vrops-selfmon/pkg/config"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

// errRunFailed is returned after a FAILURE run; the cause is already logged.
var errRunFailed = errors.New("metric collection failed")

// NewRootCmd creates the root command with all subcommands.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "selfmon-collector",
		Short: "Collects vRealize Operations self-monitoring metrics",
		Long: `selfmon-collector authenticates against a vROps cluster, checks that the
cluster is ONLINE, collects the self-monitoring metrics listed in the object
list and writes per-node metric and metric-name reports.

Commands:
  run     Single collection run, exit code 1 on FAILURE
  serve   Periodic runs with an HTTP API and a live event stream`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		NewRunCmd(),
		NewServeCmd(),
	)

	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func addInputFlags(cmd *cobra.Command, inputs *bootstrap.Inputs) {
	cmd.Flags().StringVarP(&inputs.CredentialsPath, "credentials", "c", "", "Path to the credentials JSON file")
	cmd.Flags().StringVarP(&inputs.ObjectListPath, "object-list", "o", "", "Path to the object list JSON file")
	cmd.Flags().StringVarP(&inputs.ReportDir, "report-dir", "r", "", "Directory for the exported reports (created when missing)")
	cmd.Flags().DurationVar(&inputs.Window, "window", 0, "Collection window ending now, e.g. 1h (overrides EXPORT_WINDOW)")

	_ = cmd.MarkFlagRequired("credentials")
	_ = cmd.MarkFlagRequired("object-list")
	_ = cmd.MarkFlagRequired("report-dir")
}

func loadConfig(inputs bootstrap.Inputs) (*config.Config, *logger.Logger, error) {
	if inputs.Window < 0 {
		return nil, nil, fmt.Errorf("invalid --window: must not be negative")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, logger.New(cfg.LogLevel), nil
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
