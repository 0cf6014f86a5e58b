package commands

import (
	"context"
	"fmt"
	"log/slog"

	"infojobs-candidatures/lib/telemetry"
	"infojobs-candidatures/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

// set by PersistentPreRunE before any subcommand runs
var (
	config Config
	tel    telemetry.Telemetry
)

var configPath *string
var verbose *bool

var rootCmd = &cobra.Command{
	Use:     "candidatures",
	Short:   "candidatures tracks the status of your InfoJobs applications.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(*verbose)

		var err error
		config, err = loadConfig(*configPath)
		if err != nil {
			return err
		}
		slog.Debug("loaded config", "data_dir", config.DataDir, "fetcher", config.Fetcher.Kind)

		tel, err = telemetry.Setup(cmd.Context(), "candidatures", config.Telemetry)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return tel.Shutdown(context.WithoutCancel(cmd.Context()))
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "", "Path to the configuration file, defaults to the nearest "+configName+".")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug information.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		serviceutil.Fatal("candidatures failed", err)
	}
}
