package commands

import (
	"context"
	"errors"
	"time"

	"infojobs-candidatures/lib/chrono"
	"infojobs-candidatures/lib/telemetry"

	"github.com/spf13/cobra"
)

var watchSchedule *string
var watchDelay *float64

func init() {
	watchSchedule = watchCmd.Flags().String("schedule", "", "Cron spec of the refreshes, defaults to watch.schedule or \""+defaultWatch+"\".")
	watchDelay = watchCmd.Flags().Float64("delay", defaultDelay.Seconds(), "Seconds to wait after every page fetch.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch [--schedule <spec>] [--delay <seconds>]",
	Short: "Refreshes on a schedule until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		api := telemetry.NewScopedAPI("watch", telemetry.SlogAPI{})

		schedule := config.Watch.Schedule
		if *watchSchedule != "" {
			schedule = *watchSchedule
		}
		opts := refreshOptions{
			force:       true,
			fetcherKind: config.Fetcher.Kind,
			delay:       config.delay(),
			out:         cmd.OutOrStdout(),
		}
		if cmd.Flags().Changed("delay") {
			opts.delay = time.Duration(*watchDelay * float64(time.Second))
		}

		run := func() {
			_, err := refresh(ctx, opts)
			if err != nil && ctx.Err() == nil {
				api.ReportBroken("refresh", err)
			}
		}

		telemetry.InstrumentPerfStats(ctx, 15*time.Second)

		cronner := chrono.NewStandardCron(api)
		err := cronner.CronNow(schedule, run)
		if err != nil {
			<-cronner.Stop()
			return err
		}
		api.ReportDebug("watching", telemetry.KV{Key: "schedule", Value: schedule})

		<-ctx.Done()
		stopped := cronner.Stop()
		select {
		case <-stopped:
		case <-time.After(time.Minute):
		}
		return ignoreCancel(ctx.Err())
	},
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
