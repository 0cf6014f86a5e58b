package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"infojobs-candidatures/lib/candidature"
	"infojobs-candidatures/lib/chrono"
	"infojobs-candidatures/lib/notify"
	"infojobs-candidatures/lib/reconcile"
	"infojobs-candidatures/lib/report"
	"infojobs-candidatures/lib/snapshotstore"
	"infojobs-candidatures/lib/telemetry"

	"github.com/spf13/cobra"
)

var refreshForce *bool
var refreshDelay *float64
var refreshFetcher *string
var refreshSort *bool
var refreshNoOpen *bool

func init() {
	refreshForce = refreshCmd.Flags().Bool("force", false, "Ignore past results and generate new ones without asking.")
	refreshDelay = refreshCmd.Flags().Float64("delay", defaultDelay.Seconds(), "Seconds to wait after every page fetch.")
	refreshFetcher = refreshCmd.Flags().String("fetcher", "", "How pages are fetched: browser, http or dir.")
	refreshSort = refreshCmd.Flags().Bool("sort", false, "Open the results sorted by status.")
	refreshNoOpen = refreshCmd.Flags().Bool("no-open", false, "Do not open the results in the browser.")
	rootCmd.AddCommand(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [--force] [--delay <seconds>] [--fetcher browser|http|dir] [--sort]",
	Short: "Crawls your candidatures and updates the stored results.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := refreshOptions{
			force:       *refreshForce,
			fetcherKind: config.Fetcher.Kind,
			delay:       config.delay(),
			prompter:    snapshotstore.NewInputPrompter(os.Stdin, cmd.OutOrStdout()),
			out:         cmd.OutOrStdout(),
		}
		if cmd.Flags().Changed("delay") {
			opts.delay = time.Duration(*refreshDelay * float64(time.Second))
		}
		if *refreshFetcher != "" {
			opts.fetcherKind = *refreshFetcher
		}

		outcome, err := refresh(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if outcome.skipped || *refreshNoOpen {
			return nil
		}
		return openInBrowser(report.PagePath(config.DataDir, candidature.ParseOrder(*refreshSort)))
	},
}

type refreshOptions struct {
	force       bool
	fetcherKind string
	delay       time.Duration
	prompter    snapshotstore.Prompter
	out         io.Writer
}

type refreshOutcome struct {
	skipped bool
	result  reconcile.Result
	changes []candidature.Change
}

// refresh runs one crawl and persists it. Nothing is written unless the
// whole crawl succeeds.
func refresh(ctx context.Context, opts refreshOptions) (refreshOutcome, error) {
	clock := chrono.NewStandardTime()
	api := telemetry.NewScopedAPI("candidatures", telemetry.SlogAPI{})

	store, closeStore, err := openStore(ctx)
	if err != nil {
		return refreshOutcome{}, err
	}
	defer closeStore()

	ok, err := snapshotstore.CanRefresh(ctx, store, clock, opts.prompter, snapshotstore.RefreshOptions{
		Force: opts.force,
		Tel:   api,
	})
	if err != nil {
		return refreshOutcome{}, err
	}
	if !ok {
		fmt.Fprintln(opts.out, "keeping the existing results")
		return refreshOutcome{skipped: true}, nil
	}

	past, _, err := store.Load(ctx)
	if err != nil {
		return refreshOutcome{}, fmt.Errorf("load previous results: %w", err)
	}

	pageFetcher, closeFetcher, err := newFetcher(ctx, opts.fetcherKind)
	if err != nil {
		return refreshOutcome{}, err
	}
	defer closeFetcher()

	reconcileConfig := config.reconcileConfig()
	reconcileConfig.Delay = opts.delay
	engine, err := reconcile.New(reconcileConfig, pageFetcher, api)
	if err != nil {
		return refreshOutcome{}, err
	}

	result, err := engine.Run(ctx, past)
	if err != nil {
		return refreshOutcome{}, fmt.Errorf("refresh candidatures: %w", err)
	}

	err = store.Save(ctx, result.Candidatures)
	if errors.Is(err, snapshotstore.ErrLocked) {
		return refreshOutcome{}, fmt.Errorf("another refresh is saving results, try again later: %w", err)
	}
	if err != nil {
		return refreshOutcome{}, fmt.Errorf("save results: %w", err)
	}

	now := clock.Now()
	changes := candidature.Diff(past, result.Candidatures)
	_, _, err = report.WritePages(config.DataDir, result.Candidatures, changes, now)
	if err != nil {
		return refreshOutcome{}, fmt.Errorf("write report: %w", err)
	}

	slog.Info(
		"refreshed candidatures",
		"candidatures", len(result.Candidatures),
		"list_pages", result.Stats.ListPages,
		"detail_fetches", result.Stats.DetailFetches,
		"reused", result.Stats.Reused,
		"row_errors", result.Stats.RowErrors,
	)
	err = report.Changes(opts.out, changes)
	if err != nil {
		return refreshOutcome{}, err
	}

	if config.Notify.Enabled() {
		err = notify.NewNotifier(config.Notify).Notify(ctx, changes, now)
		if err != nil {
			// results are already saved at this point
			api.ReportWarning("notify", err)
		}
	}

	return refreshOutcome{result: result, changes: changes}, nil
}
