package commands

import (
	"errors"
	"fmt"
	"os"

	"infojobs-candidatures/lib/candidature"
	"infojobs-candidatures/lib/chrono"
	"infojobs-candidatures/lib/report"

	"github.com/spf13/cobra"
)

var displaySort *bool

func init() {
	displaySort = displayCmd.Flags().Bool("sort", false, "Open the results sorted by status.")
	rootCmd.AddCommand(displayCmd)
}

var displayCmd = &cobra.Command{
	Use:   "display [--sort]",
	Short: "Opens the stored results in your default browser.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := report.PagePath(config.DataDir, candidature.ParseOrder(*displaySort))

		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			// pages are rendered by refresh, a snapshot copied from
			// elsewhere may not have them yet
			set, err := loadSnapshot(cmd)
			if err != nil {
				return err
			}
			_, _, err = report.WritePages(config.DataDir, set, nil, chrono.NewStandardTime().Now())
			if err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		} else if err != nil {
			return err
		}

		return openInBrowser(path)
	},
}

var errNoResults = errors.New("no results yet, run `candidatures refresh` first")

func loadSnapshot(cmd *cobra.Command) ([]candidature.Candidature, error) {
	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer closeStore()

	set, ok, err := store.Load(cmd.Context())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoResults
	}
	return set, nil
}
