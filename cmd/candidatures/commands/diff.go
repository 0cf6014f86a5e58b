package commands

import (
	"errors"
	"fmt"
	"os"

	"infojobs-candidatures/lib/candidature"
	"infojobs-candidatures/lib/report"
	"infojobs-candidatures/lib/snapshotstore"

	"github.com/spf13/cobra"
)

var diffRuns *bool

func init() {
	diffRuns = diffCmd.Flags().Bool("runs", false, "List the runs kept by the sql snapshot store.")
	rootCmd.AddCommand(diffCmd)
}

var diffCmd = &cobra.Command{
	Use:   "diff <older-results.json | run-id>",
	Short: "Lists what changed between an older result set and the stored one.",
	Long: `Lists what changed between an older result set and the stored one.

The older result set is a results.json file, or the id of a past run when
the sql snapshot store is used (see "candidatures diff --runs").`,
	Args: func(cmd *cobra.Command, args []string) error {
		if *diffRuns {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		if *diffRuns {
			return printRuns(cmd, store)
		}

		older, err := loadOlder(cmd, store, args[0])
		if err != nil {
			return err
		}
		current, ok, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			return errNoResults
		}
		return report.Changes(cmd.OutOrStdout(), candidature.Diff(older, current))
	},
}

func loadOlder(cmd *cobra.Command, store snapshotstore.Store, ref string) ([]candidature.Candidature, error) {
	buff, err := os.ReadFile(ref)
	if err == nil {
		return snapshotstore.DecodeJSON(buff)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	sqlStore, ok := store.(*snapshotstore.SQL)
	if !ok {
		return nil, fmt.Errorf("%s does not exist", ref)
	}
	set, err := sqlStore.LoadRun(cmd.Context(), ref)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%s is neither a file nor a run with results", ref)
	}
	return set, nil
}

func printRuns(cmd *cobra.Command, store snapshotstore.Store) error {
	sqlStore, ok := store.(*snapshotstore.SQL)
	if !ok {
		return fmt.Errorf("only the sql snapshot store keeps past runs")
	}
	runs, err := sqlStore.Runs(cmd.Context())
	if err != nil {
		return err
	}
	for _, run := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d candidatures\n", run.ID, run.SavedAt.Format("2006-01-02 15:04"), run.Count)
	}
	return nil
}
