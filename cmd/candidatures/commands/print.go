package commands

import (
	"infojobs-candidatures/lib/candidature"
	"infojobs-candidatures/lib/chrono"
	"infojobs-candidatures/lib/report"

	"github.com/spf13/cobra"
)

var printSort *bool
var printMarkdown *bool

func init() {
	printSort = printCmd.Flags().Bool("sort", false, "Sort candidatures by status.")
	printMarkdown = printCmd.Flags().Bool("markdown", false, "Print markdown instead of a table.")
	rootCmd.AddCommand(printCmd)
}

var printCmd = &cobra.Command{
	Use:   "print [--sort] [--markdown]",
	Short: "Prints the stored results.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := loadSnapshot(cmd)
		if err != nil {
			return err
		}
		order := candidature.ParseOrder(*printSort)

		if *printMarkdown {
			page := report.NewPage(set, order, chrono.NewStandardTime().Now())
			return report.Markdown(cmd.OutOrStdout(), page)
		}
		report.Table(cmd.OutOrStdout(), order.Apply(set))
		return nil
	},
}
