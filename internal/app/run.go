package app

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full walkthrough",
	Long: `Extract the archive, inspect both tables, clean and encode the beers
table, split it, grid-search the pipeline with k-fold cross-validation and
report the best estimator, the CV table, the top feature importances and
the held-out score.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := NewWalkthrough(cfg, cmd.OutOrStdout(), loggers)
		_, err := w.Run(cmd.Context())
		return err
	},
}

func init() {
	addDataFlags(runCmd)
	addModelFlags(runCmd)
	runCmd.Flags().String("plot", "", "write the importance bar chart to this PNG")
	runCmd.Flags().String("model-out", "", "write the fitted best estimator (gob) to this path")
}

func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().String("archive", "", "zip archive holding beers.csv and breweries.csv")
	cmd.Flags().String("data-dir", "", "directory the archive is extracted to")
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("test-size", 0.25, "fraction of rows held out for testing")
	cmd.Flags().Int64("random-state", 42, "seed for the split and the forest")
	cmd.Flags().IntSlice("grid", []int{10, 15, 20}, "n_estimators values to search")
	cmd.Flags().Int("cv", 5, "number of cross-validation folds")
	cmd.Flags().Int("n-jobs", -1, "concurrent fits, -1 for every core")
	cmd.Flags().Int("top-k", 10, "number of feature importances to print")
}
