package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/craftcans/internal/report"
	"github.com/YuminosukeSato/craftcans/internal/store"
	"github.com/YuminosukeSato/craftcans/pkg/errors"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List runs recorded with --store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store.Path == "" {
			return errors.NewValidationError("store.path", "set --store or CRAFTCANS_STORE_PATH", "")
		}
		s, err := store.New(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.ListRuns(historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.RenderRuns(runs))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list, 0 for all")
}
