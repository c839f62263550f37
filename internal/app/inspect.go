package app

import (
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Extract the archive and describe both tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := NewWalkthrough(cfg, cmd.OutOrStdout(), loggers)
		tables, err := w.Load(cmd.Context())
		if err != nil {
			return err
		}
		w.Inspect(tables)
		return nil
	},
}

func init() {
	addDataFlags(inspectCmd)
}
