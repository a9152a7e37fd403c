package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded prediction runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the most recent runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Recent(cmd.Context(), viper.GetInt("limit"))
		if err != nil {
			return err
		}
		return printRuns(os.Stdout, runs)
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export runs and passes to Parquet",
	Long: `Write every recorded run and pass to <prefix>.runs.parquet and
<prefix>.passes.parquet.

Example:
  flybyctl history export --history-db flyby.db --prefix ./flyby`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := store.ExportParquet(cmd.Context(), viper.GetString("prefix"))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %d runs to %s\n", res.Runs, res.RunsFile)
		fmt.Fprintf(os.Stdout, "Wrote %d passes to %s\n", res.Passes, res.PassesFile)
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntP("limit", "n", 20, "Number of runs to show")
	historyExportCmd.Flags().String("prefix", "flyby", "Output file prefix")
}

func openHistory() (*history.Store, error) {
	path := viper.GetString("history-db")
	if path == "" {
		return nil, fmt.Errorf("--history-db (or FLYBYCTL_HISTORY_DB) is required")
	}
	return history.Open(path, newLogger())
}
