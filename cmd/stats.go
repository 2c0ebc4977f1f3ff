package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gordyrad/green-refactor/internal/ledger"
	"github.com/gordyrad/green-refactor/internal/store"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the cumulative eco impact",
	Long: `Shows how many audits improved on the original code and the eco-points they
earned. Only audits whose optimized score beats the original score count.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}

		db, err := store.New(cfg.DBPath)
		if err != nil {
			return &ExitError{Code: 2, Err: fmt.Errorf("opening database: %w", err)}
		}
		defer db.Close()

		stats, err := ledger.New(db).Snapshot(cmd.Context())
		if err != nil {
			return &ExitError{Code: 2, Err: err}
		}
		return printStats(cmd.OutOrStdout(), stats, statsJSON)
	},
}

func printStats(w io.Writer, stats ledger.Stats, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintln(w, "Eco impact 🌍")
	fmt.Fprintf(w, "  Optimizations: %d\n", stats.TotalOptimizations)
	fmt.Fprintf(w, "  Eco-Points:    %d\n", stats.TotalPointsGained)
	return nil
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(statsCmd)
}
