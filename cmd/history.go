package cmd

import (
	"fmt"
	"io"
	"path"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gordyrad/green-refactor/internal/ledger"
	"github.com/gordyrad/green-refactor/internal/report"
	"github.com/gordyrad/green-refactor/internal/store"
	"github.com/gordyrad/green-refactor/internal/workspace"
)

var (
	historyLimit  int
	historyFile   string
	historyEdits  bool
	historyExport bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent audits",
	Long: `Lists audits stored in the local SQLite database, newest first.

Use --file to restrict the list to one file, --edits to list the optimized code
applied to files instead, and --export to write a digest report in the
configured --report-format (markdown when exports are disabled).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}

		db, err := store.New(cfg.DBPath)
		if err != nil {
			return &ExitError{Code: 2, Err: fmt.Errorf("opening database: %w", err)}
		}
		defer db.Close()

		ctx := cmd.Context()
		uri := ""
		if historyFile != "" {
			if uri, err = workspace.URIFor(historyFile); err != nil {
				return &ExitError{Code: 3, Err: err}
			}
		}
		out := cmd.OutOrStdout()

		if historyEdits {
			edits, err := db.ListEdits(ctx, uri)
			if err != nil {
				return &ExitError{Code: 2, Err: fmt.Errorf("listing edits: %w", err)}
			}
			printEdits(out, edits)
			return nil
		}

		analyses, err := db.ListAnalyses(ctx, uri, historyLimit)
		if err != nil {
			return &ExitError{Code: 2, Err: fmt.Errorf("listing analyses: %w", err)}
		}

		if historyExport {
			stats, err := ledger.New(db).Snapshot(ctx)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}
			format := cfg.ReportFormat
			if format == "none" {
				format = "markdown"
			}
			gen, err := report.NewGenerator(format, cfg.OutputDir)
			if err != nil {
				return &ExitError{Code: 3, Err: err}
			}
			path, err := gen.GenerateDigest(buildDigest(analyses, stats, time.Now()))
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			fmt.Fprintf(out, "Digest written to: %s\n", path)
			return nil
		}

		printHistory(out, analyses)
		return nil
	},
}

func buildDigest(analyses []*store.Analysis, stats ledger.Stats, now time.Time) *report.Digest {
	d := &report.Digest{Stats: stats, GeneratedAt: now}
	for _, a := range analyses {
		d.Entries = append(d.Entries, report.DigestEntry{
			When:           a.CreatedAt,
			File:           fileName(a.URI),
			Range:          a.Range,
			Model:          a.Model,
			ScoreOriginal:  a.ScoreOriginal,
			ScoreOptimized: a.ScoreOptimized,
			Summary:        a.Summary,
			EstimatedGain:  a.EstimatedGain,
		})
	}
	return d
}

func printHistory(w io.Writer, analyses []*store.Analysis) {
	if len(analyses) == 0 {
		fmt.Fprintln(w, "No audits yet.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tFILE\tRANGE\tSCORE\tCOMPLEXITY\tMODEL\tSUMMARY")
	for _, a := range analyses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d → %d\t%s → %s\t%s\t%s\n",
			a.CreatedAt.Local().Format("2006-01-02 15:04"),
			fileName(a.URI),
			a.Range,
			a.ScoreOriginal, a.ScoreOptimized,
			a.ComplexityBefore, a.ComplexityAfter,
			a.Model,
			truncate(a.Summary, 60),
		)
	}
	tw.Flush()
}

func printEdits(w io.Writer, edits []*store.Edit) {
	if len(edits) == 0 {
		fmt.Fprintln(w, "No edits applied yet.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tFILE\tRANGE\tAUDIT\tBEFORE\tAFTER")
	for _, e := range edits {
		audit := e.AnalysisID
		if audit == "" {
			audit = "-"
		} else if len(audit) > 8 {
			audit = audit[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			fileName(e.URI),
			e.Range,
			audit,
			shortHash(e.BeforeHash),
			shortHash(e.AfterHash),
		)
	}
	tw.Flush()
}

func fileName(uri string) string {
	return path.Base(strings.TrimPrefix(uri, "file://"))
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	f := historyCmd.Flags()
	f.IntVar(&historyLimit, "limit", 20, "Maximum number of audits to list (0 for all)")
	f.StringVar(&historyFile, "file", "", "Only list audits of this file")
	f.BoolVar(&historyEdits, "edits", false, "List applied edits instead of audits")
	f.BoolVar(&historyExport, "export", false, "Write a digest report to --output-dir")

	rootCmd.AddCommand(historyCmd)
}
