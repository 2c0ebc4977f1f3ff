package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gordyrad/green-refactor/internal/notify"
	"github.com/gordyrad/green-refactor/internal/panel"
	"github.com/gordyrad/green-refactor/internal/pipeline"
	"github.com/gordyrad/green-refactor/internal/webview"
)

var (
	analyzeLines string
	analyzeRange string
	analyzeApply bool
	analyzeDiff  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Run an eco audit on a piece of code",
	Long: `Sends the selected code of FILE to the configured LLM and opens the report
panel with the eco scores, complexity, explanation and optimized code.

Select code with --lines (one-based, inclusive, e.g. 10-25) or --range
(one-based line:column pairs, end exclusive, e.g. 10:1-25:3). Without either,
the whole file is analyzed.

In the terminal panel, press d to show a diff, a to apply the optimized code
and q to close. With --ui web the panel is served on --web-addr instead.
--diff and --apply run those actions without prompting.

Exit codes:
  0 - Success
  2 - The model call failed or returned an unusable response
  3 - Precondition or configuration error (no file, empty selection, no API key)
  4 - The optimized code could not be applied`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		interactive := !analyzeApply && !analyzeDiff

		var web *webview.Server
		views := panel.TerminalFactory(out)
		if cfg.UI == "web" && interactive {
			web = webview.New(cfg.WebAddr)
			views = web.Factory()
		}

		p, err := pipeline.New(cfg,
			pipeline.WithNotifier(notify.NewConsole(cmd.ErrOrStderr())),
			pipeline.WithViewFactory(views),
			pipeline.WithDiffOutput(out),
		)
		if err != nil {
			return &ExitError{Code: 2, Err: fmt.Errorf("failed to create pipeline: %w", err)}
		}
		defer p.Close()

		req := pipeline.StartRequest{Lines: analyzeLines, Range: analyzeRange}
		if len(args) > 0 {
			req.Path = args[0]
		}

		startCtx := ctx
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			startCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}

		result, err := p.Start(startCtx, req)
		if err != nil {
			return &ExitError{Code: exitCodeFor(err), Err: err, Reported: true}
		}
		if result.ReportPath != "" {
			fmt.Fprintf(out, "Report written to: %s\n", result.ReportPath)
		}

		ctrl := p.Controller()
		r := result.Rendering

		if analyzeDiff {
			if err := ctrl.Dispatch(ctx, panel.ShowDiff{Render: r.ID, Code: r.Result.OptimizedCode}); err != nil {
				return &ExitError{Code: 1, Err: err, Reported: true}
			}
		}
		if analyzeApply {
			if err := ctrl.Dispatch(ctx, panel.ApplyFix{Render: r.ID, Code: r.Result.OptimizedCode}); err != nil {
				return &ExitError{Code: exitCodeFor(err), Err: err, Reported: true}
			}
		}
		if !interactive {
			ctrl.Dispose()
			return nil
		}

		if web != nil {
			return serveWeb(ctx, web, ctrl, cmd)
		}
		if view, ok := ctrl.View().(*panel.TerminalView); ok {
			if err := view.Run(ctx, cmd.InOrStdin()); err != nil && ctx.Err() == nil {
				return err
			}
		}
		return nil
	},
}

// serveWeb serves the report panel until it is closed or ctx ends.
func serveWeb(ctx context.Context, web *webview.Server, ctrl *panel.Controller, cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := ctrl.Done()
	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()

	return web.ListenAndServe(ctx, func(addr string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Report panel: http://%s/ (Ctrl-C to stop)\n", addr)
	})
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeLines, "lines", "", "Line span to analyze, e.g. 10-25")
	f.StringVar(&analyzeRange, "range", "", "Character range to analyze, e.g. 10:1-25:3")
	f.BoolVar(&analyzeApply, "apply", false, "Apply the optimized code without prompting")
	f.BoolVar(&analyzeDiff, "diff", false, "Show the diff without prompting")
	analyzeCmd.MarkFlagsMutuallyExclusive("lines", "range")

	rootCmd.AddCommand(analyzeCmd)
}
