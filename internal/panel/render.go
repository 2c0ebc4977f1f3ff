package panel

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	labelStyle = lipgloss.NewStyle().Bold(true)
	goodStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
	codeStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1).
			TabWidth(4)
)

// ScoreLine formats "40 → 85 (+45)" for a rendering.
func ScoreLine(r Rendering) string {
	res := r.Result
	delta := res.ScoreOptimized - res.ScoreOriginal
	return fmt.Sprintf("%d → %d (%+d)", res.ScoreOriginal, res.ScoreOptimized, delta)
}

// RenderReport writes the report for r to w.
func RenderReport(w io.Writer, r Rendering) error {
	res := r.Result
	scoreStyle := warnStyle
	if res.Improved() {
		scoreStyle = goodStyle
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("🌱 Green Refactor · Eco Audit"))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(fmt.Sprintf("%s  %s  (%s)", r.Selection.DisplayName(), r.Selection.Range, r.Selection.Language)))
	sb.WriteString("\n\n")

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("%-16s", label)))
		sb.WriteString(value)
		sb.WriteString("\n")
	}
	row("Eco score", scoreStyle.Render(ScoreLine(r)))
	row("Complexity", fmt.Sprintf("%s → %s", res.ComplexityBefore, res.ComplexityAfter))
	row("Estimated gain", res.EstimatedGain)
	sb.WriteString("\n")
	row("Summary", res.Summary)
	row("Why", res.Explanation)
	sb.WriteString("\n")
	sb.WriteString(labelStyle.Render("Optimized code"))
	sb.WriteString("\n")
	sb.WriteString(codeStyle.Render(res.OptimizedCode))
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
