package report

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// MarkdownGenerator writes Markdown-formatted reports to disk.
type MarkdownGenerator struct {
	outputDir string
}

// NewMarkdownGenerator creates a new MarkdownGenerator that writes to outputDir.
func NewMarkdownGenerator(outputDir string) *MarkdownGenerator {
	return &MarkdownGenerator{outputDir: outputDir}
}

// GenerateAuditReport writes one audit as Markdown and returns the file path.
func (g *MarkdownGenerator) GenerateAuditReport(r *AuditReport) (string, error) {
	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	res := r.Result
	var b strings.Builder

	fmt.Fprintf(&b, "# Eco Audit: %s\n\n", r.Selection.DisplayName())
	fmt.Fprintf(&b, "> Generated: %s | Range: %s | Language: %s | Model: %s (%d tokens)\n\n",
		generatedAt(r.GeneratedAt), r.Selection.Range, r.Selection.Language, r.Model, r.TokensUsed)

	b.WriteString("## Verdict\n\n")
	b.WriteString("| | Original | Optimized |\n")
	b.WriteString("|---|---|---|\n")
	fmt.Fprintf(&b, "| Eco score | %d | %d |\n", res.ScoreOriginal, res.ScoreOptimized)
	fmt.Fprintf(&b, "| Complexity | %s | %s |\n\n", escapeCell(res.ComplexityBefore), escapeCell(res.ComplexityAfter))
	fmt.Fprintf(&b, "**Estimated gain:** %s\n\n", res.EstimatedGain)

	b.WriteString("## Summary\n\n")
	b.WriteString(res.Summary)
	b.WriteString("\n\n")

	b.WriteString("## Explanation\n\n")
	b.WriteString(res.Explanation)
	b.WriteString("\n\n")

	b.WriteString("## Optimized Code\n\n")
	fence := codeFence(res.OptimizedCode)
	fmt.Fprintf(&b, "%s%s\n%s\n%s\n\n", fence, r.Selection.Language, strings.TrimRight(res.OptimizedCode, "\n"), fence)

	b.WriteString("## Eco-Points\n\n")
	if r.Recorded {
		fmt.Fprintf(&b, "This audit gained **%d** points.\n\n", res.PointsGained())
	} else {
		b.WriteString("No improvement over the original score; the ledger was not changed.\n\n")
	}
	fmt.Fprintf(&b, "- Optimizations: %d\n", r.Stats.TotalOptimizations)
	fmt.Fprintf(&b, "- Eco-Points: %d\n", r.Stats.TotalPointsGained)

	filePath := outputPath(g.outputDir, auditBasename(r), ".md")
	if err := os.WriteFile(filePath, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing audit report: %w", err)
	}

	return filePath, nil
}

// GenerateDigest writes a history digest as Markdown and returns the file path.
func (g *MarkdownGenerator) GenerateDigest(d *Digest) (string, error) {
	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Eco Impact Digest\n\n")
	fmt.Fprintf(&b, "> Generated: %s | Audits: %d\n\n", generatedAt(d.GeneratedAt), len(d.Entries))

	b.WriteString("## Totals\n\n")
	fmt.Fprintf(&b, "- Optimizations: %d\n", d.Stats.TotalOptimizations)
	fmt.Fprintf(&b, "- Eco-Points: %d\n\n", d.Stats.TotalPointsGained)

	if len(d.Entries) > 0 {
		b.WriteString("## Recent Audits\n\n")
		b.WriteString("| When | File | Range | Score | Gain | Summary |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, e := range d.Entries {
			fmt.Fprintf(&b, "| %s | %s | %s | %d → %d | %s | %s |\n",
				e.When.UTC().Format("2006-01-02 15:04"),
				escapeCell(e.File), e.Range,
				e.ScoreOriginal, e.ScoreOptimized,
				escapeCell(e.EstimatedGain), escapeCell(e.Summary))
		}
	}

	filePath := outputPath(g.outputDir, digestBasename(d), ".md")
	if err := os.WriteFile(filePath, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing digest report: %w", err)
	}
	return filePath, nil
}

func generatedAt(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// codeFence returns a backtick fence longer than any run inside code.
func codeFence(code string) string {
	longest, run := 0, 0
	for _, c := range code {
		if c == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return strings.Repeat("`", max(3, longest+1))
}
