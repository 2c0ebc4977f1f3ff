package report

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gordyrad/green-refactor/internal/analysis"
	"github.com/gordyrad/green-refactor/internal/ledger"
	"github.com/gordyrad/green-refactor/internal/workspace"
)

// AuditReport is everything known about one finished audit.
type AuditReport struct {
	ID          string
	Selection   workspace.SelectionContext
	Result      analysis.Result
	Provider    string
	Model       string
	TokensUsed  int
	Stats       ledger.Stats
	Recorded    bool
	GeneratedAt time.Time
}

// DigestEntry is one row of a history digest.
type DigestEntry struct {
	When           time.Time
	File           string
	Range          string
	Model          string
	ScoreOriginal  int
	ScoreOptimized int
	Summary        string
	EstimatedGain  string
}

// Digest summarizes recent audits and the cumulative eco-impact.
type Digest struct {
	Entries     []DigestEntry
	Stats       ledger.Stats
	GeneratedAt time.Time
}

// Generator writes reports to disk and returns the file path.
type Generator interface {
	GenerateAuditReport(r *AuditReport) (string, error)
	GenerateDigest(d *Digest) (string, error)
}

// NewGenerator returns the generator for format ("markdown" or "json").
func NewGenerator(format, outputDir string) (Generator, error) {
	switch format {
	case "markdown", "md":
		return NewMarkdownGenerator(outputDir), nil
	case "json":
		return NewJSONGenerator(outputDir), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// auditBasename returns "audit-<date>-<file>-<id8>" for r.
func auditBasename(r *AuditReport) string {
	name := unsafeChars.ReplaceAllString(r.Selection.DisplayName(), "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "selection"
	}
	id := r.ID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return fmt.Sprintf("audit-%s-%s", dateOf(r.GeneratedAt), name)
	}
	return fmt.Sprintf("audit-%s-%s-%s", dateOf(r.GeneratedAt), name, id)
}

func digestBasename(d *Digest) string {
	return fmt.Sprintf("eco-digest-%s", dateOf(d.GeneratedAt))
}

func dateOf(t time.Time) string {
	if t.IsZero() {
		return "undated"
	}
	return t.UTC().Format("2006-01-02")
}

func outputPath(dir, base, ext string) string {
	return filepath.Join(dir, base+ext)
}
