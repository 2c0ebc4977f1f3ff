package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gordyrad/green-refactor/internal/analysis"
	"github.com/gordyrad/green-refactor/internal/ledger"
)

// JSONGenerator writes JSON-formatted reports to disk.
type JSONGenerator struct {
	outputDir string
}

// NewJSONGenerator creates a new JSONGenerator that writes to outputDir.
func NewJSONGenerator(outputDir string) *JSONGenerator {
	return &JSONGenerator{outputDir: outputDir}
}

// jsonAuditReport is the JSON-serializable form of an audit report.
type jsonAuditReport struct {
	ID           string          `json:"id,omitempty"`
	URI          string          `json:"uri"`
	Range        string          `json:"range"`
	Language     string          `json:"language"`
	Provider     string          `json:"provider,omitempty"`
	Model        string          `json:"model"`
	TokensUsed   int             `json:"tokens_used"`
	Result       analysis.Result `json:"result"`
	Improved     bool            `json:"improved"`
	PointsGained int             `json:"points_gained"`
	Recorded     bool            `json:"recorded"`
	Totals       ledger.Stats    `json:"totals"`
	GeneratedAt  string          `json:"generated_at"`
}

type jsonDigestEntry struct {
	When           string `json:"when"`
	File           string `json:"file"`
	Range          string `json:"range"`
	Model          string `json:"model"`
	ScoreOriginal  int    `json:"score_original"`
	ScoreOptimized int    `json:"score_optimized"`
	Summary        string `json:"summary"`
	EstimatedGain  string `json:"estimated_gain"`
}

type jsonDigest struct {
	Totals      ledger.Stats      `json:"totals"`
	Audits      []jsonDigestEntry `json:"audits"`
	GeneratedAt string            `json:"generated_at"`
}

// GenerateAuditReport writes one audit as JSON and returns the file path.
func (g *JSONGenerator) GenerateAuditReport(r *AuditReport) (string, error) {
	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	jr := &jsonAuditReport{
		ID:           r.ID,
		URI:          r.Selection.URI,
		Range:        r.Selection.Range.String(),
		Language:     r.Selection.Language,
		Provider:     r.Provider,
		Model:        r.Model,
		TokensUsed:   r.TokensUsed,
		Result:       r.Result,
		Improved:     r.Result.Improved(),
		PointsGained: r.Result.PointsGained(),
		Recorded:     r.Recorded,
		Totals:       r.Stats,
		GeneratedAt:  timestamp(r.GeneratedAt),
	}

	data, err := json.MarshalIndent(jr, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling audit report to JSON: %w", err)
	}

	filePath := outputPath(g.outputDir, auditBasename(r), ".json")
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing audit report JSON: %w", err)
	}

	return filePath, nil
}

// GenerateDigest writes a history digest as JSON and returns the file path.
func (g *JSONGenerator) GenerateDigest(d *Digest) (string, error) {
	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	jd := &jsonDigest{
		Totals:      d.Stats,
		Audits:      make([]jsonDigestEntry, 0, len(d.Entries)),
		GeneratedAt: timestamp(d.GeneratedAt),
	}
	for _, e := range d.Entries {
		jd.Audits = append(jd.Audits, jsonDigestEntry{
			When:           e.When.UTC().Format(time.RFC3339),
			File:           e.File,
			Range:          e.Range,
			Model:          e.Model,
			ScoreOriginal:  e.ScoreOriginal,
			ScoreOptimized: e.ScoreOptimized,
			Summary:        e.Summary,
			EstimatedGain:  e.EstimatedGain,
		})
	}

	data, err := json.MarshalIndent(jd, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling digest to JSON: %w", err)
	}

	filePath := outputPath(g.outputDir, digestBasename(d), ".json")
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing digest JSON: %w", err)
	}
	return filePath, nil
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}
