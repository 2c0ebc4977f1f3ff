package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gordyrad/green-refactor/internal/analysis"
	"github.com/gordyrad/green-refactor/internal/ledger"
	"github.com/gordyrad/green-refactor/internal/workspace"
)

var testTime = time.Date(2026, 2, 18, 14, 30, 0, 0, time.UTC)

func newTestAuditReport() *AuditReport {
	return &AuditReport{
		ID: "3f2a9c1e-7b4d-4e8a-9f10-123456789abc",
		Selection: workspace.SelectionContext{
			URI:      "file:///src/app/loop.js",
			Path:     "/src/app/loop.js",
			Range:    workspace.Range{Start: workspace.Position{Line: 9}, End: workspace.Position{Line: 14, Character: 1}},
			Language: "javascript",
			Text:     "for (let i = 0; i < a.length; i++) { out.push(a[i] * 2) }",
		},
		Result: analysis.Result{
			ScoreOriginal:    40,
			ScoreOptimized:   85,
			ComplexityBefore: "O(n^2)",
			ComplexityAfter:  "O(n)",
			Summary:          "Removed a nested scan",
			Explanation:      "The inner loop re-read the array on every pass.",
			OptimizedCode:    "const out = a.map(x => x * 2)",
			EstimatedGain:    "~50% less CPU",
		},
		Provider:    "mistral",
		Model:       "mistral-large-latest",
		TokensUsed:  812,
		Stats:       ledger.Stats{TotalOptimizations: 3, TotalPointsGained: 97},
		Recorded:    true,
		GeneratedAt: testTime,
	}
}

func newTestDigest() *Digest {
	return &Digest{
		Entries: []DigestEntry{
			{
				When:           testTime,
				File:           "loop.js",
				Range:          "10:1-15:2",
				Model:          "mistral-large-latest",
				ScoreOriginal:  40,
				ScoreOptimized: 85,
				Summary:        "Removed a nested scan",
				EstimatedGain:  "~50% less CPU",
			},
			{
				When:           testTime.Add(-time.Hour),
				File:           "parse|old.py",
				Range:          "1:1-3:1",
				Model:          "gpt-4o-mini",
				ScoreOriginal:  70,
				ScoreOptimized: 60,
				Summary:        "No real gain",
				EstimatedGain:  "none",
			},
		},
		Stats:       ledger.Stats{TotalOptimizations: 1, TotalPointsGained: 45},
		GeneratedAt: testTime,
	}
}

func TestMarkdownAuditReport(t *testing.T) {
	dir := t.TempDir()
	gen := NewMarkdownGenerator(dir)

	path, err := gen.GenerateAuditReport(newTestAuditReport())
	if err != nil {
		t.Fatalf("GenerateAuditReport() error: %v", err)
	}

	wantName := "audit-2026-02-18-loop.js-3f2a9c1e.md"
	if filepath.Base(path) != wantName {
		t.Errorf("file name = %q, want %q", filepath.Base(path), wantName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	content := string(data)

	checks := []string{
		"# Eco Audit: loop.js",
		"> Generated: 2026-02-18 14:30 UTC",
		"Range: 10:1-15:2",
		"Model: mistral-large-latest (812 tokens)",
		"| Eco score | 40 | 85 |",
		"| Complexity | O(n^2) | O(n) |",
		"**Estimated gain:** ~50% less CPU",
		"## Summary\n\nRemoved a nested scan",
		"```javascript\nconst out = a.map(x => x * 2)\n```",
		"This audit gained **45** points.",
		"- Optimizations: 3",
		"- Eco-Points: 97",
	}
	for _, want := range checks {
		if !strings.Contains(content, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestMarkdownAuditReportNotRecorded(t *testing.T) {
	r := newTestAuditReport()
	r.Result.ScoreOptimized = 40
	r.Recorded = false

	path, err := NewMarkdownGenerator(t.TempDir()).GenerateAuditReport(r)
	if err != nil {
		t.Fatalf("GenerateAuditReport() error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "the ledger was not changed") {
		t.Error("expected unchanged-ledger note")
	}
	if strings.Contains(string(data), "This audit gained") {
		t.Error("did not expect a points line")
	}
}

func TestMarkdownCodeFence(t *testing.T) {
	r := newTestAuditReport()
	r.Result.OptimizedCode = "const s = `a ${b}`\n// ``` inside\n"

	path, err := NewMarkdownGenerator(t.TempDir()).GenerateAuditReport(r)
	if err != nil {
		t.Fatalf("GenerateAuditReport() error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "````javascript\n") {
		t.Errorf("expected a four-backtick fence, got:\n%s", data)
	}
}

func TestMarkdownDigest(t *testing.T) {
	dir := t.TempDir()
	path, err := NewMarkdownGenerator(dir).GenerateDigest(newTestDigest())
	if err != nil {
		t.Fatalf("GenerateDigest() error: %v", err)
	}
	if filepath.Base(path) != "eco-digest-2026-02-18.md" {
		t.Errorf("file name = %q", filepath.Base(path))
	}

	data, _ := os.ReadFile(path)
	content := string(data)
	checks := []string{
		"# Eco Impact Digest",
		"Audits: 2",
		"- Optimizations: 1",
		"- Eco-Points: 45",
		"| 2026-02-18 14:30 | loop.js | 10:1-15:2 | 40 → 85 | ~50% less CPU | Removed a nested scan |",
		`parse\|old.py`,
	}
	for _, want := range checks {
		if !strings.Contains(content, want) {
			t.Errorf("digest missing %q", want)
		}
	}
}

func TestMarkdownDigestEmpty(t *testing.T) {
	path, err := NewMarkdownGenerator(t.TempDir()).GenerateDigest(&Digest{GeneratedAt: testTime})
	if err != nil {
		t.Fatalf("GenerateDigest() error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "## Recent Audits") {
		t.Error("empty digest should not have an audits table")
	}
}

func TestJSONAuditReport(t *testing.T) {
	dir := t.TempDir()
	path, err := NewJSONGenerator(dir).GenerateAuditReport(newTestAuditReport())
	if err != nil {
		t.Fatalf("GenerateAuditReport() error: %v", err)
	}
	if filepath.Ext(path) != ".json" {
		t.Errorf("extension = %q, want .json", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}

	var got jsonAuditReport
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if got.URI != "file:///src/app/loop.js" {
		t.Errorf("uri = %q", got.URI)
	}
	if got.Range != "10:1-15:2" {
		t.Errorf("range = %q, want %q", got.Range, "10:1-15:2")
	}
	if !got.Improved || got.PointsGained != 45 {
		t.Errorf("improved = %v, points = %d; want true, 45", got.Improved, got.PointsGained)
	}
	if got.Result.OptimizedCode != "const out = a.map(x => x * 2)" {
		t.Errorf("optimizedCode = %q", got.Result.OptimizedCode)
	}
	if got.Totals.TotalPointsGained != 97 {
		t.Errorf("totals.points = %d, want 97", got.Totals.TotalPointsGained)
	}
	if got.GeneratedAt != "2026-02-18T14:30:00Z" {
		t.Errorf("generated_at = %q", got.GeneratedAt)
	}
}

func TestJSONDigest(t *testing.T) {
	path, err := NewJSONGenerator(t.TempDir()).GenerateDigest(newTestDigest())
	if err != nil {
		t.Fatalf("GenerateDigest() error: %v", err)
	}
	data, _ := os.ReadFile(path)

	var got jsonDigest
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("digest is not valid JSON: %v", err)
	}
	if len(got.Audits) != 2 {
		t.Fatalf("len(audits) = %d, want 2", len(got.Audits))
	}
	if got.Audits[1].File != "parse|old.py" {
		t.Errorf("audits[1].file = %q", got.Audits[1].File)
	}
}

func TestNewGenerator(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"markdown", false},
		{"md", false},
		{"json", false},
		{"pdf", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			_, err := NewGenerator(tt.format, t.TempDir())
			if (err != nil) != tt.wantErr {
				t.Errorf("NewGenerator(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
		})
	}
}

func TestAuditBasenameSanitizes(t *testing.T) {
	r := &AuditReport{
		Selection: workspace.SelectionContext{Path: "/tmp/my file (1).go"},
	}
	got := auditBasename(r)
	if got != "audit-undated-my-file-1-.go" {
		t.Errorf("auditBasename() = %q", got)
	}
}

func TestCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	if _, err := NewMarkdownGenerator(dir).GenerateAuditReport(newTestAuditReport()); err != nil {
		t.Fatalf("GenerateAuditReport() error: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("output dir not created: %v", err)
	}
}
