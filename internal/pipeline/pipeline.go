package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/gordyrad/green-refactor/internal/analysis"
	"github.com/gordyrad/green-refactor/internal/config"
	"github.com/gordyrad/green-refactor/internal/diffview"
	"github.com/gordyrad/green-refactor/internal/ledger"
	"github.com/gordyrad/green-refactor/internal/notify"
	"github.com/gordyrad/green-refactor/internal/panel"
	"github.com/gordyrad/green-refactor/internal/report"
	"github.com/gordyrad/green-refactor/internal/store"
	"github.com/gordyrad/green-refactor/internal/workspace"
)

// ErrAnalysisInProgress is returned when Start is called while another
// analysis is still running.
var ErrAnalysisInProgress = &analysis.PreconditionError{
	Kind:   analysis.Busy,
	Reason: "an analysis is already running, wait for it to finish",
}

// StartRequest names the code to analyze. Lines ("A-B") and Range
// ("L:C-L:C") are one-based and mutually exclusive; with neither, the whole
// file is analyzed.
type StartRequest struct {
	Path  string
	Lines string
	Range string
}

// Outcome describes a finished analysis.
type Outcome struct {
	AuditID    string
	Audit      *analysis.Audit
	Rendering  panel.Rendering
	Stats      ledger.Stats
	Recorded   bool
	ReportPath string
}

// Pipeline wires the start-analysis flow: selection capture, the model
// call, history, the eco-points ledger and the report panel.
type Pipeline struct {
	cfg      *config.Config
	store    *store.Store
	ws       *workspace.Workspace
	llm      analysis.LLMClient
	analyzer *analysis.Analyzer
	ledger   *ledger.Ledger
	ctrl     *panel.Controller
	notifier notify.Notifier
	reports  report.Generator
	busy     *semaphore.Weighted
}

type options struct {
	llm      analysis.LLMClient
	notifier notify.Notifier
	views    panel.ViewFactory
	diffOut  io.Writer
}

// Option configures a Pipeline.
type Option func(*options)

// WithLLMClient replaces the client built from the configuration.
func WithLLMClient(llm analysis.LLMClient) Option {
	return func(o *options) { o.llm = llm }
}

// WithNotifier sets where user-facing messages go. Defaults to the console.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithViewFactory sets how the report panel is displayed. Defaults to the
// terminal view on stdout.
func WithViewFactory(f panel.ViewFactory) Option {
	return func(o *options) { o.views = f }
}

// WithDiffOutput sets where diffs are printed. Defaults to stdout.
func WithDiffOutput(w io.Writer) Option {
	return func(o *options) { o.diffOut = w }
}

// New initializes all components and returns a ready-to-run Pipeline.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifier == nil {
		o.notifier = notify.NewConsole(os.Stderr)
	}
	if o.diffOut == nil {
		o.diffOut = os.Stdout
	}
	if o.views == nil {
		o.views = panel.TerminalFactory(os.Stdout)
	}

	s, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	llm := o.llm
	if llm == nil && cfg.LLM.APIKey != "" {
		if llm, err = NewLLMClient(cfg.LLM); err != nil {
			s.Close()
			return nil, err
		}
	}

	var gen report.Generator
	if cfg.ReportFormat != "" && cfg.ReportFormat != "none" {
		if gen, err = report.NewGenerator(cfg.ReportFormat, cfg.OutputDir); err != nil {
			s.Close()
			return nil, err
		}
	}

	ws := workspace.New()
	var diffOpts []diffview.Option
	if cfg.DiffTool != "" {
		diffOpts = append(diffOpts, diffview.WithTool(cfg.DiffTool))
	}
	viewer := diffview.NewViewer(ws, o.diffOut, diffOpts...)
	edits := workspace.NewEditApplier(ws, o.notifier, &editLog{store: s})

	p := &Pipeline{
		cfg:      cfg,
		store:    s,
		ws:       ws,
		llm:      llm,
		ledger:   ledger.New(s),
		ctrl:     panel.NewController(o.views, viewer, edits, o.notifier),
		notifier: o.notifier,
		reports:  gen,
		busy:     semaphore.NewWeighted(1),
	}
	if llm != nil {
		guidelines, err := analysis.LoadGuidelines(cfg.Guidelines)
		if err != nil {
			s.Close()
			return nil, err
		}
		p.analyzer = analysis.NewAnalyzer(llm,
			analysis.WithProvider(cfg.LLM.Provider),
			analysis.WithMaxTokens(cfg.LLM.MaxTokens),
			analysis.WithTemperature(cfg.LLM.Temperature),
			analysis.WithGuidelines(guidelines),
		)
	}
	return p, nil
}

// NewLLMClient creates the client for the configured provider. Mistral is
// reached through its OpenAI-compatible API.
func NewLLMClient(cfg config.LLMConfig) (analysis.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderMistral:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = analysis.MistralBaseURL
		}
		return analysis.NewOpenAIClient(cfg.APIKey, cfg.Model, baseURL), nil
	case config.ProviderOpenAI:
		return analysis.NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case config.ProviderAnthropic:
		return analysis.NewAnthropicClient(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// Close releases all resources held by the pipeline.
func (p *Pipeline) Close() error {
	p.ctrl.Dispose()
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// Controller returns the report panel controller.
func (p *Pipeline) Controller() *panel.Controller { return p.ctrl }

// Workspace returns the set of open documents.
func (p *Pipeline) Workspace() *workspace.Workspace { return p.ws }

// Store returns the underlying store.
func (p *Pipeline) Store() *store.Store { return p.store }

// Ledger returns the eco-points ledger.
func (p *Pipeline) Ledger() *ledger.Ledger { return p.ledger }

// Start runs one analysis. Preconditions are checked before any network
// call; an overlapping call fails with ErrAnalysisInProgress. Every failure
// is also reported through the notifier.
func (p *Pipeline) Start(ctx context.Context, req StartRequest) (*Outcome, error) {
	if !p.busy.TryAcquire(1) {
		startsTotal.WithLabelValues("busy").Inc()
		p.notifier.Warn(ErrAnalysisInProgress.Error())
		return nil, ErrAnalysisInProgress
	}
	defer p.busy.Release(1)

	out, err := p.start(ctx, req)
	if err != nil {
		startsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		p.report(err)
		return out, err
	}
	startsTotal.WithLabelValues("ok").Inc()
	return out, nil
}

func (p *Pipeline) start(ctx context.Context, req StartRequest) (*Outcome, error) {
	sel, err := p.selection(req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sel.Text) == "" {
		return nil, &analysis.PreconditionError{
			Kind:   analysis.EmptySelection,
			Reason: "select a piece of code to optimize first",
		}
	}
	if p.cfg.LLM.APIKey == "" || p.analyzer == nil {
		return nil, &analysis.PreconditionError{
			Kind: analysis.MissingCredential,
			Reason: fmt.Sprintf("%s API key is missing: run `green-refactor settings set api-key <key>` or set %s",
				p.cfg.LLM.Provider, config.APIKeyEnv(p.cfg.LLM.Provider)),
		}
	}

	slog.Info("pipeline: starting analysis", "uri", sel.URI, "range", sel.Range.String(), "language", sel.Language)
	p.notifier.Info("Green IT analysis in progress...")

	audit, err := p.analyzer.Analyze(ctx, sel.Text)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Audit: audit}
	out.AuditID = p.recordHistory(ctx, sel, audit)
	sel.AuditID = out.AuditID

	stats, recorded, ledgerErr := p.ledger.RecordIfImproved(ctx, &audit.Result)
	out.Stats, out.Recorded = stats, recorded
	if recorded {
		ecoPointsTotal.Add(float64(audit.Result.PointsGained()))
	}

	rendering, panelErr := p.ctrl.ShowReport(audit.Result, sel)
	out.Rendering = rendering

	if err := errors.Join(ledgerErr, panelErr); err != nil {
		return out, err
	}

	if recorded {
		p.notifier.Info(fmt.Sprintf("+%d eco-points! Total: %d 🌍", audit.Result.PointsGained(), stats.TotalPointsGained))
	}

	if p.reports != nil {
		path, err := p.exportReport(ctx, sel, audit, stats, recorded, out.AuditID)
		if err != nil {
			slog.Warn("pipeline: report export failed", "error", err)
			p.notifier.Warn(fmt.Sprintf("could not write report: %v", err))
		} else {
			out.ReportPath = path
		}
	}

	slog.Info("pipeline: analysis complete", "audit", out.AuditID, "recorded", recorded)
	return out, nil
}

// selection opens the requested file and captures the selection context.
func (p *Pipeline) selection(req StartRequest) (workspace.SelectionContext, error) {
	if strings.TrimSpace(req.Path) == "" {
		return workspace.SelectionContext{}, &analysis.PreconditionError{
			Kind:   analysis.NoDocument,
			Reason: "open a file and select code first",
		}
	}
	doc, err := p.ws.Open(req.Path)
	if err != nil {
		return workspace.SelectionContext{}, &analysis.PreconditionError{
			Kind:   analysis.NoDocument,
			Reason: "open a file and select code first",
			Err:    err,
		}
	}

	var r workspace.Range
	switch {
	case req.Lines != "" && req.Range != "":
		err = fmt.Errorf("--lines and --range are mutually exclusive")
	case req.Lines != "":
		var from, to int
		if from, to, err = workspace.ParseLines(req.Lines); err == nil {
			r, err = doc.LinesRange(from, to)
		}
	case req.Range != "":
		r, err = workspace.ParseRange(req.Range)
	default:
		r, err = doc.LinesRange(1, doc.LineCount())
	}
	if err != nil {
		return workspace.SelectionContext{}, &analysis.PreconditionError{
			Kind:   analysis.EmptySelection,
			Reason: "select a piece of code to optimize first",
			Err:    err,
		}
	}

	sel, err := p.ws.Select(doc.URI, r)
	if err != nil {
		return workspace.SelectionContext{}, &analysis.PreconditionError{
			Kind:   analysis.EmptySelection,
			Reason: "select a piece of code to optimize first",
			Err:    err,
		}
	}
	return sel, nil
}

// recordHistory stores the audit. History is best effort and never fails the
// analysis.
func (p *Pipeline) recordHistory(ctx context.Context, sel workspace.SelectionContext, audit *analysis.Audit) string {
	raw, err := json.Marshal(audit.Result)
	if err != nil {
		slog.Warn("pipeline: encoding result for history", "error", err)
		return ""
	}
	id, err := p.store.InsertAnalysis(ctx, &store.Analysis{
		URI:              sel.URI,
		Language:         sel.Language,
		Range:            sel.Range.String(),
		Provider:         p.cfg.LLM.Provider,
		Model:            audit.Model,
		TokensUsed:       audit.TokensUsed,
		ScoreOriginal:    audit.Result.ScoreOriginal,
		ScoreOptimized:   audit.Result.ScoreOptimized,
		ComplexityBefore: audit.Result.ComplexityBefore,
		ComplexityAfter:  audit.Result.ComplexityAfter,
		Summary:          audit.Result.Summary,
		EstimatedGain:    audit.Result.EstimatedGain,
		Result:           string(raw),
	})
	if err != nil {
		slog.Warn("pipeline: storing analysis history", "error", err)
		return ""
	}
	return id
}

func (p *Pipeline) exportReport(ctx context.Context, sel workspace.SelectionContext, audit *analysis.Audit, stats ledger.Stats, recorded bool, id string) (string, error) {
	path, err := p.reports.GenerateAuditReport(&report.AuditReport{
		ID:          id,
		Selection:   sel,
		Result:      audit.Result,
		Provider:    p.cfg.LLM.Provider,
		Model:       audit.Model,
		TokensUsed:  audit.TokensUsed,
		Stats:       stats,
		Recorded:    recorded,
		GeneratedAt: time.Now(),
	})
	if err != nil {
		return "", err
	}

	hash := ""
	if data, err := os.ReadFile(path); err == nil {
		sum := sha256.Sum256(data)
		hash = hex.EncodeToString(sum[:])
	}
	if err := p.store.InsertReport(ctx, &store.Report{
		AnalysisID:  id,
		Format:      p.cfg.ReportFormat,
		FilePath:    path,
		ContentHash: hash,
	}); err != nil {
		slog.Warn("pipeline: recording report", "path", path, "error", err)
	}
	slog.Info("pipeline: report written", "path", path)
	return path, nil
}

// report surfaces err to the user once, with a level matching its kind.
func (p *Pipeline) report(err error) {
	var pre *analysis.PreconditionError
	if errors.As(err, &pre) && pre.Kind == analysis.EmptySelection {
		p.notifier.Warn(pre.Error())
		return
	}
	p.notifier.Error(err.Error())
}

func outcomeLabel(err error) string {
	var pre *analysis.PreconditionError
	switch {
	case errors.As(err, &pre):
		return "precondition"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "failed"
	}
}

// editLog records applied edits in the store.
type editLog struct {
	store *store.Store
}

func (l *editLog) RecordEdit(ctx context.Context, rec workspace.EditRecord) error {
	return l.store.LogEdit(ctx, &store.Edit{
		AnalysisID: rec.AuditID,
		URI:        rec.URI,
		Range:      rec.Range.String(),
		BeforeHash: rec.BeforeHash,
		AfterHash:  rec.AfterHash,
	})
}
