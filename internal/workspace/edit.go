package workspace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/renameio/v2"

	"github.com/gordyrad/green-refactor/internal/notify"
)

// EditFailure classifies why an edit could not be applied.
type EditFailure string

const (
	DocumentClosed   EditFailure = "document_closed"
	FileMissing      EditFailure = "file_missing"
	RangeOutOfBounds EditFailure = "range_out_of_bounds"
	StaleRange       EditFailure = "stale_range"
	WriteFailed      EditFailure = "write_failed"
)

var failureMessages = map[EditFailure]string{
	DocumentClosed:   "the document was closed",
	FileMissing:      "the file no longer exists",
	RangeOutOfBounds: "the analyzed range is outside the document",
	StaleRange:       "the code changed since it was analyzed",
	WriteFailed:      "the file could not be written",
}

// EditApplyError is returned when optimized code could not be written back.
// The document is left untouched.
type EditApplyError struct {
	URI    string
	Reason EditFailure
	Err    error
}

func (e *EditApplyError) Error() string {
	msg := fmt.Sprintf("could not apply optimized code to %s: %s", e.URI, failureMessages[e.Reason])
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *EditApplyError) Unwrap() error {
	return e.Err
}

// EditRecord describes one applied edit for the audit log.
type EditRecord struct {
	AuditID    string
	URI        string
	Range      Range
	BeforeHash string
	AfterHash  string
}

// AuditLog persists applied edits.
type AuditLog interface {
	RecordEdit(ctx context.Context, rec EditRecord) error
}

// EditApplier writes optimized code into workspace documents.
type EditApplier struct {
	ws       *Workspace
	notifier notify.Notifier
	audit    AuditLog
}

// NewEditApplier creates an EditApplier. audit may be nil.
func NewEditApplier(ws *Workspace, n notify.Notifier, audit AuditLog) *EditApplier {
	if n == nil {
		n = notify.Discard{}
	}
	return &EditApplier{ws: ws, notifier: n, audit: audit}
}

// Apply replaces the text at sel.Range with replacement. It refuses to write
// when the document is closed, the file is gone, the range no longer fits,
// or the text at the range differs from sel.Text.
func (a *EditApplier) Apply(ctx context.Context, sel SelectionContext, replacement string) error {
	if err := a.apply(ctx, sel, replacement); err != nil {
		a.notifier.Error(err.Error())
		return err
	}
	a.notifier.Info(fmt.Sprintf("Optimized code applied to %s 🌱", sel.DisplayName()))
	return nil
}

func (a *EditApplier) apply(ctx context.Context, sel SelectionContext, replacement string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, ok := a.ws.Document(sel.URI)
	if !ok {
		return &EditApplyError{URI: sel.URI, Reason: DocumentClosed}
	}

	info, err := os.Stat(doc.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &EditApplyError{URI: sel.URI, Reason: FileMissing, Err: err}
		}
		return &EditApplyError{URI: sel.URI, Reason: WriteFailed, Err: err}
	}

	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return &EditApplyError{URI: sel.URI, Reason: WriteFailed, Err: err}
	}
	current := string(data)

	existing, err := textInRange(current, sel.Range)
	if err != nil {
		return &EditApplyError{URI: sel.URI, Reason: RangeOutOfBounds, Err: err}
	}
	if existing != sel.Text {
		return &EditApplyError{URI: sel.URI, Reason: StaleRange}
	}

	updated, err := replaceRange(current, sel.Range, replacement)
	if err != nil {
		return &EditApplyError{URI: sel.URI, Reason: RangeOutOfBounds, Err: err}
	}

	if err := renameio.WriteFile(doc.Path, []byte(updated), info.Mode().Perm(), renameio.WithExistingPermissions()); err != nil {
		return &EditApplyError{URI: sel.URI, Reason: WriteFailed, Err: err}
	}

	a.ws.update(sel.URI, updated)
	slog.Info("workspace: applied edit", "uri", sel.URI, "range", sel.Range.String(), "bytes", len(replacement))

	if a.audit != nil {
		rec := EditRecord{
			AuditID:    sel.AuditID,
			URI:        sel.URI,
			Range:      sel.Range,
			BeforeHash: hashText(sel.Text),
			AfterHash:  hashText(replacement),
		}
		if err := a.audit.RecordEdit(ctx, rec); err != nil {
			slog.Warn("workspace: failed to record edit", "uri", sel.URI, "error", err)
		}
	}
	return nil
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
