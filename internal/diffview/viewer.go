// Package diffview shows the difference between a document and its
// optimized version without modifying the document.
package diffview

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gordyrad/green-refactor/internal/workspace"
)

var (
	plainStyle  = lipgloss.NewStyle().TabWidth(lipgloss.NoTabConversion)
	headerStyle = plainStyle.Bold(true)
	hunkStyle   = plainStyle.Foreground(lipgloss.Color("6"))
	addStyle    = plainStyle.Foreground(lipgloss.Color("2"))
	delStyle    = plainStyle.Foreground(lipgloss.Color("1"))
)

// Preview is the result of showing a diff.
type Preview struct {
	Original string
	Proposed string
	Patch    []byte
}

// Viewer renders diffs to a writer or hands them to an external diff tool.
type Viewer struct {
	ws      *workspace.Workspace
	out     io.Writer
	tool    string
	tempDir string
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithTool runs an external command as `tool ORIGINAL PROPOSED` instead of
// printing the patch.
func WithTool(tool string) Option {
	return func(v *Viewer) { v.tool = tool }
}

// WithTempDir places transient documents in dir.
func WithTempDir(dir string) Option {
	return func(v *Viewer) { v.tempDir = dir }
}

// NewViewer creates a Viewer. ws supplies the full document text; when the
// document is no longer open the diff covers the selection only.
func NewViewer(ws *workspace.Workspace, out io.Writer, opts ...Option) *Viewer {
	v := &Viewer{ws: ws, out: out}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Show displays the original document next to the document with the
// selection replaced by optimized. The original is never modified.
func (v *Viewer) Show(ctx context.Context, sel workspace.SelectionContext, optimized string) (*Preview, error) {
	original, proposed := sel.Text, optimized
	if doc, ok := v.ws.Document(sel.URI); ok {
		if replaced, err := doc.Replace(sel.Range, optimized); err == nil {
			original, proposed = doc.Text, replaced
		} else {
			slog.Warn("diffview: range no longer fits document, showing fragment only", "uri", sel.URI, "error", err)
		}
	}

	name := sel.DisplayName()
	patch, err := UnifiedPatch("a/"+name, "b/"+name+" (optimized)", original, proposed)
	if err != nil {
		return nil, fmt.Errorf("building patch: %w", err)
	}
	preview := &Preview{Original: original, Proposed: proposed, Patch: patch}

	if v.tool != "" {
		return preview, v.runTool(ctx, sel, name, original, proposed)
	}

	if len(patch) == 0 {
		_, _ = fmt.Fprintf(v.out, "%s: optimized code is identical to the original\n", name)
		return preview, nil
	}
	_, _ = fmt.Fprintf(v.out, "%s ↔ %s (AI optimized)\n", name, name)
	return preview, Colorize(v.out, patch)
}

// runTool hands the original file and a transient copy of the proposed
// document to the external diff tool. Transient files are removed once the
// tool exits.
func (v *Viewer) runTool(ctx context.Context, sel workspace.SelectionContext, name, original, proposed string) error {
	var transient []string
	defer func() {
		for _, p := range transient {
			_ = os.Chmod(p, 0o644)
			if err := os.Remove(p); err != nil {
				slog.Warn("diffview: removing preview document", "path", p, "error", err)
			}
		}
	}()

	path, err := v.writeTransient(name, proposed)
	if err != nil {
		return err
	}
	transient = append(transient, path)

	origPath := sel.Path
	if origPath == "" {
		if origPath, err = v.writeTransient("original-"+name, original); err != nil {
			return err
		}
		transient = append(transient, origPath)
	}

	cmd := exec.CommandContext(ctx, v.tool, origPath, path)
	cmd.Stdout = v.out
	cmd.Stderr = v.out
	if err := cmd.Run(); err != nil {
		// Most diff tools exit 1 when the inputs differ.
		var exitErr *exec.ExitError
		if !(errors.As(err, &exitErr) && exitErr.ExitCode() == 1) {
			return fmt.Errorf("running diff tool %s: %w", v.tool, err)
		}
	}
	return nil
}

// writeTransient stores text in a new read-only temp file named after name.
func (v *Viewer) writeTransient(name, text string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	f, err := os.CreateTemp(v.tempDir, "green-refactor-"+base+"-*"+ext)
	if err != nil {
		return "", fmt.Errorf("creating preview document: %w", err)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return "", fmt.Errorf("writing preview document: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing preview document: %w", err)
	}
	if err := os.Chmod(f.Name(), 0o444); err != nil {
		return "", fmt.Errorf("protecting preview document: %w", err)
	}
	return f.Name(), nil
}

// Colorize writes a unified patch with ANSI styling per line kind.
func Colorize(w io.Writer, patch []byte) error {
	sc := bufio.NewScanner(bytes.NewReader(patch))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		var styled string
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			styled = headerStyle.Render(line)
		case strings.HasPrefix(line, "@@"):
			styled = hunkStyle.Render(line)
		case strings.HasPrefix(line, "+"):
			styled = addStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			styled = delStyle.Render(line)
		default:
			styled = line
		}
		if _, err := fmt.Fprintln(w, styled); err != nil {
			return err
		}
	}
	return sc.Err()
}
