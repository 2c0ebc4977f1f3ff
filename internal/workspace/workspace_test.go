package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gordyrad/green-refactor/internal/notify"
)

const sample = "package main\n\nfunc sum(xs []int) int {\n\tt := 0\n\tfor i := 0; i < len(xs); i++ {\n\t\tt += xs[i]\n\t}\n\treturn t\n}\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return path
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("3:1-9:2")
	require.NoError(t, err)
	assert.Equal(t, Range{Start: Position{2, 0}, End: Position{8, 1}}, r)
	assert.Equal(t, "3:1-9:2", r.String())

	for _, bad := range []string{"", "3:1", "3-9", "0:1-2:1", "3:0-4:1", "5:1-4:1", "a:b-c:d"} {
		_, err := ParseRange(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseLines(t *testing.T) {
	from, to, err := ParseLines("3-9")
	require.NoError(t, err)
	assert.Equal(t, 3, from)
	assert.Equal(t, 9, to)

	from, to, err = ParseLines("4")
	require.NoError(t, err)
	assert.Equal(t, 4, from)
	assert.Equal(t, 4, to)

	for _, bad := range []string{"", "0-2", "5-3", "x"} {
		_, _, err := ParseLines(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestDocument_LinesRange(t *testing.T) {
	doc := &Document{Text: sample}

	r, err := doc.LinesRange(3, 9)
	require.NoError(t, err)
	text, err := doc.TextInRange(r)
	require.NoError(t, err)
	assert.Equal(t, "func sum(xs []int) int {\n\tt := 0\n\tfor i := 0; i < len(xs); i++ {\n\t\tt += xs[i]\n\t}\n\treturn t\n}", text)

	_, err = doc.LinesRange(3, 99)
	assert.Error(t, err)
}

func TestDocument_RuneColumns(t *testing.T) {
	doc := &Document{Text: "x := \"héllo\"\r\nnext\n"}

	text, err := doc.TextInRange(Range{Start: Position{0, 6}, End: Position{0, 11}})
	require.NoError(t, err)
	assert.Equal(t, "héllo", text)

	r, err := doc.LinesRange(1, 1)
	require.NoError(t, err)
	assert.Equal(t, Position{0, 12}, r.End)

	_, err = doc.Offset(Position{0, 13})
	assert.Error(t, err)
	assert.Equal(t, 3, doc.LineCount())
}

func TestWorkspace_OpenSelectClose(t *testing.T) {
	path := writeFile(t, "sum.go", sample)
	ws := New()

	doc, err := ws.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "go", doc.Language)
	assert.Equal(t, 1, doc.Version)
	assert.Contains(t, doc.URI, "file://")

	r, err := doc.LinesRange(4, 4)
	require.NoError(t, err)
	sel, err := ws.Select(doc.URI, r)
	require.NoError(t, err)
	assert.Equal(t, "\tt := 0", sel.Text)
	assert.Equal(t, "sum.go", sel.DisplayName())

	ws.Close(doc.URI)
	_, ok := ws.Document(doc.URI)
	assert.False(t, ok)

	_, err = ws.Select(doc.URI, r)
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestWorkspace_OpenMissing(t *testing.T) {
	_, err := New().Open(filepath.Join(t.TempDir(), "nope.go"))
	assert.Error(t, err)
}

func TestLanguageFor(t *testing.T) {
	assert.Equal(t, "python", LanguageFor("/a/b/c.PY"))
	assert.Equal(t, "typescript", LanguageFor("x.ts"))
	assert.Equal(t, "plaintext", LanguageFor("Makefile"))
}

type recordingAudit struct {
	records []EditRecord
	err     error
}

func (r *recordingAudit) RecordEdit(ctx context.Context, rec EditRecord) error {
	r.records = append(r.records, rec)
	return r.err
}

func openSelection(t *testing.T, from, to int) (*Workspace, SelectionContext, string) {
	t.Helper()
	path := writeFile(t, "sum.go", sample)
	ws := New()
	doc, err := ws.Open(path)
	require.NoError(t, err)
	r, err := doc.LinesRange(from, to)
	require.NoError(t, err)
	sel, err := ws.Select(doc.URI, r)
	require.NoError(t, err)
	return ws, sel, path
}

func TestApply_Success(t *testing.T) {
	ws, sel, path := openSelection(t, 3, 9)
	sel.AuditID = "audit-1"
	rec := &notify.Recorder{}
	audit := &recordingAudit{}

	replacement := "func sum(xs []int) (t int) {\n\tfor _, x := range xs {\n\t\tt += x\n\t}\n\treturn\n}"
	err := NewEditApplier(ws, rec, audit).Apply(context.Background(), sel, replacement)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package main\n\n"+replacement+"\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	doc, ok := ws.Document(sel.URI)
	require.True(t, ok)
	assert.Equal(t, string(data), doc.Text)
	assert.Equal(t, 2, doc.Version)

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.LevelInfo, last.Level)

	require.Len(t, audit.records, 1)
	assert.Equal(t, "audit-1", audit.records[0].AuditID)
	assert.Equal(t, hashText(replacement), audit.records[0].AfterHash)
}

func TestApply_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, ws *Workspace, sel *SelectionContext, path string)
		reason EditFailure
	}{
		{
			name: "document closed",
			mutate: func(t *testing.T, ws *Workspace, sel *SelectionContext, path string) {
				ws.Close(sel.URI)
			},
			reason: DocumentClosed,
		},
		{
			name: "file deleted",
			mutate: func(t *testing.T, ws *Workspace, sel *SelectionContext, path string) {
				require.NoError(t, os.Remove(path))
			},
			reason: FileMissing,
		},
		{
			name: "file shrank",
			mutate: func(t *testing.T, ws *Workspace, sel *SelectionContext, path string) {
				require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o640))
			},
			reason: RangeOutOfBounds,
		},
		{
			name: "text changed",
			mutate: func(t *testing.T, ws *Workspace, sel *SelectionContext, path string) {
				changed := "package main\n\nfunc sum(ys []int) int {\n\tt := 0\n\tfor i := 0; i < len(ys); i++ {\n\t\tt += ys[i]\n\t}\n\treturn t\n}\n"
				require.NoError(t, os.WriteFile(path, []byte(changed), 0o640))
			},
			reason: StaleRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws, sel, path := openSelection(t, 3, 9)
			tt.mutate(t, ws, &sel, path)
			before, _ := os.ReadFile(path)

			rec := &notify.Recorder{}
			audit := &recordingAudit{}
			err := NewEditApplier(ws, rec, audit).Apply(context.Background(), sel, "optimized")

			var ea *EditApplyError
			require.ErrorAs(t, err, &ea)
			assert.Equal(t, tt.reason, ea.Reason)

			after, _ := os.ReadFile(path)
			assert.Equal(t, before, after, "file must be untouched")
			assert.Empty(t, audit.records)

			last, ok := rec.Last()
			require.True(t, ok)
			assert.Equal(t, notify.LevelError, last.Level)
		})
	}
}

func TestApply_AuditFailureIsNotFatal(t *testing.T) {
	ws, sel, _ := openSelection(t, 4, 4)
	audit := &recordingAudit{err: errors.New("db locked")}

	err := NewEditApplier(ws, nil, audit).Apply(context.Background(), sel, "\tvar t int")
	assert.NoError(t, err)
	assert.Len(t, audit.records, 1)
}

func TestApply_Cancelled(t *testing.T) {
	ws, sel, path := openSelection(t, 4, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewEditApplier(ws, nil, nil).Apply(ctx, sel, "x")
	assert.ErrorIs(t, err, context.Canceled)

	data, _ := os.ReadFile(path)
	assert.Equal(t, sample, string(data))
}
