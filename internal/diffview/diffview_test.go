package diffview

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sourcegraph/go-diff/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gordyrad/green-refactor/internal/workspace"
)

func TestLineDiff(t *testing.T) {
	ops := LineDiff("a\nb\nc\n", "a\nB\nc\n")

	require.Len(t, ops, 4)
	assert.Equal(t, LineOp{Kind: diffmatchpatch.DiffEqual, Text: "a"}, ops[0])
	assert.Equal(t, diffmatchpatch.DiffDelete, ops[1].Kind)
	assert.Equal(t, "b", ops[1].Text)
	assert.Equal(t, diffmatchpatch.DiffInsert, ops[2].Kind)
	assert.Equal(t, "B", ops[2].Text)
	assert.True(t, Changed(ops))
	assert.False(t, Changed(LineDiff("same\n", "same\n")))
}

func TestLineDiff_NoTrailingNewline(t *testing.T) {
	ops := LineDiff("x\ny", "x\ny")
	require.Len(t, ops, 2)
	assert.True(t, ops[1].NoEOL)
}

func numbered(n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		sb.WriteString("line")
		sb.WriteString(strings.Repeat("x", i))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestHunks_SeparateAndMerged(t *testing.T) {
	a := numbered(30)
	lines := strings.SplitAfter(a, "\n")

	// Changes at lines 2 and 25 are far apart.
	far := append([]string{}, lines...)
	far[1] = "changed2\n"
	far[24] = "changed25\n"
	hunks := Hunks(LineDiff(a, strings.Join(far, "")))
	require.Len(t, hunks, 2)
	assert.Equal(t, int32(1), hunks[0].OrigStartLine)
	assert.Equal(t, int32(5), hunks[0].OrigLines)
	assert.Equal(t, int32(22), hunks[1].OrigStartLine)
	assert.Equal(t, int32(7), hunks[1].OrigLines)

	// Changes at lines 10 and 14 share context.
	near := append([]string{}, lines...)
	near[9] = "changed10\n"
	near[13] = "changed14\n"
	hunks = Hunks(LineDiff(a, strings.Join(near, "")))
	require.Len(t, hunks, 1)
	assert.Equal(t, int32(7), hunks[0].OrigStartLine)
	assert.Equal(t, int32(11), hunks[0].OrigLines)
	assert.Equal(t, int32(11), hunks[0].NewLines)
}

func TestUnifiedPatch_RoundTrip(t *testing.T) {
	a := "package main\n\nfunc f() {\n\tfor i := 0; i < 10; i++ {\n\t}\n}\n"
	b := "package main\n\nfunc f() {\n\tfor range 10 {\n\t}\n}\n"

	patch, err := UnifiedPatch("a/f.go", "b/f.go", a, b)
	require.NoError(t, err)

	fd, err := diff.ParseFileDiff(patch)
	require.NoError(t, err)
	assert.Equal(t, "a/f.go", fd.OrigName)
	require.Len(t, fd.Hunks, 1)
	body := string(fd.Hunks[0].Body)
	assert.Contains(t, body, "-\tfor i := 0; i < 10; i++ {\n")
	assert.Contains(t, body, "+\tfor range 10 {\n")

	empty, err := UnifiedPatch("a", "b", a, a)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUnifiedPatch_Insertion(t *testing.T) {
	patch, err := UnifiedPatch("a", "b", "", "new\n")
	require.NoError(t, err)
	assert.Contains(t, string(patch), "@@ -0,0 +1,1 @@")
}

func TestViewer_ShowPrintsPatchAndLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loop.go")
	content := "package main\n\nfunc f(xs []int) {\n\tfor i := 0; i < len(xs); i++ {\n\t}\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ws := workspace.New()
	doc, err := ws.Open(path)
	require.NoError(t, err)
	r, err := doc.LinesRange(4, 5)
	require.NoError(t, err)
	sel, err := ws.Select(doc.URI, r)
	require.NoError(t, err)

	var out bytes.Buffer
	v := NewViewer(ws, &out, WithTempDir(dir))
	preview, err := v.Show(context.Background(), sel, "\tfor range xs {\n\t}")
	require.NoError(t, err)

	assert.Contains(t, out.String(), "loop.go ↔ loop.go (AI optimized)")
	assert.Contains(t, out.String(), "+\tfor range xs {")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data), "original must not change")

	assert.Equal(t, "package main\n\nfunc f(xs []int) {\n\tfor range xs {\n\t}\n}\n", preview.Proposed)
	assert.Equal(t, content, preview.Original)
	assertNoPreviewFiles(t, dir)
}

func assertNoPreviewFiles(t *testing.T, dir string) {
	t.Helper()
	left, err := filepath.Glob(filepath.Join(dir, "green-refactor-*"))
	require.NoError(t, err)
	assert.Empty(t, left, "preview documents must not outlive the diff")
}

func TestViewer_ToolGetsTransientFilesThenCleansUp(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script diff tool")
	}
	dir := t.TempDir()
	tool := filepath.Join(dir, "difftool.sh")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\necho \"ORIG:$(cat \"$1\")\"\necho \"NEW:$(cat \"$2\")\"\nexit 1\n"), 0o755))

	tmp := t.TempDir()
	sel := workspace.SelectionContext{URI: "file:///gone/x.py", Text: "a = 1"}

	var out bytes.Buffer
	_, err := NewViewer(workspace.New(), &out, WithTool(tool), WithTempDir(tmp)).Show(context.Background(), sel, "a = 2")
	require.NoError(t, err, "exit status 1 means the inputs differ")

	assert.Contains(t, out.String(), "ORIG:a = 1")
	assert.Contains(t, out.String(), "NEW:a = 2")
	assertNoPreviewFiles(t, tmp)
}

func TestViewer_ClosedDocumentShowsFragment(t *testing.T) {
	dir := t.TempDir()
	sel := workspace.SelectionContext{URI: "file:///gone/x.py", Text: "a = 1\n"}

	var out bytes.Buffer
	preview, err := NewViewer(workspace.New(), &out, WithTempDir(dir)).Show(context.Background(), sel, "a = 2\n")
	require.NoError(t, err)

	assert.Contains(t, string(preview.Patch), "-a = 1")
	assert.Contains(t, string(preview.Patch), "+a = 2")
	assert.Equal(t, "a = 2\n", preview.Proposed)
	assertNoPreviewFiles(t, dir)
}
