package diffview

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sourcegraph/go-diff/diff"
)

// contextLines is the number of unchanged lines kept around each change.
const contextLines = 3

// LineOp is one line of a line-level diff.
type LineOp struct {
	Kind diffmatchpatch.Operation
	Text string
	// NoEOL marks the last line of a text that lacks a trailing newline.
	NoEOL bool
}

// LineDiff compares two texts line by line.
func LineDiff(a, b string) []LineOp {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var ops []LineOp
	for _, d := range diffs {
		text := d.Text
		for text != "" {
			line, rest, found := strings.Cut(text, "\n")
			ops = append(ops, LineOp{Kind: d.Type, Text: line, NoEOL: !found})
			text = rest
		}
	}
	return ops
}

// Changed reports whether ops contain any insertion or deletion.
func Changed(ops []LineOp) bool {
	for _, op := range ops {
		if op.Kind != diffmatchpatch.DiffEqual {
			return true
		}
	}
	return false
}

// Hunks groups a line diff into unified-diff hunks with three lines of
// context.
func Hunks(ops []LineOp) []*diff.Hunk {
	// Line numbers (zero-based) on each side before op i.
	origAt := make([]int, len(ops)+1)
	newAt := make([]int, len(ops)+1)
	for i, op := range ops {
		origAt[i+1], newAt[i+1] = origAt[i], newAt[i]
		if op.Kind != diffmatchpatch.DiffInsert {
			origAt[i+1]++
		}
		if op.Kind != diffmatchpatch.DiffDelete {
			newAt[i+1]++
		}
	}

	var hunks []*diff.Hunk
	i := 0
	for i < len(ops) {
		for i < len(ops) && ops[i].Kind == diffmatchpatch.DiffEqual {
			i++
		}
		if i == len(ops) {
			break
		}

		start := max(i-contextLines, 0)
		end := i
		for end < len(ops) {
			if ops[end].Kind != diffmatchpatch.DiffEqual {
				end++
				continue
			}
			run := end
			for run < len(ops) && ops[run].Kind == diffmatchpatch.DiffEqual {
				run++
			}
			if run == len(ops) || run-end > 2*contextLines {
				end = min(end+contextLines, len(ops))
				break
			}
			end = run
		}

		hunks = append(hunks, buildHunk(ops[start:end], origAt[start], newAt[start]))
		i = end
	}
	return hunks
}

func buildHunk(ops []LineOp, origLine, newLine int) *diff.Hunk {
	var body strings.Builder
	var origLines, newLines int32
	for i, op := range ops {
		switch op.Kind {
		case diffmatchpatch.DiffEqual:
			body.WriteByte(' ')
			origLines++
			newLines++
		case diffmatchpatch.DiffDelete:
			body.WriteByte('-')
			origLines++
		case diffmatchpatch.DiffInsert:
			body.WriteByte('+')
			newLines++
		}
		body.WriteString(op.Text)
		if !(op.NoEOL && i == len(ops)-1) {
			body.WriteByte('\n')
		}
	}

	h := &diff.Hunk{
		OrigStartLine: int32(origLine) + 1,
		OrigLines:     origLines,
		NewStartLine:  int32(newLine) + 1,
		NewLines:      newLines,
		Body:          []byte(body.String()),
	}
	if origLines == 0 {
		h.OrigStartLine = int32(origLine)
	}
	if newLines == 0 {
		h.NewStartLine = int32(newLine)
	}
	return h
}

// UnifiedPatch renders the difference between two versions of a file as a
// unified diff. Identical inputs yield an empty patch.
func UnifiedPatch(origName, newName, a, b string) ([]byte, error) {
	ops := LineDiff(a, b)
	if !Changed(ops) {
		return nil, nil
	}
	return diff.PrintFileDiff(&diff.FileDiff{
		OrigName: origName,
		NewName:  newName,
		Hunks:    Hunks(ops),
	})
}
