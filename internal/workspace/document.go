// Package workspace holds the documents open for analysis and the single
// path through which optimized code is written back to them.
package workspace

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Position is a zero-based line and character offset. Characters count
// runes, not bytes.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open span [Start, End) within a document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// String renders the range as "L:C-L:C" with one-based lines and columns,
// the form accepted by ParseRange.
func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.Start.Line+1, r.Start.Character+1, r.End.Line+1, r.End.Character+1)
}

// IsEmpty reports whether the range covers no text.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// ParseRange parses "L:C-L:C" with one-based lines and columns.
func ParseRange(s string) (Range, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, fmt.Errorf("invalid range %q: want L:C-L:C", s)
	}
	start, err := parsePosition(from)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	end, err := parsePosition(to)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	r := Range{Start: start, End: end}
	if before(r.End, r.Start) {
		return Range{}, fmt.Errorf("invalid range %q: end precedes start", s)
	}
	return r, nil
}

// ParseLines parses "A-B" (or a single "A") as one-based inclusive line
// numbers.
func ParseLines(s string) (from, to int, err error) {
	a, b, found := strings.Cut(strings.TrimSpace(s), "-")
	from, err = strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid line span %q", s)
	}
	to = from
	if found {
		to, err = strconv.Atoi(strings.TrimSpace(b))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid line span %q", s)
		}
	}
	if from < 1 || to < from {
		return 0, 0, fmt.Errorf("invalid line span %q", s)
	}
	return from, to, nil
}

func parsePosition(s string) (Position, error) {
	l, c, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Position{}, fmt.Errorf("position %q: want L:C", s)
	}
	line, err := strconv.Atoi(l)
	if err != nil || line < 1 {
		return Position{}, fmt.Errorf("position %q: bad line", s)
	}
	col, err := strconv.Atoi(c)
	if err != nil || col < 1 {
		return Position{}, fmt.Errorf("position %q: bad column", s)
	}
	return Position{Line: line - 1, Character: col - 1}, nil
}

func before(a, b Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Character < b.Character)
}

// Document is a snapshot of an open file.
type Document struct {
	URI      string
	Path     string
	Language string
	Text     string
	Version  int
}

// LineCount returns the number of lines; an empty document has one.
func (d *Document) LineCount() int {
	return len(lineStarts(d.Text))
}

// Offset converts a position to a byte offset into Text.
func (d *Document) Offset(p Position) (int, error) {
	return offsetIn(d.Text, p)
}

// TextInRange returns the text covered by r.
func (d *Document) TextInRange(r Range) (string, error) {
	return textInRange(d.Text, r)
}

// LinesRange returns the range spanning one-based lines from..to inclusive,
// ending at the end of the last line without its line break.
func (d *Document) LinesRange(from, to int) (Range, error) {
	starts := lineStarts(d.Text)
	if from < 1 || to < from || to > len(starts) {
		return Range{}, fmt.Errorf("lines %d-%d outside document of %d lines", from, to, len(starts))
	}
	last := lineContent(d.Text, starts, to-1)
	return Range{
		Start: Position{Line: from - 1},
		End:   Position{Line: to - 1, Character: utf8.RuneCountInString(last)},
	}, nil
}

// Replace returns the document text with r replaced by replacement.
func (d *Document) Replace(r Range, replacement string) (string, error) {
	return replaceRange(d.Text, r, replacement)
}

func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineContent returns line i without its terminator.
func lineContent(text string, starts []int, i int) string {
	end := len(text)
	if i+1 < len(starts) {
		end = starts[i+1] - 1
	}
	line := text[starts[i]:end]
	return strings.TrimSuffix(line, "\r")
}

func offsetIn(text string, p Position) (int, error) {
	starts := lineStarts(text)
	if p.Line < 0 || p.Line >= len(starts) || p.Character < 0 {
		return 0, fmt.Errorf("position %d:%d out of bounds", p.Line+1, p.Character+1)
	}
	line := lineContent(text, starts, p.Line)
	off := 0
	for n := 0; n < p.Character; n++ {
		if off >= len(line) {
			return 0, fmt.Errorf("position %d:%d out of bounds", p.Line+1, p.Character+1)
		}
		_, size := utf8.DecodeRuneInString(line[off:])
		off += size
	}
	return starts[p.Line] + off, nil
}

func spanOf(text string, r Range) (int, int, error) {
	if before(r.End, r.Start) {
		return 0, 0, fmt.Errorf("range %s is inverted", r)
	}
	start, err := offsetIn(text, r.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := offsetIn(text, r.End)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func textInRange(text string, r Range) (string, error) {
	start, end, err := spanOf(text, r)
	if err != nil {
		return "", err
	}
	return text[start:end], nil
}

func replaceRange(text string, r Range, replacement string) (string, error) {
	start, end, err := spanOf(text, r)
	if err != nil {
		return "", err
	}
	return text[:start] + replacement + text[end:], nil
}

var languages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascriptreact",
	".ts":    "typescript",
	".tsx":   "typescriptreact",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".scala": "scala",
	".sql":   "sql",
	".sh":    "shellscript",
}

// LanguageFor returns the language identifier for a file path, or
// "plaintext" when the extension is unknown.
func LanguageFor(path string) string {
	if lang, ok := languages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "plaintext"
}
