package workspace

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotOpen is returned for URIs with no open document.
var ErrNotOpen = errors.New("document is not open")

// SelectionContext identifies the code sent for analysis. It is captured at
// request time and never updated afterwards.
type SelectionContext struct {
	URI      string `json:"uri"`
	Path     string `json:"path"`
	Range    Range  `json:"range"`
	Language string `json:"language"`
	Text     string `json:"text"`

	// AuditID links the selection to its stored analysis, when one exists.
	AuditID string `json:"audit_id,omitempty"`
}

// Workspace is the set of open documents.
type Workspace struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// New creates an empty Workspace.
func New() *Workspace {
	return &Workspace{docs: make(map[string]*Document)}
}

// URIFor returns the file URI of a path.
func URIFor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// Open reads path from disk and registers it as an open document. Opening an
// already open file reloads it.
func (w *Workspace) Open(path string) (*Document, error) {
	uri, err := URIFor(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	abs, _ := filepath.Abs(path)

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	version := 1
	if prev, ok := w.docs[uri]; ok {
		version = prev.Version + 1
	}
	doc := &Document{
		URI:      uri,
		Path:     abs,
		Language: LanguageFor(abs),
		Text:     string(data),
		Version:  version,
	}
	w.docs[uri] = doc
	return copyDoc(doc), nil
}

// Close removes a document from the workspace. Closing an unknown URI is a
// no-op.
func (w *Workspace) Close(uri string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.docs, uri)
}

// Document returns a snapshot of an open document.
func (w *Workspace) Document(uri string) (*Document, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	doc, ok := w.docs[uri]
	if !ok {
		return nil, false
	}
	return copyDoc(doc), true
}

// Select captures the selection context for r in the open document uri.
func (w *Workspace) Select(uri string, r Range) (SelectionContext, error) {
	doc, ok := w.Document(uri)
	if !ok {
		return SelectionContext{}, fmt.Errorf("%w: %s", ErrNotOpen, uri)
	}
	text, err := doc.TextInRange(r)
	if err != nil {
		return SelectionContext{}, err
	}
	return SelectionContext{
		URI:      doc.URI,
		Path:     doc.Path,
		Range:    r,
		Language: doc.Language,
		Text:     text,
	}, nil
}

// update replaces the text of an open document and bumps its version.
func (w *Workspace) update(uri, text string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[uri]
	if !ok {
		return false
	}
	doc.Text = text
	doc.Version++
	return true
}

func copyDoc(d *Document) *Document {
	c := *d
	return &c
}

// DisplayName returns the file name of a selection for messages.
func (s SelectionContext) DisplayName() string {
	if s.Path != "" {
		return filepath.Base(s.Path)
	}
	return s.URI[strings.LastIndex(s.URI, "/")+1:]
}
