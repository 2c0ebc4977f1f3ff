// Package panel manages the single interactive report shown after an
// analysis and routes the requests coming back from it.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/gordyrad/green-refactor/internal/analysis"
	"github.com/gordyrad/green-refactor/internal/diffview"
	"github.com/gordyrad/green-refactor/internal/notify"
	"github.com/gordyrad/green-refactor/internal/workspace"
)

var (
	// ErrStaleMessage is returned for messages whose rendering no longer
	// exists, typically because the panel was closed.
	ErrStaleMessage = errors.New("panel message refers to a closed report")

	// ErrNoSession is returned when an operation needs an open panel.
	ErrNoSession = errors.New("no report panel is open")

	// ErrCodeMismatch is returned for messages whose code differs from the
	// optimized code of the rendering they refer to.
	ErrCodeMismatch = errors.New("panel message code does not match the rendered report")
)

// Rendering is one state of the report shown by a view.
type Rendering struct {
	ID        string
	Result    analysis.Result
	Selection workspace.SelectionContext
}

// View displays renderings. Implementations must not call back into the
// Controller from these methods.
type View interface {
	Open(r Rendering) error
	Render(r Rendering) error
	Reveal()
	Close()
}

// ViewFactory creates the view for a new session.
type ViewFactory func(c *Controller) View

// DiffViewer shows optimized code against the original document.
type DiffViewer interface {
	Show(ctx context.Context, sel workspace.SelectionContext, code string) (*diffview.Preview, error)
}

// EditApplier writes optimized code into the original document.
type EditApplier interface {
	Apply(ctx context.Context, sel workspace.SelectionContext, code string) error
}

// Session is the state of the open panel.
type Session struct {
	RenderID  string
	Result    analysis.Result
	Selection workspace.SelectionContext
	view      View
}

// Controller owns at most one Session at a time.
type Controller struct {
	newView  ViewFactory
	diff     DiffViewer
	edits    EditApplier
	notifier notify.Notifier

	mu      sync.Mutex
	session *Session
	renders map[string]Rendering
	done    chan struct{}
}

// NewController creates a Controller with no open panel.
func NewController(newView ViewFactory, diff DiffViewer, edits EditApplier, n notify.Notifier) *Controller {
	if n == nil {
		n = notify.Discard{}
	}
	done := make(chan struct{})
	close(done)
	return &Controller{
		newView:  newView,
		diff:     diff,
		edits:    edits,
		notifier: n,
		renders:  make(map[string]Rendering),
		done:     done,
	}
}

// ShowReport opens the panel, or replaces the content of the open one and
// brings it to the front.
func (c *Controller) ShowReport(result analysis.Result, sel workspace.SelectionContext) (Rendering, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := Rendering{ID: uuid.NewString(), Result: result, Selection: sel}

	if c.session == nil {
		view := c.newView(c)
		if err := view.Open(r); err != nil {
			return Rendering{}, fmt.Errorf("opening report panel: %w", err)
		}
		c.session = &Session{view: view}
		c.done = make(chan struct{})
		slog.Debug("panel: opened", "render", r.ID)
	} else {
		if err := c.session.view.Render(r); err != nil {
			return Rendering{}, fmt.Errorf("updating report panel: %w", err)
		}
		c.session.view.Reveal()
		slog.Debug("panel: replaced content", "render", r.ID)
	}

	c.session.RenderID = r.ID
	c.session.Result = result
	c.session.Selection = sel
	c.renders[r.ID] = r
	return r, nil
}

// Current returns a copy of the open session.
func (c *Controller) Current() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// IsOpen reports whether a panel is open.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// View returns the view of the open panel, or nil.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.view
}

// Done returns a channel closed when the current panel is disposed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Reveal brings the open panel to the front.
func (c *Controller) Reveal() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNoSession
	}
	c.session.view.Reveal()
	return nil
}

// Dispose closes the panel. It is safe to call when no panel is open.
func (c *Controller) Dispose() {
	c.release(func(*Session) bool { return true })
}

// OnDispose is called by a view that was closed by the user. Calls from a
// view that no longer owns the session are ignored.
func (c *Controller) OnDispose(v View) {
	c.release(func(s *Session) bool { return s.view == v })
}

// release closes the session when match accepts it.
func (c *Controller) release(match func(*Session) bool) {
	c.mu.Lock()
	if c.session == nil || !match(c.session) {
		c.mu.Unlock()
		return
	}
	view := c.session.view
	c.session = nil
	c.renders = make(map[string]Rendering)
	close(c.done)
	c.mu.Unlock()

	view.Close()
	slog.Debug("panel: disposed")
}

// Dispatch handles a message from a view. The message is resolved against
// the selection captured for its own rendering, never the latest one, and
// must carry that rendering's optimized code.
func (c *Controller) Dispatch(ctx context.Context, msg Message) error {
	c.mu.Lock()
	r, ok := c.renders[msg.RenderID()]
	c.mu.Unlock()
	if !ok {
		return ErrStaleMessage
	}

	switch m := msg.(type) {
	case ShowDiff:
		if m.Code != r.Result.OptimizedCode {
			return ErrCodeMismatch
		}
		if _, err := c.diff.Show(ctx, r.Selection, m.Code); err != nil {
			c.notifier.Error(fmt.Sprintf("Could not show diff: %v", err))
			return err
		}
		return nil
	case ApplyFix:
		if m.Code != r.Result.OptimizedCode {
			return ErrCodeMismatch
		}
		if err := c.edits.Apply(ctx, r.Selection, m.Code); err != nil {
			return err
		}
		c.applied(r.ID)
		return nil
	default:
		return fmt.Errorf("unsupported panel message %T", msg)
	}
}

// applied closes the panel when id is the report on screen. An older
// rendering only loses its snapshot, so it cannot be applied twice.
func (c *Controller) applied(id string) {
	c.mu.Lock()
	delete(c.renders, id)
	c.mu.Unlock()
	c.release(func(s *Session) bool { return s.RenderID == id })
}
