package panel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

const terminalHelp = "[d] show diff  [a] apply optimized code  [q] close"

// TerminalView renders the report to a writer and turns single-letter
// commands into panel messages.
type TerminalView struct {
	ctrl *Controller
	out  io.Writer

	mu      sync.Mutex
	current Rendering
	closed  bool
}

// TerminalFactory returns a ViewFactory producing TerminalViews on out.
func TerminalFactory(out io.Writer) ViewFactory {
	return func(c *Controller) View {
		return &TerminalView{ctrl: c, out: out}
	}
}

func (v *TerminalView) Open(r Rendering) error {
	return v.Render(r)
}

func (v *TerminalView) Render(r Rendering) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = r
	v.closed = false
	if err := RenderReport(v.out, r); err != nil {
		return err
	}
	_, err := fmt.Fprintln(v.out, dimStyle.Render(terminalHelp))
	return err
}

func (v *TerminalView) Reveal() {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, _ = fmt.Fprintln(v.out, dimStyle.Render("(report updated)"))
}

func (v *TerminalView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	_, _ = fmt.Fprintln(v.out, dimStyle.Render("Report closed."))
}

// Current returns the rendering on display.
func (v *TerminalView) Current() Rendering {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Run reads commands from in until the panel is disposed, in is exhausted,
// or ctx is cancelled. End of input closes the panel.
func (v *TerminalView) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	done := v.ctrl.Done()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case line, ok := <-lines:
			if !ok {
				v.ctrl.OnDispose(v)
				return nil
			}
			// Diff and edit failures have already been notified; the panel
			// stays open for another attempt.
			if err := v.handle(ctx, strings.TrimSpace(line)); errors.Is(err, ErrStaleMessage) {
				return nil
			}
		}
	}
}

func (v *TerminalView) handle(ctx context.Context, cmd string) error {
	r := v.Current()
	switch strings.ToLower(cmd) {
	case "d", "diff":
		return v.ctrl.Dispatch(ctx, ShowDiff{Render: r.ID, Code: r.Result.OptimizedCode})
	case "a", "apply":
		return v.ctrl.Dispatch(ctx, ApplyFix{Render: r.ID, Code: r.Result.OptimizedCode})
	case "q", "quit", "close":
		v.ctrl.OnDispose(v)
		return nil
	case "":
		return nil
	default:
		_, _ = fmt.Fprintln(v.out, dimStyle.Render(terminalHelp))
		return nil
	}
}
