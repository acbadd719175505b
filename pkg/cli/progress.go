package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// PollReporter prints upload poll progress for any number of concurrent
// targets. On a terminal every attempt is shown; otherwise only state
// changes, so logs stay short.
type PollReporter struct {
	mu          sync.Mutex
	writer      io.Writer
	interactive bool
	last        map[string]string
}

// NewPollReporter creates a reporter writing to w. If w is nil, it
// defaults to os.Stderr.
func NewPollReporter(w io.Writer) *PollReporter {
	if w == nil {
		w = os.Stderr
	}
	return &PollReporter{
		writer:      w,
		interactive: IsTerminal(w),
		last:        make(map[string]string),
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Update reports the state seen on one poll attempt.
func (p *PollReporter) Update(target string, attempt, bound int, state string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.interactive && p.last[target] == state {
		return
	}
	p.last[target] = state
	fmt.Fprintf(p.writer, "%s %s %s\n",
		StyleMuted.Render(fmt.Sprintf("[%d/%d]", attempt, bound)),
		target,
		StatusLabel(state),
	)
}

// Finish reports the end of a target's poll session.
func (p *PollReporter) Finish(target, outcome, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.last, target)
	line := fmt.Sprintf("%s %s", StatusLabel(outcome), StyleBold.Render(target))
	if detail != "" {
		line += " " + StyleMuted.Render(detail)
	}
	fmt.Fprintln(p.writer, line)
}
