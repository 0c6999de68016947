// Package baton reports conversion progress to stderr with a twirling
// indicator when attached to a terminal, adapted from the teacher's
// Baton type (surgeon/pager.go, cutter/repocutter.go) but stripped
// down to the progress-twirl/summary half — this tool has no paged
// interactive output.
package baton

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

// Baton ships progress indications to a writer, suppressed entirely
// when quiet is set (the --cron flag, spec §4.7: "Progress reporting
// is suppressed when cron is on").
type Baton struct {
	w      io.Writer
	quiet  bool
	isTerm bool
	count  int
	start  time.Time
}

// New creates a Baton writing to w. quiet suppresses all output
// (used under --cron).
func New(w io.Writer, quiet bool) *Baton {
	isTerm := false
	if f, ok := w.(*os.File); ok {
		isTerm = term.IsTerminal(int(f.Fd()))
	}
	return &Baton{w: w, quiet: quiet, isTerm: isTerm, start: time.Now()}
}

// Start announces the beginning of an operation.
func (b *Baton) Start(legend string) {
	if b.quiet {
		return
	}
	fmt.Fprintf(b.w, "%s...", legend)
	if b.isTerm {
		fmt.Fprint(b.w, " \b")
	}
}

// Twirl advances the progress indicator by one tick.
func (b *Baton) Twirl() {
	if b.quiet || !b.isTerm {
		return
	}
	fmt.Fprintf(b.w, "%c\b", "-/|\\"[b.count%4])
	b.count++
}

// End announces completion with a summary message.
func (b *Baton) End(msg string) {
	if b.quiet {
		return
	}
	fmt.Fprintf(b.w, "...(%s) %s.\n", time.Since(b.start).Round(time.Millisecond), msg)
}
