package target

import (
	"io"

	"github.com/kilork/hg-git-fast-import/internal/state"
)

// nopWriteCloser adapts an io.Writer that must not be closed (e.g.
// os.Stdout) to io.WriteCloser.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// StdoutTarget writes the fast-import stream straight to an opaque
// sink with no filesystem side effects (spec §4.6 "an alternative
// target variant"). It implements only StartImport (returning no
// saved state) and a no-op Finish; every other capability is
// inherited from Unimplemented.
type StdoutTarget struct {
	Unimplemented
	Sink io.Writer
}

// NewStdoutTarget builds a StdoutTarget writing to sink.
func NewStdoutTarget(sink io.Writer) *StdoutTarget {
	return &StdoutTarget{Sink: sink}
}

func (t *StdoutTarget) StartImport(opts StartImportOptions) (io.WriteCloser, *state.SavedState, string, error) {
	defaultBranch := opts.DefaultBranch
	if defaultBranch == "" {
		defaultBranch = "master"
	}
	return nopWriteCloser{t.Sink}, nil, defaultBranch, nil
}

func (t *StdoutTarget) Finish() error { return nil }
