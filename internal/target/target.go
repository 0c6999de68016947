// Package target abstracts over "write to an existing Git directory"
// and "write to a raw output sink" (spec §4.6), grounded on the
// teacher's subprocess-wrapping idiom for spawning an external VCS
// tool (surgeon/inner.go readRepo/fastImport) and on
// golang-dep/internal/gps/vcs_repo.go's pattern of wrapping external
// VCS commands behind a narrow Go interface.
package target

import (
	"io"

	"github.com/kilork/hg-git-fast-import/internal/state"
)

// StartImportOptions carries the knobs §4.6's start_import needs.
type StartImportOptions struct {
	Clean             bool
	DefaultBranch     string
	ActiveBranchesCap int // 0 means unset
}

// Target is the capability set the core depends on (spec §4.6, §9).
// Optional multi-source capabilities have defaulted
// (no-op/"unimplemented") implementations on embeddable base types
// below, matching the spec's note that target variants are
// polymorphic over this capability set.
type Target interface {
	// StartImport initializes (or validates) the target and launches
	// the fast-import child, returning its stdin as the writable
	// sink, any previously saved state, and the resolved default
	// branch name.
	StartImport(opts StartImportOptions) (sink io.WriteCloser, saved *state.SavedState, defaultBranch string, err error)
	// Finish closes the sink, waits for the importer, and performs
	// post-import cleanup.
	Finish() error
	// Verify compares the checked-out target (optionally scoped to
	// subfolder) against sourcePath.
	Verify(sourcePath, subfolder string) error
	SaveState(s state.SavedState) error
	GetSavedState() (*state.SavedState, error)

	// Multi-source aggregation capabilities.
	RemoteList() ([]string, error)
	RemoteAdd(name, url string) error
	Checkout(branch string) error
	FetchAll() error
	MergeUnrelated(branches []string) error
}

// Unimplemented provides default bodies for every capability except
// StartImport and Finish, for targets (like StdoutTarget) that only
// ever serve a single-source conversion to an opaque sink. SaveState
// and GetSavedState are no-ops; the others return an error.
type Unimplemented struct{}

func (Unimplemented) Verify(sourcePath, subfolder string) error {
	return &Error{Kind: IOError, Detail: "verify is not supported by this target"}
}

func (Unimplemented) SaveState(s state.SavedState) error { return nil }

func (Unimplemented) GetSavedState() (*state.SavedState, error) { return nil, nil }

func (Unimplemented) RemoteList() ([]string, error) {
	return nil, &Error{Kind: IOError, Detail: "remotes are not supported by this target"}
}

func (Unimplemented) RemoteAdd(name, url string) error {
	return &Error{Kind: IOError, Detail: "remotes are not supported by this target"}
}

func (Unimplemented) Checkout(branch string) error {
	return &Error{Kind: IOError, Detail: "checkout is not supported by this target"}
}

func (Unimplemented) FetchAll() error {
	return &Error{Kind: IOError, Detail: "fetch is not supported by this target"}
}

func (Unimplemented) MergeUnrelated(branches []string) error {
	return &Error{Kind: IOError, Detail: "merge is not supported by this target"}
}
