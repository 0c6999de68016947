// Package driver orchestrates a single Mercurial source through the
// emitter into one target (spec §4.7), grounded on the teacher's
// readRepo orchestration sequence (surgeon/inner.go: open, validate,
// stream, checkpoint) and on original_source/src/single.rs for the
// exact from/to bookkeeping this reimplements.
package driver

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/kilork/hg-git-fast-import/internal/author"
	"github.com/kilork/hg-git-fast-import/internal/baton"
	"github.com/kilork/hg-git-fast-import/internal/fastimport"
	"github.com/kilork/hg-git-fast-import/internal/hgsource"
	"github.com/kilork/hg-git-fast-import/internal/state"
	"github.com/kilork/hg-git-fast-import/internal/target"
)

// Options carries the knobs a single-source conversion run needs,
// pulled from the resolved repository config and process environment
// (spec §3, §6).
type Options struct {
	Offset              int
	LimitHigh           *int // nil means unbounded
	AllowUnnamedHeads   bool
	DefaultBranch       string
	PathPrefix          string
	BranchPrefix        string
	TagPrefix           string
	PrefixDefaultBranch bool
	FixWrongBranchName  bool
	Clean               bool
	SourcePull          bool
	Verify              bool
	ActiveBranchesCap   int
}

// SourcePuller is implemented by sources that support an external
// pull before conversion (spec §4.7 step 1). Most sources don't; the
// driver only calls it when Options.SourcePull is set.
type SourcePuller interface {
	Pull() error
}

// Result summarizes a completed run; a run that fails after a
// checkpoint returns no Result.
type Result struct {
	Emitted int
}

// Run drives source through the emitter into tgt per spec §4.7.
func Run(source hgsource.Source, tgt target.Target, fixer *author.Fixer, opts Options, progress *baton.Baton) (*Result, error) {
	if opts.SourcePull {
		if puller, ok := source.(SourcePuller); ok {
			if err := puller.Pull(); err != nil {
				return nil, errors.Wrap(err, "source_pull")
			}
		}
	}

	if !source.VerifyHeads(opts.AllowUnnamedHeads) && !opts.AllowUnnamedHeads {
		return nil, errors.New("source repository has unnamed heads; pass allow_unnamed_heads to proceed")
	}

	to := source.Len()
	if opts.LimitHigh != nil && *opts.LimitHigh < to {
		to = *opts.LimitHigh
	}

	sink, saved, defaultBranch, err := tgt.StartImport(target.StartImportOptions{
		Clean:             opts.Clean,
		DefaultBranch:     opts.DefaultBranch,
		ActiveBranchesCap: opts.ActiveBranchesCap,
	})
	if err != nil {
		return nil, errors.Wrap(err, "start_import")
	}
	if defaultBranch != "" {
		opts.DefaultBranch = defaultBranch
	}

	fromCommit, fromTag := 0, 0
	if saved != nil {
		fromCommit = saved.CommitHigh - opts.Offset
		fromTag = saved.TagHigh - opts.Offset
	}

	emitter := fastimport.New(sink, fastimport.Config{
		Offset:              opts.Offset,
		DefaultBranch:       opts.DefaultBranch,
		PathPrefix:          opts.PathPrefix,
		BranchPrefix:        opts.BranchPrefix,
		TagPrefix:           opts.TagPrefix,
		PrefixDefaultBranch: opts.PrefixDefaultBranch,
		FixWrongBranchName:  opts.FixWrongBranchName,
	}, fixer)

	if progress == nil {
		progress = baton.New(nil, true)
	}
	progress.Start(fmt.Sprintf("importing revisions %d..%d", fromCommit, to))

	emitted := 0
	for at := fromCommit; at < to; at++ {
		cs, err := source.Changeset(at)
		if err != nil {
			checkpoint(tgt, at, opts.Offset, fromTag)
			return nil, errors.Wrapf(err, "decoding revision %d", at)
		}
		n, err := emitter.Emit(cs)
		if err != nil {
			checkpoint(tgt, at, opts.Offset, fromTag)
			return nil, errors.Wrapf(err, "emitting revision %d", at)
		}
		emitted += n
		progress.Twirl()
	}

	tagCount := emitter.EmitTags(source.Tags(), fromTag, to)

	finalState := state.SavedState{CommitHigh: to + opts.Offset, TagHigh: to + opts.Offset}
	if err := tgt.SaveState(finalState); err != nil {
		return nil, errors.Wrap(err, "persisting final state")
	}

	if err := tgt.Finish(); err != nil {
		return nil, errors.Wrap(err, "finish")
	}

	progress.End(fmt.Sprintf("%d commits, %d tags", emitted, tagCount))

	if opts.Verify {
		if err := tgt.Verify("", ""); err != nil {
			return nil, errors.Wrap(err, "verify")
		}
	}

	return &Result{Emitted: emitted}, nil
}

// checkpoint persists the resumption cursor at the last successfully
// imported revision (spec §4.7 step 6). It deliberately swallows its
// own save error into a best-effort attempt: the caller is already
// propagating the original emitter failure, which takes priority.
func checkpoint(tgt target.Target, at, offset, fromTag int) {
	if at <= 0 {
		return
	}
	_ = tgt.SaveState(state.SavedState{CommitHigh: at + offset, TagHigh: fromTag + offset})
}
