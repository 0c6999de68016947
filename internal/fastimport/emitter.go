// Package fastimport serializes Mercurial changesets into Git's
// fast-import command grammar (spec §4.4), grounded on the teacher's
// fastExport/fastImport pair (surgeon/inner.go), which both read and
// write this exact stream format.
package fastimport

import (
	"fmt"
	"io"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/kilork/hg-git-fast-import/internal/author"
	"github.com/kilork/hg-git-fast-import/internal/hgsource"
	"github.com/kilork/hg-git-fast-import/internal/markid"
	"github.com/kilork/hg-git-fast-import/internal/refname"
)

const nullSHA = "0000000000000000000000000000000000000000"

// Config carries the per-source knobs §4.4 and §3 describe.
type Config struct {
	Offset              int
	DefaultBranch       string
	PathPrefix          string
	BranchPrefix        string
	TagPrefix           string
	PrefixDefaultBranch bool
	FixWrongBranchName  bool
}

// Emitter writes one source's changesets and tags to a sink in
// fast-import grammar. A fresh Emitter owns its own branch map (spec
// §3: "created empty per run, populated lazily ... discarded at end");
// never share one across sources in a multi-import.
type Emitter struct {
	w         io.Writer
	cfg       Config
	authors   *author.Fixer
	branchMap *linkedhashmap.Map // raw Mercurial branch name -> sanitized ref short-name
}

// New builds an Emitter writing to w.
func New(w io.Writer, cfg Config, authors *author.Fixer) *Emitter {
	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = "master"
	}
	return &Emitter{
		w:         w,
		cfg:       cfg,
		authors:   authors,
		branchMap: linkedhashmap.New(),
	}
}

func formatTZ(tzOffsetSeconds int) string {
	neg := -tzOffsetSeconds
	sign := "+"
	if neg < 0 {
		sign = "-"
		neg = -neg
	}
	hours := neg / 3600
	minutes := (neg % 3600) / 60
	return fmt.Sprintf("%s%02d%02d", sign, hours, minutes)
}

// resolveBranch sanitizes and memoizes the Git ref short-name for a
// changeset's raw Mercurial branch, per spec §4.4 step 3.
func (e *Emitter) resolveBranch(raw string) string {
	if v, ok := e.branchMap.Get(raw); ok {
		return v.(string)
	}
	prefix := ""
	if raw != e.cfg.DefaultBranch || e.cfg.PrefixDefaultBranch {
		prefix = e.cfg.BranchPrefix
	}
	sanitized := refname.Sanitize(raw, prefix, e.cfg.FixWrongBranchName)
	e.branchMap.Put(raw, sanitized)
	return sanitized
}

// Emit writes one changeset's commands and returns 1 on success (the
// caller accumulates this into its running emit counter, spec §4.4
// step 9).
func (e *Emitter) Emit(cs hgsource.Changeset) (int, error) {
	authorLine, err := e.resolveAuthorLine(cs)
	if err != nil {
		return 0, err
	}

	branch := cs.Branch(e.cfg.DefaultBranch)
	branchRef := e.resolveBranch(branch)
	mark := markid.ForRevision(cs.Revision, e.cfg.Offset)

	if cs.Parent1 != nil || cs.Parent2 != nil || cs.Revision != 0 {
		fmt.Fprintf(e.w, "reset refs/heads/%s\n", branchRef)
	}

	fmt.Fprintf(e.w, "commit refs/heads/%s\n", branchRef)
	fmt.Fprintf(e.w, "mark :%d\n", mark)
	fmt.Fprintf(e.w, "author %s\n", authorLine)
	fmt.Fprintf(e.w, "committer %s\n", authorLine)
	fmt.Fprintf(e.w, "data %d\n%s\n\n", len(cs.Comment)+1, cs.Comment)

	switch {
	case cs.Parent1 != nil && cs.Parent2 != nil:
		fmt.Fprintf(e.w, "from :%d\n", markid.ForRevision(*cs.Parent1, e.cfg.Offset))
		fmt.Fprintf(e.w, "merge :%d\n", markid.ForRevision(*cs.Parent2, e.cfg.Offset))
	case cs.Parent1 != nil:
		fmt.Fprintf(e.w, "from :%d\n", markid.ForRevision(*cs.Parent1, e.cfg.Offset))
	case cs.Parent2 != nil:
		fmt.Fprintf(e.w, "from :%d\n", markid.ForRevision(*cs.Parent2, e.cfg.Offset))
	}

	pathPrefix := ""
	if e.cfg.PathPrefix != "" {
		pathPrefix = e.cfg.PathPrefix + "/"
	}
	for _, op := range cs.FileOps {
		switch {
		case op.Deleted && !op.HasData:
			fmt.Fprintf(e.w, "D %s%s\n", pathPrefix, op.Path)
		case !op.Deleted && op.HasData:
			fmt.Fprintf(e.w, "M %s inline %s%s\n", op.Mode.GitMode(), pathPrefix, op.Path)
			fmt.Fprintf(e.w, "data %d\n", len(op.Content))
			if _, err := e.w.Write(op.Content); err != nil {
				return 0, err
			}
		default:
			return 0, &hgsource.WrongFileData{Path: op.Path}
		}
	}

	if cs.Closed() {
		fmt.Fprintf(e.w, "reset refs/tags/archive/%s\n", branchRef)
		fmt.Fprintf(e.w, "from :%d\n\n", mark)
		fmt.Fprintf(e.w, "reset refs/heads/%s\n", branchRef)
		fmt.Fprintf(e.w, "from %s\n\n", nullSHA)
	}

	return 1, nil
}

func (e *Emitter) resolveAuthorLine(cs hgsource.Changeset) (string, error) {
	name, err := e.authors.Fix(cs.Author)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %d %s", name, cs.Timestamp, formatTZ(cs.TZOffset)), nil
}

// EmitTags writes reset commands for every tag whose revision falls
// in [from, to), in the source's tag-table order (spec §8 property 5:
// tags are emitted after all commits in the same range).
func (e *Emitter) EmitTags(tags []hgsource.TagEntry, from, to int) int {
	count := 0
	for _, t := range tags {
		if t.Revision < from || t.Revision >= to {
			continue
		}
		name := refname.Sanitize(t.Name, e.cfg.TagPrefix, false)
		fmt.Fprintf(e.w, "reset refs/tags/%s\n", name)
		fmt.Fprintf(e.w, "from :%d\n\n", markid.ForRevision(t.Revision, e.cfg.Offset))
		count++
	}
	return count
}
