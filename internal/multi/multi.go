// Package multi aggregates several Mercurial sources into one Git
// repository (spec §4.8), grounded on original_source/src/multi.rs
// (remote-add-once, fetch-all, merge-unrelated-histories sequencing)
// translated into the teacher's subprocess-wrapping idiom already
// used by internal/target.
package multi

import (
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/kilork/hg-git-fast-import/internal/author"
	"github.com/kilork/hg-git-fast-import/internal/baton"
	"github.com/kilork/hg-git-fast-import/internal/config"
	"github.com/kilork/hg-git-fast-import/internal/driver"
	"github.com/kilork/hg-git-fast-import/internal/hgsource"
	"github.com/kilork/hg-git-fast-import/internal/target"
)

// OpenSource opens the Mercurial repository at pathHg. The revlog
// parser it delegates to is an external collaborator (spec §1
// "out of scope"); callers supply their own implementation.
type OpenSource func(pathHg string, opts hgsource.OpenOptions) (hgsource.Source, error)

// Run executes Phases A and B of spec §4.8: per-source export
// followed by top-level aggregation. env applies process-wide to
// every per-source driver run; each repository's own RepoConfig
// supplies its offset, limit, and branch-naming knobs.
func Run(cfg *config.MultiConfig, env config.Environment, openSource OpenSource, fixer *author.Fixer, progress *baton.Baton) error {
	// Phase A: per-source export, configuration order.
	for _, repo := range cfg.Repositories {
		source, err := openSource(repo.PathHg, hgsource.OpenOptions{
			IgnoreUnknownRequirements: env.IgnoreUnknownRequirements,
		})
		if err != nil {
			return errors.Wrapf(err, "opening source %s", repo.Alias)
		}
		repoFixer := fixer
		if len(repo.Config.Authors) > 0 {
			repoFixer = author.NewFixer(repo.Config.Authors, fixer.GlobalMap)
		}

		tgt := target.NewGitTarget(repo.PathGit, env)
		opts := driver.Options{
			Offset:              repo.Config.Offset,
			AllowUnnamedHeads:   repo.Config.AllowUnnamedHeads,
			DefaultBranch:       repo.Config.DefaultBranch,
			PathPrefix:          repo.Config.PathPrefix,
			BranchPrefix:        repo.Config.BranchPrefix,
			TagPrefix:           repo.Config.TagPrefix,
			PrefixDefaultBranch: repo.Config.PrefixDefaultBranch,
			FixWrongBranchName:  env.FixWrongBranchname,
			Clean:               env.Clean,
			SourcePull:          env.SourcePull,
		}
		if repo.Config.HighRevisionLimit != nil {
			opts.LimitHigh = repo.Config.HighRevisionLimit
		}
		if _, err := driver.Run(source, tgt, repoFixer, opts, progress); err != nil {
			return errors.Wrapf(err, "exporting source %s", repo.Alias)
		}
	}

	// Phase B: aggregation.
	agg := target.NewGitTarget(cfg.PathGit, env)
	created, err := agg.EnsureRepoExists()
	if err != nil {
		return errors.Wrap(err, "ensuring aggregation repository")
	}

	existingRemotes, err := agg.RemoteList()
	if err != nil {
		return errors.Wrap(err, "listing existing remotes")
	}
	remoteSet := map[string]bool{}
	for _, r := range existingRemotes {
		remoteSet[r] = true
	}

	for _, repo := range cfg.Repositories {
		alias := repo.Alias
		if alias == "" {
			alias = repo.Config.PathPrefix
		}
		if remoteSet[alias] {
			continue
		}
		absPath, err := filepath.Abs(repo.PathGit)
		if err != nil {
			absPath = repo.PathGit
		}
		if err := agg.RemoteAdd(alias, absPath); err != nil {
			return errors.Wrapf(err, "adding remote %s", alias)
		}
		remoteSet[alias] = true
	}

	if err := agg.FetchAll(); err != nil {
		return errors.Wrap(err, "fetching all remotes")
	}

	// Collect (branch_to -> [branch_from refs]) across all sources,
	// keyed and ordered by configuration order so ties resolve
	// deterministically.
	type mergeRequest struct {
		branchTo    string
		branchFroms []string
	}
	var requests []mergeRequest
	index := map[string]int{}
	for _, repo := range cfg.Repositories {
		alias := repo.Alias
		if alias == "" {
			alias = repo.Config.PathPrefix
		}
		branchTos := make([]string, 0, len(repo.MergedBranches))
		for branchTo := range repo.MergedBranches {
			branchTos = append(branchTos, branchTo)
		}
		sort.Strings(branchTos)
		for _, branchTo := range branchTos {
			branchFrom := repo.MergedBranches[branchTo]
			ref := alias + "/" + branchFrom
			if i, ok := index[branchTo]; ok {
				requests[i].branchFroms = append(requests[i].branchFroms, ref)
			} else {
				index[branchTo] = len(requests)
				requests = append(requests, mergeRequest{branchTo: branchTo, branchFroms: []string{ref}})
			}
		}
	}

	for _, req := range requests {
		if err := agg.Checkout(req.branchTo); err != nil {
			return errors.Wrapf(err, "checking out %s", req.branchTo)
		}
		if created {
			for _, ref := range req.branchFroms {
				if err := agg.MergeUnrelated([]string{ref}); err != nil {
					return errors.Wrapf(err, "merging %s into %s", ref, req.branchTo)
				}
			}
		} else {
			if err := agg.MergeUnrelated(req.branchFroms); err != nil {
				return errors.Wrapf(err, "merging %v into %s", req.branchFroms, req.branchTo)
			}
		}
	}

	return nil
}
