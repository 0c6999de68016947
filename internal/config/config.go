// Package config loads the declarative, nested-table configuration
// file (spec §6) and the flat author-mapping file (spec §4.2), using
// github.com/pelletier/go-toml the way golang-dep's toml.go queries a
// *toml.Tree into Go structs.
package config

import (
	"bufio"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// RepoConfig is the single-repo configuration form (spec §3 "Repository
// config", §6 single-repo keys).
type RepoConfig struct {
	Offset              int
	Authors             map[string]string
	Branches            map[string]string
	AllowUnnamedHeads   bool
	PathPrefix          string
	BranchPrefix        string
	TagPrefix           string
	PrefixDefaultBranch bool
	DefaultBranch       string
	HighRevisionLimit   *int
}

// RepositoryEntry is one entry in a multi-repo config's `repositories`
// array.
type RepositoryEntry struct {
	Alias          string
	PathHg         string
	PathGit        string
	Config         RepoConfig
	MergedBranches map[string]string // branch_to -> branch_from
}

// MultiConfig is the multi-repo configuration form (spec §6).
type MultiConfig struct {
	PathGit      string
	Repositories []RepositoryEntry
}

// LoadSingle reads the single-repo configuration form from path.
// limit_high is deliberately absent: the spec requires it come only
// from the CLI.
func LoadSingle(path string) (*RepoConfig, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading config %s", path)
	}
	return repoConfigFromTree(tree)
}

func repoConfigFromTree(tree *toml.Tree) (*RepoConfig, error) {
	rc := &RepoConfig{
		Authors:  map[string]string{},
		Branches: map[string]string{},
	}
	if v, ok := tree.Get("offset").(int64); ok {
		rc.Offset = int(v)
	}
	if v, ok := tree.Get("path_prefix").(string); ok {
		rc.PathPrefix = v
	}
	if v, ok := tree.Get("branch_prefix").(string); ok {
		rc.BranchPrefix = v
	}
	if v, ok := tree.Get("tag_prefix").(string); ok {
		rc.TagPrefix = v
	}
	if v, ok := tree.Get("default_branch").(string); ok {
		rc.DefaultBranch = v
	}
	if v, ok := tree.Get("allow_unnamed_heads").(bool); ok {
		rc.AllowUnnamedHeads = v
	}
	if v, ok := tree.Get("prefix_default_branch").(bool); ok {
		rc.PrefixDefaultBranch = v
	}
	if sub, ok := tree.Get("authors").(*toml.Tree); ok {
		for k, v := range sub.ToMap() {
			if s, ok := v.(string); ok {
				rc.Authors[k] = s
			}
		}
	}
	if sub, ok := tree.Get("branches").(*toml.Tree); ok {
		for k, v := range sub.ToMap() {
			if s, ok := v.(string); ok {
				rc.Branches[k] = s
			}
		}
	}
	return rc, nil
}

// LoadMulti reads the multi-repo configuration form from path.
func LoadMulti(path string) (*MultiConfig, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading config %s", path)
	}
	mc := &MultiConfig{}
	if v, ok := tree.Get("path_git").(string); ok {
		mc.PathGit = v
	}
	trees, ok := tree.Get("repositories").([]*toml.Tree)
	if !ok {
		return nil, errors.Errorf("%s: missing [[repositories]] array", path)
	}
	for _, rt := range trees {
		entry := RepositoryEntry{MergedBranches: map[string]string{}}
		if v, ok := rt.Get("alias").(string); ok {
			entry.Alias = v
		}
		if v, ok := rt.Get("path_hg").(string); ok {
			entry.PathHg = v
		}
		if v, ok := rt.Get("path_git").(string); ok {
			entry.PathGit = v
		}
		if sub, ok := rt.Get("config").(*toml.Tree); ok {
			rc, err := repoConfigFromTree(sub)
			if err != nil {
				return nil, err
			}
			entry.Config = *rc
		} else {
			entry.Config = RepoConfig{Authors: map[string]string{}, Branches: map[string]string{}}
		}
		if sub, ok := rt.Get("merged_branches").(*toml.Tree); ok {
			for k, v := range sub.ToMap() {
				if s, ok := v.(string); ok {
					entry.MergedBranches[k] = s
				}
			}
		}
		mc.Repositories = append(mc.Repositories, entry)
	}
	return mc, nil
}

// LoadAuthors parses a flat author-mapping file of "local = Name
// <email>" lines, blank lines and "#" comments ignored, grounded on
// the teacher's readAuthorMap (surgeon/inner.go).
func LoadAuthors(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening authors file %s", path)
	}
	defer f.Close()

	out := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		local := strings.TrimSpace(line[:idx])
		mapped := strings.TrimSpace(line[idx+1:])
		if local == "" || mapped == "" {
			continue
		}
		out[local] = mapped
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading authors file %s", path)
	}
	return out, nil
}

// Environment is the process-wide flag set (spec §3 "Environment").
type Environment struct {
	Clean                     bool
	Cron                      bool
	TargetPush                bool
	TargetPull                bool
	SourcePull                bool
	NoCleanClosedBranches     bool
	FixWrongBranchname        bool
	IgnoreUnknownRequirements bool
	GlobalAuthors             map[string]string
}
