package target

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ianbruene/go-difflib/difflib"
	"github.com/kilork/hg-git-fast-import/internal/config"
	"github.com/kilork/hg-git-fast-import/internal/state"
)

// marksFileName is the fixed basename of the fast-import marks file
// kept under a target's control directory, so a resumed import can
// pass it back in as --import-marks.
const marksFileName = "hg-git-fast-import-marks"

// GitTarget drives a real on-disk Git repository through an external
// `git fast-import` child process, grounded on the teacher's own
// subprocess-wrapping idiom for invoking an external VCS tool
// (surgeon/inner.go readRepo/fastImport) and on
// golang-dep/internal/gps/vcs_repo.go's ctxRepo pattern of shelling
// out to `git` for every repository mutation.
type GitTarget struct {
	Path string
	Env  config.Environment

	cmd           *exec.Cmd
	sink          io.WriteCloser
	defaultBranch string
}

// NewGitTarget builds a GitTarget rooted at path.
func NewGitTarget(path string, env config.Environment) *GitTarget {
	return &GitTarget{Path: path, Env: env}
}

func (t *GitTarget) controlDir() string {
	return filepath.Join(t.Path, ".git")
}

func (t *GitTarget) stateFilePath() string {
	return filepath.Join(t.controlDir(), state.FileName)
}

func (t *GitTarget) marksFilePath() string {
	return filepath.Join(t.controlDir(), marksFileName)
}

func (t *GitTarget) StartImport(opts StartImportOptions) (io.WriteCloser, *state.SavedState, string, error) {
	info, statErr := os.Stat(t.Path)
	exists := statErr == nil

	if exists && opts.Clean {
		if err := os.RemoveAll(t.Path); err != nil {
			return nil, nil, "", &Error{Kind: IOError, Detail: "removing existing target", Cause: err}
		}
		exists = false
	}

	var saved *state.SavedState
	if exists {
		if !info.IsDir() {
			return nil, nil, "", &Error{Kind: IsNotDir, Detail: t.Path}
		}
		s, err := state.Load(t.stateFilePath())
		if err != nil {
			return nil, nil, "", &Error{Kind: IOError, Detail: "loading saved state", Cause: err}
		}
		if s == nil {
			return nil, nil, "", &Error{Kind: SavedStateDoesNotExist, Detail: t.Path}
		}
		saved = s
	} else {
		if err := os.MkdirAll(t.Path, 0755); err != nil {
			return nil, nil, "", &Error{Kind: IOError, Detail: "creating target directory", Cause: err}
		}
		if err := t.runGit("", "init", "--quiet", t.Path); err != nil {
			return nil, nil, "", &Error{Kind: CannotInitRepo, Cause: err}
		}
		if err := t.runGit(t.Path, "config", "core.ignoreCase", "false"); err != nil {
			return nil, nil, "", &Error{Kind: CannotConfigRepo, Cause: err}
		}
	}

	defaultBranch := opts.DefaultBranch
	if defaultBranch == "" {
		defaultBranch = "master"
	}
	t.defaultBranch = defaultBranch

	args := []string{"fast-import", "--quiet", "--export-marks=" + t.marksFilePath()}
	if _, err := os.Stat(t.marksFilePath()); err == nil {
		args = append(args, "--import-marks="+t.marksFilePath())
	}
	if opts.ActiveBranchesCap > 0 {
		args = append(args, fmt.Sprintf("--active-branches=%d", opts.ActiveBranchesCap))
	}

	cmd := exec.Command("git", args...)
	cmd.Dir = t.Path
	cmd.Stderr = os.Stderr
	sink, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, "", &Error{Kind: GitFailure, Detail: "wiring fast-import stdin", Cause: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, "", &Error{Kind: GitFailure, Detail: "starting fast-import", Cause: err}
	}
	t.cmd = cmd
	t.sink = sink

	return sink, saved, defaultBranch, nil
}

// EnsureRepoExists creates and initializes t.Path as a non-bare Git
// repository with a working tree if it doesn't already exist, for use by the
// multi-source aggregator (spec §4.8 Phase B: "ensure the top-level
// Git directory exists"), which talks to the aggregation repository
// directly rather than through a fast-import child.
func (t *GitTarget) EnsureRepoExists() (created bool, err error) {
	info, statErr := os.Stat(t.Path)
	if statErr == nil {
		if !info.IsDir() {
			return false, &Error{Kind: IsNotDir, Detail: t.Path}
		}
		return false, nil
	}
	if err := os.MkdirAll(t.Path, 0755); err != nil {
		return false, &Error{Kind: IOError, Detail: "creating aggregation directory", Cause: err}
	}
	if err := t.runGit("", "init", "--quiet", t.Path); err != nil {
		return false, &Error{Kind: CannotInitRepo, Cause: err}
	}
	return true, nil
}

func (t *GitTarget) Finish() error {
	if t.cmd != nil {
		if t.sink != nil {
			t.sink.Close()
		}
		if err := t.cmd.Wait(); err != nil {
			return &Error{Kind: ImportFailed, Exit: exitCode(err), Cause: err}
		}
		t.cmd = nil
	}

	branch := t.defaultBranch
	if branch == "" {
		branch = "master"
	}
	// An import that wrote no commit to the default branch leaves
	// nothing to check out; the reset and clean below still run.
	if t.runGit(t.Path, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch) == nil {
		if err := t.runGit(t.Path, "checkout", "-f", branch); err != nil {
			return &Error{Kind: GitFailure, Detail: "checkout after import", Cause: err}
		}
	}
	if err := t.runGit(t.Path, "reset", "--hard"); err != nil {
		return &Error{Kind: GitFailure, Detail: "reset after import", Cause: err}
	}
	if err := t.runGit(t.Path, "clean", "-fxd"); err != nil {
		return &Error{Kind: GitFailure, Detail: "clean after import", Cause: err}
	}

	if t.Env.TargetPull {
		if err := t.runGit(t.Path, "pull"); err != nil {
			return &Error{Kind: GitFailure, Detail: "target_pull", Cause: err}
		}
	}
	if t.Env.TargetPush {
		if err := t.runGit(t.Path, "push"); err != nil {
			return &Error{Kind: GitFailure, Detail: "target_push", Cause: err}
		}
	}
	return nil
}

// Verify compares the checked-out target (optionally scoped to
// subfolder) against sourcePath, excluding VCS metadata, using
// ianbruene/go-difflib the same way the teacher diffs changelog blobs
// against their ancestor in surgeon/inner.go.
func (t *GitTarget) Verify(sourcePath, subfolder string) error {
	targetRoot := t.Path
	if subfolder != "" {
		targetRoot = filepath.Join(t.Path, subfolder)
	}

	targetFiles, err := listTrackedFiles(targetRoot)
	if err != nil {
		return &Error{Kind: VerifyFail, Detail: "listing target files", Cause: err}
	}
	sourceFiles, err := listTrackedFiles(sourcePath)
	if err != nil {
		return &Error{Kind: VerifyFail, Detail: "listing source files", Cause: err}
	}

	if diff := setDiff(sourceFiles, targetFiles); len(diff) > 0 {
		return &Error{Kind: VerifyFail, Detail: "file sets differ: " + strings.Join(diff, ", ")}
	}

	for _, rel := range sourceFiles {
		sourceContent, err := os.ReadFile(filepath.Join(sourcePath, rel))
		if err != nil {
			return &Error{Kind: VerifyFail, Detail: "reading source file " + rel, Cause: err}
		}
		targetContent, err := os.ReadFile(filepath.Join(targetRoot, rel))
		if err != nil {
			return &Error{Kind: VerifyFail, Detail: "reading target file " + rel, Cause: err}
		}
		if bytes.Equal(sourceContent, targetContent) {
			continue
		}
		then := strings.Split(string(sourceContent), "\n")
		now := strings.Split(string(targetContent), "\n")
		differ := difflib.NewMatcherWithJunk(then, now, true, nil)
		changed := 0
		for _, op := range differ.GetOpCodes() {
			if op.Tag != 'e' {
				changed++
			}
		}
		return &Error{Kind: VerifyFail, Detail: fmt.Sprintf("content mismatch in %s (%d differing region(s))", rel, changed)}
	}
	return nil
}

func listTrackedFiles(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if info.IsDir() {
			switch filepath.Base(path) {
			case ".git", ".hg":
				return filepath.SkipDir
			}
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func setDiff(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}
	var missing []string
	for _, s := range a {
		if !inB[s] {
			missing = append(missing, s)
		}
	}
	inA := make(map[string]bool, len(a))
	for _, s := range a {
		inA[s] = true
	}
	for _, s := range b {
		if !inA[s] {
			missing = append(missing, s)
		}
	}
	return missing
}

func (t *GitTarget) SaveState(s state.SavedState) error {
	if err := os.MkdirAll(t.controlDir(), 0755); err != nil {
		return &Error{Kind: IOError, Detail: "creating control directory", Cause: err}
	}
	if err := state.Save(t.stateFilePath(), s); err != nil {
		return &Error{Kind: IOError, Detail: "saving state", Cause: err}
	}
	return nil
}

func (t *GitTarget) GetSavedState() (*state.SavedState, error) {
	s, err := state.Load(t.stateFilePath())
	if err != nil {
		return nil, &Error{Kind: IOError, Detail: "loading saved state", Cause: err}
	}
	return s, nil
}

func (t *GitTarget) RemoteList() ([]string, error) {
	out, err := t.outputGit(t.Path, "remote")
	if err != nil {
		return nil, &Error{Kind: GitFailure, Detail: "listing remotes", Cause: err}
	}
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func (t *GitTarget) RemoteAdd(name, url string) error {
	if err := t.runGit(t.Path, "remote", "add", name, url); err != nil {
		return &Error{Kind: GitFailure, Detail: "adding remote " + name, Cause: err}
	}
	return nil
}

func (t *GitTarget) Checkout(branch string) error {
	if err := t.runGit(t.Path, "checkout", branch); err != nil {
		return &Error{Kind: GitFailure, Detail: "checkout " + branch, Cause: err}
	}
	return nil
}

func (t *GitTarget) FetchAll() error {
	if err := t.runGit(t.Path, "fetch", "--all"); err != nil {
		return &Error{Kind: GitFailure, Detail: "fetch --all", Cause: err}
	}
	return nil
}

// MergeUnrelated merges branches into the current HEAD in one
// invocation (spec §4.8: a single combined merge once the aggregation
// repository already has history; the one-at-a-time variant for a
// freshly created aggregation repository is the caller's concern in
// internal/multi, which repeats single-branch calls instead).
func (t *GitTarget) MergeUnrelated(branches []string) error {
	if len(branches) == 0 {
		return nil
	}
	args := append([]string{"merge", "--allow-unrelated-histories", "--no-edit", "-n"}, branches...)
	if err := t.runGit(t.Path, args...); err != nil {
		return &Error{Kind: GitFailure, Detail: "merge " + strings.Join(branches, " "), Cause: err}
	}
	return nil
}

func (t *GitTarget) runGit(dir string, args ...string) error {
	_, err := t.outputGit(dir, args...)
	return err
}

func (t *GitTarget) outputGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("git %s: %w (%s)", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func exitCode(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
