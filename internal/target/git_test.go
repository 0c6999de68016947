package target

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/kilork/hg-git-fast-import/internal/config"
	"github.com/kilork/hg-git-fast-import/internal/state"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func TestGitTargetStartImportFreshRepo(t *testing.T) {
	requireGit(t)
	dir := filepath.Join(t.TempDir(), "repo")

	gt := NewGitTarget(dir, config.Environment{})
	sink, saved, branch, err := gt.StartImport(StartImportOptions{DefaultBranch: "master"})
	if err != nil {
		t.Fatal(err)
	}
	if saved != nil {
		t.Errorf("want nil saved state for fresh repo, got %+v", saved)
	}
	if branch != "master" {
		t.Errorf("branch = %q", branch)
	}
	if _, err := sink.Write([]byte("")); err != nil {
		t.Fatal(err)
	}
	if err := gt.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		t.Fatalf(".git missing: %v", err)
	}
}

func TestGitTargetStartImportMissingSavedState(t *testing.T) {
	requireGit(t)
	dir := filepath.Join(t.TempDir(), "repo")

	gt := NewGitTarget(dir, config.Environment{})
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	cmd := exec.Command("git", "init", "--quiet", dir)
	if err := cmd.Run(); err != nil {
		t.Fatal(err)
	}

	_, _, _, err := gt.StartImport(StartImportOptions{})
	terr, ok := err.(*Error)
	if !ok || terr.Kind != SavedStateDoesNotExist {
		t.Fatalf("want SavedStateDoesNotExist, got %v", err)
	}
}

func TestGitTargetStartImportIsNotDir(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "notadir")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	gt := NewGitTarget(path, config.Environment{})
	_, _, _, err := gt.StartImport(StartImportOptions{})
	terr, ok := err.(*Error)
	if !ok || terr.Kind != IsNotDir {
		t.Fatalf("want IsNotDir, got %v", err)
	}
}

func TestGitTargetSaveAndGetSavedState(t *testing.T) {
	requireGit(t)
	dir := filepath.Join(t.TempDir(), "repo")
	gt := NewGitTarget(dir, config.Environment{})

	if _, _, _, err := gt.StartImport(StartImportOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := gt.Finish(); err != nil {
		t.Fatal(err)
	}

	want := state.SavedState{CommitHigh: 7, TagHigh: 3}
	if err := gt.SaveState(want); err != nil {
		t.Fatal(err)
	}
	got, err := gt.GetSavedState()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestGitTargetVerifyIdenticalTrees(t *testing.T) {
	requireGit(t)
	source := t.TempDir()
	if err := os.WriteFile(filepath.Join(source, "a.txt"), []byte("hello\nworld\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "repo")
	gt := NewGitTarget(dir, config.Environment{})
	if _, _, _, err := gt.StartImport(StartImportOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := gt.Finish(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\nworld\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := gt.Verify(source, ""); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
}

func TestGitTargetVerifyMismatch(t *testing.T) {
	requireGit(t)
	source := t.TempDir()
	if err := os.WriteFile(filepath.Join(source, "a.txt"), []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "repo")
	gt := NewGitTarget(dir, config.Environment{})
	if _, _, _, err := gt.StartImport(StartImportOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := gt.Finish(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("goodbye\n"), 0644); err != nil {
		t.Fatal(err)
	}

	err := gt.Verify(source, "")
	terr, ok := err.(*Error)
	if !ok || terr.Kind != VerifyFail {
		t.Fatalf("want VerifyFail, got %v", err)
	}
}

func TestGitTargetRemoteAddAndList(t *testing.T) {
	requireGit(t)
	dir := filepath.Join(t.TempDir(), "repo")
	gt := NewGitTarget(dir, config.Environment{})
	if _, _, _, err := gt.StartImport(StartImportOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := gt.Finish(); err != nil {
		t.Fatal(err)
	}

	if err := gt.RemoteAdd("origin", "https://example.invalid/repo.git"); err != nil {
		t.Fatal(err)
	}
	names, err := gt.RemoteList()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "origin" {
		t.Fatalf("got %v", names)
	}
}
