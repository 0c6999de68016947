package multi

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kilork/hg-git-fast-import/internal/config"
	"github.com/kilork/hg-git-fast-import/internal/hgsource"
)

func cs(rev int, ts int64, comment string) hgsource.Changeset {
	return hgsource.Changeset{
		Revision:  rev,
		Author:    "Jane Doe <jane@example.com>",
		Timestamp: ts,
		Comment:   []byte(comment),
	}
}

func TestRunLegacyInterleaveOrdersByTimestamp(t *testing.T) {
	a := &hgsource.MemorySource{Changesets: []hgsource.Changeset{cs(0, 100, "a0"), cs(1, 300, "a1")}}
	b := &hgsource.MemorySource{Changesets: []hgsource.Changeset{cs(0, 200, "b0")}}

	repos := []config.RepositoryEntry{
		{Alias: "a", Config: config.RepoConfig{DefaultBranch: "master"}},
		{Alias: "b", Config: config.RepoConfig{DefaultBranch: "master"}},
	}

	var buf bytes.Buffer
	if err := RunLegacyInterleave(&buf, repos, []hgsource.Source{a, b}, nil); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	ia0 := strings.Index(out, "a0")
	ib0 := strings.Index(out, "b0")
	ia1 := strings.Index(out, "a1")
	if !(ia0 < ib0 && ib0 < ia1) {
		t.Fatalf("expected chronological order a0 < b0 < a1, got offsets %d %d %d\n%s", ia0, ib0, ia1, out)
	}
}

func TestRunLegacyInterleaveTiesBreakByConfigurationOrder(t *testing.T) {
	a := &hgsource.MemorySource{Changesets: []hgsource.Changeset{cs(0, 100, "a0")}}
	b := &hgsource.MemorySource{Changesets: []hgsource.Changeset{cs(0, 100, "b0")}}

	repos := []config.RepositoryEntry{
		{Alias: "a", Config: config.RepoConfig{DefaultBranch: "master"}},
		{Alias: "b", Config: config.RepoConfig{DefaultBranch: "master"}},
	}

	var buf bytes.Buffer
	if err := RunLegacyInterleave(&buf, repos, []hgsource.Source{a, b}, nil); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if strings.Index(out, "a0") > strings.Index(out, "b0") {
		t.Fatalf("expected a0 before b0 on tie, got:\n%s", out)
	}
}

func TestRunLegacyInterleaveLengthMismatch(t *testing.T) {
	err := RunLegacyInterleave(&bytes.Buffer{}, []config.RepositoryEntry{{}}, nil, nil)
	if err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}
