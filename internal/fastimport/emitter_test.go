package fastimport

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kilork/hg-git-fast-import/internal/author"
	"github.com/kilork/hg-git-fast-import/internal/hgsource"
)

func intp(v int) *int { return &v }

func TestEmitRootCommit(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf, Config{}, author.NewFixer(nil, nil))

	cs := hgsource.Changeset{
		Revision:  0,
		Author:    "John Doe <john@example.com>",
		Timestamp: 1600000000,
		TZOffset:  0,
		Comment:   []byte("init"),
		FileOps: []hgsource.FileOp{
			{Path: "README", HasData: true, Mode: hgsource.ModeRegular, Content: []byte("hello")},
		},
	}
	n, err := e.Emit(cs)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("want 1, got %d", n)
	}

	got := buf.String()
	want := "commit refs/heads/master\n" +
		"mark :1\n" +
		"author John Doe <john@example.com> 1600000000 +0000\n" +
		"committer John Doe <john@example.com> 1600000000 +0000\n" +
		"data 5\ninit\n\n" +
		"M 100644 inline README\n" +
		"data 5\n" +
		"hello"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
	if strings.Contains(got, "reset refs/heads/master\n") {
		t.Fatal("root commit must not emit a leading reset")
	}
}

func TestEmitMergeAndClosure(t *testing.T) {
	fx := author.NewFixer(nil, nil)

	var buf bytes.Buffer
	e := New(&buf, Config{}, fx)

	base := hgsource.Changeset{
		Revision: 0, Author: "A <a@x.com>", Timestamp: 1, Comment: []byte("base"),
	}
	if _, err := e.Emit(base); err != nil {
		t.Fatal(err)
	}

	feature := hgsource.Changeset{
		Revision: 1, Parent1: intp(0), Author: "A <a@x.com>", Timestamp: 2,
		Comment: []byte("feature work"),
		Extra: []hgsource.KV{
			{Key: "branch", Value: "feature"},
			{Key: "close", Value: "1"},
		},
	}
	if _, err := e.Emit(feature); err != nil {
		t.Fatal(err)
	}

	merge := hgsource.Changeset{
		Revision: 2, Parent1: intp(0), Parent2: intp(1), Author: "A <a@x.com>", Timestamp: 3,
		Comment: []byte("merge"),
	}
	if _, err := e.Emit(merge); err != nil {
		t.Fatal(err)
	}

	got := buf.String()
	for _, want := range []string{
		"mark :1",
		"reset refs/heads/feature\ncommit refs/heads/feature\nmark :2",
		"from :1\n",
		"reset refs/tags/archive/feature\nfrom :2\n\n",
		"reset refs/heads/feature\nfrom 0000000000000000000000000000000000000000\n\n",
		"mark :3",
		"from :1\nmerge :2\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
}

func TestEmitWrongFileData(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf, Config{}, author.NewFixer(nil, nil))
	cs := hgsource.Changeset{
		Revision: 0, Author: "A <a@x.com>", Timestamp: 1,
		FileOps: []hgsource.FileOp{{Path: "bad.txt"}},
	}
	_, err := e.Emit(cs)
	if err == nil {
		t.Fatal("expected WrongFileData error")
	}
	if _, ok := err.(*hgsource.WrongFileData); !ok {
		t.Fatalf("expected *hgsource.WrongFileData, got %T", err)
	}
}

func TestEmitTagsOrderAndRange(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf, Config{}, author.NewFixer(nil, nil))
	tags := []hgsource.TagEntry{
		{Revision: 0, Name: "v1"},
		{Revision: 5, Name: "v2"},
	}
	n := e.EmitTags(tags, 0, 3)
	if n != 1 {
		t.Fatalf("want 1 tag emitted, got %d", n)
	}
	got := buf.String()
	if !strings.Contains(got, "reset refs/tags/v1\nfrom :1\n\n") {
		t.Fatalf("got %q", got)
	}
	if strings.Contains(got, "v2") {
		t.Fatal("v2 is out of range and should not be emitted")
	}
}
