package state

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, SavedState{CommitHigh: 10, TagHigh: 7}); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.CommitHigh != 10 || got.TagHigh != 7 {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeLegacyShape(t *testing.T) {
	doc := `type = "OffsetedRevisionSet"
value = [5, 9]
`
	got, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if got.CommitHigh != 5 || got.TagHigh != 5 {
		t.Fatalf("got %+v, want commit_high==tag_high==5", got)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := Save(path, SavedState{CommitHigh: 3, TagHigh: 3}); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.CommitHigh != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestLoadMissingReturnsNil(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "nope.lock"))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}
