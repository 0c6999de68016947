package buildmarks

import (
	"strings"
	"testing"
)

func TestParseRevlog(t *testing.T) {
	input := "aaa111\n1600000000\nJane Doe <jane@example.com>\n" +
		"bbb222\n1600000100\nJohn Roe <john@example.com>\n"

	revlog, byAuthorTime, err := ParseRevlog(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(revlog) != 2 {
		t.Fatalf("want 2 entries, got %d", len(revlog))
	}
	if revlog[0].SHA1 != "aaa111" || revlog[0].Timestamp != 1600000000 {
		t.Errorf("got %+v", revlog[0])
	}

	key := candidateKey{author: "Jane Doe <jane@example.com>", timestamp: 1600000000}
	if got := byAuthorTime[key]; len(got) != 1 || got[0] != "aaa111" {
		t.Errorf("got %v", got)
	}
}

func TestParseRevlogTruncatedRecord(t *testing.T) {
	_, _, err := ParseRevlog(strings.NewReader("aaa111\n1600000000\n"))
	if err == nil {
		t.Fatal("expected error for truncated record")
	}
}

func TestSaveAndLoadMarksRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/marks"

	marks := marksSet{1: "aaa", 3: "ccc", 2: "bbb"}
	if err := saveMarks(path, marks); err != nil {
		t.Fatal(err)
	}
	got, err := loadMarks(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[1] != "aaa" || got[2] != "bbb" || got[3] != "ccc" {
		t.Fatalf("got %v", got)
	}
}

func TestLoadMarksMissingFile(t *testing.T) {
	got, err := loadMarks("/nonexistent/marks/path")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("want empty marks set, got %v", got)
	}
}

func TestRemoveOne(t *testing.T) {
	in := []string{"a", "b", "a"}
	out := removeOne(in, "a")
	if len(out) != 2 || out[0] != "b" || out[1] != "a" {
		t.Errorf("got %v", out)
	}
}
