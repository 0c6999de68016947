package author

import "testing"

func TestFixRepoMapWins(t *testing.T) {
	f := NewFixer(map[string]string{"alice": "Alice A <alice@example.com>"},
		map[string]string{"alice": "Wrong <wrong@example.com>"})
	got, err := f.Fix("alice")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Alice A <alice@example.com>" {
		t.Errorf("got %q", got)
	}
}

func TestFixGlobalMapFallback(t *testing.T) {
	f := NewFixer(nil, map[string]string{"bob": "Bob B <bob@example.com>"})
	got, err := f.Fix("bob")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Bob B <bob@example.com>" {
		t.Errorf("got %q", got)
	}
}

func TestFixRegexFallback(t *testing.T) {
	f := NewFixer(nil, nil)
	got, err := f.Fix("John Doe <john@example.com>")
	if err != nil {
		t.Fatal(err)
	}
	if got != "John Doe <john@example.com>" {
		t.Errorf("got %q", got)
	}
}

func TestFixWrongUser(t *testing.T) {
	f := NewFixer(nil, nil)
	_, err := f.Fix("Alice")
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*WrongUser); !ok {
		t.Fatalf("expected *WrongUser, got %T", err)
	}
}
