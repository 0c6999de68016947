package refname

import "testing"

func TestSanitizeFixWrongBranchName(t *testing.T) {
	cases := []struct {
		raw, prefix, want string
	}{
		{"feature .lock", "", "feature--lock"},
		{"release.lock", "", "release-lock"},
		{"default", "", "default"},
		{"/already/slashed", "", "/already/slashed"},
		{"a..b", "", "a.-b"},
		{".start", "", "-start"},
	}
	for _, c := range cases {
		got := Sanitize(c.raw, c.prefix, true)
		if got != c.want {
			t.Errorf("Sanitize(%q, %q, true) = %q, want %q", c.raw, c.prefix, got, c.want)
		}
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{"feature .lock", "release.lock", "a..b", ".start", "x/y z"}
	for _, in := range inputs {
		once := Sanitize(in, "", true)
		twice := Sanitize(once, "", true)
		if once != twice {
			t.Errorf("sanitize not idempotent: Sanitize(%q)=%q, Sanitize(that)=%q", in, once, twice)
		}
	}
}

func TestSanitizeWithoutFix(t *testing.T) {
	if got := Sanitize("weird name", "pfx/", false); got != "pfx/weird name" {
		t.Errorf("got %q", got)
	}
}

func TestSanitizeWithPrefix(t *testing.T) {
	if got := Sanitize("feature", "br/", true); got != "br/feature" {
		t.Errorf("got %q", got)
	}
}
