// Package refname sanitizes Mercurial branch and tag names into
// Git-valid ref short-names.
//
// TODO: git-check-ref-format has more rules than we enforce here; the
// spec this was built from flagged that gap as future work, not
// something to guess at.
package refname

import "strings"

// Sanitize maps a raw Mercurial name to a Git ref short-name. The
// prefix, when non-empty, is prepended verbatim before the rewrite
// rules run (so it shares in leading-slash preservation and the
// dot/control-character rewriting below it).
//
// When fixWrongBranchName is false, sanitization is just prefix
// concatenation: callers that don't want rewriting (e.g. tag export)
// pass false.
func Sanitize(raw, prefix string, fixWrongBranchName bool) string {
	combined := prefix + raw
	if !fixWrongBranchName {
		return combined
	}

	slashes := 0
	for slashes < len(combined) && combined[slashes] == '/' {
		slashes++
	}
	head, rest := combined[:slashes], combined[slashes:]

	var b strings.Builder
	var prev byte
	havePrev := false
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		switch {
		case c <= 0x20 || c == '~' || c == '^' || c == ':' || c == '\\':
			c = '-'
		case c == '.' && (!havePrev || prev == '.'):
			c = '-'
		}
		b.WriteByte(c)
		prev = c
		havePrev = true
	}

	out := head + b.String()
	if strings.HasSuffix(out, "/") {
		out = out[:len(out)-1] + "-"
	}
	if strings.HasSuffix(out, ".lock") {
		out = out[:len(out)-5] + "-lock"
	}
	return out
}
