// Package author normalizes Mercurial author strings to Git's
// "Name <email>" form, consulting configured author maps before
// falling back to a best-effort regex parse.
package author

import (
	"fmt"
	"regexp"
	"strings"
)

// trailingAddress matches a trailing "<email>" preceded by a name.
var trailingAddress = regexp.MustCompile(`([^<]+) ?(<[^>]*>)$`)

// WrongUser is returned when author fixup cannot make sense of a raw
// user string and no map entry covers it.
type WrongUser struct {
	Raw string
}

func (e *WrongUser) Error() string {
	return fmt.Sprintf("don't know how to map user %q to \"Name <email>\"; "+
		"add a mapping line like:\n\t%s = Display Name <email@example.com>",
		e.Raw, e.Raw)
}

// Fixer normalizes raw Mercurial author strings using a repo-local map
// and a global map, consulted in that order, before falling back to
// regex extraction.
type Fixer struct {
	RepoMap   map[string]string
	GlobalMap map[string]string
}

// NewFixer builds a Fixer from the repo-local and global author maps.
// Either may be nil.
func NewFixer(repoMap, globalMap map[string]string) *Fixer {
	return &Fixer{RepoMap: repoMap, GlobalMap: globalMap}
}

// Fix normalizes raw to "Name <email>" form.
func (f *Fixer) Fix(raw string) (string, error) {
	if f.RepoMap != nil {
		if mapped, ok := f.RepoMap[raw]; ok {
			return mapped, nil
		}
	}
	if f.GlobalMap != nil {
		if mapped, ok := f.GlobalMap[raw]; ok {
			return mapped, nil
		}
	}

	m := trailingAddress.FindStringSubmatch(raw)
	if m == nil {
		return "", &WrongUser{Raw: raw}
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return "", &WrongUser{Raw: raw}
	}
	return name + " " + m[2], nil
}
