// Package state persists and restores the resumption cursor (spec
// §4.5) as a small TOML document, grounded on golang-dep's toml.go
// (tree-based querying into Go structs) and modeled on the same
// tagged-union envelope golang-dep uses for its lock-file tables.
package state

import (
	"io"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// FileName is the fixed basename of the saved-state file under a
// target's control directory.
const FileName = "hg-git-fast-import-state.lock"

const (
	envelopeCurrent = "OffsetedRevision"
	envelopeLegacy  = "OffsetedRevisionSet"
)

// SavedState is the resumption cursor: the exclusive upper bounds
// (already offset-adjusted) of the last successfully imported commit
// and tag revisions.
type SavedState struct {
	CommitHigh int
	TagHigh    int
}

// Decode reads a saved-state document, accepting both the current
// OffsetedRevision shape and the legacy OffsetedRevisionSet shape
// (reading only its first element as CommitHigh, and treating
// TagHigh as equal to it). New writes never emit the legacy shape.
func Decode(r io.Reader) (*SavedState, error) {
	tree, err := toml.LoadReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing saved state")
	}
	typ, ok := tree.Get("type").(string)
	if !ok {
		return nil, errors.New("saved state missing \"type\"")
	}
	value, ok := tree.Get("value").([]interface{})
	if !ok {
		return nil, errors.Errorf("saved state %q missing \"value\" array", typ)
	}

	switch typ {
	case envelopeCurrent:
		if len(value) != 2 {
			return nil, errors.Errorf("%s value must have 2 elements, got %d", envelopeCurrent, len(value))
		}
		commitHigh, err := toInt(value[0])
		if err != nil {
			return nil, err
		}
		tagHigh, err := toInt(value[1])
		if err != nil {
			return nil, err
		}
		return &SavedState{CommitHigh: commitHigh, TagHigh: tagHigh}, nil
	case envelopeLegacy:
		if len(value) == 0 {
			return nil, errors.Errorf("%s value must be non-empty", envelopeLegacy)
		}
		first, err := toInt(value[0])
		if err != nil {
			return nil, err
		}
		return &SavedState{CommitHigh: first, TagHigh: first}, nil
	default:
		return nil, errors.Errorf("unknown saved state envelope %q", typ)
	}
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, errors.Errorf("expected integer in saved state, got %T", v)
	}
}

// Encode writes the current OffsetedRevision envelope.
func Encode(w io.Writer, s SavedState) error {
	tree, err := toml.TreeFromMap(map[string]interface{}{
		"type":  envelopeCurrent,
		"value": []int{s.CommitHigh, s.TagHigh},
	})
	if err != nil {
		return errors.Wrap(err, "building saved state document")
	}
	_, err = tree.WriteTo(w)
	return errors.Wrap(err, "writing saved state")
}

// Load reads the saved-state file at path. Returns (nil, nil) if the
// file does not exist — callers that require it present (spec §7:
// "Missing saved state on an existing target is fatal") check for
// that themselves.
func Load(path string) (*SavedState, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Save persists s atomically: write to a temp file in the same
// directory, then rename over path, so a crash mid-write leaves
// either the old or the new content (spec §4.6 save_state contract).
func Save(path string, s SavedState) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Encode(tmp, s); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
