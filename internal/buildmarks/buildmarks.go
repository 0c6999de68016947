// Package buildmarks reconstructs a fast-import marks file against a
// Git history that was rewritten or imported elsewhere (spec §4.9),
// grounded on the teacher's revlog-walking/attribution-matching
// machinery (surgeon/inner.go's changelog diffing) for the
// candidate-narrowing idiom, and on tool/repotool.go's input() helper
// for the interactive chooser, both built on
// github.com/chzyer/readline.
package buildmarks

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	"github.com/kilork/hg-git-fast-import/internal/author"
	"github.com/kilork/hg-git-fast-import/internal/hgsource"
)

// Entry is one parsed revlog triple (spec §4.9 step 1).
type Entry struct {
	SHA1      string
	Timestamp int64
	Author    string // "Name <email>"
}

// candidateKey is the (author, timestamp) multimap key.
type candidateKey struct {
	author    string
	timestamp int64
}

// Chooser resolves an ambiguous multi-candidate match interactively.
// The default implementation (NewReadlineChooser) prompts on a
// terminal via chzyer/readline; Run accepts any other implementation.
type Chooser interface {
	Choose(revision int, mark int, candidates []string) (string, error)
}

// readlineChooser prompts the operator on stdin/stdout.
type readlineChooser struct{}

// NewReadlineChooser builds the default interactive Chooser.
func NewReadlineChooser() Chooser { return readlineChooser{} }

func (readlineChooser) Choose(revision, mark int, candidates []string) (string, error) {
	fmt.Printf("revision %d (mark :%d) has %d ambiguous candidates:\n", revision, mark, len(candidates))
	for i, c := range candidates {
		fmt.Printf("  [%d] %s\n", i, c)
	}
	rl, err := readline.New("choose index> ")
	if err != nil {
		return "", errors.Wrap(err, "opening interactive chooser")
	}
	defer rl.Close()
	line, err := rl.Readline()
	if err != nil {
		return "", errors.Wrap(err, "reading choice")
	}
	idx, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || idx < 0 || idx >= len(candidates) {
		return "", errors.Errorf("invalid choice %q", line)
	}
	return candidates[idx], nil
}

// ParseRevlog parses the output of
// `git log --reflog --all --reverse --format=%H%n%at%n%an <%ae>`
// (spec §4.9 step 1) into a chronological revlog and a multimap
// keyed by (author, timestamp).
func ParseRevlog(r io.Reader) (revlog []Entry, byAuthorTime map[candidateKey][]string, err error) {
	byAuthorTime = map[candidateKey][]string{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		sha1 := strings.TrimSpace(scanner.Text())
		if sha1 == "" {
			continue
		}
		if !scanner.Scan() {
			return nil, nil, errors.New("revlog: truncated record (missing timestamp)")
		}
		tsLine := strings.TrimSpace(scanner.Text())
		ts, err := strconv.ParseInt(tsLine, 10, 64)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "revlog: parsing timestamp %q", tsLine)
		}
		if !scanner.Scan() {
			return nil, nil, errors.New("revlog: truncated record (missing author)")
		}
		authorLine := strings.TrimSpace(scanner.Text())

		entry := Entry{SHA1: sha1, Timestamp: ts, Author: authorLine}
		revlog = append(revlog, entry)
		key := candidateKey{author: authorLine, timestamp: ts}
		byAuthorTime[key] = append(byAuthorTime[key], sha1)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "reading revlog")
	}
	return revlog, byAuthorTime, nil
}

// ReadRevlog invokes `git log` in targetDir and parses its output.
func ReadRevlog(targetDir string) ([]Entry, map[candidateKey][]string, error) {
	cmd := exec.Command("git", "log", "--reflog", "--all", "--reverse", "--format=%H%n%at%n%an <%ae>")
	cmd.Dir = targetDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, nil, errors.Wrapf(err, "git log: %s", strings.TrimSpace(stderr.String()))
	}
	return ParseRevlog(&stdout)
}

// commitMessage runs `git show -s --format=.%B.` for sha1, stripping
// the leading/trailing '.' sentinels used to preserve exact
// whitespace in the captured message (spec §4.9 step 3).
func commitMessage(targetDir, sha1 string) ([]byte, error) {
	cmd := exec.Command("git", "show", "-s", "--format=.%B.", sha1)
	cmd.Dir = targetDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "git show %s: %s", sha1, strings.TrimSpace(stderr.String()))
	}
	out := stdout.Bytes()
	out = bytes.TrimPrefix(out, []byte("."))
	out = bytes.TrimSuffix(out, []byte(".\n"))
	out = bytes.TrimSuffix(out, []byte("."))
	return out, nil
}

// Options configures one reconciliation run.
type Options struct {
	TargetDir string
	Offset    int
	NoBackup  bool
}

// Outcome records what happened to each source revision, for
// reporting back to the operator.
type Outcome struct {
	Revision int
	Mark     int
	Status   string // "bound", "skipped-already-matches", "cannot-find", "ambiguous-unresolved"
	SHA1     string
}

// marksSet is the in-memory marks table: mark id -> sha1.
type marksSet map[int]string

// loadMarks reads a fast-import marks file (":N sha1" lines per
// line, one per mark).
func loadMarks(path string) (marksSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return marksSet{}, nil
		}
		return nil, err
	}
	defer f.Close()

	out := marksSet{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 || !strings.HasPrefix(fields[0], ":") {
			continue
		}
		id, err := strconv.Atoi(fields[0][1:])
		if err != nil {
			continue
		}
		out[id] = fields[1]
	}
	return out, scanner.Err()
}

// saveMarks atomically writes marks back to path in ascending mark
// order, matching the shape fast-import itself writes.
func saveMarks(path string, marks marksSet) error {
	ids := make([]int, 0, len(marks))
	for id := range marks {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".marks-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	for _, id := range ids {
		fmt.Fprintf(w, ":%d %s\n", id, marks[id])
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// backupMarks copies the marks file at path to a
// "<path>.backup.<unix-now>" sibling; a missing marks file is not an
// error. Run skips it when Options.NoBackup is set.
func backupMarks(path string, unixNow int64) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	backupPath := fmt.Sprintf("%s.backup.%d", path, unixNow)
	return os.WriteFile(backupPath, content, 0644)
}

// Run reconciles the marks file at marksPath against the target
// repository's history for the given source revisions (spec §4.9).
// unixNow supplies the backup filename's timestamp, since this
// package never calls time.Now() itself (callers stamp it once, to
// keep the reconciliation reproducible in tests).
func Run(source hgsource.Source, fixer *author.Fixer, marksPath string, opts Options, unixNow int64, chooser Chooser) ([]Outcome, error) {
	revlog, byAuthorTime, err := ReadRevlog(opts.TargetDir)
	if err != nil {
		return nil, errors.Wrap(err, "reading target revlog")
	}
	inRevlog := map[string]bool{}
	for _, e := range revlog {
		inRevlog[e.SHA1] = true
	}

	if !opts.NoBackup {
		if err := backupMarks(marksPath, unixNow); err != nil {
			return nil, errors.Wrap(err, "backing up marks file")
		}
	}
	marks, err := loadMarks(marksPath)
	if err != nil {
		return nil, errors.Wrap(err, "loading marks file")
	}

	var outcomes []Outcome
	for i := 0; i < source.Len(); i++ {
		cs, err := source.Changeset(i)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding revision %d", i)
		}
		mark := i + opts.Offset + 1

		user, err := fixer.Fix(cs.Author)
		if err != nil {
			return nil, errors.Wrapf(err, "fixing author for revision %d", i)
		}

		if existing, ok := marks[mark]; ok && inRevlog[existing] {
			outcomes = append(outcomes, Outcome{Revision: i, Mark: mark, Status: "skipped-already-matches", SHA1: existing})
			continue
		}

		key := candidateKey{author: user, timestamp: cs.Timestamp}
		candidates := byAuthorTime[key]
		switch len(candidates) {
		case 0:
			outcomes = append(outcomes, Outcome{Revision: i, Mark: mark, Status: "cannot-find"})
		case 1:
			marks[mark] = candidates[0]
			byAuthorTime[key] = nil
			outcomes = append(outcomes, Outcome{Revision: i, Mark: mark, Status: "bound", SHA1: candidates[0]})
		default:
			sha1, err := resolveAmbiguous(opts.TargetDir, cs, candidates, chooser, i, mark)
			if err != nil {
				outcomes = append(outcomes, Outcome{Revision: i, Mark: mark, Status: "ambiguous-unresolved"})
				continue
			}
			marks[mark] = sha1
			byAuthorTime[key] = removeOne(candidates, sha1)
			outcomes = append(outcomes, Outcome{Revision: i, Mark: mark, Status: "bound", SHA1: sha1})
		}
	}

	if err := saveMarks(marksPath, marks); err != nil {
		return nil, errors.Wrap(err, "writing marks file")
	}
	return outcomes, nil
}

func resolveAmbiguous(targetDir string, cs hgsource.Changeset, candidates []string, chooser Chooser, revision, mark int) (string, error) {
	var matches []string
	for _, sha1 := range candidates {
		msg, err := commitMessage(targetDir, sha1)
		if err != nil {
			return "", err
		}
		if bytes.Equal(msg, cs.Comment) {
			matches = append(matches, sha1)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if chooser == nil {
		return "", errors.New("ambiguous candidates and no chooser available")
	}
	return chooser.Choose(revision, mark, candidates)
}

func removeOne(candidates []string, value string) []string {
	out := make([]string, 0, len(candidates)-1)
	removed := false
	for _, c := range candidates {
		if !removed && c == value {
			removed = true
			continue
		}
		out = append(out, c)
	}
	return out
}
