package multi

import (
	"io"

	"github.com/pkg/errors"

	"github.com/kilork/hg-git-fast-import/internal/author"
	"github.com/kilork/hg-git-fast-import/internal/config"
	"github.com/kilork/hg-git-fast-import/internal/fastimport"
	"github.com/kilork/hg-git-fast-import/internal/hgsource"
)

// stream tracks one source's position through chronological
// interleave. Each stream owns its own emitter (and therefore its own
// branch map and mark offset), per spec §4.8 Phase C: "the emitter,
// branch map, and counter are kept per source."
type stream struct {
	alias   string
	source  hgsource.Source
	emitter *fastimport.Emitter
	next    int
	peeked  *hgsource.Changeset
	emitted int
}

func (s *stream) peek() (*hgsource.Changeset, error) {
	if s.peeked != nil {
		return s.peeked, nil
	}
	if s.next >= s.source.Len() {
		return nil, nil
	}
	cs, err := s.source.Changeset(s.next)
	if err != nil {
		return nil, errors.Wrapf(err, "source %s: decoding revision %d", s.alias, s.next)
	}
	s.peeked = &cs
	return s.peeked, nil
}

// RunLegacyInterleave implements spec §4.8 Phase C: a chronological
// merge of N already-open sources into a single combined fast-import
// stream on sink, retained for the legacy OffsetedRevisionSet saved
// state shape rather than the default per-source aggregation path.
func RunLegacyInterleave(sink io.Writer, repos []config.RepositoryEntry, sources []hgsource.Source, globalAuthors map[string]string) error {
	if len(repos) != len(sources) {
		return errors.New("repos and sources length mismatch")
	}

	streams := make([]*stream, len(repos))
	for i, repo := range repos {
		fixer := author.NewFixer(repo.Config.Authors, globalAuthors)
		emitter := fastimport.New(sink, fastimport.Config{
			Offset:              repo.Config.Offset,
			DefaultBranch:       repo.Config.DefaultBranch,
			PathPrefix:          repo.Config.PathPrefix,
			BranchPrefix:        repo.Config.BranchPrefix,
			TagPrefix:           repo.Config.TagPrefix,
			PrefixDefaultBranch: repo.Config.PrefixDefaultBranch,
		}, fixer)
		alias := repo.Alias
		if alias == "" {
			alias = repo.Config.PathPrefix
		}
		streams[i] = &stream{alias: alias, source: sources[i], emitter: emitter}
	}

	for {
		minTimestamp := int64(0)
		haveMin := false
		for _, s := range streams {
			cs, err := s.peek()
			if err != nil {
				return err
			}
			if cs == nil {
				continue
			}
			if !haveMin || cs.Timestamp < minTimestamp {
				minTimestamp = cs.Timestamp
				haveMin = true
			}
		}
		if !haveMin {
			break
		}

		for _, s := range streams {
			cs, err := s.peek()
			if err != nil {
				return err
			}
			if cs == nil || cs.Timestamp != minTimestamp {
				continue
			}
			n, err := s.emitter.Emit(*cs)
			if err != nil {
				return errors.Wrapf(err, "source %s: emitting revision %d", s.alias, s.next)
			}
			s.emitted += n
			s.next++
			s.peeked = nil
		}
	}

	for _, s := range streams {
		s.emitter.EmitTags(s.source.Tags(), 0, s.source.Len())
	}

	return nil
}
