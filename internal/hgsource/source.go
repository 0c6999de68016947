package hgsource

// OpenOptions configures how a source repository is opened.
type OpenOptions struct {
	// IgnoreUnknownRequirements suppresses a hard-fail when the
	// Mercurial repository declares a requirement string this reader
	// doesn't recognize (carried from original_source/src/cli.rs).
	IgnoreUnknownRequirements bool
}

// Decoder decodes one revision's changeset. Implemented by the
// external revlog parser; this package never implements it itself.
type Decoder func(revision int) (Changeset, error)

// OpenFunc opens a Mercurial repository at path and returns a Source
// over it. The real implementation is an external collaborator (spec
// §1); callers wire in their own revlog reader.
type OpenFunc func(path string, opts OpenOptions) (Source, error)

// Source is the ordered view over a Mercurial repository's changesets
// that the emitter and driver consume. The underlying revlog parser
// (out of scope for this core) supplies the length, decode function,
// and tag table; Source guarantees changesets are yielded strictly in
// revision order regardless of how decoding is internally scheduled.
type Source interface {
	// Len returns the number of revisions in the source.
	Len() int
	// Changeset decodes and returns the changeset for the given
	// revision; callers iterate revisions in ascending order by
	// calling it with r, r+1, and so on.
	Changeset(revision int) (Changeset, error)
	// Tags returns the tag table, ordered by the order the source
	// exposes it in (typically insertion/.hgtags order).
	Tags() []TagEntry
	// VerifyHeads reports whether the source repository satisfies the
	// single-descendant-head invariant. Per spec §9 this is an open
	// question in the original: the upstream implementation always
	// returns true and never consults allow_unnamed_heads. We
	// preserve that behavior rather than inventing a check.
	VerifyHeads(allowUnnamedHeads bool) bool
}
