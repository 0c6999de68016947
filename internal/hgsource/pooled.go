package hgsource

import (
	"sync"

	"github.com/alitto/pond"
)

// decodeResult is one slot's outcome.
type decodeResult struct {
	cs  Changeset
	err error
}

// PooledSource wraps a Decoder with a bounded worker pool that decodes
// revisions concurrently, while still handing callers changesets
// strictly in revision order (spec §5: "the sole cross-thread contract
// required" is ordering; the emitter never observes the pool).
//
// Nothing is decoded at construction. Each Changeset(r) call submits
// revision r and the eight revisions after it, skipping any already
// submitted, then blocks until r's decode completes; for a sequential
// reader that decode has usually finished by the time it is asked for.
type PooledSource struct {
	length  int
	decode  Decoder
	tags    []TagEntry
	pool    *pond.WorkerPool
	mu      sync.Mutex
	results []chan decodeResult
	started []bool
}

// NewPooledSource builds a PooledSource over `length` revisions,
// decoding with `decode` on a pool of `workers` goroutines (clamped to
// the range 1..16).
func NewPooledSource(length, workers int, decode Decoder, tags []TagEntry) *PooledSource {
	if workers < 1 {
		workers = 1
	}
	if workers > 16 {
		workers = 16
	}
	results := make([]chan decodeResult, length)
	for i := range results {
		results[i] = make(chan decodeResult, 1)
	}
	return &PooledSource{
		length:  length,
		decode:  decode,
		tags:    tags,
		pool:    pond.New(workers, length),
		results: results,
		started: make([]bool, length),
	}
}

func (p *PooledSource) Len() int { return p.length }

func (p *PooledSource) Tags() []TagEntry { return p.tags }

func (p *PooledSource) VerifyHeads(allowUnnamedHeads bool) bool {
	return true
}

// ensureSubmitted submits the decode job for revision r, and
// prefetches a short run ahead of it, exactly once each.
func (p *PooledSource) ensureSubmitted(r int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	lookahead := r + 8
	if lookahead >= p.length {
		lookahead = p.length - 1
	}
	for i := r; i <= lookahead; i++ {
		if p.started[i] {
			continue
		}
		p.started[i] = true
		rev := i
		p.pool.Submit(func() {
			cs, err := p.decode(rev)
			p.results[rev] <- decodeResult{cs: cs, err: err}
		})
	}
}

// Changeset returns the decoded changeset for revision r, blocking
// until the pool has produced it.
func (p *PooledSource) Changeset(r int) (Changeset, error) {
	if r < 0 || r >= p.length {
		return Changeset{}, errOutOfRange(r, p.length)
	}
	p.ensureSubmitted(r)
	res := <-p.results[r]
	return res.cs, res.err
}

// Close releases the pool's goroutines. Safe to call once all needed
// revisions have been consumed.
func (p *PooledSource) Close() {
	p.pool.StopAndWait()
}
