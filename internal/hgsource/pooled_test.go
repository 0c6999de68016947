package hgsource

import (
	"testing"
)

func TestPooledSourceOrdering(t *testing.T) {
	const n = 50
	decode := func(r int) (Changeset, error) {
		return Changeset{Revision: r}, nil
	}
	src := NewPooledSource(n, 4, decode, nil)
	defer src.Close()

	for r := 0; r < n; r++ {
		cs, err := src.Changeset(r)
		if err != nil {
			t.Fatalf("revision %d: %v", r, err)
		}
		if cs.Revision != r {
			t.Fatalf("revision %d: got changeset for %d", r, cs.Revision)
		}
	}
}

func TestPooledSourceOutOfRange(t *testing.T) {
	src := NewPooledSource(2, 2, func(r int) (Changeset, error) {
		return Changeset{Revision: r}, nil
	}, nil)
	defer src.Close()
	if _, err := src.Changeset(5); err == nil {
		t.Fatal("expected error for out-of-range revision")
	}
}
