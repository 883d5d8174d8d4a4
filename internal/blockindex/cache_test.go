package blockindex

import (
	"context"
	"errors"
	"testing"

	"github.com/strangerhub/realtime/internal/block"
)

// fakeLister is an in-memory block store for tests.
type fakeLister struct {
	records map[string][]block.Record
	err     error
	calls   int
}

func (f *fakeLister) ListBlocksInvolving(ctx context.Context, userID string) ([]block.Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records[userID], nil
}

func TestBlockedSet_BothDirections(t *testing.T) {
	store := &fakeLister{records: map[string][]block.Record{
		"alice": {
			{BlockerID: "alice", BlockedID: "bob"},   // alice blocked bob
			{BlockerID: "carol", BlockedID: "alice"}, // carol blocked alice
		},
	}}
	idx := New(nil, store)

	set, err := idx.BlockedSet(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2 blocked ids, got %d", len(set))
	}
	if _, ok := set["bob"]; !ok {
		t.Error("expected bob in blocked set (outgoing block)")
	}
	if _, ok := set["carol"]; !ok {
		t.Error("expected carol in blocked set (incoming block)")
	}
}

func TestBlockedSet_Empty(t *testing.T) {
	idx := New(nil, &fakeLister{records: map[string][]block.Record{}})

	set, err := idx.BlockedSet(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set) != 0 {
		t.Errorf("expected empty set, got %d entries", len(set))
	}
}

func TestBlockedSet_StoreError(t *testing.T) {
	storeErr := errors.New("db down")
	idx := New(nil, &fakeLister{err: storeErr})

	_, err := idx.BlockedSet(context.Background(), "alice")
	if !errors.Is(err, storeErr) {
		t.Errorf("expected store error to propagate, got %v", err)
	}
}

func TestBlockedSet_ExcludesSelf(t *testing.T) {
	// A malformed self-block record must not put the user in their own set.
	store := &fakeLister{records: map[string][]block.Record{
		"alice": {{BlockerID: "alice", BlockedID: "alice"}},
	}}
	idx := New(nil, store)

	set, err := idx.BlockedSet(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := set["alice"]; ok {
		t.Error("user must not appear in their own blocked set")
	}
}

func TestInvalidate_NilClientNoop(t *testing.T) {
	idx := New(nil, &fakeLister{})
	// Must not panic without a Redis client.
	idx.Invalidate(context.Background(), "alice")
}
