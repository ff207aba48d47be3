package modules

import (
	"testing"

	"github.com/ooXavier/moowapp-server/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{InMemory: true})
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegistry_AddAllAndLoad(t *testing.T) {
	s := newTestStore(t)
	r := New(s, "_v0")

	if err := r.AddAll([]string{"calendar", "agenda"}); err != nil {
		t.Fatalf("AddAll failed: %v", err)
	}
	if err := r.AddAll([]string{"calendar", "booking_v0"}); err != nil {
		t.Fatalf("second AddAll failed: %v", err)
	}

	set, err := r.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !set.Contains("calendar") || !set.Contains("agenda") {
		t.Fatalf("expected calendar and agenda to be registered, got %v", set.Names())
	}
	if set.Contains("booking_v0") {
		t.Fatalf("expected excluded module to be filtered out of Load, got %v", set.Names())
	}
	if set.Len() != 2 {
		t.Fatalf("expected exactly 2 modules, got %d: %v", set.Len(), set.Names())
	}
}

func TestRegistry_Tombstone(t *testing.T) {
	s := newTestStore(t)
	r := New(s, "")

	if err := r.AddAll([]string{"calendar", "agenda"}); err != nil {
		t.Fatalf("AddAll failed: %v", err)
	}
	if err := r.Tombstone("calendar"); err != nil {
		t.Fatalf("Tombstone failed: %v", err)
	}

	set, err := r.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.Contains("calendar") {
		t.Fatalf("expected calendar to be removed from live set")
	}

	deleted, err := r.Deleted()
	if err != nil {
		t.Fatalf("Deleted failed: %v", err)
	}
	if !deleted.Contains("calendar") {
		t.Fatalf("expected calendar to be tombstoned")
	}
}

func TestRegistry_RemoveWithoutMarkDeleted(t *testing.T) {
	s := newTestStore(t)
	r := New(s, "")

	if err := r.AddAll([]string{"calendar"}); err != nil {
		t.Fatalf("AddAll failed: %v", err)
	}
	if err := r.Remove([]string{"calendar"}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	set, err := r.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.Contains("calendar") {
		t.Fatalf("expected calendar removed from live set")
	}

	deleted, err := r.Deleted()
	if err != nil {
		t.Fatalf("Deleted failed: %v", err)
	}
	if deleted.Len() != 0 {
		t.Fatalf("expected modules-deleted to stay empty when Remove is used without MarkDeleted, got %v", deleted.Names())
	}
}

func TestSet_RemoveReindexes(t *testing.T) {
	s := NewSet()
	s.Add("a")
	s.Add("b")
	s.Add("c")
	s.Remove("a")
	if s.Contains("a") {
		t.Fatalf("expected a to be removed")
	}
	if !s.Contains("b") || !s.Contains("c") {
		t.Fatalf("expected b and c to remain, got %v", s.Names())
	}
	if s.Len() != 2 {
		t.Fatalf("expected length 2, got %d", s.Len())
	}
}
