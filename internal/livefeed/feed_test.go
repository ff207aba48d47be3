package livefeed

import (
	"testing"
	"time"

	"github.com/ooXavier/moowapp-server/internal/keys"
	"github.com/ooXavier/moowapp-server/internal/modules"
	"github.com/ooXavier/moowapp-server/internal/store"
)

func TestSample_SumsAcrossGroups(t *testing.T) {
	s, err := store.Open(store.Config{InMemory: true})
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	registry := modules.New(s, "")
	if err := registry.AddAll([]string{"calendar"}); err != nil {
		t.Fatalf("AddAll: %v", err)
	}

	now := time.Date(2011, time.August, 19, 9, 5, 0, 0, time.UTC)
	date := now.Format("2006-01-02")
	minute := now.Format("1504")

	if err := s.Put(keys.Minute("calendar", "w", "1", date, minute), "4"); err != nil {
		t.Fatalf("seed w: %v", err)
	}
	if err := s.Put(keys.Minute("calendar", "doc", "1", date, minute), "3"); err != nil {
		t.Fatalf("seed doc: %v", err)
	}

	tick, err := sample(s, registry, []string{"w", "doc"}, now)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if tick.Apps["calendar"] != 7 {
		t.Fatalf("expected calendar total 7, got %d", tick.Apps["calendar"])
	}
	if tick.Total != 7 {
		t.Fatalf("expected tick total 7, got %d", tick.Total)
	}
}

func TestSample_NoCountersIsEmptyTick(t *testing.T) {
	s, err := store.Open(store.Config{InMemory: true})
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	registry := modules.New(s, "")
	if err := registry.AddAll([]string{"calendar"}); err != nil {
		t.Fatalf("AddAll: %v", err)
	}

	tick, err := sample(s, registry, []string{"w"}, time.Now())
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(tick.Apps) != 0 || tick.Total != 0 {
		t.Fatalf("expected empty tick, got %+v", tick)
	}
}
