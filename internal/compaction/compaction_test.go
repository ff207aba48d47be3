package compaction

import (
	"testing"
	"time"

	"github.com/ooXavier/moowapp-server/internal/keys"
	"github.com/ooXavier/moowapp-server/internal/modules"
	"github.com/ooXavier/moowapp-server/internal/store"
)

func newTestCompactor(t *testing.T, dm, dd, dh int) (*Compactor, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Config{InMemory: true})
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	registry := modules.New(s, "")
	writer := &store.WriterMutex{}
	c, err := New(s, registry, writer, []string{"w"}, dm, dd, dh)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, s
}

func TestPruneDay_DeletesPastMinuteHorizonAndWritesDayCounter(t *testing.T) {
	c, s := newTestCompactor(t, 3, 7, 31)

	today := time.Date(2011, time.August, 19, 0, 0, 0, 0, time.UTC)
	oldDate := "2011-08-10" // 9 days before today: past Dm(3) and Dd(7), inside Dh(31)

	if err := s.Put(keys.Minute("calendar", "w", "1", oldDate, "0905"), "2"); err != nil {
		t.Fatalf("seed minute: %v", err)
	}
	if err := s.Put(keys.TenMinute("calendar", "w", "1", oldDate, "090"), "2"); err != nil {
		t.Fatalf("seed tenmin: %v", err)
	}
	if err := s.Put(keys.Hour("calendar", "w", "1", oldDate, "09"), "5"); err != nil {
		t.Fatalf("seed hour: %v", err)
	}
	if err := s.Put(keys.Hour("calendar", "w", "1", oldDate, "10"), "3"); err != nil {
		t.Fatalf("seed hour 10: %v", err)
	}

	if err := c.pruneDay("calendar", "w", "1", oldDate, today); err != nil {
		t.Fatalf("pruneDay: %v", err)
	}

	if _, found, _ := s.Get(keys.Minute("calendar", "w", "1", oldDate, "0905")); found {
		t.Fatalf("expected minute key deleted past Dm horizon")
	}
	if _, found, _ := s.Get(keys.TenMinute("calendar", "w", "1", oldDate, "090")); found {
		t.Fatalf("expected ten-minute key deleted past Dd horizon")
	}
	if val, found, _ := s.Get(keys.Hour("calendar", "w", "1", oldDate, "09")); !found || val != "5" {
		t.Fatalf("expected hour key preserved inside Dh horizon, found=%v val=%v", found, val)
	}
	if val, found, _ := s.Get(keys.Day("calendar", "w", "1", oldDate)); !found || val != "8" {
		t.Fatalf("expected day counter 8 (5+3), got found=%v val=%v", found, val)
	}
}

func TestPruneDay_DeletesHourKeysPastHourHorizon(t *testing.T) {
	c, s := newTestCompactor(t, 3, 7, 31)

	today := time.Date(2011, time.August, 19, 0, 0, 0, 0, time.UTC)
	oldDate := "2011-06-01" // well past Dh(31)

	if err := s.Put(keys.Hour("calendar", "w", "1", oldDate, "09"), "5"); err != nil {
		t.Fatalf("seed hour: %v", err)
	}

	if err := c.pruneDay("calendar", "w", "1", oldDate, today); err != nil {
		t.Fatalf("pruneDay: %v", err)
	}

	if _, found, _ := s.Get(keys.Hour("calendar", "w", "1", oldDate, "09")); found {
		t.Fatalf("expected hour key deleted past Dh horizon")
	}
	if val, found, _ := s.Get(keys.Day("calendar", "w", "1", oldDate)); !found || val != "5" {
		t.Fatalf("expected day counter preserved indefinitely, got found=%v val=%v", found, val)
	}
}

func TestTrackedApps_IncludesTombstonedApp(t *testing.T) {
	c, s := newTestCompactor(t, 3, 7, 31)

	registry := modules.New(s, "")
	if err := registry.AddAll([]string{"calendar"}); err != nil {
		t.Fatalf("AddAll: %v", err)
	}
	if err := registry.Tombstone("calendar"); err != nil {
		t.Fatalf("Tombstone: %v", err)
	}

	apps, err := c.trackedApps()
	if err != nil {
		t.Fatalf("trackedApps: %v", err)
	}
	found := false
	for _, a := range apps {
		if a == "calendar" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected tombstoned app calendar to still be tracked, got %v", apps)
	}
}
