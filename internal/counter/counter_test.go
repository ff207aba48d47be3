package counter

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

func TestIncrement_FirstCallReturnsTrue(t *testing.T) {
	s := newTestStore(t)

	became, err := Increment(s, "calendar/w/1/2011-08-19/1234")
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if !became {
		t.Fatalf("expected first increment to report becameOne=true")
	}

	val, found, err := s.Get("calendar/w/1/2011-08-19/1234")
	if err != nil || !found {
		t.Fatalf("expected counter to be present: found=%v err=%v", found, err)
	}
	if val != "1" {
		t.Fatalf("expected counter value 1, got %s", val)
	}
}

func TestIncrement_SecondCallReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	key := "calendar/w/1/2011-08-19/1234"

	if _, err := Increment(s, key); err != nil {
		t.Fatalf("first increment failed: %v", err)
	}
	became, err := Increment(s, key)
	if err != nil {
		t.Fatalf("second increment failed: %v", err)
	}
	if became {
		t.Fatalf("expected second increment to report becameOne=false")
	}

	val, _, _ := s.Get(key)
	if val != "2" {
		t.Fatalf("expected counter value 2, got %s", val)
	}
}

func TestApply_DuplicateVisitScenario(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 2; i++ {
		if _, err := Apply(s, "calendar", "w", "1", "2011-08-19", "12", "123", "1234", "1234", "50"); err != nil {
			t.Fatalf("apply failed: %v", err)
		}
	}

	for _, key := range []string{
		"calendar/w/1/2011-08-19/12",
		"calendar/w/1/2011-08-19/123",
		"calendar/w/1/2011-08-19/1234",
	} {
		val, found, err := s.Get(key)
		if err != nil || !found {
			t.Fatalf("expected %s to be present", key)
		}
		if val != "2" {
			t.Fatalf("expected %s=2, got %s", key, val)
		}
	}

	sizes, _, _ := s.Get("calendar/w/1/2011-08-19/1234/sz/values")
	if sizes != "1234,1234" {
		t.Fatalf("unexpected size values: %s", sizes)
	}
	durations, _, _ := s.Get("calendar/w/1/2011-08-19/1234/rt/values")
	if durations != "50,50" {
		t.Fatalf("unexpected duration values: %s", durations)
	}
}
