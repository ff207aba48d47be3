package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ooXavier/moowapp-server/internal/logparse"
	"github.com/ooXavier/moowapp-server/internal/modules"
	"github.com/ooXavier/moowapp-server/internal/store"
)

func TestExpandPath_Timestamp(t *testing.T) {
	now := time.Date(2011, time.August, 19, 15, 4, 5, 0, time.UTC)
	got := ExpandPath("/var/log/myfile.{D}.log", "timestamp", now)
	midnight := time.Date(2011, time.August, 19, 0, 0, 0, 0, time.UTC).Unix()
	want := "/var/log/myfile." + strconv.FormatInt(midnight, 10) + ".log"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestExpandPath_Date(t *testing.T) {
	now := time.Date(2011, time.August, 19, 15, 4, 5, 0, time.UTC)
	got := ExpandPath("/var/log/myfile.{D}.log", "date", now)
	want := "/var/log/myfile.2011-08-19.log"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestTailer_TickParsesNewLinesAndAdvancesOffset(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "access.log")
	line := "127.0.0.1 - - [19/Aug/2011:12:34:56 +0000] \"GET /calendar/view.do HTTP/1.1\" 200 1234 50\n"
	if err := os.WriteFile(logPath, []byte(line), 0o644); err != nil {
		t.Fatalf("writing log fixture: %v", err)
	}

	s, err := store.Open(store.Config{InMemory: true})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	writer := &store.WriterMutex{}
	registry := modules.New(s, "_v0")
	ext := logparse.Extensions{"w": {".do"}}

	tailer := NewTailer(
		Source{Index: 1, PathTemplate: logPath, Format: "date"},
		s, writer, registry, ext, " 200 ", " 302 ", dir, time.Second,
	)

	if err := tailer.tick(); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	val, found, err := s.Get("calendar/w/1/2011-08-19/1234")
	if err != nil || !found {
		t.Fatalf("expected minute counter to be present: found=%v err=%v", found, err)
	}
	if val != "1" {
		t.Fatalf("expected minute counter=1, got %s", val)
	}

	set, err := registry.Load()
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}
	if !set.Contains("calendar") {
		t.Fatalf("expected calendar to be registered as a module")
	}

	offset := tailer.loadOffset()
	if offset != int64(len(line)) {
		t.Fatalf("expected offset to advance to %d, got %d", len(line), offset)
	}

	// A second tick with no new bytes must be a no-op.
	if err := tailer.tick(); err != nil {
		t.Fatalf("second tick failed: %v", err)
	}
	val2, _, _ := s.Get("calendar/w/1/2011-08-19/1234")
	if val2 != "1" {
		t.Fatalf("expected counter to remain 1 after no-op tick, got %s", val2)
	}
}

func TestTailer_SkipsTickWhenWriterContended(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "access.log")
	if err := os.WriteFile(logPath, []byte("irrelevant\n"), 0o644); err != nil {
		t.Fatalf("writing log fixture: %v", err)
	}

	s, err := store.Open(store.Config{InMemory: true})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	writer := &store.WriterMutex{}
	writer.Lock()
	defer writer.Unlock()

	registry := modules.New(s, "_v0")
	tailer := NewTailer(
		Source{Index: 1, PathTemplate: logPath, Format: "date"},
		s, writer, registry, logparse.Extensions{}, " 200 ", " 302 ", dir, time.Second,
	)

	if err := tailer.tick(); err != nil {
		t.Fatalf("expected contended tick to return nil, got %v", err)
	}
	if _, err := os.Stat(tailer.posFile()); err == nil {
		t.Fatalf("expected offset file not to be written when contended")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(store.Config{InMemory: true})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	tailer := NewTailer(
		Source{Index: 1, PathTemplate: filepath.Join(dir, "missing.log"), Format: "date"},
		s, &store.WriterMutex{}, modules.New(s, "_v0"), logparse.Extensions{}, " 200 ", " 302 ", dir, 10*time.Millisecond,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tailer.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected Run to return after context cancellation")
	}
}
