package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/ooXavier/moowapp-server/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DBPath:           t.TempDir(),
		DBName:           "storage.db",
		FilterPath:       t.TempDir(),
		FilterURL1:       " 200 ",
		FilterURL2:       " 302 ",
		ListeningPort:    "0",
		LogsReadInterval: time.Second,
		FilterExtension:  map[string][]string{"w": {".html"}},
	}
}

func TestSupervisor_StartAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	sv, err := New(cfg, t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sv.Start()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestRouter_UnknownRouteIs404(t *testing.T) {
	cfg := testConfig(t)
	sv, err := New(cfg, t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sv.store.Close()

	router := NewRouter(nil, NewStorageMonitor(cfg.DBPath, 1), nil)
	req, _ := http.NewRequest(http.MethodGet, "/not_a_real_route", nil)
	rec := &recordingWriter{header: http.Header{}}
	router.ServeHTTP(rec, req)
	if rec.status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.status)
	}
}

type recordingWriter struct {
	header http.Header
	status int
	body   []byte
}

func (w *recordingWriter) Header() http.Header { return w.header }
func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return len(b), nil
}
func (w *recordingWriter) WriteHeader(status int) { w.status = status }
