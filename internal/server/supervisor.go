// Package server implements the supervisor (C10): component wiring,
// HTTP router, background worker lifetimes, and graceful shutdown,
// grounded on pkg/server/setup.go, pkg/server/tasks.go, and
// cmd/server/main.go's signal-handling/ordered-shutdown shape.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ooXavier/moowapp-server/internal/compaction"
	"github.com/ooXavier/moowapp-server/internal/config"
	"github.com/ooXavier/moowapp-server/internal/ingest"
	"github.com/ooXavier/moowapp-server/internal/livefeed"
	"github.com/ooXavier/moowapp-server/internal/modules"
	"github.com/ooXavier/moowapp-server/internal/query"
	"github.com/ooXavier/moowapp-server/internal/store"
	"github.com/ooXavier/moowapp-server/internal/summary"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 30 * time.Second
	workerDrain     = 5 * time.Second
)

// Supervisor owns every long-lived component's lifetime: the store, the
// ingestion tailers, the compaction and summary workers, the optional
// live feed, and the HTTP server.
type Supervisor struct {
	cfg      config.Config
	store    *store.Store
	registry *modules.Registry
	writer   *store.WriterMutex

	tailers    []*ingest.Tailer
	compactor  *compaction.Compactor
	summariser *summary.Summariser
	hub        *livefeed.Hub

	httpServer *http.Server
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New opens the store and wires every component described in
// SPEC_FULL.md §4 from cfg. stateDir holds the per-source read-offset
// sidecar files (spec.md §4.5).
func New(cfg config.Config, stateDir string) (*Supervisor, error) {
	dbDir := filepath.Join(cfg.DBPath, cfg.DBName)
	s, err := store.Open(store.Config{Dir: dbDir, Compression: cfg.Compression})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	registry := modules.New(s, cfg.ExcludeMod)
	writer := &store.WriterMutex{}

	groups := make([]string, 0, len(cfg.FilterExtension))
	for group := range cfg.FilterExtension {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	extensions := make(map[string][]string, len(cfg.FilterExtension))
	for group, exts := range cfg.FilterExtension {
		extensions[group] = exts
	}

	tailers := make([]*ingest.Tailer, 0, len(cfg.LogSources))
	for _, src := range cfg.LogSources {
		tailer := ingest.NewTailer(
			ingest.Source{
				Index:        src.Index,
				PathTemplate: filepath.Join(cfg.FilterPath, src.Path),
				Format:       src.Format,
			},
			s, writer, registry, extensions,
			cfg.FilterURL1, cfg.FilterURL2,
			stateDir, cfg.LogsReadInterval,
		)
		tailers = append(tailers, tailer)
	}

	compactor, err := compaction.New(s, registry, writer, groups,
		config.DaysForMinutesDetails, config.DaysForDetails, config.DaysForHoursDetails)
	if err != nil {
		return nil, fmt.Errorf("constructing compactor: %w", err)
	}

	summariser := summary.New(s, registry, writer, groups, 0)

	var hub *livefeed.Hub
	if cfg.LiveFeed {
		hub = livefeed.NewHub()
	}

	monitor := NewStorageMonitor(dbDir, cfg.MaxStorageGB*1024*1024*1024)
	handler := query.NewHandler(s, registry, writer)
	router := NewRouter(handler, monitor, hub)

	httpServer := &http.Server{
		Addr:         ":" + cfg.ListeningPort,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	return &Supervisor{
		cfg:        cfg,
		store:      s,
		registry:   registry,
		writer:     writer,
		tailers:    tailers,
		compactor:  compactor,
		summariser: summariser,
		hub:        hub,
		httpServer: httpServer,
	}, nil
}

// Start launches every background worker and the HTTP listener. It
// returns immediately; the process's signal handler is responsible for
// calling Shutdown.
func (sv *Supervisor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	sv.cancel = cancel

	for _, tailer := range sv.tailers {
		t := tailer
		sv.wg.Add(1)
		go func() {
			defer sv.wg.Done()
			t.Run(ctx)
		}()
	}

	sv.wg.Add(1)
	go func() {
		defer sv.wg.Done()
		sv.compactor.Run(ctx)
	}()

	sv.wg.Add(1)
	go func() {
		defer sv.wg.Done()
		sv.summariser.Run(ctx)
	}()

	if sv.hub != nil {
		sv.wg.Add(1)
		go func() {
			defer sv.wg.Done()
			sv.hub.Run(ctx)
		}()

		sv.wg.Add(1)
		go func() {
			defer sv.wg.Done()
			groups := make([]string, 0, len(sv.cfg.FilterExtension))
			for group := range sv.cfg.FilterExtension {
				groups = append(groups, group)
			}
			livefeed.Feed(ctx, sv.store, sv.registry, groups, sv.hub)
		}()
	}

	go func() {
		log.Printf("server: listening on %s", sv.httpServer.Addr)
		if err := sv.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("server: listener stopped: %v", err)
		}
	}()
}

// Shutdown stops the HTTP listener, cancels every background worker,
// waits (with a bound) for them to exit, drains the writer mutex so no
// write is interrupted mid-flight, and closes the store. Order matches
// spec.md §4.10/§5: HTTP stops accepting new work before workers are
// cancelled, and the store is the last thing closed.
func (sv *Supervisor) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := sv.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("server: HTTP shutdown warning: %v", err)
	}

	if sv.cancel != nil {
		sv.cancel()
	}

	done := make(chan struct{})
	go func() {
		sv.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(workerDrain):
		log.Printf("server: workers did not stop within %s, proceeding anyway", workerDrain)
	}

	sv.writer.Lock()
	sv.writer.Unlock()

	return sv.store.Close()
}
