// Package ingest implements the ingestion loop (C5): a per-log-source
// tailer that resumes at a persisted byte offset, parses new bytes, and
// updates counters at three granularities.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ooXavier/moowapp-server/internal/counter"
	"github.com/ooXavier/moowapp-server/internal/logparse"
	"github.com/ooXavier/moowapp-server/internal/modules"
	"github.com/ooXavier/moowapp-server/internal/store"
)

// Source describes one log file to tail.
type Source struct {
	Index        int
	PathTemplate string
	// Format selects how the template's "{D}" placeholder is expanded:
	// "timestamp" substitutes the Unix epoch of today's local midnight;
	// "date" substitutes today's date as YYYY-MM-DD.
	Format string
}

// ExpandPath substitutes today's date into the "{D}" placeholder of a
// log path template, per the two forms named in spec.md §4.5/§6.
func ExpandPath(template, format string, now time.Time) string {
	var token string
	switch format {
	case "date":
		token = now.Format("2006-01-02")
	default: // "timestamp"
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		token = strconv.FormatInt(midnight.Unix(), 10)
	}
	return strings.ReplaceAll(template, "{D}", token)
}

// Tailer reads one configured log source and updates counters for every
// accepted line.
type Tailer struct {
	source     Source
	store      *store.Store
	writer     *store.WriterMutex
	registry   *modules.Registry
	extensions logparse.Extensions
	url1, url2 string
	stateDir   string
	interval   time.Duration
}

// NewTailer constructs a Tailer for one configured log source.
func NewTailer(
	source Source,
	s *store.Store,
	writer *store.WriterMutex,
	registry *modules.Registry,
	extensions logparse.Extensions,
	url1, url2 string,
	stateDir string,
	interval time.Duration,
) *Tailer {
	return &Tailer{
		source:     source,
		store:      s,
		writer:     writer,
		registry:   registry,
		extensions: extensions,
		url1:       url1,
		url2:       url2,
		stateDir:   stateDir,
		interval:   interval,
	}
}

func (t *Tailer) posFile() string {
	return fmt.Sprintf("%s/mwa.pos.%d", t.stateDir, t.source.Index)
}

func (t *Tailer) loadOffset() int64 {
	data, err := os.ReadFile(t.posFile())
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (t *Tailer) saveOffset(offset int64) error {
	return os.WriteFile(t.posFile(), []byte(strconv.FormatInt(offset, 10)), 0o644)
}

// Run tails the source until ctx is cancelled. The first tick waits a
// shorter grace period than subsequent ticks (spec §5, "Tread seconds,
// first iteration 5").
func (t *Tailer) Run(ctx context.Context) {
	first := true
	for {
		wait := t.interval
		if first {
			wait = 5 * time.Second
			first = false
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if err := t.tick(); err != nil {
			log.Printf("ingest: source %d: %v", t.source.Index, err)
		}
	}
}

// tick performs one read-parse-update pass. It attempts the writer
// mutex non-blockingly and skips this tick if contested (spec §4.5/§5).
func (t *Tailer) tick() error {
	if !t.writer.TryLock() {
		return nil
	}
	defer t.writer.Unlock()

	path := ExpandPath(t.source.PathTemplate, t.source.Format, time.Now())

	f, err := os.Open(path)
	if err != nil {
		// Unreadable log file: logged, tailer resumes next tick, offset
		// not advanced (spec §7).
		return fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("statting %q: %w", path, err)
	}
	end := stat.Size()
	offset := t.loadOffset()
	if end <= offset {
		return nil
	}

	if _, err := f.Seek(offset, 0); err != nil {
		return fmt.Errorf("seeking %q: %w", path, err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	scanner.Split(splitOnCRLF)

	var newApps []string
	for scanner.Scan() {
		line := scanner.Text()
		fact, ok := logparse.Parse(line, t.extensions, t.url1, t.url2)
		if !ok {
			continue
		}

		becameOne, err := counter.Apply(t.store, fact.App, fact.Group, fact.Type, fact.Date,
			fact.Hour, fact.TenMinute, fact.Minute, fact.ResponseSize, fact.ResponseDuration)
		if err != nil {
			return fmt.Errorf("applying counters: %w", err)
		}
		if becameOne {
			newApps = append(newApps, fact.App)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning %q: %w", path, err)
	}

	if err := t.registry.AddAll(newApps); err != nil {
		return fmt.Errorf("updating module registry: %w", err)
	}

	if err := t.saveOffset(end); err != nil {
		return fmt.Errorf("persisting offset: %w", err)
	}

	return nil
}

// splitOnCRLF is a bufio.SplitFunc that splits on either '\n' or '\r',
// matching the original byte-by-byte scan in log_reader.cpp's
// readLogFile which treats both as line terminators.
func splitOnCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
