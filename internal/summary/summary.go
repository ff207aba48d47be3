// Package summary implements the response-size/response-time
// summariser (C9): it reduces each minute bucket's raw sample lists into
// a mean/median/p90 triple once the bucket is old enough that no more
// samples will arrive, grounded on moowapp_server.cpp's
// averageRtSzCalculThread.
package summary

import (
	"context"
	"fmt"
	"log"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ooXavier/moowapp-server/internal/keys"
	"github.com/ooXavier/moowapp-server/internal/modules"
	"github.com/ooXavier/moowapp-server/internal/store"
)

const (
	tickInterval = 20 * time.Second
	grace        = 2 * time.Minute
)

// Summariser periodically reduces every finished minute bucket's
// `…/sz/values` and `…/rt/values` sample lists to `mean/median/p90`
// summaries, dispatching work to a bounded pool (spec.md §4.9/§5).
type Summariser struct {
	store    *store.Store
	registry *modules.Registry
	writer   *store.WriterMutex
	groups   []string
	types    []string
	workers  int
}

// New constructs a Summariser. workers bounds the per-tick worker pool;
// 0 defaults to the number of logical CPUs (spec.md §5: "size = number
// of logical CPUs, or 1 when determinism is required").
func New(s *store.Store, registry *modules.Registry, writer *store.WriterMutex, groups []string, workers int) *Summariser {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Summariser{
		store:    s,
		registry: registry,
		writer:   writer,
		groups:   groups,
		types:    []string{"1", "2", "3"},
		workers:  workers,
	}
}

// Run ticks every 20 seconds, attempting the writer mutex
// non-blockingly and skipping the tick if contested (spec.md §5).
func (s *Summariser) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Summariser) tick(ctx context.Context) {
	if !s.writer.TryLock() {
		return
	}
	defer s.writer.Unlock()

	if err := s.runOnce(ctx); err != nil {
		log.Printf("summary tick failed: %v", err)
	}
}

func (s *Summariser) runOnce(ctx context.Context) error {
	apps, err := s.registry.Load()
	if err != nil {
		return err
	}

	now := time.Now()
	cutoff := now.Add(-grace)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	jobs := make(chan string)
	errs := make(chan error, s.workers)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for minuteKey := range jobs {
				if err := s.summarizeMinute(minuteKey); err != nil {
					errs <- err
				}
			}
		}()
	}

	var enumErr error
dayLoop:
	for d := monthStart; !d.After(cutoff); d = d.AddDate(0, 0, 1) {
		select {
		case <-ctx.Done():
			enumErr = ctx.Err()
			break dayLoop
		default:
		}

		date := ymd(d)
		for _, app := range apps.Names() {
			for _, group := range s.groups {
				for _, typ := range s.types {
					minuteKeys, err := s.finishedMinuteKeys(app, group, typ, date, d, cutoff)
					if err != nil {
						enumErr = err
						break dayLoop
					}
					for _, k := range minuteKeys {
						jobs <- k
					}
				}
			}
		}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	if enumErr != nil {
		return enumErr
	}
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// finishedMinuteKeys returns every minute-bucket key under
// (app,group,type,date) whose timestamp is at or before cutoff — the
// grace window guards against summarising a bucket ingestion might still
// append to (spec.md §5, "C9 never observes a partially appended values
// list").
func (s *Summariser) finishedMinuteKeys(app, group, typ, date string, day, cutoff time.Time) ([]string, error) {
	prefix := fmt.Sprintf("%s/%s/%s/%s/", app, group, typ, date)
	all, err := s.store.Keys(prefix)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, k := range all {
		rest := strings.TrimPrefix(k, prefix)
		seg, _, hasMore := strings.Cut(rest, "/")
		if hasMore || len(seg) != 4 {
			continue
		}
		hh, err1 := strconv.Atoi(seg[:2])
		mm, err2 := strconv.Atoi(seg[2:])
		if err1 != nil || err2 != nil {
			continue
		}
		minuteTime := time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, day.Location())
		if minuteTime.After(cutoff) {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

func (s *Summariser) summarizeMinute(minuteKey string) error {
	if err := s.reduceSamples(keys.SizeValues(minuteKey), keys.SizeSummary(minuteKey)); err != nil {
		return err
	}
	if err := s.reduceSamples(keys.TimeValues(minuteKey), keys.TimeSummary(minuteKey)); err != nil {
		return err
	}
	return nil
}

// reduceSamples reads the comma-delimited sample list at valuesKey,
// writes its mean/median/p90 triple at summaryKey, and deletes
// valuesKey. A bucket with no sample list is left untouched.
func (s *Summariser) reduceSamples(valuesKey, summaryKey string) error {
	raw, found, err := s.store.Get(valuesKey)
	if err != nil {
		return err
	}
	if !found || raw == "" {
		return nil
	}

	values := parseSamples(raw)
	if len(values) == 0 {
		return s.store.Delete(valuesKey)
	}

	sort.Ints(values)
	mean := sumInts(values) / len(values)
	median := medianOf(values)
	p90 := int(math.Round(percentile(values, 0.9)))

	summary := fmt.Sprintf("%d/%d/%d", mean, median, p90)
	if err := s.store.Put(summaryKey, summary); err != nil {
		return err
	}
	return s.store.Delete(valuesKey)
}

func parseSamples(raw string) []int {
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func sumInts(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

// medianOf returns the middle element, or the mean of the two middle
// elements for an even-length sorted slice.
func medianOf(sorted []int) int {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile computes the p-th percentile by linear interpolation
// between the two nearest ranks, the same method as the teacher's
// CalculatePercentile (pkg/compaction/compactor.go).
func percentile(sorted []int, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return float64(sorted[0])
	}
	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	return float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight
}

func ymd(t time.Time) string {
	return t.Format("2006-01-02")
}
