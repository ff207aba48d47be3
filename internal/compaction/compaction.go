// Package compaction implements the daily roll-up/retention worker (C8):
// it prunes minute, 10-minute, and hour buckets past their retention
// horizons and folds each day's hour counters into a permanent day
// counter, grounded on moowapp_server.cpp's compressionThread.
package compaction

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ooXavier/moowapp-server/internal/keys"
	"github.com/ooXavier/moowapp-server/internal/modules"
	"github.com/ooXavier/moowapp-server/internal/store"
)

const pollInterval = 20 * time.Minute

// fireSchedule is the original's fixed 03:00-local wake time
// (compressionThread's next-fire computation), expressed as a standard
// five-field cron spec.
const fireSchedule = "0 3 * * *"

// Compactor owns one daily roll-up/retention pass over the store.
type Compactor struct {
	store    *store.Store
	registry *modules.Registry
	writer   *store.WriterMutex

	groups []string
	types  []string

	dm, dd, dh int // retention horizons in days, for minute/10-minute/hour granularity

	schedule cron.Schedule
	nextFire time.Time
	dateLast time.Time
}

// New constructs a Compactor. groups is the set of configured page-group
// tags (config.Config.FilterExtension's keys); dm/dd/dh are the
// minute/10-minute/hour retention horizons in days (spec.md §3,
// defaults 3/7/31 via config.DaysForMinutesDetails et al).
func New(s *store.Store, registry *modules.Registry, writer *store.WriterMutex, groups []string, dm, dd, dh int) (*Compactor, error) {
	schedule, err := cron.ParseStandard(fireSchedule)
	if err != nil {
		return nil, fmt.Errorf("parsing compaction fire schedule: %w", err)
	}
	now := time.Now()
	return &Compactor{
		store:    s,
		registry: registry,
		writer:   writer,
		groups:   groups,
		types:    []string{"1", "2", "3"},
		dm:       dm,
		dd:       dd,
		dh:       dh,
		schedule: schedule,
		nextFire: schedule.Next(now),
		dateLast: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()),
	}, nil
}

// Run polls every 20 minutes, comparing wall-clock time to the next fire
// time (initially the next 03:00 local), and runs one compaction pass
// when it is reached (spec.md §4.8).
func (c *Compactor) Run(ctx context.Context) {
	c.maybeRun(ctx)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.maybeRun(ctx)
		}
	}
}

func (c *Compactor) maybeRun(ctx context.Context) {
	now := time.Now()
	if now.Before(c.nextFire) {
		return
	}

	c.writer.Lock()
	defer c.writer.Unlock()

	if err := c.runPass(ctx, now); err != nil {
		log.Printf("compaction pass failed: %v", err)
		return
	}
	c.nextFire = c.nextFire.Add(24 * time.Hour)
}

func (c *Compactor) runPass(ctx context.Context, now time.Time) error {
	apps, err := c.trackedApps()
	if err != nil {
		return err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for d := c.dateLast; !d.After(today); d = d.AddDate(0, 0, 1) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		date := ymd(d)
		for _, app := range apps {
			for _, group := range c.groups {
				for _, typ := range c.types {
					if err := c.pruneDay(app, group, typ, date, today); err != nil {
						return err
					}
				}
			}
		}

		if err := c.store.Sync(); err != nil {
			return err
		}
	}

	c.dateLast = today.AddDate(0, 0, -c.dd)
	return nil
}

// trackedApps returns every app the compactor must visit: live modules
// plus tombstoned ones, whose surviving hour keys still need pruning
// past the hour horizon (spec.md §4.8, "For tombstoned apps...").
func (c *Compactor) trackedApps() ([]string, error) {
	live, err := c.registry.Load()
	if err != nil {
		return nil, err
	}
	deleted, err := c.registry.Deleted()
	if err != nil {
		return nil, err
	}
	seen := modules.NewSet()
	for _, name := range live.Names() {
		seen.Add(name)
	}
	for _, name := range deleted.Names() {
		seen.Add(name)
	}
	return seen.Names(), nil
}

// pruneDay applies retention and day roll-up for one (app, group, type,
// date) quadruple. Buckets are classified by scanning every key under
// the day's prefix and inspecting the length of the first path segment
// after it: 2 digits is an hour key, 3 a 10-minute key, 4 a minute key
// or one of its sz/rt/values children.
func (c *Compactor) pruneDay(app, group, typ, date string, today time.Time) error {
	prefix := fmt.Sprintf("%s/%s/%s/%s/", app, group, typ, date)
	all, err := c.store.Keys(prefix)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return nil
	}

	var hourKeys, tenMinKeys, minuteKeys, minuteChildKeys []string
	for _, k := range all {
		rest := strings.TrimPrefix(k, prefix)
		seg, _, hasMore := strings.Cut(rest, "/")
		switch {
		case len(seg) == 2 && !hasMore:
			hourKeys = append(hourKeys, k)
		case len(seg) == 3 && !hasMore:
			tenMinKeys = append(tenMinKeys, k)
		case len(seg) == 4 && !hasMore:
			minuteKeys = append(minuteKeys, k)
		case len(seg) == 4 && hasMore:
			minuteChildKeys = append(minuteChildKeys, k)
		}
	}

	minuteCutoff := today.AddDate(0, 0, -c.dm)
	tenMinCutoff := today.AddDate(0, 0, -c.dd)
	hourCutoff := today.AddDate(0, 0, -c.dh)
	d, err := time.ParseInLocation("2006-01-02", date, today.Location())
	if err != nil {
		return fmt.Errorf("parsing compaction date %q: %w", date, err)
	}

	if !d.After(minuteCutoff) {
		for _, k := range minuteKeys {
			if err := c.store.Delete(k); err != nil {
				return err
			}
		}
		for _, k := range minuteChildKeys {
			if err := c.store.Delete(k); err != nil {
				return err
			}
		}
	}

	if !d.After(tenMinCutoff) {
		for _, k := range tenMinKeys {
			if err := c.store.Delete(k); err != nil {
				return err
			}
		}
	}

	sum := 0
	for _, k := range hourKeys {
		val, found, err := c.store.Get(k)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if n, perr := strconv.Atoi(val); perr == nil {
			sum += n
		}
	}
	if sum > 0 {
		if err := c.store.Put(keys.Day(app, group, typ, date), strconv.Itoa(sum)); err != nil {
			return err
		}
	}

	if !d.After(hourCutoff) {
		for _, k := range hourKeys {
			if err := c.store.Delete(k); err != nil {
				return err
			}
		}
	}

	return nil
}

func ymd(t time.Time) string {
	return t.Format("2006-01-02")
}
