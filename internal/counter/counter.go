// Package counter implements the counter updater (C6): at-most-once
// increment of a decimal KV counter, with an append-only sample list for
// response size/time at minute granularity.
package counter

import (
	"strconv"

	"github.com/ooXavier/moowapp-server/internal/keys"
	"github.com/ooXavier/moowapp-server/internal/store"
)

// Increment reads the decimal counter at key, adds one, and writes it
// back. A parse failure on an existing value is treated as 0 and
// overwritten (spec §4.6) rather than propagated — there is no
// compare-and-swap; the writer mutex held by the caller makes this
// race-free. Returns true exactly when the counter transitioned from
// absent to 1.
func Increment(s *store.Store, key string) (becameOne bool, err error) {
	val, found, err := s.Get(key)
	if err != nil {
		return false, err
	}

	n := 0
	if found {
		if parsed, perr := strconv.Atoi(val); perr == nil {
			n = parsed
		}
	}
	n++

	if err := s.Put(key, strconv.Itoa(n)); err != nil {
		return false, err
	}
	return n == 1, nil
}

// AppendSample appends value to the comma-delimited sample list at key.
func AppendSample(s *store.Store, key, value string) error {
	existing, found, err := s.Get(key)
	if err != nil {
		return err
	}
	if found && existing != "" {
		existing += "," + value
	} else {
		existing = value
	}
	return s.Put(key, existing)
}

// Apply records one Visit Fact's three counter increments (hour,
// 10-minute, minute) plus the minute-level size/duration sample
// appends. It returns true when the minute counter transitioned from
// absent to 1 — the signal the ingestion loop uses to register a new
// app in the module registry.
func Apply(s *store.Store, app, group, typ, date, hour, tenMin, minute, size, duration string) (newApp bool, err error) {
	hourKey := keys.Hour(app, group, typ, date, hour)
	if _, err := Increment(s, hourKey); err != nil {
		return false, err
	}

	tenMinKey := keys.TenMinute(app, group, typ, date, tenMin)
	if _, err := Increment(s, tenMinKey); err != nil {
		return false, err
	}

	minuteKey := keys.Minute(app, group, typ, date, minute)
	becameOne, err := Increment(s, minuteKey)
	if err != nil {
		return false, err
	}

	if size != "" {
		if err := AppendSample(s, keys.SizeValues(minuteKey), size); err != nil {
			return false, err
		}
	}
	if duration != "" {
		if err := AppendSample(s, keys.TimeValues(minuteKey), duration); err != nil {
			return false, err
		}
	}

	return becameOne, nil
}
