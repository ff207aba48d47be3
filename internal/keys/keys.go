// Package keys builds the deterministic, '/'-delimited aggregation keys
// described in spec.md §4.2. It has no parser: code that needs to
// classify a stored key splits it on '/' itself. Every key is a plain,
// human-readable string so an existing on-disk store can be migrated in
// without a re-encoding pass (see spec.md §9, "preserve the exact
// on-disk encoding").
package keys

import "fmt"

const (
	ModulesKey        = "modules"
	ModulesDeletedKey = "modules-deleted"
)

// Day returns the day-granularity bucket key.
func Day(app, group, typ, date string) string {
	return fmt.Sprintf("%s/%s/%s/%s", app, group, typ, date)
}

// Hour returns the hour-granularity bucket key. hour is "HH".
func Hour(app, group, typ, date, hour string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", app, group, typ, date, hour)
}

// TenMinute returns the 10-minute-granularity bucket key. tenMin is "HHt"
// with t in 0..5.
func TenMinute(app, group, typ, date, tenMin string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", app, group, typ, date, tenMin)
}

// Minute returns the minute-granularity bucket key. minute is "HHMM".
func Minute(app, group, typ, date, minute string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", app, group, typ, date, minute)
}

// SizeValues returns the raw response-size sample-list key for a minute key.
func SizeValues(minuteKey string) string { return minuteKey + "/sz/values" }

// TimeValues returns the raw response-time sample-list key for a minute key.
func TimeValues(minuteKey string) string { return minuteKey + "/rt/values" }

// SizeSummary returns the mean/median/p90 summary key for a minute key.
func SizeSummary(minuteKey string) string { return minuteKey + "/sz" }

// TimeSummary returns the mean/median/p90 summary key for a minute key.
func TimeSummary(minuteKey string) string { return minuteKey + "/rt" }

// TenMinuteSlots returns the valid 144 ten-minute slot strings ("HHt" for
// HH in 00..23, t in 0..5), generated programmatically rather than
// transcribed from the original's stale 144-entry decimal table (see
// SPEC_FULL.md §13, Open Question #2 — the source table's entries like
// "104" or "235" do not correspond to any key this engine ever writes).
func TenMinuteSlots() []string {
	slots := make([]string, 0, 144)
	for h := 0; h < 24; h++ {
		for t := 0; t < 6; t++ {
			slots = append(slots, fmt.Sprintf("%02d%d", h, t))
		}
	}
	return slots
}

// HourSlots returns the 24 hour-slot strings ("00".."23").
func HourSlots() []string {
	slots := make([]string, 0, 24)
	for h := 0; h < 24; h++ {
		slots = append(slots, fmt.Sprintf("%02d", h))
	}
	return slots
}
