package query

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// form wraps url.Values with the required-parameter lookups every
// handler in moowapp_server.cpp performs before doing anything else.
type form struct {
	values url.Values
}

// required returns the named parameter and whether it was present and
// non-empty (spec.md §7, "Missing required query parameter").
func (f form) required(name string) (string, bool) {
	v := f.values.Get(name)
	return v, v != ""
}

func (f form) requiredInt(name string) (int, bool) {
	v, ok := f.required(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (f form) get(name string) string {
	return f.values.Get(name)
}

func (f form) getInt(name string) (int, bool) {
	v := f.values.Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (f form) callback() string {
	return f.values.Get("callback")
}

// unixTimestamp parses a "d_i" value as a Unix timestamp.
func unixTimestamp(s string) (time.Time, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(n, 0), true
}

// ymd formats t as "YYYY-MM-DD" (convertDate(strDate, "%Y-%m-%d") in the
// original).
func ymd(t time.Time) string {
	return t.Format("2006-01-02")
}

// weekdayDayMonth formats t as the original's "%A %d %B" strftime label,
// e.g. "Friday 19 August".
func weekdayDayMonth(t time.Time) string {
	return fmt.Sprintf("%s %02d %s", t.Weekday().String(), t.Day(), t.Month().String())
}

// monthYear formats t as the original's "%B %Y" label, e.g. "August 2011".
func monthYear(t time.Time) string {
	return fmt.Sprintf("%s %d", t.Month().String(), t.Year())
}
