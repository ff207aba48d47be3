// Package logparse implements the log parser (C4): it turns one
// Combined-style access-log line into a Visit Fact, or a drop decision,
// following the seven-step procedure in spec.md §4.4.
package logparse

import (
	"fmt"
	"strings"
)

// Fact is a transient Visit Fact extracted from one log line.
type Fact struct {
	App              string
	Group            string
	Type             string // "1"=200, "2"=302, "3"=404 (reserved, disabled by default)
	Date             string // YYYY-MM-DD
	Hour             string // HH
	TenMinute        string // HHt, t in 0..5
	Minute           string // HHMM
	ResponseSize     string
	ResponseDuration string
}

// Key returns the shared day-level key prefix "app/group/type/date/" the
// original builds once per fact and reuses for all three bucket levels.
func (f Fact) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s/", f.App, f.Group, f.Type, f.Date)
}

var months = map[string]string{
	"Jan": "01", "Feb": "02", "Mar": "03", "Apr": "04",
	"May": "05", "Jun": "06", "Jul": "07", "Aug": "08",
	"Sep": "09", "Oct": "10", "Nov": "11", "Dec": "12",
}

// Extensions maps a page-group name to the set of exact extensions
// (including leading dot) that belong to it — the loaded
// config.FilterExtension value.
type Extensions map[string][]string

// lookupGroup returns the group owning ext, or "" if none does.
func (e Extensions) lookupGroup(ext string) string {
	for group, exts := range e {
		for _, candidate := range exts {
			if candidate == ext {
				return group
			}
		}
	}
	return ""
}

// findExtension extracts the file extension from a request URL: from the
// first '.' to the first '?' (exclusive), lower-cased. Returns "" if no
// '.' is present (step 3 of spec.md §4.4).
func findExtension(url string) string {
	dot := strings.IndexByte(url, '.')
	if dot < 0 {
		return ""
	}
	sub := url[dot:]
	if q := strings.IndexByte(sub, '?'); q >= 0 {
		sub = sub[:q]
	}
	return strings.ToLower(sub)
}

// Parse applies the seven-step drop/accept procedure to one log line.
// The boolean result is false when the line was dropped; Fact is the
// zero value in that case.
func Parse(line string, ext Extensions, url1, url2 string) (Fact, bool) {
	if len(line) < 10 {
		return Fact{}, false
	}

	tokens := strings.Split(line, " ")
	if len(tokens) < 11 {
		return Fact{}, false
	}

	url := tokens[6]

	group := ext.lookupGroup(findExtension(url))
	if group == "" {
		return Fact{}, false
	}

	var typ string
	switch {
	case strings.Contains(line, url1):
		typ = "1"
	case strings.Contains(line, url2):
		typ = "2"
	default:
		return Fact{}, false
	}

	dateTok := tokens[3]
	day, month, year, hour, minute, ok := parseDateToken(dateTok)
	if !ok {
		return Fact{}, false
	}

	slash := strings.IndexByte(url[1:], '/')
	if slash < 0 {
		return Fact{}, false
	}
	app := url[1 : 1+slash]

	size := tokens[9]
	if size == "-" {
		size = "0"
	}
	duration := tokens[10]

	return Fact{
		App:              app,
		Group:            group,
		Type:             typ,
		Date:             fmt.Sprintf("%s-%s-%s", year, month, day),
		Hour:             fmt.Sprintf("%02d", hour),
		TenMinute:        fmt.Sprintf("%02d%d", hour, minute/10),
		Minute:           fmt.Sprintf("%02d%02d", hour, minute),
		ResponseSize:     size,
		ResponseDuration: duration,
	}, true
}

// parseDateToken parses "[DD/Mon/YYYY:HH:MM:SS" (trailing timezone and
// closing bracket ignored, as the original's sscanf does via its "%*d"
// trailing conversions).
func parseDateToken(tok string) (day, month, year string, hour, minute int, ok bool) {
	tok = strings.TrimPrefix(tok, "[")
	// tok now looks like "19/Aug/2011:12:34:56"
	slash1 := strings.IndexByte(tok, '/')
	if slash1 < 0 {
		return "", "", "", 0, 0, false
	}
	day = tok[:slash1]
	rest := tok[slash1+1:]

	slash2 := strings.IndexByte(rest, '/')
	if slash2 < 0 {
		return "", "", "", 0, 0, false
	}
	monAbbrev := rest[:slash2]
	rest = rest[slash2+1:]

	m, found := months[monAbbrev]
	if !found {
		return "", "", "", 0, 0, false
	}
	month = m

	colon1 := strings.IndexByte(rest, ':')
	if colon1 < 0 {
		return "", "", "", 0, 0, false
	}
	year = rest[:colon1]
	rest = rest[colon1+1:]

	colon2 := strings.IndexByte(rest, ':')
	if colon2 < 0 {
		return "", "", "", 0, 0, false
	}
	hourStr := rest[:colon2]
	rest = rest[colon2+1:]

	colon3 := strings.IndexByte(rest, ':')
	if colon3 < 0 {
		return "", "", "", 0, 0, false
	}
	minStr := rest[:colon3]

	if len(day) == 1 {
		day = "0" + day
	}

	var h, mi int
	if _, err := fmt.Sscanf(hourStr, "%d", &h); err != nil {
		return "", "", "", 0, 0, false
	}
	if _, err := fmt.Sscanf(minStr, "%d", &mi); err != nil {
		return "", "", "", 0, 0, false
	}

	return day, month, year, h, mi, true
}
