// Package query implements the four read-only stats endpoints (C7):
// intra, day, week, month, plus the module-admin endpoints, grounded on
// moowapp_server.cpp's stats_app_* and stats_admin_* handlers.
package query

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/ooXavier/moowapp-server/internal/httpx"
	"github.com/ooXavier/moowapp-server/internal/keys"
	"github.com/ooXavier/moowapp-server/internal/modules"
	"github.com/ooXavier/moowapp-server/internal/store"
)

// Handler serves the query endpoints over a shared store and module
// registry. Reads do not take the writer mutex (spec.md §5): they may
// observe a mid-compaction snapshot, which is acceptable at bucket
// granularity.
type Handler struct {
	store    *store.Store
	registry *modules.Registry
	writer   *store.WriterMutex
}

// NewHandler constructs a query Handler. writer is the shared writer
// mutex (spec.md §5): the admin endpoints mutate the store and must hold
// it, like every other mutating path, while the four read endpoints
// never acquire it.
func NewHandler(s *store.Store, registry *modules.Registry, writer *store.WriterMutex) *Handler {
	return &Handler{store: s, registry: registry, writer: writer}
}

func (h *Handler) parseForm(r *http.Request) form {
	r.ParseForm()
	return form{values: r.Form}
}

func (h *Handler) getCounter(key string) int {
	val, found, err := h.store.Get(key)
	if err != nil || !found {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return n
}

func (h *Handler) knownModules() (*modules.Set, error) {
	return h.registry.Load()
}

// Intra serves /stats_app_intra.
func (h *Handler) Intra(w http.ResponseWriter, r *http.Request) {
	f := h.parseForm(r)

	mode, ok := f.required("mode")
	if !ok {
		httpx.WriteMissingParam(w, "mode")
		return
	}

	countParam := "modules"
	if mode == "all" {
		countParam = "apps"
	}
	nbApps, ok := f.requiredInt(countParam)
	if !ok {
		httpx.WriteMissingParam(w, countParam)
		return
	}
	dates, ok := f.requiredInt("dates")
	if !ok {
		httpx.WriteMissingParam(w, "dates")
		return
	}
	offset, ok := f.requiredInt("offset")
	if !ok {
		httpx.WriteMissingParam(w, "offset")
		return
	}
	group, ok := f.required("group")
	if !ok {
		httpx.WriteMissingParam(w, "group")
		return
	}
	typ, ok := f.required("type")
	if !ok {
		httpx.WriteMissingParam(w, "type")
		return
	}
	detailedStr, ok := f.required("detailed")
	if !ok {
		httpx.WriteMissingParam(w, "detailed")
		return
	}
	detailed := detailedStr == "yes"

	var otherModules *modules.Set
	if mode == "all" {
		var err error
		otherModules, err = h.knownModules()
		if err != nil {
			otherModules = modules.NewSet()
		}
	}

	// Index-stepping formula preserved verbatim from stats_app_intra's
	// detailed/non-detailed key computation (see SPEC_FULL.md §13, Open
	// Question #3): non-detailed steps ii 0..5 then bumps iii by 10 every
	// 6 steps; detailed steps ii 0..59 then bumps iii by 100 every 60.
	type dateSlot struct {
		key       int
		timestamp string
		ymd       string
	}
	var slots []dateSlot
	subOff := offset - offset%100
	ii, iii := 0, 0
	max := offset + dates
	var lastTimestamp string
	for i := offset; i < max; i, ii = i+1, ii+1 {
		if detailed {
			if ii != 0 && ii%60 == 0 {
				ii = 0
				iii += 100
			}
		} else {
			if ii != 0 && ii%6 == 0 {
				ii = 0
				iii += 10
			}
		}
		var key int
		if detailed {
			key = subOff + ii + iii
		} else {
			key = offset + ii + iii
		}
		ts := f.get(fmt.Sprintf("d_%d", i))
		if ts == "" {
			continue
		}
		t, ok := unixTimestamp(ts)
		if !ok {
			continue
		}
		slots = append(slots, dateSlot{key: key, timestamp: ts, ymd: ymd(t)})
		lastTimestamp = ts
	}

	var finalKey int
	if detailed {
		finalKey = subOff + ii + iii
	} else {
		finalKey = offset + ii + iii
	}

	header := make(Header, 0, len(slots)+2)
	for _, s := range slots {
		header = append(header, HeaderEntry{Key: strconv.Itoa(s.key), Value: s.timestamp})
	}
	header = append(header, HeaderEntry{Key: strconv.Itoa(finalKey), Value: "intra"})
	if t, ok := unixTimestamp(lastTimestamp); ok {
		header = append(header, HeaderEntry{Key: strconv.Itoa(finalKey + 1), Value: weekdayDayMonth(t)})
	}

	intraKey := func(app string, slot dateSlot) string {
		if detailed {
			return keys.Minute(app, group, typ, slot.ymd, fmt.Sprintf("%04d", slot.key))
		}
		return keys.TenMinute(app, group, typ, slot.ymd, fmt.Sprintf("%03d", slot.key))
	}

	var rows []Row
	for i := 0; i < nbApps; i++ {
		if mode == "all" {
			appName := f.get(fmt.Sprintf("p_%d", i))
			if appName == "" {
				continue
			}
			nbModules, ok := f.getInt(fmt.Sprintf("m_%d", i))
			if !ok {
				continue
			}
			var appModules []string
			for j := 0; j < nbModules; j++ {
				m := f.get(fmt.Sprintf("m_%d_%d", i, j))
				if m == "" {
					continue
				}
				appModules = append(appModules, m)
				if otherModules != nil {
					otherModules.Remove(m)
				}
			}
			data := make(Series, 0, len(slots))
			for _, s := range slots {
				sum := 0
				for _, m := range appModules {
					sum += h.getCounter(intraKey(m, s))
				}
				data = append(data, SeriesEntry{Key: strconv.Itoa(s.key), Value: sum})
			}
			rows = append(rows, Row{Label: appName, Data: data})
		} else {
			moduleName := f.get(fmt.Sprintf("m_%d", i))
			if moduleName == "" {
				continue
			}
			data := make(Series, 0, len(slots))
			for _, s := range slots {
				data = append(data, SeriesEntry{Key: strconv.Itoa(s.key), Value: h.getCounter(intraKey(moduleName, s))})
			}
			rows = append(rows, Row{Label: moduleName, Data: data})
		}
	}

	if mode == "all" && otherModules != nil && otherModules.Len() > 0 {
		data := make(Series, 0, len(slots))
		for _, s := range slots {
			sum := 0
			for _, m := range otherModules.Names() {
				sum += h.getCounter(intraKey(m, s))
			}
			data = append(data, SeriesEntry{Key: strconv.Itoa(s.key), Value: sum})
		}
		rows = append(rows, Row{Label: "Others", Data: data})
	}

	h.respond(w, f.callback(), header, rows)
}

// Day serves /stats_app_day: 24 hour-indexed counters for a single date.
func (h *Handler) Day(w http.ResponseWriter, r *http.Request) {
	f := h.parseForm(r)

	mode, ok := f.required("mode")
	if !ok {
		httpx.WriteMissingParam(w, "mode")
		return
	}
	countParam := "modules"
	if mode == "all" {
		countParam = "apps"
	}
	nbApps, ok := f.requiredInt(countParam)
	if !ok {
		httpx.WriteMissingParam(w, countParam)
		return
	}
	dates, ok := f.requiredInt("dates")
	if !ok {
		httpx.WriteMissingParam(w, "dates")
		return
	}
	group, ok := f.required("group")
	if !ok {
		httpx.WriteMissingParam(w, "group")
		return
	}
	typ, ok := f.required("type")
	if !ok {
		httpx.WriteMissingParam(w, "type")
		return
	}

	var lastTimestamp string
	header := make(Header, 0, dates+2)
	for i := 0; i < dates; i++ {
		ts := f.get(fmt.Sprintf("d_%d", i))
		if ts == "" {
			continue
		}
		header = append(header, HeaderEntry{Key: strconv.Itoa(i), Value: ts})
		lastTimestamp = ts
	}
	t, ok := unixTimestamp(lastTimestamp)
	if !ok {
		httpx.WriteMissingParam(w, "d_0")
		return
	}
	date := ymd(t)
	header = append(header, HeaderEntry{Key: strconv.Itoa(dates), Value: "day"})
	header = append(header, HeaderEntry{Key: strconv.Itoa(dates + 1), Value: weekdayDayMonth(t)})

	var otherModules *modules.Set
	if mode == "all" {
		var err error
		otherModules, err = h.knownModules()
		if err != nil {
			otherModules = modules.NewSet()
		}
	}

	hourSlots := keys.HourSlots()

	var rows []Row
	for i := 0; i < nbApps; i++ {
		if mode == "all" {
			appName := f.get(fmt.Sprintf("p_%d", i))
			if appName == "" {
				continue
			}
			nbModules, ok := f.getInt(fmt.Sprintf("m_%d", i))
			if !ok {
				continue
			}
			var appModules []string
			for j := 0; j < nbModules; j++ {
				m := f.get(fmt.Sprintf("m_%d_%d", i, j))
				if m == "" {
					continue
				}
				appModules = append(appModules, m)
				if otherModules != nil {
					otherModules.Remove(m)
				}
			}
			data := make(Series, 0, 24)
			for l, hour := range hourSlots {
				sum := 0
				for _, m := range appModules {
					sum += h.getCounter(keys.Hour(m, group, typ, date, hour))
				}
				data = append(data, SeriesEntry{Key: strconv.Itoa(l), Value: sum})
			}
			rows = append(rows, Row{Label: appName, Data: data})
		} else {
			moduleName := f.get(fmt.Sprintf("m_%d", i))
			if moduleName == "" {
				continue
			}
			data := make(Series, 0, 24)
			for l, hour := range hourSlots {
				data = append(data, SeriesEntry{Key: strconv.Itoa(l), Value: h.getCounter(keys.Hour(moduleName, group, typ, date, hour))})
			}
			rows = append(rows, Row{Label: moduleName, Data: data})
		}
	}

	if mode == "all" && otherModules != nil && otherModules.Len() > 0 {
		data := make(Series, 0, 24)
		for l, hour := range hourSlots {
			sum := 0
			for _, m := range otherModules.Names() {
				sum += h.getCounter(keys.Hour(m, group, typ, date, hour))
			}
			data = append(data, SeriesEntry{Key: strconv.Itoa(l), Value: sum})
		}
		rows = append(rows, Row{Label: "Others", Data: data})
	}

	h.respond(w, f.callback(), header, rows)
}

// Week serves /stats_app_week.
func (h *Handler) Week(w http.ResponseWriter, r *http.Request) {
	h.weekOrMonth(w, r)
}

// Month serves /stats_app_month. moowapp_server.cpp's stats_app_week and
// stats_app_month bodies are identical apart from the `dates` value the
// caller supplies — both even emit the same fixed "month" axis label (see
// SPEC_FULL.md §13, Open Question #7) — so one implementation serves both
// routes.
func (h *Handler) Month(w http.ResponseWriter, r *http.Request) {
	h.weekOrMonth(w, r)
}

func (h *Handler) weekOrMonth(w http.ResponseWriter, r *http.Request) {
	f := h.parseForm(r)

	mode, ok := f.required("mode")
	if !ok {
		httpx.WriteMissingParam(w, "mode")
		return
	}
	countParam := "modules"
	if mode == "all" {
		countParam = "apps"
	}
	nbApps, ok := f.requiredInt(countParam)
	if !ok {
		httpx.WriteMissingParam(w, countParam)
		return
	}
	dates, ok := f.requiredInt("dates")
	if !ok {
		httpx.WriteMissingParam(w, "dates")
		return
	}
	offset, ok := f.requiredInt("offset")
	if !ok {
		httpx.WriteMissingParam(w, "offset")
		return
	}
	group, ok := f.required("group")
	if !ok {
		httpx.WriteMissingParam(w, "group")
		return
	}
	typ, ok := f.required("type")
	if !ok {
		httpx.WriteMissingParam(w, "type")
		return
	}

	header := make(Header, 0, dates+2)
	dateSet := make(map[string]struct{})
	max := offset + dates
	var lastTimestamp string
	for i := offset; i < max; i++ {
		ts := f.get(fmt.Sprintf("d_%d", i))
		if ts == "" {
			continue
		}
		header = append(header, HeaderEntry{Key: strconv.Itoa(i), Value: ts})
		t, ok := unixTimestamp(ts)
		if !ok {
			continue
		}
		dateSet[ymd(t)] = struct{}{}
		lastTimestamp = ts
	}
	t, ok := unixTimestamp(lastTimestamp)
	if !ok {
		httpx.WriteMissingParam(w, "d_0")
		return
	}
	finalKey := max
	header = append(header, HeaderEntry{Key: strconv.Itoa(finalKey), Value: "month"})
	header = append(header, HeaderEntry{Key: strconv.Itoa(finalKey + 1), Value: monthYear(t)})

	dates2 := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates2 = append(dates2, d)
	}
	sort.Strings(dates2)
	yearMonthPrefix := ""
	if len(dates2) > 0 {
		last := dates2[len(dates2)-1]
		if dash := lastDash(last); dash >= 0 {
			yearMonthPrefix = last[:dash+1]
		}
	}

	var otherModules *modules.Set
	if mode == "all" {
		var err error
		otherModules, err = h.knownModules()
		if err != nil {
			otherModules = modules.NewSet()
		}
	}

	var rows []Row
	for i := 0; i < nbApps; i++ {
		if mode == "all" {
			appName := f.get(fmt.Sprintf("p_%d", i))
			if appName == "" {
				continue
			}
			dayFilter := f.get(fmt.Sprintf("p_%d_d", i))
			keep := daysToKeep(yearMonthPrefix, dayFilter)

			nbModules, ok := f.getInt(fmt.Sprintf("m_%d", i))
			if !ok {
				continue
			}
			var appModules []string
			for j := 0; j < nbModules; j++ {
				m := f.get(fmt.Sprintf("m_%d_%d", i, j))
				if m == "" {
					continue
				}
				appModules = append(appModules, m)
				if otherModules != nil {
					otherModules.Remove(m)
				}
			}

			data := make(Series, 0, len(dates2))
			for idx, d := range dates2 {
				key := offset + idx
				if keep != nil && !keep[d] {
					data = append(data, SeriesEntry{Key: strconv.Itoa(key), Value: 0})
					continue
				}
				sum := 0
				for _, m := range appModules {
					sum += h.getCounter(keys.Day(m, group, typ, d))
				}
				data = append(data, SeriesEntry{Key: strconv.Itoa(key), Value: sum})
			}
			rows = append(rows, Row{Label: appName, Data: data})
		} else {
			moduleName := f.get(fmt.Sprintf("m_%d", i))
			if moduleName == "" {
				continue
			}
			data := make(Series, 0, len(dates2))
			for idx, d := range dates2 {
				key := offset + idx
				data = append(data, SeriesEntry{Key: strconv.Itoa(key), Value: h.getCounter(keys.Day(moduleName, group, typ, d))})
			}
			rows = append(rows, Row{Label: moduleName, Data: data})
		}
	}

	if mode == "all" && otherModules != nil && otherModules.Len() > 0 {
		data := make(Series, 0, len(dates2))
		for idx, d := range dates2 {
			key := offset + idx
			sum := 0
			for _, m := range otherModules.Names() {
				sum += h.getCounter(keys.Day(m, group, typ, d))
			}
			data = append(data, SeriesEntry{Key: strconv.Itoa(key), Value: sum})
		}
		rows = append(rows, Row{Label: "Others", Data: data})
	}

	h.respond(w, f.callback(), header, rows)
}

func lastDash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '-' {
			return i
		}
	}
	return -1
}

func (h *Handler) respond(w http.ResponseWriter, callback string, header Header, rows []Row) {
	rows = WithSumRow(rows)
	body, err := Marshal(header, rows)
	if err != nil {
		httpx.WriteMissingParam(w, "internal")
		return
	}
	httpx.WriteJSON(w, callback, body)
}

// NotFound serves any path the router does not recognize.
func NotFound(w http.ResponseWriter, r *http.Request) {
	httpx.WriteNotFound(w)
}
