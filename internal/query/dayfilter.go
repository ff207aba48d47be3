package query

import (
	"fmt"
	"strconv"
	"strings"
)

// daysToKeep parses the day-filter grammar (spec.md §4.7): comma-separated
// items, each "N" or "N-M". The default "1-31" means "no filter" and is
// signalled by a nil return — callers then skip the membership check
// entirely, matching filteringPeriod's `setDateToKeep.size() == 0` escape
// hatch in moowapp_server.cpp. yearMonthPrefix is "YYYY-MM-" (with the
// trailing dash) so a day number can be zero-padded directly onto it.
func daysToKeep(yearMonthPrefix, filter string) map[string]bool {
	if filter == "" {
		filter = "1-31"
	}
	if filter == "1-31" {
		return nil
	}

	keep := make(map[string]bool)
	for _, item := range strings.Split(filter, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if dash := strings.IndexByte(item, '-'); dash >= 0 {
			start, err1 := strconv.Atoi(item[:dash])
			end, err2 := strconv.Atoi(item[dash+1:])
			if err1 != nil || err2 != nil {
				continue
			}
			for d := start; d <= end; d++ {
				keep[fmt.Sprintf("%s%02d", yearMonthPrefix, d)] = true
			}
		} else {
			d, err := strconv.Atoi(item)
			if err != nil {
				continue
			}
			keep[fmt.Sprintf("%s%02d", yearMonthPrefix, d)] = true
		}
	}
	return keep
}
