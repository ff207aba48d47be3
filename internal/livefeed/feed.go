package livefeed

import (
	"context"
	"strconv"
	"time"

	"github.com/ooXavier/moowapp-server/internal/keys"
	"github.com/ooXavier/moowapp-server/internal/modules"
	"github.com/ooXavier/moowapp-server/internal/store"
)

const tickInterval = 5 * time.Second

// Tick is one broadcast payload: the current minute bucket's visit count
// per known application, summed across every configured page group for
// the "200 OK" visit type.
type Tick struct {
	Timestamp int64          `json:"timestamp"`
	Date      string         `json:"date"`
	Minute    string         `json:"minute"`
	Apps      map[string]int `json:"apps"`
	Total     int            `json:"total"`
}

// Feed periodically samples the current minute's visit counters and
// broadcasts them to hub, until ctx is cancelled. Sampling is skipped
// when the hub has no connected clients.
func Feed(ctx context.Context, s *store.Store, registry *modules.Registry, groups []string, hub *Hub) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !hub.HasClients() {
				continue
			}
			tick, err := sample(s, registry, groups, time.Now())
			if err != nil {
				continue
			}
			hub.Broadcast(tick)
		}
	}
}

func sample(s *store.Store, registry *modules.Registry, groups []string, now time.Time) (Tick, error) {
	apps, err := registry.Load()
	if err != nil {
		return Tick{}, err
	}

	date := now.Format("2006-01-02")
	minute := now.Format("1504")

	tick := Tick{
		Timestamp: now.Unix(),
		Date:      date,
		Minute:    minute,
		Apps:      make(map[string]int, apps.Len()),
	}

	for _, app := range apps.Names() {
		total := 0
		for _, group := range groups {
			key := keys.Minute(app, group, "1", date, minute)
			val, found, err := s.Get(key)
			if err != nil {
				return Tick{}, err
			}
			if !found {
				continue
			}
			if n, perr := strconv.Atoi(val); perr == nil {
				total += n
			}
		}
		if total > 0 {
			tick.Apps[app] = total
			tick.Total += total
		}
	}

	return tick, nil
}
