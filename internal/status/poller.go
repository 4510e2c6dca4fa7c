// Package status polls routed game servers with A2S and tracks their last
// player activity.
package status

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srcrelay/internal/models"
	"github.com/woozymasta/srcrelay/internal/routes"
)

// Store persists route activity.
type Store interface {
	UpsertActivity(s models.RouteStatus) error
	GetActivity() ([]models.RouteStatus, error)
}

// CountryResolver maps an IP to an ISO country code.
type CountryResolver interface {
	GetCountryCode(ip string) string
}

// Poller keeps an in-memory snapshot of every route's status.
type Poller struct {
	table        *routes.Table
	store        Store
	geo          CountryResolver
	query        QueryFunc
	now          func() time.Time
	snapshot     map[string]models.RouteStatus
	interval     time.Duration
	mu           sync.RWMutex
	lastActivity bool
}

// New creates a poller. store and geo may be nil.
func New(table *routes.Table, query QueryFunc, store Store, geo CountryResolver, interval time.Duration, lastActivity bool) *Poller {
	p := &Poller{
		table:        table,
		store:        store,
		geo:          geo,
		query:        query,
		now:          time.Now,
		snapshot:     make(map[string]models.RouteStatus, table.Len()),
		interval:     interval,
		lastActivity: lastActivity,
	}

	p.restore()
	return p
}

// restore seeds the snapshot from storage so last activity survives restarts.
func (p *Poller) restore() {
	if p.store == nil {
		return
	}

	list, err := p.store.GetActivity()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load route activity")
		return
	}

	for _, s := range list {
		if _, ok := p.table.ByName(s.Route); ok {
			p.snapshot[s.Route] = s
		}
	}
}

// Run polls immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce queries every route concurrently and updates the snapshot.
func (p *Poller) PollOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, route := range p.table.All() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			p.poll(route)
		}()
	}
	wg.Wait()
}

func (p *Poller) poll(route routes.Route) {
	now := p.now()

	p.mu.RLock()
	prev, seen := p.snapshot[route.Name]
	p.mu.RUnlock()

	s := models.RouteStatus{
		Route:       route.Name,
		Address:     route.Address(),
		LastChecked: now,
	}
	if seen {
		// keep last known details while the server does not answer
		s.ServerName, s.MapName, s.GameName, s.ServerOS = prev.ServerName, prev.MapName, prev.GameName, prev.ServerOS
		s.MaxPlayers = prev.MaxPlayers
		s.CountryCode = prev.CountryCode
		s.LastActive = prev.LastActive
	}

	info, err := p.query(route)
	if err != nil {
		log.Debug().Err(err).Str("route", route.Name).Msg("A2S query failed")
	} else {
		s.Online = true
		s.ServerName = info.Name
		s.MapName = info.Map
		s.GameName = info.Game
		s.ServerOS = info.Environment.String()
		s.Players = info.Players
		s.MaxPlayers = info.MaxPlayers
		if info.Players > 0 {
			active := now
			s.LastActive = &active
		}
	}

	if p.geo != nil {
		if cc := p.geo.GetCountryCode(route.QueryHost()); cc != "" {
			s.CountryCode = cc
		}
	}

	p.mu.Lock()
	p.snapshot[route.Name] = s
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.UpsertActivity(s); err != nil {
			log.Error().Err(err).Str("route", route.Name).Msg("Failed to save route activity")
		}
	}
}

// Snapshot returns the latest status of every polled route ordered by name.
// Without last-activity reporting, LastActive is only kept for servers with
// players online.
func (p *Poller) Snapshot() []models.RouteStatus {
	p.mu.RLock()
	list := make([]models.RouteStatus, 0, len(p.snapshot))
	for _, s := range p.snapshot {
		if !p.lastActivity && s.Players == 0 {
			s.LastActive = nil
		}
		list = append(list, s)
	}
	p.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Route < list[j].Route })
	return list
}
