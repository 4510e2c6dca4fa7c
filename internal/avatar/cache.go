// Package avatar resolves and caches player avatar URLs.
package avatar

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srcrelay/internal/steamid"
	"golang.org/x/sync/singleflight"
)

// Lookup fetches an avatar URL for a player. An empty URL means no avatar.
type Lookup interface {
	Lookup(ctx context.Context, id steamid.SteamID) (string, error)
}

// Store persists resolved avatars across restarts. Keys are SteamID64.
type Store interface {
	GetAvatar(steamID uint64) (string, bool, error)
	PutAvatar(steamID uint64, url string) error
}

// Cache memoizes lookups by player. Entries never expire. Concurrent
// requests for one player share a single upstream call.
type Cache struct {
	lookup  Lookup
	store   Store
	entries map[uint64]string
	group   singleflight.Group
	mu      sync.RWMutex
}

// NewCache wraps lookup. store may be nil.
func NewCache(lookup Lookup, store Store) *Cache {
	return &Cache{
		lookup:  lookup,
		store:   store,
		entries: make(map[uint64]string),
	}
}

// Resolve returns the avatar URL for id or "" when it is unknown or the
// lookup failed. Failures are not cached.
func (c *Cache) Resolve(ctx context.Context, id steamid.SteamID) string {
	if c == nil || c.lookup == nil || id.IsZero() {
		return ""
	}

	key := id.SteamID64()

	c.mu.RLock()
	avatarURL, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return avatarURL
	}

	v, err, _ := c.group.Do(strconv.FormatUint(key, 10), func() (any, error) {
		return c.fetch(ctx, id)
	})
	if err != nil {
		log.Debug().Err(err).Str("steam_id", id.String()).Msg("Avatar lookup failed")
		return ""
	}

	return v.(string)
}

func (c *Cache) fetch(ctx context.Context, id steamid.SteamID) (string, error) {
	key := id.SteamID64()

	if c.store != nil {
		stored, found, err := c.store.GetAvatar(key)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read cached avatar")
		} else if found {
			c.remember(key, stored)
			return stored, nil
		}
	}

	avatarURL, err := c.lookup.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	if avatarURL == "" {
		return "", nil
	}

	c.remember(key, avatarURL)
	if c.store != nil {
		if err := c.store.PutAvatar(key, avatarURL); err != nil {
			log.Warn().Err(err).Msg("Failed to persist avatar")
		}
	}

	return avatarURL, nil
}

func (c *Cache) remember(key uint64, avatarURL string) {
	c.mu.Lock()
	c.entries[key] = avatarURL
	c.mu.Unlock()
}
