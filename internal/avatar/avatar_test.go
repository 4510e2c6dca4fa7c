package avatar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/srcrelay/internal/config"
	"github.com/woozymasta/srcrelay/internal/steamid"
)

const testKey = "0123456789ABCDEF0123456789ABCDEF"

type countingLookup struct {
	err   error
	url   string
	delay time.Duration
	calls atomic.Int32
}

func (l *countingLookup) Lookup(context.Context, steamid.SteamID) (string, error) {
	l.calls.Add(1)
	time.Sleep(l.delay)
	return l.url, l.err
}

type memStore struct {
	data map[uint64]string
	mu   sync.Mutex
}

func (s *memStore) GetAvatar(id uint64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[id]
	return v, ok, nil
}

func (s *memStore) PutAvatar(id uint64, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = url
	return nil
}

var alice = steamid.SteamID{Account: 123}

func TestCacheMemoizes(t *testing.T) {
	lookup := &countingLookup{url: "https://avatars.example/alice.jpg"}
	store := &memStore{data: map[uint64]string{}}
	c := NewCache(lookup, store)

	assert.Equal(t, lookup.url, c.Resolve(context.Background(), alice))
	assert.Equal(t, lookup.url, c.Resolve(context.Background(), alice))
	assert.Equal(t, int32(1), lookup.calls.Load())
	assert.Equal(t, lookup.url, store.data[alice.SteamID64()])
	assert.Len(t, c.entries, 1)
}

func TestCacheSharesConcurrentLookups(t *testing.T) {
	lookup := &countingLookup{url: "https://avatars.example/a.jpg", delay: 100 * time.Millisecond}
	c := NewCache(lookup, nil)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, lookup.url, c.Resolve(context.Background(), alice))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), lookup.calls.Load())
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	lookup := &countingLookup{err: errors.New("boom")}
	c := NewCache(lookup, nil)

	assert.Empty(t, c.Resolve(context.Background(), alice))
	assert.Empty(t, c.Resolve(context.Background(), alice))
	assert.Equal(t, int32(2), lookup.calls.Load())
	assert.Empty(t, c.entries)
}

func TestCacheUsesStore(t *testing.T) {
	lookup := &countingLookup{url: "https://avatars.example/new.jpg"}
	store := &memStore{data: map[uint64]string{alice.SteamID64(): "https://avatars.example/old.jpg"}}
	c := NewCache(lookup, store)

	assert.Equal(t, "https://avatars.example/old.jpg", c.Resolve(context.Background(), alice))
	assert.Zero(t, lookup.calls.Load())
}

func TestCacheNilAndZero(t *testing.T) {
	var c *Cache
	assert.Empty(t, c.Resolve(context.Background(), alice))

	lookup := &countingLookup{url: "x"}
	assert.Empty(t, NewCache(lookup, nil).Resolve(context.Background(), steamid.SteamID{}))
	assert.Zero(t, lookup.calls.Load())
}

func TestSteamLookup(t *testing.T) {
	queries := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ISteamUser/GetPlayerSummaries/v0002/", r.URL.Path)
		queries <- r.URL.RawQuery
		if r.URL.Query().Get("steamids") == "76561197960265974" {
			_, _ = w.Write([]byte(`{"response":{"players":[{"avatarfull":"https://avatars.example/full.jpg"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"response":{"players":[]}}`))
	}))
	defer srv.Close()

	s := NewSteamLookup(config.Steam{APIKey: testKey, APIURL: srv.URL + "/", RateLimit: 100, Burst: 10})
	require.True(t, s.Enabled())

	got, err := s.Lookup(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, "https://avatars.example/full.jpg", got)
	assert.Contains(t, <-queries, "key="+testKey)

	got, err = s.Lookup(context.Background(), steamid.SteamID{Account: 1})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSteamLookupErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSteamLookup(config.Steam{APIKey: testKey, APIURL: srv.URL})
	_, err := s.Lookup(context.Background(), alice)
	assert.Error(t, err)
}

func TestSteamLookupDisabledWithShortKey(t *testing.T) {
	s := NewSteamLookup(config.Steam{APIKey: "short", APIURL: "http://127.0.0.1:1"})
	assert.False(t, s.Enabled())

	got, err := s.Lookup(context.Background(), alice)
	require.NoError(t, err)
	assert.Empty(t, got)
}
