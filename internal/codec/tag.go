package codec

import (
	"strconv"
	"sync"
	"unicode/utf16"

	"github.com/cespare/xxhash/v2"
)

const tagAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GroupTag derives the four character tag of a message id.
// The hash runs over UTF-16 code units with 32-bit wraparound, so the tag
// matches what the game side addon computes for the same id.
func GroupTag(messageID string) string {
	var h uint32
	for _, unit := range utf16.Encode([]rune(messageID)) {
		h = h*15 + uint32(unit)
	}

	return tagFromHash(uint64(h))
}

func tagFromHash(h uint64) string {
	var tag [TagLength]byte
	for i := range TagLength {
		tag[i] = tagAlphabet[((h>>(uint(i)*6))&0x3F)%uint64(len(tagAlphabet))]
	}

	return string(tag[:])
}

// TagRegistry tracks group tags in flight per route so that two concurrent
// fragmented messages to one server never share a tag.
type TagRegistry struct {
	inFlight map[string]map[string]struct{}
	mu       sync.Mutex
}

// NewTagRegistry returns an empty registry.
func NewTagRegistry() *TagRegistry {
	return &TagRegistry{inFlight: make(map[string]map[string]struct{})}
}

// Acquire reserves a tag for messageID on route. The plain GroupTag is used
// when free; otherwise a tag is re-derived with xxhash until one is free.
func (r *TagRegistry) Acquire(route, messageID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	busy := r.inFlight[route]
	if busy == nil {
		busy = make(map[string]struct{})
		r.inFlight[route] = busy
	}

	tag := GroupTag(messageID)
	for n := 1; ; n++ {
		if _, taken := busy[tag]; !taken {
			break
		}
		tag = tagFromHash(xxhash.Sum64String(messageID + "#" + strconv.Itoa(n)))
	}

	busy[tag] = struct{}{}
	return tag
}

// Release frees a tag acquired for route.
func (r *TagRegistry) Release(route, tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	busy := r.inFlight[route]
	delete(busy, tag)
	if len(busy) == 0 {
		delete(r.inFlight, route)
	}
}
