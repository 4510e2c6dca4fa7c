package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srcrelay/internal/relay"
)

// handleMessage accepts a chat message and queues it for the relay workers,
// so slow RCON exchanges never block the client.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	ip := GetRealIP(r, s.trustProxy)

	// Max body limit size
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var msg relay.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		log.Debug().
			Err(err).
			Str("ip", ip).
			Msg("Invalid JSON")

		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if msg.ChannelID == "" {
		http.Error(w, "Missing channel_id", http.StatusBadRequest)
		return
	}

	if _, ok := s.table.ByChannel(msg.ChannelID); !ok {
		log.Debug().
			Str("ip", ip).
			Str("channel", msg.ChannelID).
			Msg("Message for unmapped channel")

		http.Error(w, "Unknown channel", http.StatusNotFound)
		return
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	} else if s.seen(msg.ID, time.Now()) {
		log.Debug().Str("message", msg.ID).Msg("Duplicate message skipped")
		respondJSON(w, http.StatusOK, map[string]string{"status": "duplicate", "id": msg.ID})
		return
	}

	select {
	case s.queue <- msg:
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "id": msg.ID})
	default:
		s.seenCache.Delete(msg.ID)
		log.Warn().
			Str("ip", ip).
			Str("message", msg.ID).
			Msg("Queue is full, dropping message")

		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
	}
}

// seen records id and reports whether it was already accepted inside the dedup window.
func (s *Server) seen(id string, now time.Time) bool {
	if s.dedupWindow <= 0 {
		return false
	}

	prev, loaded := s.seenCache.LoadOrStore(id, now)
	if !loaded {
		return false
	}

	if t, ok := prev.(time.Time); ok && now.Sub(t) <= s.dedupWindow {
		return true
	}

	s.seenCache.Store(id, now)
	return false
}

// worker is a background goroutine that processes jobs from the message queue.
func (s *Server) worker(ctx context.Context) {
	defer s.wg.Done()

	for msg := range s.queue {
		s.inbound.HandleInbound(ctx, msg)
	}
}
