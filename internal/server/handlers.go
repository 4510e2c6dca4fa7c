package server

import (
	"encoding/json"
	"net/http"

	"github.com/woozymasta/srcrelay/internal/models"
	"github.com/woozymasta/srcrelay/internal/vars"
)

// handleStatus returns the latest status snapshot of every route.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var list []models.RouteStatus
	if s.status != nil {
		list = s.status.Snapshot()
	}

	if list == nil {
		list = []models.RouteStatus{}
	}

	respondJSON(w, http.StatusOK, list)
}

// handleRoutes lists configured routes without their secrets.
func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	all := s.table.All()
	list := make([]models.RouteInfo, 0, len(all))
	for _, route := range all {
		list = append(list, models.RouteInfo{
			Name:      route.Name,
			Address:   route.Address(),
			ChannelID: route.ChannelID,
			Webhook:   route.WebhookURL != "",
		})
	}

	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, vars.Info())
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
