// Package models defines the data structures shared by the API and persistence layers.
package models

import "time"

// RouteStatus is the last known A2S state of a routed game server.
type RouteStatus struct {
	LastActive  *time.Time `json:"last_active,omitempty"`
	LastChecked time.Time  `json:"last_checked"`
	Route       string     `json:"route"`
	Address     string     `json:"address"`
	CountryCode string     `json:"country_code,omitempty"`
	ServerName  string     `json:"server_name,omitempty"`
	MapName     string     `json:"map_name,omitempty"`
	GameName    string     `json:"game_name,omitempty"`
	ServerOS    string     `json:"server_os,omitempty"`
	Online      bool       `json:"online"`
	Players     byte       `json:"players"`
	MaxPlayers  byte       `json:"max_players"`
}

// RouteInfo is the public view of a route, without secrets.
type RouteInfo struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	ChannelID string `json:"channel_id"`
	Webhook   bool   `json:"webhook"`
}

// RouteCheck is the outcome of an RCON health check against a route.
type RouteCheck struct {
	Route    string        `json:"route"`
	Address  string        `json:"address"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
	OK       bool          `json:"ok"`
}
