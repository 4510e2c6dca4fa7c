// main is the entry point of the srcrelay application.
// It wires the route table, the RCON client, the log receiver, the chat
// platform adapters and the HTTP API, then runs until interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srcrelay/internal/avatar"
	"github.com/woozymasta/srcrelay/internal/bridge"
	"github.com/woozymasta/srcrelay/internal/config"
	"github.com/woozymasta/srcrelay/internal/discord"
	"github.com/woozymasta/srcrelay/internal/fake"
	"github.com/woozymasta/srcrelay/internal/geoip"
	"github.com/woozymasta/srcrelay/internal/logger"
	"github.com/woozymasta/srcrelay/internal/logrecv"
	"github.com/woozymasta/srcrelay/internal/maintenance"
	"github.com/woozymasta/srcrelay/internal/rcon"
	"github.com/woozymasta/srcrelay/internal/relay"
	"github.com/woozymasta/srcrelay/internal/routes"
	"github.com/woozymasta/srcrelay/internal/server"
	"github.com/woozymasta/srcrelay/internal/status"
	"github.com/woozymasta/srcrelay/internal/storage"
	"github.com/woozymasta/srcrelay/internal/vars"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)
	log.Info().Str("version", vars.Version).Msg("Starting srcrelay service...")

	// Routes
	table, err := routes.Load(cfg.Routes)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Routes).Msg("Failed to load routes")
	}
	log.Info().Int("routes", table.Len()).Msg("Routes loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// GeoIP
	var geoProvider *geoip.Provider
	if cfg.GeoIP.Path != "" {
		log.Info().Msg("Checking GeoIP database...")
		if err := geoip.EnsureDB(ctx, cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
			log.Error().Err(err).Msg("Failed to download GeoIP database")
		}

		geoProvider, err = geoip.Open(cfg.GeoIP.Path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
			geoProvider = nil
		} else {
			defer func() {
				if err := geoProvider.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
		}
	}

	// Database
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	rconClient := rcon.New(cfg.RCON)

	// database maintenance and route checks
	if maintenance.Run(ctx, cfg, store, table, rconClient) {
		return
	}

	dispatcher, mqttBridge := newDispatcher(cfg, table, store, rconClient)

	if cfg.FakeLogs > 0 {
		fake.Generate(ctx, table, dispatcher, cfg.FakeLogs)
		return
	}

	// Log receiver
	receiver := logrecv.New(cfg.Logs, table, func(ctx context.Context, route routes.Route, line string) {
		_ = dispatcher.HandleLogLine(ctx, route, line)
	})
	go func() {
		log.Info().Str("address", cfg.Logs.Address).Msg("Log receiver listening")
		if err := receiver.Start(ctx); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("Log receiver failed")
		}
	}()

	// Status polling
	poller := status.New(table, status.A2SQuery(cfg.A2S), store, geoProvider, cfg.Status.Interval, cfg.Status.LastActivity)
	go poller.Run(ctx)

	// MQTT
	if mqttBridge != nil {
		if err := mqttBridge.Start(ctx, dispatcher.HandleInbound); err != nil {
			log.Error().Err(err).Msg("Failed to connect MQTT broker, retrying in background")
		}
	}

	if cfg.Server.Address == "" {
		<-ctx.Done()
		log.Info().Msg("srcrelay exited")
		return
	}

	// HTTP API
	srvHandler := server.New(dispatcher, table, poller, cfg)
	srvHandler.StartWorkers(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srvHandler.Run(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop workers (wait queue done)
	srvHandler.StopWorkers()

	log.Info().Msg("Server exited")
}

// newDispatcher builds the relay core with its notifier fan-out, responder
// and avatar cache. The MQTT bridge is nil unless a broker is configured.
func newDispatcher(cfg *config.Config, table *routes.Table, store *storage.Repository, exec relay.Executor) (*relay.Dispatcher, *bridge.Bridge) {
	notifiers := relay.Fanout{
		relay.WithRetry(discord.NewWebhook(cfg.Discord.Timeout), relay.RetryPolicyFor(cfg.Discord)),
	}

	var mqttBridge *bridge.Bridge
	if cfg.MQTT.Broker != "" {
		mqttBridge = bridge.New(cfg.MQTT, table)
		notifiers = append(notifiers, mqttBridge)
	}

	var responder relay.Responder = relay.LogResponder{}
	if cfg.Discord.Token != "" {
		responder = discord.NewClient(cfg.Discord.APIURL, cfg.Discord.Token, cfg.Discord.Timeout)
	} else {
		log.Warn().Msg("Discord token not set, inbound feedback is only logged")
	}

	var avatars relay.Avatars
	if lookup := avatar.NewSteamLookup(cfg.Steam); lookup.Enabled() {
		avatars = avatar.NewCache(lookup, store)
	} else {
		log.Info().Msg("Steam API key not set, avatars disabled")
	}

	return relay.New(table, notifiers, responder, exec, avatars, relay.OptionsFromConfig(cfg.Relay)), mqttBridge
}
