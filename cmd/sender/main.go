package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/padlink/padlink/pkg/api"
	"github.com/padlink/padlink/pkg/capture"
	"github.com/padlink/padlink/pkg/controller"
	"github.com/padlink/padlink/pkg/db"
	"github.com/padlink/padlink/pkg/joystick"
	"github.com/padlink/padlink/pkg/models"
	"github.com/padlink/padlink/pkg/network"
	"github.com/padlink/padlink/pkg/protocol"
)

// scanInterval is how often the registry rescans for controller
// hotplug while the sender runs.
const scanInterval = 2 * time.Second

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	dbPath := flag.String("db", "", "Path to database file (default: ~/.config/padlink/padlink.db)")
	host := flag.String("host", "", "Receiver host (overrides stored setting)")
	port := flag.Int("port", 0, "Receiver port (overrides stored setting)")
	apiAddr := flag.String("api", "", "Control API listen address, e.g. 127.0.0.1:8080 (disabled when empty)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx := context.Background()

	// Open database
	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	log.Info().Str("path", database.Path()).Msg("Database opened")

	// Run migrations
	if err := database.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Bootstrap if needed (first run)
	if err := database.Bootstrap(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to bootstrap database")
	}

	// Load settings, apply flag overrides
	settings, err := database.Settings().Get(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}
	if *host != "" {
		settings.ReceiverHost = *host
	}
	if *port != 0 {
		settings.ReceiverPort = *port
	}

	log.Info().
		Str("receiver", fmt.Sprintf("%s:%d", settings.ReceiverHost, settings.ReceiverPort)).
		Int("polling_rate", settings.PollingRate).
		Float64("dead_zone", settings.DeadZone).
		Msg("Settings loaded")

	// Controller registry over the SDL joystick backend
	registry := controller.NewRegistry(
		joystick.NewSDLBackend(),
		controller.WithAutoAssign(true),
		controller.WithStore(database.Assignments()),
	)
	if err := registry.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize joystick backend")
	}
	defer registry.Cleanup()

	registry.Scan(ctx)
	for _, c := range registry.ConnectedControllers() {
		log.Info().
			Str("name", c.Name).
			Int("number", c.AssignedNumber).
			Str("id", c.Identifier()).
			Msg("Controller detected")
	}

	// present tracks numbered, connected controllers so scan-to-scan
	// transitions become connect/disconnect announcements on the wire.
	present := make(map[string]int)

	// Network client to the receiver
	client := network.NewClient(network.ClientConfig{
		Host:                 settings.ReceiverHost,
		Port:                 settings.ReceiverPort,
		ReconnectInterval:    settings.RetryInterval,
		MaxReconnectAttempts: settings.MaxRetryAttempts,
		StatusCallback: func(status string) {
			log.Info().Str("status", status).Msg("Connection status changed")
		},
	})
	client.Start()
	defer client.Stop()

	// Capture engine feeds the client directly
	engine := capture.NewEngine(registry, capture.Config{
		PollingRate: settings.PollingRate,
		DeadZone:    settings.DeadZone,
	}, func(d *models.ControllerInputData) {
		client.SendControllerInput(d)
	})
	engine.Start()
	defer engine.Stop()

	// Control API
	if *apiAddr != "" {
		router := api.NewSenderRouter(registry, client.Connected)
		go func() {
			log.Info().Str("address", *apiAddr).Msg("Starting control API")
			if err := router.Run(*apiAddr); err != nil {
				log.Error().Err(err).Msg("Control API failed")
			}
		}()
	}

	announceTransitions := func() {
		current := make(map[string]int)
		for _, c := range registry.ConnectedControllers() {
			if c.AssignedNumber != 0 {
				current[c.Identifier()] = c.AssignedNumber
			}
		}
		for id, number := range current {
			if _, ok := present[id]; !ok {
				client.Send(protocol.NewControllerConnectMessage(number, id))
			}
		}
		for id, number := range present {
			if _, ok := current[id]; !ok {
				client.Send(protocol.NewControllerDisconnectMessage(number, id))
			}
		}
		present = current
	}
	announceTransitions()

	// Periodic rescans pick up hotplugged controllers
	stopScan := make(chan struct{})
	go func() {
		ticker := time.NewTicker(scanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				registry.Scan(ctx)
				announceTransitions()
			case <-stopScan:
				return
			}
		}
	}()

	log.Info().Str("url", client.URL()).Msg("Sender running")

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down...")
	close(stopScan)
	engine.Stop()
	client.Stop()
	registry.Cleanup()
}
