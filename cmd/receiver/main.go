package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/padlink/padlink/pkg/api"
	"github.com/padlink/padlink/pkg/db"
	"github.com/padlink/padlink/pkg/models"
	"github.com/padlink/padlink/pkg/network"
	"github.com/padlink/padlink/pkg/virtual"
)

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	dbPath := flag.String("db", "", "Path to database file (default: ~/.config/padlink/padlink.db)")
	host := flag.String("host", "", "Listen host (overrides stored setting)")
	port := flag.Int("port", 0, "Listen port (overrides stored setting)")
	apiAddr := flag.String("api", "", "Control API listen address, e.g. 127.0.0.1:8081 (disabled when empty)")
	driver := flag.String("driver", "", "Virtual controller driver (overrides stored setting)")
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
		settings.ListenHost = *host
	}
	if *port != 0 {
		settings.ListenPort = *port
	}
	if *driver != "" {
		settings.VirtualDriver = *driver
	}

	// Virtual controller manager over the configured driver
	factory, err := virtual.LookupDriver(settings.VirtualDriver)
	if err != nil {
		log.Fatal().Err(err).
			Strs("available", virtual.DriverNames()).
			Msg("Unknown virtual controller driver")
	}

	manager := virtual.NewManager(factory, virtual.ManagerConfig{
		MaxControllers: settings.MaxControllers,
		AutoCreate:     settings.AutoCreateVirtual,
	})
	manager.Start()
	defer manager.Stop()

	log.Info().
		Str("driver", settings.VirtualDriver).
		Int("max_controllers", settings.MaxControllers).
		Bool("auto_create", settings.AutoCreateVirtual).
		Msg("Virtual controller manager ready")

	// WebSocket server feeds the manager
	server := network.NewServer(network.ServerConfig{
		Host: settings.ListenHost,
		Port: settings.ListenPort,
		InputCallback: func(d *models.ControllerInputData) {
			manager.UpdateState(d)
		},
		ActiveControllers: manager.ActiveCount,
	})
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
	defer server.Stop()

	log.Info().Str("address", server.Addr()).Msg("Receiver listening")

	// Control API
	if *apiAddr != "" {
		router := api.NewReceiverRouter(manager, server.Running)
		go func() {
			log.Info().Str("address", *apiAddr).Msg("Starting control API")
			if err := router.Run(*apiAddr); err != nil {
				log.Error().Err(err).Msg("Control API failed")
			}
		}()
	}

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down...")
	server.Stop()
	manager.Stop()
}
