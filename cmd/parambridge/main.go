// parambridge bridges a remote device-control server's parameter trees into
// a local control namespace.
//
// It polls each remote adapter's self-describing parameter tree, reconciles
// the flattened leaves into a registry of typed parameters, and exposes the
// result over a REST/WebSocket API with validated write-through back to the
// remote server. Parameter events can additionally be published to MQTT, and
// the last known mapping is cached in SQLite so a restart presents the known
// namespace before the first poll completes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/parambridge-core/migrations"

	"github.com/nerrad567/parambridge-core/internal/api"
	"github.com/nerrad567/parambridge-core/internal/export"
	"github.com/nerrad567/parambridge-core/internal/infrastructure/config"
	"github.com/nerrad567/parambridge-core/internal/infrastructure/database"
	"github.com/nerrad567/parambridge-core/internal/infrastructure/logging"
	"github.com/nerrad567/parambridge-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/parambridge-core/internal/odin"
	"github.com/nerrad567/parambridge-core/internal/param"
	"github.com/nerrad567/parambridge-core/internal/sync"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting parambridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	registry := param.NewRegistry(cfg.Sync.MaxMissedGenerations)
	registry.SetLogger(log)

	// Open the parameter cache (optional)
	var db *database.DB
	var cache *param.SQLiteCache
	if cfg.Database.Enabled {
		db, err = database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("parameter cache ready", "path", cfg.Database.Path)

		cache = param.NewSQLiteCache(db.DB)

		// Restore the last known mapping so the namespace is visible
		// before the first poll completes. Restored entries are stale
		// until a live poll confirms them.
		cached, loadErr := cache.Load(ctx)
		if loadErr != nil {
			log.Warn("loading cached parameters failed", "error", loadErr)
		} else {
			registry.Restore(cached)
		}
	} else {
		log.Info("parameter cache disabled")
	}

	// Remote control server client
	client := odin.NewClient(cfg.ServerBaseURL(), cfg.Server.APIPrefix, cfg.GetRequestTimeout())
	log.Info("control server configured",
		"url", cfg.ServerBaseURL(),
		"prefix", cfg.Server.APIPrefix,
	)

	// Sync engine
	engine := sync.NewEngine(client, registry, sync.Options{
		PollInterval:   cfg.GetPollInterval(),
		WriteTimeout:   cfg.GetWriteTimeout(),
		BackoffInitial: cfg.GetBackoffInitial(),
		BackoffMax:     cfg.GetBackoffMax(),
		Discover:       cfg.Adapters.Discover,
		Static:         cfg.Adapters.Static,
		Include:        cfg.Adapters.Include,
	})
	engine.SetLogger(log)
	if cache != nil {
		engine.SetCache(cache)
	}

	// Exporter over the registry with write-through to the engine
	exporter := export.NewExporter(registry, engine)
	exporter.SetLogger(log)
	engine.AddSink(exporter)

	// MQTT event publishing (optional)
	var mqttClient *mqtt.Client
	var publisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			mqttClient.Close()
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		publisher = mqtt.NewPublisher(mqttClient, cfg.MQTT.Broker.ClientID, byte(cfg.MQTT.QoS))
		publisher.SetLogger(log)
		engine.AddSink(publisher)
	} else {
		log.Info("MQTT disabled")
	}

	// API server; the WebSocket hub receives engine events directly
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Exporter: exporter,
		Engine:   engine,
		Registry: registry,
		DB:       db,
		MQTT:     mqttClient,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	engine.AddSink(server.Hub())

	// Start polling the remote server
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("starting sync engine: %w", err)
	}
	defer func() {
		log.Info("stopping sync engine")
		engine.Stop()
	}()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if publisher != nil {
		sessions := engine.Sessions()
		if pubErr := publisher.PublishHealth("online", version, len(sessions)); pubErr != nil {
			log.Warn("publishing health failed", "error", pubErr)
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	if publisher != nil {
		if pubErr := publisher.PublishHealth("offline", version, 0); pubErr != nil {
			log.Warn("publishing offline health failed", "error", pubErr)
		}
	}

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Sync engine
	// 3. MQTT (if enabled)
	// 4. Database (if enabled)

	log.Info("parambridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses the PARAMBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PARAMBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
