// eva-link - wearable personal-alarm link daemon
//
// This is the main entry point for the eva-link daemon. It owns one
// logical connection to a wearable alarm device and exposes it over
// MQTT:
//   - Frame-level protocol over a BLE GATT link
//   - Automatic pairing and bounded-backoff reconnection
//   - Link events republished as JSON on the broker
//   - Optional battery/alarm telemetry into InfluxDB
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/flklr-dev/eva-link/internal/bridge"
	"github.com/flklr-dev/eva-link/internal/events"
	"github.com/flklr-dev/eva-link/internal/infrastructure/config"
	"github.com/flklr-dev/eva-link/internal/infrastructure/database"
	"github.com/flklr-dev/eva-link/internal/infrastructure/influxdb"
	"github.com/flklr-dev/eva-link/internal/infrastructure/logging"
	"github.com/flklr-dev/eva-link/internal/infrastructure/mqtt"
	"github.com/flklr-dev/eva-link/internal/link"
	"github.com/flklr-dev/eva-link/internal/pairing"
	"github.com/flklr-dev/eva-link/internal/protocol"
	"github.com/flklr-dev/eva-link/internal/telemetry"
	"github.com/flklr-dev/eva-link/internal/transport/ble"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting eva-link",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the pairing/device store
	db, err := database.Open(database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	if bootErr := db.Bootstrap(ctx); bootErr != nil {
		return fmt.Errorf("bootstrapping schema: %w", bootErr)
	}

	store := pairing.NewStore(db, log.Logger)

	// Event dispatcher: the hub every component attaches to
	dispatcher := events.NewDispatcher()

	// Select the radio implementation
	transport, err := buildTransport(cfg, log)
	if err != nil {
		return err
	}
	log.Info("transport selected", "kind", cfg.Transport.Kind)

	// Link manager: owns the connection state machine
	manager := link.NewManager(transport, store, dispatcher,
		link.WithLogger(log.Logger),
		link.WithFilter(link.Filter{
			ServiceUUID: protocol.ServiceUUID,
			NamePrefix:  cfg.Device.NamePrefix,
		}),
		link.WithConnectOptions(link.ConnectOptions{MTU: cfg.Device.MTU}),
		link.WithScanTimeout(cfg.GetScanTimeout()),
		link.WithReconnectPolicy(link.ReconnectPolicy{
			BaseDelay:   cfg.GetInitialDelay(),
			MaxDelay:    cfg.GetMaxDelay(),
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		}),
	)
	defer func() {
		log.Info("closing link manager")
		if closeErr := manager.Close(); closeErr != nil {
			log.Error("error closing link manager", "error", closeErr)
		}
	}()

	// Connect to MQTT broker and start the bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		mqttBridge, bridgeErr := bridge.New(bridge.Options{
			MQTT:        mqttClient,
			Link:        manager,
			Dispatcher:  dispatcher,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
			Logger:      log.Logger,
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating bridge: %w", bridgeErr)
		}
		if startErr := mqttBridge.Start(); startErr != nil {
			return fmt.Errorf("starting bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping bridge")
			mqttBridge.Stop()
		}()
		log.Info("bridge started", "topic_prefix", cfg.MQTT.TopicPrefix)
	} else {
		log.Info("MQTT disabled, running link without broker surface")
	}

	// Connect to InfluxDB and start the telemetry recorder (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		recorder := telemetry.NewRecorder(influxClient, manager, dispatcher)
		recorder.Start()
		defer func() {
			log.Info("stopping telemetry recorder")
			recorder.Stop()
		}()
		log.Info("telemetry recorder started")
	} else {
		log.Info("InfluxDB disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Resume the stored pairing, if any. Runs in the background so the
	// broker command surface is live while the radio works.
	go resumeStoredDevice(ctx, manager, store, log)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Telemetry recorder, InfluxDB (if enabled)
	// 2. Bridge, MQTT (if enabled)
	// 3. Link manager
	// 4. Database

	log.Info("eva-link stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses EVALINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("EVALINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildTransport selects the radio implementation from config.
//
// The "memory" kind runs the full stack against the in-process simulator
// with one pre-registered wearable, so the daemon is drivable end to end
// on hosts without radio hardware.
func buildTransport(cfg *config.Config, log *logging.Logger) (link.Transport, error) {
	switch cfg.Transport.Kind {
	case "ble":
		return ble.New(), nil
	case "memory":
		mem := link.NewMemTransport()
		mem.AddDevice(link.Candidate{
			ID:   "AA:BB:CC:DD:EE:FF",
			Name: cfg.Device.NamePrefix + "-SIM",
			RSSI: -42,
		})
		log.Info("memory transport active with one simulated wearable")
		return mem, nil
	default:
		// Unreachable after config.Validate, kept for safety.
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Transport.Kind)
	}
}

// resumeStoredDevice reconnects to the last-paired wearable on startup.
// A missing ref means first run (or an explicit disconnect); a failed
// attempt is reported through the error listeners and left to the
// operator, matching the behavior of a caller-initiated Connect.
func resumeStoredDevice(ctx context.Context, manager *link.Manager, store *pairing.Store, log *logging.Logger) {
	ref, ok, err := store.LoadDeviceRef(ctx)
	if err != nil {
		log.Warn("loading stored device failed", "error", err)
		return
	}
	if !ok {
		log.Info("no stored device, waiting for scan/connect command")
		return
	}

	log.Info("resuming stored device", "device_id", ref.ID, "name", ref.Name)
	if err := manager.Connect(ctx, ref.ID); err != nil {
		log.Warn("stored device connect failed", "device_id", ref.ID, "error", err)
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
