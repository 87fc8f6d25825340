package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/flowbench-core/migrations"

	"github.com/nerrad567/flowbench-core/internal/api"
	"github.com/nerrad567/flowbench-core/internal/audit"
	"github.com/nerrad567/flowbench-core/internal/controller"
	"github.com/nerrad567/flowbench-core/internal/infrastructure/config"
	"github.com/nerrad567/flowbench-core/internal/infrastructure/database"
	"github.com/nerrad567/flowbench-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/flowbench-core/internal/infrastructure/logging"
	"github.com/nerrad567/flowbench-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/flowbench-core/internal/sequence"
	"github.com/nerrad567/flowbench-core/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sequencing engine and API server",
	Long: `Connects to the controller, opens the sequence library and serves the
REST and WebSocket API until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), configPath)
	},
}

var logLevel string

func init() {
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "override logging.level from the config file")
	rootCmd.AddCommand(serveCmd)
}

// run is the actual application logic, separated from the command for
// testability. It blocks until ctx is cancelled.
func run(ctx context.Context, path string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting FlowBench Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", path)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version).With("bench", cfg.Bench.ID)
	if logLevel != "" && !log.SetLevel(logLevel) {
		return fmt.Errorf("unknown log level %q", logLevel)
	}
	log.Info("logger initialised",
		"level", log.Level().String(),
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.FromConfig(cfg.Database))
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	library := sequence.NewSQLiteRepository(db.DB)
	actions := audit.NewSQLiteRepository(db.DB)

	// Controller transport
	var (
		mqttClient *mqtt.Client
		commands   sequence.CommandSink
	)
	valves, err := controller.ValveSpecs(cfg.Bench)
	if err != nil {
		return fmt.Errorf("building valve specs: %w", err)
	}

	switch cfg.Controller.Transport {
	case config.TransportMQTT:
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
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		sink, sinkErr := controller.NewMQTTSink(mqttClient, controller.MQTTConfig{
			BenchID:    cfg.Bench.ID,
			AckTimeout: cfg.GetAckTimeout(),
			Valves:     valves,
		})
		if sinkErr != nil {
			return fmt.Errorf("creating controller sink: %w", sinkErr)
		}
		sink.SetLogger(log)
		if startErr := sink.Start(); startErr != nil {
			return fmt.Errorf("starting controller sink: %w", startErr)
		}
		defer func() {
			log.Info("stopping controller sink")
			if closeErr := sink.Close(); closeErr != nil {
				log.Error("error stopping controller sink", "error", closeErr)
			}
		}()
		commands = sink
	default:
		loop, loopErr := controller.NewLoopback(valves, log)
		if loopErr != nil {
			return fmt.Errorf("creating loopback controller: %w", loopErr)
		}
		commands = loop
		log.Warn("loopback controller in use, no hardware will move")
	}

	// Connect to InfluxDB (optional)
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Event fan-out
	recorder := telemetry.NewRecorder(cfg.Recording.Dir, cfg.Bench.Sensors, cfg.ValveNames())
	recorder.SetLogger(log)
	defer func() {
		if recorder.Active() {
			if _, stopErr := recorder.Stop(); stopErr != nil {
				log.Error("error closing recording", "error", stopErr)
			}
		}
	}()

	events := sequence.NewMultiSink(telemetry.NewLogSink(log), recorder)
	observers := []telemetry.PressureObserver{recorder}

	if cfg.Recording.Journal != "" {
		journal, journalErr := telemetry.OpenJournal(cfg.Recording.Journal)
		if journalErr != nil {
			return fmt.Errorf("opening journal: %w", journalErr)
		}
		defer func() {
			if closeErr := journal.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
		events.Add(journal)
		observers = append(observers, journal)
		log.Info("event journal open", "path", cfg.Recording.Journal)
	}
	if influxClient != nil {
		influxSink := telemetry.NewInfluxSink(influxClient, cfg.Bench.ID, cfg.Bench.Sensors)
		events.Add(influxSink)
		observers = append(observers, influxSink)
	}

	sequencer, err := sequence.NewSequencer(cfg.ValveNames(), commands, events)
	if err != nil {
		return fmt.Errorf("creating sequencer: %w", err)
	}
	sequencer.SetLogger(log)
	sequencer.SetRunRecorder(library)

	// API server
	deps := api.Deps{
		Config:         cfg.API,
		WS:             cfg.WebSocket,
		Security:       cfg.Security,
		Logger:         log,
		BenchID:        cfg.Bench.ID,
		Sequencer:      sequencer,
		Library:        library,
		Audit:          actions,
		Recorder:       recorder,
		DB:             db,
		CommandTimeout: cfg.GetCommandTimeout(),
		Version:        version,
	}

	if influxClient != nil {
		deps.Influx = influxClient
	}

	var ingest *telemetry.Ingest
	if mqttClient != nil {
		ingest = telemetry.NewIngest(mqttClient, cfg.Bench.ID, len(cfg.Bench.Sensors))
		for _, o := range observers {
			ingest.Add(o)
		}
		deps.Pressure = ingest
		deps.MQTT = mqttClient
	}

	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	events.Add(srv.Hub())

	if ingest != nil {
		ingest.Add(srv.Hub())
		if startErr := ingest.Start(); startErr != nil {
			return fmt.Errorf("starting pressure ingest: %w", startErr)
		}
		defer func() {
			if stopErr := ingest.Stop(); stopErr != nil {
				log.Warn("error stopping pressure ingest", "error", stopErr)
			}
		}()
	}

	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"valves", len(cfg.Bench.Valves),
		"transport", cfg.Controller.Transport,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Leave the bench safe before the controller link goes away.
	panicCtx, cancel := context.WithTimeout(context.Background(), cfg.GetCommandTimeout())
	defer cancel()
	sequencer.Panic(panicCtx)

	log.Info("FlowBench Core stopped")
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when not in use.
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
