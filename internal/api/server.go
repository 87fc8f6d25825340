package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/flowbench-core/internal/audit"
	"github.com/nerrad567/flowbench-core/internal/infrastructure/config"
	"github.com/nerrad567/flowbench-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/flowbench-core/internal/infrastructure/logging"
	"github.com/nerrad567/flowbench-core/internal/sequence"
	"github.com/nerrad567/flowbench-core/internal/telemetry"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// defaultCommandTimeout applies when Deps.CommandTimeout is zero.
const defaultCommandTimeout = 10 * time.Second

// ConnectionStatus reports whether an upstream connection is alive.
// *mqtt.Client satisfies it.
type ConnectionStatus interface {
	IsConnected() bool
}

// PressureSource supplies the most recent pressure reading.
// *telemetry.Ingest satisfies it.
type PressureSource interface {
	Last() (telemetry.Reading, bool)
}

// TelemetryWriter reports time-series write health.
// *influxdb.Client satisfies it.
type TelemetryWriter interface {
	IsConnected() bool
	Stats() influxdb.Stats
}

// DBStats exposes connection pool statistics. *database.DB satisfies it.
type DBStats interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies for the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	BenchID   string
	Sequencer *sequence.Sequencer

	// Optional collaborators. Routes backed by a nil dependency answer 503.
	Library  sequence.Repository
	Audit    audit.Repository
	Recorder *telemetry.Recorder
	Pressure PressureSource
	MQTT     ConnectionStatus
	Influx   TelemetryWriter
	DB       DBStats

	// CommandTimeout bounds each controller round trip made on behalf of a
	// request (send, run, manual valve, panic).
	CommandTimeout time.Duration

	Version string
}

// Server is the HTTP API and WebSocket server.
type Server struct {
	cfg            config.APIConfig
	wsCfg          config.WebSocketConfig
	secCfg         config.SecurityConfig
	logger         *logging.Logger
	benchID        string
	sequencer      *sequence.Sequencer
	library        sequence.Repository
	auditRepo      audit.Repository
	recorder       *telemetry.Recorder
	pressure       PressureSource
	mqtt           ConnectionStatus
	influx         TelemetryWriter
	db             DBStats
	commandTimeout time.Duration
	version        string

	hub     *Hub
	tickets *ticketStore

	auditCh   chan *audit.Entry
	auditDone chan struct{}

	server    *http.Server
	cancel    context.CancelFunc
	startTime time.Time
}

// New creates a new API server. The WebSocket hub exists from construction
// so it can be registered as an event sink before Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("api: logger is required")
	}
	if deps.Sequencer == nil {
		return nil, errors.New("api: sequencer is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, errors.New("api: jwt secret is required")
	}
	timeout := deps.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	srv := &Server{
		cfg:            deps.Config,
		wsCfg:          deps.WS,
		secCfg:         deps.Security,
		logger:         deps.Logger,
		benchID:        deps.BenchID,
		sequencer:      deps.Sequencer,
		library:        deps.Library,
		recorder:       deps.Recorder,
		pressure:       deps.Pressure,
		mqtt:           deps.MQTT,
		influx:         deps.Influx,
		db:             deps.DB,
		commandTimeout: timeout,
		version:        deps.Version,
		hub:            NewHub(deps.WS, deps.Logger),
		tickets:        newTicketStore(),
	}
	if deps.Audit != nil {
		srv.auditRepo = deps.Audit
		srv.auditCh = make(chan *audit.Entry, auditChanSize)
	}
	return srv, nil
}

// Hub returns the WebSocket hub. It implements sequence.EventSink and
// telemetry.PressureObserver.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP requests. It returns once the listener
// goroutine is running.
func (s *Server) Start(ctx context.Context) error {
	srvCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.startTime = time.Now()

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)
	if s.auditRepo != nil {
		s.auditDone = make(chan struct{})
		go s.drainAuditLog(srvCtx)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", addr, "tls", s.cfg.TLS.Enabled)

		var err error
		if s.cfg.TLS.Enabled {
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	if s.auditDone != nil {
		<-s.auditDone
		s.flushAudit()
	}
	s.logger.Info("API server stopped")
	return nil
}

// HealthCheck reports whether the server is running.
func (s *Server) HealthCheck(_ context.Context) error {
	if s.server == nil {
		return errors.New("api: server not started")
	}
	return nil
}

// commandContext bounds a controller round trip made for r.
func (s *Server) commandContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.commandTimeout)
}
