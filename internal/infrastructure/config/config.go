package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Valve kinds understood by the bench.
const (
	ValveKindSolenoid = "solenoid"
	ValveKindServo    = "servo"
)

// Controller transports.
const (
	TransportMQTT     = "mqtt"
	TransportLoopback = "loopback"
)

// Config is the root configuration structure for FlowBench Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bench      BenchConfig      `yaml:"bench"`
	Controller ControllerConfig `yaml:"controller"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Recording  RecordingConfig  `yaml:"recording"`
	Security   SecurityConfig   `yaml:"security"`
}

// BenchConfig describes the physical test bench: its valves and pressure sensors.
// Valve order is significant; it is the order used in every state snapshot.
type BenchConfig struct {
	ID      string        `yaml:"id"`
	Name    string        `yaml:"name"`
	Valves  []ValveConfig `yaml:"valves"`
	Sensors []string      `yaml:"sensors"`
}

// ValveConfig describes a single valve on the bench.
type ValveConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// Profile is the motion profile used when a servo valve is actuated.
	// Ignored for solenoid valves.
	Profile string `yaml:"profile"`

	// ProfileSteps is the number of waypoints sent with a servo command.
	ProfileSteps int `yaml:"profile_steps"`

	// IntervalMS is the time between waypoints on the controller.
	IntervalMS int `yaml:"interval_ms"`
}

// ControllerConfig contains settings for the remote actuation controller.
type ControllerConfig struct {
	Transport      string `yaml:"transport"`
	AckTimeout     int    `yaml:"ack_timeout"`
	CommandTimeout int    `yaml:"command_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// RecordingConfig contains settings for CSV test recordings and the event journal.
type RecordingConfig struct {
	// Dir is where pressure_*.csv and valves_*.csv files are written.
	Dir string `yaml:"dir"`

	// Journal is the path of the CBOR event journal. Empty disables it.
	Journal string `yaml:"journal"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FLOWBENCH_SECTION_KEY
// For example: FLOWBENCH_DATABASE_PATH, FLOWBENCH_CONTROLLER_TRANSPORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyValveDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration. It describes the three-valve
// bench the software was first written for and talks to no broker.
func Default() *Config {
	cfg := defaultConfig()
	applyValveDefaults(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bench: BenchConfig{
			ID:   "bench-001",
			Name: "FlowBench",
			Valves: []ValveConfig{
				{Name: "Solenoid_Valve_1", Kind: ValveKindSolenoid},
				{Name: "Solenoid_Valve_2", Kind: ValveKindSolenoid},
				{Name: "Servo_Valve_1", Kind: ValveKindServo},
			},
			Sensors: []string{
				"P1_Pressurant_bar",
				"P2_OxidiserTank_bar",
				"P3_Injector_bar",
			},
		},
		Controller: ControllerConfig{
			Transport:      TransportLoopback,
			AckTimeout:     5,
			CommandTimeout: 5,
		},
		Database: DatabaseConfig{
			Path:        "./data/flowbench.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "flowbench-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "flowbench",
			BatchSize:     100,
			FlushInterval: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Recording: RecordingConfig{
			Dir: "./data/recordings",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyValveDefaults fills per-valve fields left empty in the file.
func applyValveDefaults(cfg *Config) {
	for i := range cfg.Bench.Valves {
		v := &cfg.Bench.Valves[i]
		if v.Kind == "" {
			v.Kind = ValveKindSolenoid
		}
		if v.Kind != ValveKindServo {
			continue
		}
		if v.Profile == "" {
			v.Profile = "linear"
		}
		if v.ProfileSteps == 0 {
			v.ProfileSteps = 100
		}
		if v.IntervalMS == 0 {
			v.IntervalMS = 10
		}
	}
}

// applyEnvOverrides copies FLOWBENCH_* variables over file values. Unset or
// empty variables leave the file value alone, as do integers that fail to
// parse.
func applyEnvOverrides(cfg *Config) {
	strs := map[string]*string{
		"FLOWBENCH_BENCH_ID":             &cfg.Bench.ID,
		"FLOWBENCH_CONTROLLER_TRANSPORT": &cfg.Controller.Transport,
		"FLOWBENCH_DATABASE_PATH":        &cfg.Database.Path,
		"FLOWBENCH_MQTT_HOST":            &cfg.MQTT.Broker.Host,
		"FLOWBENCH_MQTT_USERNAME":        &cfg.MQTT.Auth.Username,
		"FLOWBENCH_MQTT_PASSWORD":        &cfg.MQTT.Auth.Password,
		"FLOWBENCH_API_HOST":             &cfg.API.Host,
		"FLOWBENCH_INFLUXDB_TOKEN":       &cfg.InfluxDB.Token,
		"FLOWBENCH_RECORDING_DIR":        &cfg.Recording.Dir,
		"FLOWBENCH_JWT_SECRET":           &cfg.Security.JWT.Secret,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"FLOWBENCH_CONTROLLER_ACK_TIMEOUT": &cfg.Controller.AckTimeout,
		"FLOWBENCH_API_PORT":               &cfg.API.Port,
	}
	for key, dst := range ints {
		if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
			*dst = n
		}
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	// Bench validation
	if c.Bench.ID == "" {
		errs = append(errs, "bench.id is required")
	}
	if len(c.Bench.Valves) == 0 {
		errs = append(errs, "bench.valves must list at least one valve")
	}
	seen := make(map[string]bool, len(c.Bench.Valves))
	for i, v := range c.Bench.Valves {
		switch {
		case v.Name == "":
			errs = append(errs, fmt.Sprintf("bench.valves[%d].name is required", i))
		case seen[v.Name]:
			errs = append(errs, fmt.Sprintf("bench.valves[%d].name %q is duplicated", i, v.Name))
		}
		seen[v.Name] = true

		if v.Kind != ValveKindSolenoid && v.Kind != ValveKindServo {
			errs = append(errs, fmt.Sprintf("bench.valves[%d].kind must be %q or %q", i, ValveKindSolenoid, ValveKindServo))
		}
		if v.Kind == ValveKindServo && (v.ProfileSteps < 2 || v.IntervalMS < 1) {
			errs = append(errs, fmt.Sprintf("bench.valves[%d] servo needs profile_steps >= 2 and interval_ms >= 1", i))
		}
	}

	// Controller validation
	switch c.Controller.Transport {
	case TransportMQTT, TransportLoopback:
	default:
		errs = append(errs, "controller.transport must be \"mqtt\" or \"loopback\"")
	}
	if c.Controller.AckTimeout < 1 {
		errs = append(errs, "controller.ack_timeout must be at least 1 second")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Security validation - JWT secret is REQUIRED.
	// Anyone able to forge a token can open valves on a pressurised bench.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set FLOWBENCH_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ValveNames returns the configured valve names in registration order.
func (c *Config) ValveNames() []string {
	names := make([]string, len(c.Bench.Valves))
	for i, v := range c.Bench.Valves {
		names[i] = v.Name
	}
	return names
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetAckTimeout returns how long to wait for a controller acknowledgement.
func (c *Config) GetAckTimeout() time.Duration {
	return time.Duration(c.Controller.AckTimeout) * time.Second
}

// GetCommandTimeout returns the publish timeout for controller commands.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Controller.CommandTimeout) * time.Second
}

// GetAccessTokenTTL returns the lifetime of operator tokens.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}
