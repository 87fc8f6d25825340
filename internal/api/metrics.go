package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/flowbench-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/flowbench-core/internal/sequence"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	Bench         string           `json:"bench"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	InfluxDB      *InfluxMetrics   `json:"influxdb,omitempty"`
	Sequencer     SequencerMetrics `json:"sequencer"`
	Recording     RecordingMetrics `json:"recording"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedEvents    uint64 `json:"dropped_events"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// InfluxMetrics reports telemetry export health.
type InfluxMetrics struct {
	Connected bool `json:"connected"`
	influxdb.Stats
}

// SequencerMetrics summarises the sequencer.
type SequencerMetrics struct {
	State      sequence.State `json:"state"`
	Step       int            `json:"step"`
	StepCount  int            `json:"step_count"`
	OpenValves int            `json:"open_valves"`
}

// RecordingMetrics reports whether a CSV recording is active.
type RecordingMetrics struct {
	Active bool `json:"active"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snap := s.sequencer.Status()

	metrics := SystemMetrics{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.version,
		Bench:     s.benchID,
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedEvents:    s.hub.Dropped(),
		},
		Sequencer: SequencerMetrics{
			State:      snap.State,
			Step:       snap.Step,
			StepCount:  snap.StepCount,
			OpenValves: s.sequencer.OpenCount(),
		},
	}
	if !s.startTime.IsZero() {
		metrics.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
	}

	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}
	if s.influx != nil {
		metrics.InfluxDB = &InfluxMetrics{Connected: s.influx.IsConnected(), Stats: s.influx.Stats()}
	}
	if s.recorder != nil {
		metrics.Recording.Active = s.recorder.Active()
	}
	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
