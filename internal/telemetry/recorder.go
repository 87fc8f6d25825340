package telemetry

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/flowbench-core/internal/sequence"
	"github.com/nerrad567/flowbench-core/internal/valve"
)

// fileTimestamp is the suffix format of recording file names.
const fileTimestamp = "20060102_150405"

// Recorder writes pressure readings and valve states to a pair of CSV files
// while a recording is active. Writes while inactive are ignored.
type Recorder struct {
	dir     string
	sensors []string
	valves  []string
	now     func() time.Time
	logger  Logger

	mu       sync.Mutex
	active   bool
	started  time.Time
	pressure *csvFile
	valveLog *csvFile
}

type csvFile struct {
	path string
	f    *os.File
	w    *csv.Writer
}

// Recording names the files of an active or finished recording.
type Recording struct {
	PressurePath string    `json:"pressure_path"`
	ValvePath    string    `json:"valve_path"`
	StartedAt    time.Time `json:"started_at"`
}

// NewRecorder returns an inactive recorder writing into dir.
func NewRecorder(dir string, sensors, valves []string) *Recorder {
	return &Recorder{
		dir:     dir,
		sensors: append([]string(nil), sensors...),
		valves:  append([]string(nil), valves...),
		now:     time.Now,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger used for write failures.
func (r *Recorder) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Start creates pressure_YYYYMMDD_HHMMSS.csv and valves_YYYYMMDD_HHMMSS.csv
// with their header rows and begins recording.
func (r *Recorder) Start() (Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return Recording{}, ErrAlreadyRecording
	}
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return Recording{}, fmt.Errorf("creating recording directory: %w", err)
	}

	started := r.now()
	stamp := started.Format(fileTimestamp)

	pressure, err := createCSV(filepath.Join(r.dir, "pressure_"+stamp+".csv"), append([]string{"time_elapsed"}, r.sensors...))
	if err != nil {
		return Recording{}, err
	}
	valves, err := createCSV(filepath.Join(r.dir, "valves_"+stamp+".csv"), append([]string{"time_elapsed"}, r.valves...))
	if err != nil {
		pressure.close() //nolint:errcheck // already failing
		return Recording{}, err
	}

	r.active = true
	r.started = started
	r.pressure = pressure
	r.valveLog = valves
	return r.recordingLocked(), nil
}

// Stop ends the recording and closes both files. Stopping an inactive
// recorder is a no-op.
func (r *Recorder) Stop() (Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return Recording{}, nil
	}
	rec := r.recordingLocked()
	r.active = false

	errP := r.pressure.close()
	errV := r.valveLog.close()
	r.pressure, r.valveLog = nil, nil
	if errP != nil {
		return rec, errP
	}
	return rec, errV
}

// Active reports whether a recording is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Current returns the active recording, or false when inactive.
func (r *Recorder) Current() (Recording, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return Recording{}, false
	}
	return r.recordingLocked(), true
}

// OnPressure appends a pressure row.
func (r *Recorder) OnPressure(reading Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}

	row := make([]string, 0, len(reading.Pressures)+1)
	row = append(row, r.elapsedLocked())
	for _, p := range reading.Pressures {
		row = append(row, strconv.FormatFloat(p, 'f', 4, 64))
	}
	if err := r.pressure.write(row); err != nil {
		r.logger.Warn("writing pressure row", "path", r.pressure.path, "error", err)
	}
}

// OnValveStateChanged appends a valve row in header order.
func (r *Recorder) OnValveStateChanged(valves []valve.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}

	labels := make(map[string]string, len(valves))
	for _, v := range valves {
		labels[v.Name] = v.Label()
	}
	row := make([]string, 0, len(r.valves)+1)
	row = append(row, r.elapsedLocked())
	for _, name := range r.valves {
		label, ok := labels[name]
		if !ok {
			label = valve.Status{Name: name}.Label()
		}
		row = append(row, label)
	}
	if err := r.valveLog.write(row); err != nil {
		r.logger.Warn("writing valve row", "path", r.valveLog.path, "error", err)
	}
}

// OnSequenceStatus is not recorded in the CSV files.
func (r *Recorder) OnSequenceStatus(string, sequence.Severity) {}

func (r *Recorder) recordingLocked() Recording {
	return Recording{
		PressurePath: r.pressure.path,
		ValvePath:    r.valveLog.path,
		StartedAt:    r.started,
	}
}

// elapsedLocked returns seconds since Start rounded to 4 decimal places,
// always with a fractional part ("2.0", "1.2346").
func (r *Recorder) elapsedLocked() string {
	secs := r.now().Sub(r.started).Seconds()
	s := strconv.FormatFloat(math.Round(secs*1e4)/1e4, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func createCSV(path string, header []string) (*csvFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	c := &csvFile{path: path, f: f, w: csv.NewWriter(f)}
	if err := c.write(header); err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("writing header to %s: %w", path, err)
	}
	return c, nil
}

// write appends one row and flushes so a crash loses at most the last row.
func (c *csvFile) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvFile) close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close() //nolint:errcheck // flush error takes precedence
		return err
	}
	return c.f.Close()
}
