package telemetry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/flowbench-core/internal/valve"
)

// steppedClock returns start then advances by each delta on later calls.
func steppedClock(start time.Time, deltas ...time.Duration) func() time.Time {
	now := start
	i := -1
	return func() time.Time {
		if i >= 0 && i < len(deltas) {
			now = now.Add(deltas[i])
		}
		i++
		return now
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestRecorder_WritesCSV(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)

	rec := NewRecorder(dir, []string{"P1", "P2", "P3"}, []string{"S1", "S2", "V1"})
	rec.now = steppedClock(start, 1234560*time.Microsecond, 765440*time.Microsecond)

	files, err := rec.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got, want := filepath.Base(files.PressurePath), "pressure_20260301_090000.csv"; got != want {
		t.Errorf("pressure file = %s, want %s", got, want)
	}
	if got, want := filepath.Base(files.ValvePath), "valves_20260301_090000.csv"; got != want {
		t.Errorf("valve file = %s, want %s", got, want)
	}

	rec.OnPressure(Reading{Pressures: []float64{1, 2.5, 3.14159}})
	// Out-of-order vector; rows follow the header order.
	rec.OnValveStateChanged([]valve.Status{
		{Name: "V1", Open: true},
		{Name: "S1", Open: false},
		{Name: "S2", Open: true},
	})

	if _, err := rec.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	wantPressure := "time_elapsed,P1,P2,P3\n1.2346,1.0000,2.5000,3.1416\n"
	if got := readFile(t, files.PressurePath); got != wantPressure {
		t.Errorf("pressure csv =\n%q\nwant\n%q", got, wantPressure)
	}
	wantValves := "time_elapsed,S1,S2,V1\n2.0,CLOSED,OPEN,OPEN\n"
	if got := readFile(t, files.ValvePath); got != wantValves {
		t.Errorf("valve csv =\n%q\nwant\n%q", got, wantValves)
	}
}

func TestRecorder_InactiveIgnoresWrites(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, []string{"P1"}, []string{"S1"})

	rec.OnPressure(Reading{Pressures: []float64{1}})
	rec.OnValveStateChanged([]valve.Status{{Name: "S1", Open: true}})

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("inactive recorder created %d files", len(entries))
	}
	if _, err := rec.Stop(); err != nil {
		t.Errorf("Stop() while inactive error = %v", err)
	}
}

func TestRecorder_StartTwice(t *testing.T) {
	rec := NewRecorder(t.TempDir(), []string{"P1"}, []string{"S1"})
	if _, err := rec.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer rec.Stop() //nolint:errcheck // test cleanup

	if _, err := rec.Start(); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRecording", err)
	}
	if !rec.Active() {
		t.Error("Active() = false while recording")
	}
	if cur, ok := rec.Current(); !ok || cur.PressurePath == "" {
		t.Errorf("Current() = %+v, %v", cur, ok)
	}
}

func TestRecorder_StopThenWritesIgnored(t *testing.T) {
	rec := NewRecorder(t.TempDir(), []string{"P1"}, []string{"S1"})
	files, err := rec.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := rec.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	rec.OnPressure(Reading{Pressures: []float64{9}})

	if got := readFile(t, files.PressurePath); got != "time_elapsed,P1\n" {
		t.Errorf("pressure csv after stop = %q", got)
	}
	if _, ok := rec.Current(); ok {
		t.Error("Current() reported a recording after Stop()")
	}
}

func TestRecorder_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "recordings")
	rec := NewRecorder(dir, nil, nil)
	if _, err := rec.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer rec.Stop() //nolint:errcheck // test cleanup

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("recording directory not created: %v", err)
	}
}
