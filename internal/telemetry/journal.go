package telemetry

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/nerrad567/flowbench-core/internal/sequence"
	"github.com/nerrad567/flowbench-core/internal/valve"
)

// EntryKind classifies a journal entry.
type EntryKind uint8

// Journal entry kinds.
const (
	EntryValves   EntryKind = 1
	EntryStatus   EntryKind = 2
	EntryPressure EntryKind = 3
)

// String returns the entry kind name.
func (k EntryKind) String() string {
	switch k {
	case EntryValves:
		return "valves"
	case EntryStatus:
		return "status"
	case EntryPressure:
		return "pressure"
	default:
		return "unknown"
	}
}

// Entry is one journal record. CBOR uses integer keys for compactness.
type Entry struct {
	Time      time.Time         `cbor:"1,keyasint"`
	Kind      EntryKind         `cbor:"2,keyasint"`
	Valves    []JournalValve    `cbor:"3,keyasint,omitempty"`
	Message   string            `cbor:"4,keyasint,omitempty"`
	Severity  sequence.Severity `cbor:"5,keyasint,omitempty"`
	Pressures []float64         `cbor:"6,keyasint,omitempty"`
}

// JournalValve is a valve state inside an Entry.
type JournalValve struct {
	Name string `cbor:"1,keyasint" json:"name"`
	Open bool   `cbor:"2,keyasint" json:"open"`
}

// Journal appends every event to a CBOR file. It is safe for concurrent
// use. Encoding failures are dropped so journaling never disturbs a run.
type Journal struct {
	file    *os.File
	encoder *cbor.Encoder
	now     func() time.Time
	mu      sync.Mutex
	closed  bool
}

// OpenJournal opens path for appending, creating it if needed.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{
		file:    f,
		encoder: newJournalEncoder(f),
		now:     time.Now,
	}, nil
}

// Append writes e, stamping it with the current time if unset.
func (j *Journal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}
	if e.Time.IsZero() {
		e.Time = j.now().UTC()
	}
	return j.encoder.Encode(e)
}

// OnValveStateChanged journals the full valve vector.
func (j *Journal) OnValveStateChanged(valves []valve.Status) {
	entry := Entry{Kind: EntryValves, Valves: make([]JournalValve, len(valves))}
	for i, v := range valves {
		entry.Valves[i] = JournalValve{Name: v.Name, Open: v.Open}
	}
	_ = j.Append(entry)
}

// OnSequenceStatus journals a status message.
func (j *Journal) OnSequenceStatus(message string, severity sequence.Severity) {
	_ = j.Append(Entry{Kind: EntryStatus, Message: message, Severity: severity})
}

// OnPressure journals a pressure reading.
func (j *Journal) OnPressure(r Reading) {
	_ = j.Append(Entry{Time: r.At.UTC(), Kind: EntryPressure, Pressures: r.Pressures})
}

// Close closes the journal file. It is safe to call more than once.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}

// JournalReader streams entries from a journal file.
type JournalReader struct {
	file    *os.File
	decoder *cbor.Decoder
}

// ReadJournal opens a journal for reading.
func ReadJournal(path string) (*JournalReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &JournalReader{file: f, decoder: newJournalDecoder(f)}, nil
}

// Next returns the next entry, or io.EOF at the end of the journal.
func (r *JournalReader) Next() (Entry, error) {
	var e Entry
	if err := r.decoder.Decode(&e); err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, err
	}
	return e, nil
}

// Close closes the underlying file.
func (r *JournalReader) Close() error {
	return r.file.Close()
}
