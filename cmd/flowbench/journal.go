package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/flowbench-core/internal/telemetry"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the CBOR event journal",
}

var journalDumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Print journal entries as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDump,
}

func init() {
	journalCmd.AddCommand(journalDumpCmd)
	rootCmd.AddCommand(journalCmd)
}

// journalLine is the JSON rendering of one journal entry.
type journalLine struct {
	Time      string                   `json:"time"`
	Kind      string                   `json:"kind"`
	Valves    []telemetry.JournalValve `json:"valves,omitempty"`
	Message   string                   `json:"message,omitempty"`
	Severity  string                   `json:"severity,omitempty"`
	Pressures []float64                `json:"pressures,omitempty"`
}

func runJournalDump(cmd *cobra.Command, args []string) error {
	r, err := telemetry.ReadJournal(args[0])
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer r.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading journal: %w", err)
		}
		line := journalLine{
			Time:      e.Time.UTC().Format(time.RFC3339Nano),
			Kind:      e.Kind.String(),
			Valves:    e.Valves,
			Message:   e.Message,
			Severity:  string(e.Severity),
			Pressures: e.Pressures,
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
}
