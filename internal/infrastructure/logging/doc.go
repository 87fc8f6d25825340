// Package logging builds the structured slog logger shared by every
// FlowBench Core component.
//
// Entries are JSON by default and text when logging.format is "text". Each
// one carries service and version attributes, and the serve command adds
// the bench ID:
//
//	log := logging.New(cfg.Logging, version).With("bench", cfg.Bench.ID)
//	log.Info("sequence sent", "steps", 4)
//
// The level is held in a slog.LevelVar, so SetLevel on any derived Logger
// applies to all of them. Components that log take a small Logger
// interface rather than this type.
package logging
