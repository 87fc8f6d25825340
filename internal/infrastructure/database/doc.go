// Package database provides SQLite storage for FlowBench Core.
//
// The database holds the saved sequence library and the history of
// sequence runs. Live valve state is never persisted; after a restart every
// valve is assumed closed.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations embedded from the migrations package
//   - Connection pooling and lifecycle management
//
// Usage:
//
//	db, err := database.Open(database.FromConfig(cfg.Database))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.{up,down}.sql and
// are additive: new columns must be NULLABLE or have DEFAULT values.
package database
