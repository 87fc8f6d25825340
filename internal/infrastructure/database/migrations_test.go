package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
)

var testMigrations = fstest.MapFS{
	"20260301_090000_create_benches.up.sql":   {Data: []byte("CREATE TABLE benches (id TEXT PRIMARY KEY);")},
	"20260301_090000_create_benches.down.sql": {Data: []byte("DROP TABLE benches;")},
	"20260301_090100_create_valves.up.sql":    {Data: []byte("CREATE TABLE valves (name TEXT PRIMARY KEY);")},
	"README.md":                               {Data: []byte("not a migration")},
}

// useMigrations swaps the package-level migration source for the test.
func useMigrations(t *testing.T, fsys fstest.MapFS) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() { MigrationsFS, MigrationsDir = origFS, origDir })
	MigrationsDir = "."
	if fsys == nil {
		MigrationsFS = nil
		return
	}
	MigrationsFS = fsys
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations)
	db := openTestDB(t)
	ctx := context.Background()

	status, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(status.Applied) != 0 || len(status.Pending) != 2 {
		t.Fatalf("before: applied=%d pending=%d, want 0/2", len(status.Applied), len(status.Pending))
	}
	if status.Pending[0].Name != "create_benches" || status.Pending[1].Name != "create_valves" {
		t.Errorf("pending order = %s, %s", status.Pending[0].Name, status.Pending[1].Name)
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "benches") || !tableExists(t, db, "valves") {
		t.Fatal("migrated tables missing")
	}

	status, err = db.MigrationStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(status.Applied) != 2 || len(status.Pending) != 0 {
		t.Errorf("after: applied=%d pending=%d, want 2/0", len(status.Applied), len(status.Pending))
	}
	if r := status.Applied[0]; r.Name != "create_benches" || r.AppliedAt.IsZero() {
		t.Errorf("record = %+v", r)
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_FailureKeepsEarlierMigrations(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260301_090000_ok.up.sql":     {Data: []byte("CREATE TABLE ok (id TEXT);")},
		"20260301_090100_broken.up.sql": {Data: []byte("CREATE TABLE nonsense (;")},
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() should fail on broken SQL")
	}
	if !tableExists(t, db, "ok") {
		t.Error("first migration should stay committed")
	}
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(status.Applied) != 1 || len(status.Pending) != 1 {
		t.Errorf("applied=%d pending=%d, want 1/1", len(status.Applied), len(status.Pending))
	}
}

func TestMigrate_SchemaAhead(t *testing.T) {
	useMigrations(t, testMigrations)
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	// An older binary only knows the first migration.
	useMigrations(t, fstest.MapFS{
		"20260301_090000_create_benches.up.sql": testMigrations["20260301_090000_create_benches.up.sql"],
	})
	if err := db.Migrate(ctx); !errors.Is(err, ErrSchemaAhead) {
		t.Errorf("Migrate() error = %v, want ErrSchemaAhead", err)
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	useMigrations(t, nil)
	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrations)
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	// The latest migration has no down file.
	if err := db.MigrateDown(ctx); !errors.Is(err, ErrNoDownMigration) {
		t.Fatalf("MigrateDown() error = %v, want ErrNoDownMigration", err)
	}

	useMigrations(t, fstest.MapFS{
		"20260301_090000_create_benches.up.sql":   testMigrations["20260301_090000_create_benches.up.sql"],
		"20260301_090000_create_benches.down.sql": testMigrations["20260301_090000_create_benches.down.sql"],
		"20260301_090100_create_valves.up.sql":    testMigrations["20260301_090100_create_valves.up.sql"],
		"20260301_090100_create_valves.down.sql":  {Data: []byte("DROP TABLE valves;")},
	})
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "valves") {
		t.Error("valves table should be dropped")
	}
	if !tableExists(t, db, "benches") {
		t.Error("benches table should remain")
	}
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(status.Applied) != 1 {
		t.Errorf("applied = %d, want 1", len(status.Applied))
	}
}

func TestLoadMigrations_OrphanDown(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260301_090000_lonely.down.sql": {Data: []byte("DROP TABLE x;")},
	})
	if _, err := loadMigrations(); err == nil {
		t.Error("loadMigrations() should reject a down file without an up file")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     migrationFile
		wantOK   bool
	}{
		{"20260301_090000_sequence_library.up.sql", migrationFile{"20260301_090000", "sequence_library", true}, true},
		{"20260301_090000_sequence_library.down.sql", migrationFile{"20260301_090000", "sequence_library", false}, true},
		{"20260301_090000.up.sql", migrationFile{"20260301_090000", "", true}, true},
		{"readme.txt", migrationFile{}, false},
		{"20260301_090000_no_direction.sql", migrationFile{}, false},
		{"invalid.up.sql", migrationFile{}, false},
		{"2026_0900_short.up.sql", migrationFile{}, false},
		{"2026030a_090000_letters.up.sql", migrationFile{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("parseMigrationFilename() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
