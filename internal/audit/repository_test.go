package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/flowbench-core/internal/infrastructure/database"
	_ "github.com/nerrad567/flowbench-core/migrations"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "flowbench.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestRepository_CreateAndList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{Action: ActionValve, Target: "S1", Operator: "alice", Details: map[string]any{"open": true}, CreatedAt: base},
		{Action: ActionSend, Operator: "alice", CreatedAt: base.Add(time.Second)},
		{Action: ActionPanic, Source: "panel", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == "" {
			t.Fatal("Create() did not assign an ID")
		}
	}

	got, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Total != 3 || len(got.Entries) != 3 {
		t.Fatalf("List() total = %d, entries = %d, want 3", got.Total, len(got.Entries))
	}
	if got.Entries[0].Action != ActionPanic {
		t.Errorf("first entry = %q, want most recent (panic)", got.Entries[0].Action)
	}
	if got.Entries[0].Source != "panel" || got.Entries[1].Source != "api" {
		t.Errorf("sources = %q, %q", got.Entries[0].Source, got.Entries[1].Source)
	}
	last := got.Entries[2]
	if last.Target != "S1" || last.Operator != "alice" || last.Details["open"] != true {
		t.Errorf("valve entry = %+v", last)
	}
	if !last.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", last.CreatedAt, base)
	}
	if got.Limit != DefaultLimit {
		t.Errorf("Limit = %d, want %d", got.Limit, DefaultLimit)
	}
}

func TestRepository_ListFilters(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i, e := range []Entry{
		{Action: ActionValve, Operator: "alice"},
		{Action: ActionValve, Operator: "bob"},
		{Action: ActionRun, Operator: "alice"},
	} {
		e.CreatedAt = time.Now().Add(time.Duration(i) * time.Millisecond)
		if err := repo.Create(ctx, &e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
		total  int
	}{
		{"by action", Filter{Action: ActionValve}, 2, 2},
		{"by operator", Filter{Operator: "alice"}, 2, 2},
		{"both", Filter{Action: ActionValve, Operator: "bob"}, 1, 1},
		{"paged", Filter{Limit: 1, Offset: 1}, 1, 3},
		{"past end", Filter{Offset: 10}, 0, 3},
		{"limit clamped", Filter{Limit: 1000}, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got.Entries) != tt.want || got.Total != tt.total {
				t.Errorf("List() entries = %d total = %d, want %d/%d", len(got.Entries), got.Total, tt.want, tt.total)
			}
			if got.Limit > MaxLimit {
				t.Errorf("Limit = %d, exceeds max", got.Limit)
			}
		})
	}
}

func TestRepository_CreateRequiresAction(t *testing.T) {
	repo := setupTestRepo(t)
	if err := repo.Create(context.Background(), &Entry{}); err == nil {
		t.Error("Create() without action should fail")
	}
}
