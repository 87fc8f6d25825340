package sequence

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/flowbench-core/internal/infrastructure/database"
	_ "github.com/nerrad567/flowbench-core/migrations"
)

// setupTestRepo opens a file-backed database with the embedded schema applied.
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

func TestRepository_CreateAndGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	seq := &Saved{
		Name:        "  Cold flow  ",
		Description: "pressurant then injector",
		Steps:       []Step{timed(0.5, open("Solenoid_Valve_1")), hold(shut("Solenoid_Valve_1"))},
	}
	if err := repo.Create(ctx, seq); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if seq.ID == "" || seq.CreatedAt.IsZero() {
		t.Fatalf("Create() did not assign ID/timestamps: %+v", seq)
	}
	if seq.Name != "Cold flow" {
		t.Errorf("Name = %q, want trimmed", seq.Name)
	}

	got, err := repo.Get(ctx, seq.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != seq.Name || got.Description != seq.Description {
		t.Errorf("Get() = %+v", got)
	}
	if !reflect.DeepEqual(got.Steps, seq.Steps) {
		t.Errorf("Steps = %+v, want %+v", got.Steps, seq.Steps)
	}
}

func TestRepository_CreateValidation(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Saved{Name: "   "}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Create(blank) error = %v, want ErrInvalidName", err)
	}

	if err := repo.Create(ctx, &Saved{Name: "dup"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, &Saved{Name: "dup"}); !errors.Is(err, ErrSequenceExists) {
		t.Errorf("Create(duplicate) error = %v, want ErrSequenceExists", err)
	}
}

func TestRepository_UpdateAndDelete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	seq := &Saved{Name: "purge"}
	if err := repo.Create(ctx, seq); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if seq.Steps == nil {
		t.Error("Create() left Steps nil")
	}

	seq.Name = "purge v2"
	seq.Steps = []Step{timed(2, open("Servo_Valve_1"))}
	if err := repo.Update(ctx, seq); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := repo.Get(ctx, seq.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "purge v2" || len(got.Steps) != 1 {
		t.Errorf("Get() after update = %+v", got)
	}

	if err := repo.Delete(ctx, seq.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, seq.ID); !errors.Is(err, ErrSequenceNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrSequenceNotFound", err)
	}
	if err := repo.Delete(ctx, seq.ID); !errors.Is(err, ErrSequenceNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrSequenceNotFound", err)
	}
	if err := repo.Update(ctx, &Saved{ID: "seq-missing", Name: "x"}); !errors.Is(err, ErrSequenceNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrSequenceNotFound", err)
	}
}

func TestRepository_ListOrderedByName(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		if err := repo.Create(ctx, &Saved{Name: name}); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var names []string
	for _, s := range list {
		names = append(names, s.Name)
	}
	if want := []string{"alpha", "bravo", "charlie"}; !reflect.DeepEqual(names, want) {
		t.Errorf("List() names = %v, want %v", names, want)
	}
}

func TestRepository_RunLifecycle(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	plan, err := Compile([]Step{timed(0.25, open("A")), hold(shut("A"))})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	run := &Run{
		ID:        "run-0001",
		StartedAt: start,
		Status:    RunRunning,
		StepCount: plan.StepCount(),
		Plan:      plan.Payload(),
	}
	if err := repo.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	end := start.Add(1500 * time.Millisecond)
	run.EndedAt = &end
	run.Status = RunStopped
	run.StepsReached = 2
	if err := repo.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun() error = %v", err)
	}

	got, err := repo.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != RunStopped || got.StepsReached != 2 || got.StepCount != 2 {
		t.Errorf("GetRun() = %+v", got)
	}
	if !got.StartedAt.Equal(start) || got.EndedAt == nil || !got.EndedAt.Equal(end) {
		t.Errorf("GetRun() times = %v / %v", got.StartedAt, got.EndedAt)
	}
	if !reflect.DeepEqual(got.Plan, run.Plan) {
		t.Errorf("Plan = %+v, want %+v", got.Plan, run.Plan)
	}

	if _, err := repo.GetRun(ctx, "run-none"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrRunNotFound", err)
	}
	if err := repo.UpdateRun(ctx, &Run{ID: "run-none", Status: RunAborted}); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("UpdateRun(missing) error = %v, want ErrRunNotFound", err)
	}
}

func TestRepository_ListRunsNewestFirst(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	offsets := []time.Duration{0, 500 * time.Millisecond, time.Second, 2 * time.Second}
	for i, off := range offsets {
		run := &Run{
			ID:        "run-" + string(rune('a'+i)),
			StartedAt: base.Add(off),
			Status:    RunCompleted,
			StepCount: 1,
		}
		if err := repo.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
	}

	runs, err := repo.ListRuns(ctx, 3)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if want := []string{"run-d", "run-c", "run-b"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ListRuns() ids = %v, want %v", ids, want)
	}
}

func TestRepository_RecordsSequencerRuns(t *testing.T) {
	repo := setupTestRepo(t)
	h := newHarness(t)
	h.seq.SetRunRecorder(repo)

	h.sendAndRun(t, timed(0.1, open("A")))
	h.clock.Advance(100 * time.Millisecond)

	runs, err := repo.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ListRuns() = %d runs, want 1", len(runs))
	}
	if runs[0].Status != RunCompleted || runs[0].StepsReached != 1 {
		t.Errorf("run = %+v, want completed after 1 step", runs[0])
	}
}
