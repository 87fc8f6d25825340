package sequence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxNameLength bounds the name of a saved sequence.
const MaxNameLength = 100

// Saved is a named sequence in the library. Saved sequences hold authored
// steps, not compiled plans; loading one replaces the editor contents.
type Saved struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Steps       []Step    `json:"steps"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Repository persists the sequence library and run history.
type Repository interface {
	RunRecorder

	List(ctx context.Context) ([]Saved, error)
	Get(ctx context.Context, id string) (*Saved, error)
	Create(ctx context.Context, seq *Saved) error
	Update(ctx context.Context, seq *Saved) error
	Delete(ctx context.Context, id string) error

	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const savedColumns = `id, name, description, steps, created_at, updated_at`

const runColumns = `id, started_at, ended_at, status, step_count, steps_reached, plan`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// NewSavedID returns a fresh library identifier.
func NewSavedID() string {
	return "seq-" + uuid.NewString()[:8]
}

// ValidateName trims and checks a saved sequence name.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxNameLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

// List returns every saved sequence ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Saved, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+savedColumns+` FROM sequence_library ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying sequences: %w", err)
	}
	defer rows.Close()

	var out []Saved
	for rows.Next() {
		seq, err := scanSaved(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *seq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sequences: %w", err)
	}
	return out, nil
}

// Get retrieves a saved sequence by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Saved, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+savedColumns+` FROM sequence_library WHERE id = ?`, id)
	seq, err := scanSaved(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSequenceNotFound
		}
		return nil, fmt.Errorf("querying sequence: %w", err)
	}
	return seq, nil
}

// Create inserts a saved sequence, assigning an ID if none is set.
func (r *SQLiteRepository) Create(ctx context.Context, seq *Saved) error {
	name, err := ValidateName(seq.Name)
	if err != nil {
		return err
	}
	seq.Name = name
	if seq.ID == "" {
		seq.ID = NewSavedID()
	}
	if seq.Steps == nil {
		seq.Steps = []Step{}
	}
	stepsJSON, err := json.Marshal(seq.Steps)
	if err != nil {
		return fmt.Errorf("marshalling steps: %w", err)
	}

	now := time.Now().UTC()
	if seq.CreatedAt.IsZero() {
		seq.CreatedAt = now
	}
	seq.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sequence_library (`+savedColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		seq.ID,
		seq.Name,
		nullableString(seq.Description),
		string(stepsJSON),
		seq.CreatedAt.Format(timeFormat),
		seq.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSequenceExists
		}
		return fmt.Errorf("inserting sequence: %w", err)
	}
	return nil
}

// Update replaces the name, description and steps of a saved sequence.
func (r *SQLiteRepository) Update(ctx context.Context, seq *Saved) error {
	name, err := ValidateName(seq.Name)
	if err != nil {
		return err
	}
	seq.Name = name
	if seq.Steps == nil {
		seq.Steps = []Step{}
	}
	stepsJSON, err := json.Marshal(seq.Steps)
	if err != nil {
		return fmt.Errorf("marshalling steps: %w", err)
	}
	seq.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE sequence_library SET
			name = ?, description = ?, steps = ?, updated_at = ?
		WHERE id = ?`,
		seq.Name,
		nullableString(seq.Description),
		string(stepsJSON),
		seq.UpdatedAt.Format(timeFormat),
		seq.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSequenceExists
		}
		return fmt.Errorf("updating sequence: %w", err)
	}
	return expectOneRow(result, ErrSequenceNotFound)
}

// Delete removes a saved sequence.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sequence_library WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting sequence: %w", err)
	}
	return expectOneRow(result, ErrSequenceNotFound)
}

// CreateRun inserts a run record.
func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	planJSON, err := json.Marshal(run.Plan)
	if err != nil {
		return fmt.Errorf("marshalling plan: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sequence_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(timeFormat),
		nullableTime(run.EndedAt),
		string(run.Status),
		run.StepCount,
		run.StepsReached,
		string(planJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// UpdateRun records progress or the outcome of a run.
func (r *SQLiteRepository) UpdateRun(ctx context.Context, run *Run) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sequence_runs SET
			ended_at = ?, status = ?, steps_reached = ?
		WHERE id = ?`,
		nullableTime(run.EndedAt),
		string(run.Status),
		run.StepsReached,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	return expectOneRow(result, ErrRunNotFound)
}

// GetRun retrieves a run by ID.
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sequence_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// means 50.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM sequence_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSaved(row scanner) (*Saved, error) {
	var (
		seq                  Saved
		description          sql.NullString
		stepsJSON            string
		createdAt, updatedAt string
	)
	if err := row.Scan(&seq.ID, &seq.Name, &description, &stepsJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	seq.Description = description.String
	if err := json.Unmarshal([]byte(stepsJSON), &seq.Steps); err != nil {
		return nil, fmt.Errorf("unmarshalling steps for %s: %w", seq.ID, err)
	}
	seq.CreatedAt = parseTime(createdAt)
	seq.UpdatedAt = parseTime(updatedAt)
	return &seq, nil
}

func scanRun(row scanner) (*Run, error) {
	var (
		run       Run
		startedAt string
		endedAt   sql.NullString
		status    string
		planJSON  string
	)
	if err := row.Scan(&run.ID, &startedAt, &endedAt, &status, &run.StepCount, &run.StepsReached, &planJSON); err != nil {
		return nil, err
	}
	run.StartedAt = parseTime(startedAt)
	if endedAt.Valid {
		t := parseTime(endedAt.String)
		run.EndedAt = &t
	}
	run.Status = RunStatus(status)
	if err := json.Unmarshal([]byte(planJSON), &run.Plan); err != nil {
		return nil, fmt.Errorf("unmarshalling plan for %s: %w", run.ID, err)
	}
	return &run, nil
}

func expectOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeFormat), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
