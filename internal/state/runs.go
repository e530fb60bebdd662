package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus represents the status of a persisted run.
type RunStatus string

const (
	RunActive  RunStatus = "active"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
	RunError   RunStatus = "error"
)

// Run represents one orchestration run.
type Run struct {
	ID             string     `json:"id"`
	Goal           string     `json:"goal"`
	Strategy       string     `json:"strategy"`
	Status         RunStatus  `json:"status"`
	Summary        string     `json:"summary"`
	TotalTasks     int        `json:"total_tasks"`
	CompletedTasks int        `json:"completed_tasks"`
	FailedTasks    int        `json:"failed_tasks"`
	Errors         []string   `json:"errors"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
}

// RunTask represents one task within a persisted run.
type RunTask struct {
	RunID       string    `json:"run_id"`
	TaskID      string    `json:"task_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	Status      string    `json:"status"`
	WorkerID    string    `json:"worker_id"`
	Result      string    `json:"result"`
	Error       string    `json:"error"`
	CreatedAt   time.Time `json:"created_at"`
}

// Run CRUD operations

// CreateRun records a new run in active status.
func (db *DB) CreateRun(r *Run) error {
	errorsJSON, err := json.Marshal(r.Errors)
	if err != nil {
		return fmt.Errorf("marshal run errors: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO runs (id, goal, strategy, status, summary, total_tasks, completed_tasks, failed_tasks, errors, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Goal, r.Strategy, string(r.Status), r.Summary, r.TotalTasks, r.CompletedTasks, r.FailedTasks, string(errorsJSON), formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the terminal outcome of a run.
func (db *DB) FinishRun(r *Run) error {
	if r.FinishedAt == nil {
		now := time.Now()
		r.FinishedAt = &now
	}
	errorsJSON, err := json.Marshal(r.Errors)
	if err != nil {
		return fmt.Errorf("marshal run errors: %w", err)
	}
	_, err = db.Exec(`
		UPDATE runs SET status = ?, summary = ?, total_tasks = ?, completed_tasks = ?, failed_tasks = ?, errors = ?, finished_at = ?
		WHERE id = ?
	`, string(r.Status), r.Summary, r.TotalTasks, r.CompletedTasks, r.FailedTasks, string(errorsJSON), formatTime(*r.FinishedAt), r.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil if no run exists.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, goal, strategy, status, summary, total_tasks, completed_tasks, failed_tasks, errors, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// LatestRun retrieves the most recently started run, or nil.
func (db *DB) LatestRun() (*Run, error) {
	row := db.QueryRow(`
		SELECT id, goal, strategy, status, summary, total_tasks, completed_tasks, failed_tasks, errors, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT 1
	`)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. A limit of zero or
// less returns all runs.
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	query := `
		SELECT id, goal, strategy, status, summary, total_tasks, completed_tasks, failed_tasks, errors, started_at, finished_at
		FROM runs ORDER BY started_at DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var errorsJSON string
	var startedAt string
	var finishedAt sql.NullString

	err := row.Scan(&r.ID, &r.Goal, &r.Strategy, &r.Status, &r.Summary,
		&r.TotalTasks, &r.CompletedTasks, &r.FailedTasks, &errorsJSON, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	if errorsJSON != "" {
		_ = json.Unmarshal([]byte(errorsJSON), &r.Errors)
	}
	return &r, nil
}

// RunTask CRUD operations

// SaveRunTasks replaces the task rows for a run in one transaction.
func (db *DB) SaveRunTasks(runID string, tasks []*RunTask) error {
	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM run_tasks WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("clear run tasks: %w", err)
		}
		for _, t := range tasks {
			_, err := tx.Exec(`
				INSERT INTO run_tasks (run_id, task_id, name, description, priority, status, worker_id, result, error, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, runID, t.TaskID, t.Name, t.Description, t.Priority, t.Status, t.WorkerID, t.Result, t.Error, formatTime(t.CreatedAt))
			if err != nil {
				return fmt.Errorf("insert run task %s: %w", t.TaskID, err)
			}
		}
		return nil
	})
}

// GetRunTasks returns the task rows for a run in creation order.
func (db *DB) GetRunTasks(runID string) ([]*RunTask, error) {
	rows, err := db.Query(`
		SELECT run_id, task_id, name, description, priority, status, worker_id, result, error, created_at
		FROM run_tasks WHERE run_id = ? ORDER BY created_at, task_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*RunTask
	for rows.Next() {
		var t RunTask
		var createdAt string
		err := rows.Scan(&t.RunID, &t.TaskID, &t.Name, &t.Description, &t.Priority,
			&t.Status, &t.WorkerID, &t.Result, &t.Error, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan run task: %w", err)
		}
		t.CreatedAt, _ = parseTime(createdAt)
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}
