package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/forgescene/scene-crew/internal/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for projects, runs, tasks,
// the append-only chat/audit log, lore facts, and world-state snapshots.
type Store struct {
	db *sql.DB
}

// New creates a Store at the given database path and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// --- projects ---

// UpsertProject inserts or updates a project record
func (s *Store) UpsertProject(p *domain.Project) error {
	_, err := s.db.Exec(`
		INSERT INTO projects (id, name, brief) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, brief = excluded.brief
	`, p.ID, p.Name, p.Brief)
	return err
}

// GetProject retrieves a project by ID
func (s *Store) GetProject(id string) (*domain.Project, error) {
	var p domain.Project
	var brief sql.NullString
	err := s.db.QueryRow(`SELECT id, name, brief FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &brief)
	if err != nil {
		return nil, err
	}
	p.Brief = brief.String
	return &p, nil
}

// --- runs ---

// CreateRun persists a new run in planning status
func (s *Store) CreateRun(run *domain.Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, project_id, prompt, status, signal, task_index, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.ProjectID, run.Prompt, string(run.Status), string(run.Signal), run.TaskIndex, run.StartedAt)
	return err
}

// GetRun retrieves a run by ID
func (s *Store) GetRun(id string) (*domain.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, project_id, prompt, status, signal, task_index, summary, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	return scanRun(row)
}

// ActiveRun returns the non-terminal run for a project, or nil if none.
// Used to enforce the single-writer-per-project invariant.
func (s *Store) ActiveRun(projectID string) (*domain.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, project_id, prompt, status, signal, task_index, summary, started_at, finished_at
		FROM runs WHERE project_id = ? AND status IN ('planning', 'executing', 'paused')
		ORDER BY started_at DESC LIMIT 1
	`, projectID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// UpdateRunStatus updates a run's status field
func (s *Store) UpdateRunStatus(id string, status domain.RunStatus) error {
	_, err := s.db.Exec(`UPDATE runs SET status = ? WHERE id = ?`, string(status), id)
	return err
}

// UpdateRunTaskIndex records which task the orchestrator is working
func (s *Store) UpdateRunTaskIndex(id string, index int) error {
	_, err := s.db.Exec(`UPDATE runs SET task_index = ? WHERE id = ?`, index, id)
	return err
}

// FinalizeRun sets the terminal status, summary and finish time in one update
func (s *Store) FinalizeRun(id string, status domain.RunStatus, summary string) error {
	_, err := s.db.Exec(`UPDATE runs SET status = ?, summary = ?, finished_at = ? WHERE id = ?`,
		string(status), summary, time.Now(), id)
	return err
}

// SetSignal writes the pause/stop control signal for a run.
// Single-column atomic update; the orchestrator reads it at each checkpoint.
func (s *Store) SetSignal(runID string, sig domain.Signal) error {
	res, err := s.db.Exec(`UPDATE runs SET signal = ? WHERE id = ?`, string(sig), runID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("no run with id %s", runID)
	}
	return nil
}

// GetSignal reads the current control signal for a run
func (s *Store) GetSignal(runID string) (domain.Signal, error) {
	var sig string
	err := s.db.QueryRow(`SELECT signal FROM runs WHERE id = ?`, runID).Scan(&sig)
	if err != nil {
		return "", err
	}
	return domain.Signal(sig), nil
}

func scanRun(row *sql.Row) (*domain.Run, error) {
	var run domain.Run
	var status, signal string
	var summary sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(&run.ID, &run.ProjectID, &run.Prompt, &status, &signal,
		&run.TaskIndex, &summary, &run.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	run.Status = domain.RunStatus(status)
	run.Signal = domain.Signal(signal)
	run.Summary = summary.String
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// --- tasks ---

// InsertTasks persists a run's planned task list in order
func (s *Store) InsertTasks(tasks []*domain.Task) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, task := range tasks {
		_, err := tx.Exec(`
			INSERT INTO tasks (id, run_id, order_index, title, description, assigned_to, status, retries, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, task.ID, task.RunID, task.OrderIndex, task.Title, task.Description,
			string(task.AssignedTo), string(task.Status), task.Retries, task.CreatedAt, task.UpdatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateTask writes back a task's mutable fields
func (s *Store) UpdateTask(task *domain.Task) error {
	_, err := s.db.Exec(`
		UPDATE tasks SET status = ?, retries = ?, result = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, string(task.Status), task.Retries, task.Result, task.Error, time.Now(), task.ID)
	return err
}

// ListRunTasks returns a run's tasks in plan order
func (s *Store) ListRunTasks(runID string) ([]*domain.Task, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, order_index, title, description, assigned_to, status, retries, result, error, created_at, updated_at
		FROM tasks WHERE run_id = ? ORDER BY order_index
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		var task domain.Task
		var assignedTo, status string
		var description, result, taskErr sql.NullString
		err := rows.Scan(&task.ID, &task.RunID, &task.OrderIndex, &task.Title,
			&description, &assignedTo, &status, &task.Retries, &result, &taskErr,
			&task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			return nil, err
		}
		task.Description = description.String
		task.AssignedTo = domain.AgentName(assignedTo)
		task.Status = domain.TaskStatus(status)
		task.Result = result.String
		task.Error = taskErr.String
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// --- chat/audit log ---

// AppendChat appends one entry to the audit trail.
// The log is append-only; concurrent writers are safe by construction.
func (s *Store) AppendChat(entry *domain.ChatEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_log (project_id, run_id, speaker, message)
		VALUES (?, ?, ?, ?)
	`, entry.ProjectID, entry.RunID, entry.Speaker, entry.Message)
	return err
}

// RecentChat returns the last limit entries for a project in chronological order
func (s *Store) RecentChat(projectID string, limit int) ([]*domain.ChatEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, project_id, run_id, speaker, message, created_at FROM (
			SELECT id, project_id, run_id, speaker, message, created_at
			FROM chat_log WHERE project_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.ChatEntry
	for rows.Next() {
		var e domain.ChatEntry
		var runID sql.NullString
		if err := rows.Scan(&e.ID, &e.ProjectID, &runID, &e.Speaker, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.RunID = runID.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// ChatSince returns entries with id greater than afterID, oldest first.
// Used by the websocket chat stream to tail the log.
func (s *Store) ChatSince(projectID string, afterID int64, limit int) ([]*domain.ChatEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, project_id, run_id, speaker, message, created_at
		FROM chat_log WHERE project_id = ? AND id > ? ORDER BY id ASC LIMIT ?
	`, projectID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.ChatEntry
	for rows.Next() {
		var e domain.ChatEntry
		var runID sql.NullString
		if err := rows.Scan(&e.ID, &e.ProjectID, &runID, &e.Speaker, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.RunID = runID.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// --- lore and world state ---

// UpsertLore inserts or replaces a lore fact
func (s *Store) UpsertLore(f *domain.LoreFact) error {
	_, err := s.db.Exec(`
		INSERT INTO lore (project_id, category, key, value) VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, category, key) DO UPDATE SET value = excluded.value
	`, f.ProjectID, f.Category, f.Key, f.Value)
	return err
}

// ListLore returns a project's lore facts ordered by category then key
func (s *Store) ListLore(projectID string) ([]*domain.LoreFact, error) {
	rows, err := s.db.Query(`
		SELECT project_id, category, key, value FROM lore
		WHERE project_id = ? ORDER BY category, key
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []*domain.LoreFact
	for rows.Next() {
		var f domain.LoreFact
		if err := rows.Scan(&f.ProjectID, &f.Category, &f.Key, &f.Value); err != nil {
			return nil, err
		}
		facts = append(facts, &f)
	}
	return facts, rows.Err()
}

// UpsertWorldState inserts or replaces a world-state snapshot entry
func (s *Store) UpsertWorldState(w *domain.WorldSnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO world_state (project_id, entity, attribute, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, entity, attribute) DO UPDATE SET
			value = excluded.value, updated_at = excluded.updated_at
	`, w.ProjectID, w.Entity, w.Attribute, w.Value, time.Now())
	return err
}

// ListWorldState returns a project's world-state snapshots ordered by entity
func (s *Store) ListWorldState(projectID string) ([]*domain.WorldSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT project_id, entity, attribute, value, updated_at FROM world_state
		WHERE project_id = ? ORDER BY entity, attribute
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*domain.WorldSnapshot
	for rows.Next() {
		var w domain.WorldSnapshot
		if err := rows.Scan(&w.ProjectID, &w.Entity, &w.Attribute, &w.Value, &w.UpdatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, &w)
	}
	return snaps, rows.Err()
}

// --- schedules ---

// Schedule is a standing cron-scheduled Boss prompt for a project.
type Schedule struct {
	ID        int64
	ProjectID string
	CronExpr  string
	Prompt    string
	Enabled   bool
}

// AddSchedule registers a standing prompt schedule
func (s *Store) AddSchedule(sched *Schedule) error {
	res, err := s.db.Exec(`
		INSERT INTO schedules (project_id, cron_expr, prompt, enabled) VALUES (?, ?, ?, ?)
	`, sched.ProjectID, sched.CronExpr, sched.Prompt, sched.Enabled)
	if err != nil {
		return err
	}
	sched.ID, _ = res.LastInsertId()
	return nil
}

// ListSchedules returns all enabled schedules
func (s *Store) ListSchedules() ([]*Schedule, error) {
	rows, err := s.db.Query(`SELECT id, project_id, cron_expr, prompt, enabled FROM schedules WHERE enabled`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scheds []*Schedule
	for rows.Next() {
		var sc Schedule
		if err := rows.Scan(&sc.ID, &sc.ProjectID, &sc.CronExpr, &sc.Prompt, &sc.Enabled); err != nil {
			return nil, err
		}
		scheds = append(scheds, &sc)
	}
	return scheds, rows.Err()
}
