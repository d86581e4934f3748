package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pavelanni/maaspractice/internal/model"

	_ "modernc.org/sqlite"
)

// Store archives finished practice attempts in SQLite.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		case_id TEXT NOT NULL,
		scenario_id TEXT NOT NULL,
		patient_name TEXT NOT NULL DEFAULT '',
		scenario_title TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL,
		critique TEXT NOT NULL DEFAULT '',
		improvement_note TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS attempt_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		UNIQUE (attempt_id, seq),
		FOREIGN KEY (attempt_id) REFERENCES attempts(id)
	);

	CREATE TABLE IF NOT EXISTS archive_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordAttempt stores a finished attempt and its transcript.
func (s *Store) RecordAttempt(ctx context.Context, a model.Attempt) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO attempts (session_id, case_id, scenario_id, patient_name, scenario_title, started_at, ended_at, critique, improvement_note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SessionID, a.CaseID, a.ScenarioID, a.PatientName, a.ScenarioTitle,
		a.StartedAt.UTC(), a.EndedAt.UTC(), a.Critique, a.ImprovementNote,
	)
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, t := range a.Turns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attempt_turns (attempt_id, seq, role, text) VALUES (?, ?, ?, ?)`,
			id, i, t.Role, t.Text,
		); err != nil {
			return 0, fmt.Errorf("insert turn %d: %w", i, err)
		}
	}

	return id, tx.Commit()
}

// GetAttempt returns an attempt with its transcript.
func (s *Store) GetAttempt(ctx context.Context, id int64) (model.Attempt, error) {
	var a model.Attempt
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, case_id, scenario_id, patient_name, scenario_title, started_at, ended_at, critique, improvement_note
		 FROM attempts WHERE id = ?`, id,
	).Scan(&a.ID, &a.SessionID, &a.CaseID, &a.ScenarioID, &a.PatientName, &a.ScenarioTitle,
		&a.StartedAt, &a.EndedAt, &a.Critique, &a.ImprovementNote)
	if err != nil {
		return a, err
	}

	turns, err := s.turnsByAttempt(ctx, `WHERE attempt_id = ?`, id)
	if err != nil {
		return a, err
	}
	a.Turns = turns[id]
	return a, nil
}

// ListAttempts returns all attempts, oldest first. Filters on case and
// scenario apply when non-empty.
func (s *Store) ListAttempts(ctx context.Context, caseID, scenarioID model.ID) ([]model.Attempt, error) {
	filter, args := attemptFilter(caseID, scenarioID)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, case_id, scenario_id, patient_name, scenario_title, started_at, ended_at, critique, improvement_note
		FROM attempts WHERE 1=1`+filter+` ORDER BY id`, args...,
	)
	if err != nil {
		return nil, err
	}
	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.SessionID, &a.CaseID, &a.ScenarioID, &a.PatientName, &a.ScenarioTitle,
			&a.StartedAt, &a.EndedAt, &a.Critique, &a.ImprovementNote); err != nil {
			rows.Close()
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return attempts, nil
	}

	where := ``
	if filter != "" {
		where = `WHERE attempt_id IN (SELECT id FROM attempts WHERE 1=1` + filter + `)`
	}
	turns, err := s.turnsByAttempt(ctx, where, args...)
	if err != nil {
		return nil, err
	}
	for i := range attempts {
		attempts[i].Turns = turns[attempts[i].ID]
	}
	return attempts, nil
}

// attemptFilter returns the conditions on the attempts table that select
// caseID and scenarioID, each skipped when empty.
func attemptFilter(caseID, scenarioID model.ID) (string, []any) {
	var filter string
	var args []any
	if caseID != "" {
		filter += ` AND case_id = ?`
		args = append(args, caseID)
	}
	if scenarioID != "" {
		filter += ` AND scenario_id = ?`
		args = append(args, scenarioID)
	}
	return filter, args
}

// AttemptCount returns the number of archived attempts.
func (s *Store) AttemptCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts`).Scan(&count)
	return count, err
}

func (s *Store) turnsByAttempt(ctx context.Context, where string, args ...any) (map[int64][]model.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attempt_id, role, text FROM attempt_turns `+where+` ORDER BY attempt_id, seq`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]model.Turn)
	for rows.Next() {
		var id int64
		var t model.Turn
		if err := rows.Scan(&id, &t.Role, &t.Text); err != nil {
			return nil, err
		}
		out[id] = append(out[id], t)
	}
	return out, rows.Err()
}
