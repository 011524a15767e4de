// Package store is a sqlite-backed roster source and result sink for
// the watcher. Found-set writes land in the same database the next
// cycle reads, so the engine never has to cache them in memory.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"gradewatch-backend/lib/timezone"
	"gradewatch-backend/services/watcher"

	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

func (s Store) Roster(ctx context.Context) ([]watcher.StudentEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, gradebook_url, legacy_url, days_out, grade, student_id
		FROM students ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roster []watcher.StudentEntry
	for rows.Next() {
		var entry watcher.StudentEntry
		var grade sql.NullFloat64
		err := rows.Scan(
			&entry.Name,
			&entry.GradebookUrl,
			&entry.LegacyUrl,
			&entry.DaysOut,
			&grade,
			&entry.StudentId,
		)
		if err != nil {
			return nil, err
		}
		if grade.Valid {
			entry.Grade = &grade.Float64
		}
		roster = append(roster, entry)
	}
	return roster, rows.Err()
}

func (s Store) AddStudent(ctx context.Context, entry watcher.StudentEntry) error {
	var grade sql.NullFloat64
	if entry.Grade != nil {
		grade = sql.NullFloat64{Float64: *entry.Grade, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO students (name, gradebook_url, legacy_url, days_out, grade, student_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Name, entry.GradebookUrl, entry.LegacyUrl, entry.DaysOut, grade, entry.StudentId)
	return err
}

func (s Store) FoundKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM found`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := map[string]struct{}{}
	for rows.Next() {
		var key string
		err := rows.Scan(&key)
		if err != nil {
			return nil, err
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}

// DeleteFound removes a student from the found set, making them
// eligible again on the next cycle.
func (s Store) DeleteFound(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM found WHERE key = ?`, key)
	return err
}

func (s Store) SubmissionFound(ctx context.Context, event watcher.FoundEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO found (key, student, assignment, submitted_at, gradebook_url, found_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		event.Key,
		event.Student,
		event.Assignment,
		event.SubmittedAt.Unix(),
		event.GradebookUrl,
		timezone.Now().Unix(),
	)
	return err
}

func (s Store) MissingCheckComplete(ctx context.Context, report watcher.MissingReport) error {
	encoded, err := json.Marshal(report.Students)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO missing_reports (created_at, student_count, elapsed_ms, report_json)
		VALUES (?, ?, ?, ?)
	`,
		timezone.Now().Unix(),
		report.StudentCount,
		report.Elapsed.Milliseconds(),
		string(encoded),
	)
	return err
}

func (s Store) RosterSkipped(ctx context.Context, skipped []watcher.SkippedStudent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := timezone.Now().Unix()
	for _, student := range skipped {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO skipped_students (noted_at, name, raw_reference)
			VALUES (?, ?, ?)
		`, now, student.Name, student.Raw)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LatestMissingReport returns the most recent missing-mode report, or
// sql.ErrNoRows when none has been recorded.
func (s Store) LatestMissingReport(ctx context.Context) (watcher.MissingReport, error) {
	var report watcher.MissingReport
	var elapsedMs int64
	var encoded string

	row := s.db.QueryRowContext(ctx, `
		SELECT student_count, elapsed_ms, report_json
		FROM missing_reports ORDER BY id DESC LIMIT 1
	`)
	err := row.Scan(&report.StudentCount, &elapsedMs, &encoded)
	if err != nil {
		return report, err
	}

	report.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	err = json.Unmarshal([]byte(encoded), &report.Students)
	return report, err
}
