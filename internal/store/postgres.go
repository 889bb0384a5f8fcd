package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"huddle/api/internal/content"
	"huddle/api/internal/shortid"
)

// DefaultShortIDScanLimit bounds how many recent tasks a short-id lookup
// considers.
const DefaultShortIDScanLimit = 500

type PostgresStore struct {
	db        *sql.DB
	scanLimit int
}

func NewPostgresStore(db *sql.DB, shortIDScanLimit int) *PostgresStore {
	if shortIDScanLimit <= 0 {
		shortIDScanLimit = DefaultShortIDScanLimit
	}
	return &PostgresStore{db: db, scanLimit: shortIDScanLimit}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) InsertUser(ctx context.Context, user User) (User, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, avatar_key)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, strings.ToLower(user.ID), user.Name, user.Email, user.AvatarKey).Scan(&user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	user.ID = strings.ToLower(user.ID)
	return user, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, avatar_key, created_at
		FROM users
		WHERE id=$1
	`, strings.ToLower(userID)).Scan(&user.ID, &user.Name, &user.Email, &user.AvatarKey, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) InsertTask(ctx context.Context, task Task) (Task, error) {
	task.ID = strings.ToLower(task.ID)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, title, description, search_text)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, task.ID, task.Title, task.Description, task.SearchText).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	var task Task
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, search_text, created_at, updated_at
		FROM tasks
		WHERE id=$1
	`, strings.ToLower(taskID)).Scan(&task.ID, &task.Title, &task.Description, &task.SearchText, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

func (s *PostgresStore) UpdateTaskDescription(ctx context.Context, taskID, description, searchText string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET description=$2, search_text=$3, updated_at=NOW()
		WHERE id=$1
	`, strings.ToLower(taskID), description, searchText)
	if err != nil {
		return fmt.Errorf("update task description: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) InsertReport(ctx context.Context, report Report) (Report, error) {
	report.ID = strings.ToLower(report.ID)
	report.AuthorID = strings.ToLower(report.AuthorID)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reports (id, author_id, content, search_text)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, report.ID, report.AuthorID, report.Content, report.SearchText).Scan(&report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return Report{}, fmt.Errorf("insert report: %w", err)
	}
	return report, nil
}

func (s *PostgresStore) GetReport(ctx context.Context, reportID string) (Report, error) {
	var report Report
	err := s.db.QueryRowContext(ctx, `
		SELECT id, author_id, content, search_text, created_at, updated_at
		FROM reports
		WHERE id=$1
	`, strings.ToLower(reportID)).Scan(&report.ID, &report.AuthorID, &report.Content, &report.SearchText, &report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return Report{}, err
	}
	return report, nil
}

// UpdateReport overwrites a report's content. Concurrent saves are not
// merged; the last write wins.
func (s *PostgresStore) UpdateReport(ctx context.Context, reportID, content, searchText string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reports
		SET content=$2, search_text=$3, updated_at=NOW()
		WHERE id=$1
	`, strings.ToLower(reportID), content, searchText)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TasksByIDs returns id and title for every listed task that exists.
func (s *PostgresStore) TasksByIDs(ctx context.Context, ids []string) ([]content.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title FROM tasks WHERE id = ANY($1)`, lowerAll(ids))
	if err != nil {
		return nil, fmt.Errorf("lookup tasks: %w", err)
	}
	defer rows.Close()

	out := make([]content.TaskRecord, 0, len(ids))
	for rows.Next() {
		var rec content.TaskRecord
		if err := rows.Scan(&rec.ID, &rec.Title); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

// UsersByIDs returns id, name and avatar object key for every listed user
// that exists. The avatar key is left in AvatarURL for a presigning
// directory to replace.
func (s *PostgresStore) UsersByIDs(ctx context.Context, ids []string) ([]content.UserRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, avatar_key FROM users WHERE id = ANY($1)`, lowerAll(ids))
	if err != nil {
		return nil, fmt.Errorf("lookup users: %w", err)
	}
	defer rows.Close()

	out := make([]content.UserRecord, 0, len(ids))
	for rows.Next() {
		var rec content.UserRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

// TasksByPrefix matches six-hex-digit id prefixes against the most recently
// created tasks. When several tasks share a prefix the newest wins.
func (s *PostgresStore) TasksByPrefix(ctx context.Context, prefixes []string) ([]content.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title
		FROM (
			SELECT id, title, created_at
			FROM tasks
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		WHERE left(replace(id, '-', ''), 6) = ANY($1)
		ORDER BY created_at DESC
	`, lowerAll(prefixes), s.scanLimit)
	if err != nil {
		return nil, fmt.Errorf("lookup tasks by prefix: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool, len(prefixes))
	out := make([]content.TaskRecord, 0, len(prefixes))
	for rows.Next() {
		var rec content.TaskRecord
		if err := rows.Scan(&rec.ID, &rec.Title); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		prefix := shortid.Prefix(rec.ID)
		if seen[prefix] {
			continue
		}
		seen[prefix] = true
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

// TaskByShortID resolves a decimal short id to the newest matching task.
func (s *PostgresStore) TaskByShortID(ctx context.Context, short string) (Task, error) {
	prefix := shortid.Decode(short)
	if prefix == "" {
		return Task{}, sql.ErrNoRows
	}
	recs, err := s.TasksByPrefix(ctx, []string{prefix})
	if err != nil {
		return Task{}, err
	}
	if len(recs) == 0 {
		return Task{}, sql.ErrNoRows
	}
	return s.GetTask(ctx, recs[0].ID)
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.ToLower(v)
	}
	return out
}
