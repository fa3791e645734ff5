// Package sqlite persists canonical attempt results so they survive process
// and page reloads.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"quiz-attempt-engine/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

// ResultStore is a sqlite-backed submission backend. The latest result per
// slug wins: a retake's submission replaces the previous attempt's row.
type ResultStore struct {
	db *sql.DB
}

func NewResultStore(path string) (*ResultStore, error) {
	if strings.TrimSpace(path) == "" {
		path = "quiz-results.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &ResultStore{db: db}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *ResultStore) Close() error {
	return s.db.Close()
}

func (s *ResultStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS results (
			slug               TEXT PRIMARY KEY,
			quiz_id            TEXT NOT NULL,
			quiz_type          TEXT NOT NULL,
			score              INTEGER NOT NULL,
			max_score          INTEGER NOT NULL,
			percentage         INTEGER NOT NULL,
			time_taken_seconds INTEGER NOT NULL,
			completed_at       TEXT NOT NULL,
			data               TEXT NOT NULL
		)`)
	return err
}

// SaveResult accepts the computed result as canonical and persists it.
func (s *ResultStore) SaveResult(ctx context.Context, req domain.SubmissionRequest, result domain.Result) (domain.Result, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return domain.Result{}, fmt.Errorf("marshal result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (slug, quiz_id, quiz_type, score, max_score, percentage, time_taken_seconds, completed_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			quiz_id            = excluded.quiz_id,
			quiz_type          = excluded.quiz_type,
			score              = excluded.score,
			max_score          = excluded.max_score,
			percentage         = excluded.percentage,
			time_taken_seconds = excluded.time_taken_seconds,
			completed_at       = excluded.completed_at,
			data               = excluded.data`,
		req.Slug, req.QuizID, string(req.QuizType),
		result.Score, result.MaxScore, result.Percentage,
		req.TimeTakenSeconds, result.CompletedAt, string(data),
	)
	if err != nil {
		return domain.Result{}, fmt.Errorf("save result: %w", err)
	}
	return result, nil
}

func (s *ResultStore) ResultBySlug(ctx context.Context, slug string) (domain.Result, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM results WHERE slug = ?`, slug).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("load result: %w", err)
	}

	var result domain.Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return domain.Result{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return result, nil
}
