package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"quiz-attempt-engine/internal/domain"
)

func newTestStore(t *testing.T) *ResultStore {
	t.Helper()
	store, err := NewResultStore(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResult() (domain.SubmissionRequest, domain.Result) {
	sim := 1.0
	req := domain.SubmissionRequest{
		Slug:             "capitals",
		QuizID:           "quiz-1",
		QuizType:         domain.TypeOpenEnded,
		TimeTakenSeconds: 42,
	}
	result := domain.Result{
		QuizSlug:   "capitals",
		Title:      "Capitals",
		Score:      1,
		MaxScore:   2,
		Percentage: 50,
		PerQuestion: []domain.QuestionResult{
			{QuestionID: "q1", UserAnswer: "paris", CorrectAnswer: "Paris", IsCorrect: true, Similarity: &sim},
			{QuestionID: "q2", UserAnswer: "", CorrectAnswer: "Rome"},
		},
		CompletedAt: "2025-06-01T12:00:00Z",
	}
	return req, result
}

func TestSaveAndFetchResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	req, result := sampleResult()

	saved, err := store.SaveResult(ctx, req, result)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Score != result.Score {
		t.Fatalf("expected canonical result back, got %+v", saved)
	}

	fetched, err := store.ResultBySlug(ctx, "capitals")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if fetched.Score != 1 || fetched.Percentage != 50 || len(fetched.PerQuestion) != 2 {
		t.Fatalf("unexpected fetched result %+v", fetched)
	}
	if fetched.PerQuestion[0].Similarity == nil || *fetched.PerQuestion[0].Similarity != 1 {
		t.Fatalf("expected similarity to survive persistence, got %+v", fetched.PerQuestion[0])
	}
	if fetched.CompletedAt != result.CompletedAt {
		t.Fatalf("expected timestamp preserved, got %q", fetched.CompletedAt)
	}
}

func TestRetakeReplacesResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	req, result := sampleResult()

	if _, err := store.SaveResult(ctx, req, result); err != nil {
		t.Fatalf("save: %v", err)
	}

	retake := result
	retake.Score = 2
	retake.Percentage = 100
	if _, err := store.SaveResult(ctx, req, retake); err != nil {
		t.Fatalf("save retake: %v", err)
	}

	fetched, err := store.ResultBySlug(ctx, "capitals")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if fetched.Score != 2 || fetched.Percentage != 100 {
		t.Fatalf("expected retake to replace previous result, got %+v", fetched)
	}
}

func TestResultNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.ResultBySlug(context.Background(), "never-taken"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
