package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-attempt-engine/internal/app"
	"quiz-attempt-engine/internal/authflow"
	"quiz-attempt-engine/internal/domain"
	"quiz-attempt-engine/internal/infra/memory"
	"quiz-attempt-engine/internal/session"
)

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Slug:  "capitals",
		Title: "Capitals",
		Type:  domain.TypeOpenEnded,
		Questions: []domain.Question{
			{ID: "q1", Prompt: "Capital of France?", Type: domain.TypeOpenEnded, ReferenceAnswer: "Paris"},
			{ID: "q2", Prompt: "Capital of Italy?", Type: domain.TypeOpenEnded, ReferenceAnswer: "Rome"},
		},
	}
}

type testHarness struct {
	engine *app.AttemptEngine
	sink   *countingSink
	kv     *memory.KVStore
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	kv := memory.NewKVStore()
	sink := &countingSink{ResultSink: memory.NewResultSink()}
	engine := app.NewAttemptEngine(
		memory.NewSessionStore(0),
		memory.NewQuizRepository(memory.NewStaticQuizSource(map[string]domain.Quiz{
			"capitals": sampleQuiz(),
		}), 5*time.Minute),
		sink,
		authflow.NewBridge(kv),
		authflow.NewRecovery(kv),
	)
	return &testHarness{engine: engine, sink: sink, kv: kv}
}

type countingSink struct {
	app.ResultSink
	mu    sync.Mutex
	saves int
	fail  error
}

func (s *countingSink) SaveResult(ctx context.Context, req domain.SubmissionRequest, result domain.Result) (domain.Result, error) {
	s.mu.Lock()
	s.saves++
	fail := s.fail
	s.mu.Unlock()
	if fail != nil {
		return domain.Result{}, fail
	}
	return s.ResultSink.SaveResult(ctx, req, result)
}

func (s *countingSink) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func completeAttempt(t *testing.T, h *testHarness) *domain.Result {
	t.Helper()
	ctx := context.Background()
	if _, err := h.engine.Load(ctx, "capitals"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, _, err := h.engine.Answer("capitals", "q1", "paris ", 5, 0); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	if _, _, err := h.engine.Advance("capitals"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, _, err := h.engine.Answer("capitals", "q2", "Rome", 4, 0); err != nil {
		t.Fatalf("answer q2: %v", err)
	}
	_, preview, err := h.engine.Advance("capitals")
	if err != nil {
		t.Fatalf("final advance: %v", err)
	}
	if preview == nil || preview.Score != 2 {
		t.Fatalf("expected full-score preview, got %+v", preview)
	}
	return preview
}

func TestAuthenticatedSubmitFlow(t *testing.T) {
	h := newTestHarness(t)
	completeAttempt(t, h)

	view, result, err := h.engine.Submit(context.Background(), "capitals", true, "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if view.Status != session.StatusSubmitted || !view.IsComplete {
		t.Fatalf("expected submitted view, got %+v", view)
	}
	if result == nil || result.Score != 2 || result.Percentage != 100 {
		t.Fatalf("unexpected result %+v", result)
	}
	if h.sink.saveCount() != 1 {
		t.Fatalf("expected one backend call, got %d", h.sink.saveCount())
	}
}

func TestUnauthenticatedSubmitRoundTrip(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	preview := completeAttempt(t, h)

	view, tempResult, err := h.engine.Submit(ctx, "capitals", false, "/quiz/capitals/results")
	if err != nil {
		t.Fatalf("unauthenticated submit: %v", err)
	}
	if view.Status != session.StatusAwaitingAuth || !view.PendingAuthRequired {
		t.Fatalf("expected awaitingAuth, got %+v", view)
	}
	if tempResult == nil || tempResult.Score != preview.Score {
		t.Fatalf("expected preview result back, got %+v", tempResult)
	}
	if h.sink.saveCount() != 0 {
		t.Fatalf("expected no backend call before auth, got %d", h.sink.saveCount())
	}

	// Simulated redirect return with the user now signed in.
	view, result, err := h.engine.ResumeAfterAuth(ctx, "capitals")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if view.Status != session.StatusSubmitted {
		t.Fatalf("expected submitted after resume, got %s", view.Status)
	}
	if result == nil || result.Score != preview.Score || result.Percentage != preview.Percentage {
		t.Fatalf("expected same score across redirect, got %+v vs %+v", result, preview)
	}
	if h.sink.saveCount() != 1 {
		t.Fatalf("expected exactly one backend call, got %d", h.sink.saveCount())
	}
}

func TestResumeSurvivesSessionLoss(t *testing.T) {
	// The snapshot has to be enough even when the in-memory session is gone,
	// e.g. the page reloaded during the redirect.
	h := newTestHarness(t)
	ctx := context.Background()
	preview := completeAttempt(t, h)

	if _, _, err := h.engine.Submit(ctx, "capitals", false, "/quiz/capitals/results"); err != nil {
		t.Fatalf("unauthenticated submit: %v", err)
	}

	// Rebuild the engine on the same KV storage: sessions are lost, the
	// persisted snapshot is not.
	fresh := app.NewAttemptEngine(
		memory.NewSessionStore(0),
		memory.NewQuizRepository(memory.NewStaticQuizSource(map[string]domain.Quiz{
			"capitals": sampleQuiz(),
		}), 5*time.Minute),
		h.sink,
		authflow.NewBridge(h.kv),
		authflow.NewRecovery(h.kv),
	)

	view, result, err := fresh.ResumeAfterAuth(ctx, "capitals")
	if err != nil {
		t.Fatalf("resume on fresh engine: %v", err)
	}
	if view.Status != session.StatusSubmitted || result == nil || result.Score != preview.Score {
		t.Fatalf("expected restored attempt submitted with same score, got %+v %+v", view, result)
	}
}

func TestResumeWithoutSnapshotFallsBack(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	view, result, err := h.engine.ResumeAfterAuth(ctx, "capitals")
	if err != nil {
		t.Fatalf("resume without snapshot: %v", err)
	}
	if result != nil {
		t.Fatalf("expected no result without snapshot, got %+v", result)
	}
	if view.Status != session.StatusReady {
		t.Fatalf("expected fresh ready attempt, got %s", view.Status)
	}
	if h.sink.saveCount() != 0 {
		t.Fatalf("expected no backend call, got %d", h.sink.saveCount())
	}
}

func TestSubmitAtMostOnce(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	completeAttempt(t, h)

	_, first, err := h.engine.Submit(ctx, "capitals", true, "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, second, err := h.engine.Submit(ctx, "capitals", true, "")
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if h.sink.saveCount() != 1 {
		t.Fatalf("expected exactly one backend call, got %d", h.sink.saveCount())
	}
	if first == nil || second == nil || first.Score != second.Score || first.CompletedAt != second.CompletedAt {
		t.Fatalf("expected both callers to observe the same result, got %+v and %+v", first, second)
	}
}

func TestSubmissionFailureRetainsResultAndRetries(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	preview := completeAttempt(t, h)

	h.sink.fail = errors.New("backend unreachable")
	view, retained, err := h.engine.Submit(ctx, "capitals", true, "")
	if err == nil {
		t.Fatalf("expected submission failure")
	}
	if view.Status != session.StatusError || view.ErrorMessage == "" {
		t.Fatalf("expected error status with message, got %+v", view)
	}
	if retained == nil || retained.Score != preview.Score {
		t.Fatalf("expected computed result retained, got %+v", retained)
	}

	h.sink.fail = nil
	view, result, err := h.engine.Submit(ctx, "capitals", true, "")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if view.Status != session.StatusSubmitted || result == nil || result.Score != preview.Score {
		t.Fatalf("expected retry to submit retained result, got %+v %+v", view, result)
	}
}

func TestLoadFailureThenRetry(t *testing.T) {
	kv := memory.NewKVStore()
	quizzes := &flakySource{err: errors.New("source down")}
	engine := app.NewAttemptEngine(
		memory.NewSessionStore(0),
		quizzes,
		memory.NewResultSink(),
		authflow.NewBridge(kv),
		authflow.NewRecovery(kv),
	)
	ctx := context.Background()

	view, err := engine.Load(ctx, "capitals")
	if err == nil {
		t.Fatalf("expected load failure")
	}
	if view.Status != session.StatusError || !view.HasError {
		t.Fatalf("expected error view, got %+v", view)
	}

	quizzes.err = nil
	view, err = engine.Load(ctx, "capitals")
	if err != nil {
		t.Fatalf("retry load: %v", err)
	}
	if view.Status != session.StatusReady {
		t.Fatalf("expected ready after retry, got %s", view.Status)
	}
}

type flakySource struct {
	err error
}

func (s *flakySource) GetQuiz(_ context.Context, slug string) (domain.Quiz, error) {
	if s.err != nil {
		return domain.Quiz{}, s.err
	}
	return sampleQuiz(), nil
}

func TestLoadReusesLiveAttempt(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	if _, err := h.engine.Load(ctx, "capitals"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, _, err := h.engine.Answer("capitals", "q1", "paris", 5, 0); err != nil {
		t.Fatalf("answer: %v", err)
	}

	// A second load for the same slug must not wipe the in-progress attempt.
	view, err := h.engine.Load(ctx, "capitals")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if view.AnsweredCount != 1 || view.Status != session.StatusAnswering {
		t.Fatalf("expected live attempt preserved, got %+v", view)
	}
}

func TestResetClearsHandleAndSnapshot(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	completeAttempt(t, h)

	if _, _, err := h.engine.Submit(ctx, "capitals", false, "/back"); err != nil {
		t.Fatalf("unauthenticated submit: %v", err)
	}

	h.engine.Reset(ctx, "capitals")

	view, err := h.engine.View("capitals")
	if err != nil || view.Status != session.StatusIdle {
		t.Fatalf("expected idle view after reset, got %+v %v", view, err)
	}
	if _, ok, _ := h.engine.RecoveredSessionID(ctx, "capitals"); ok {
		t.Fatalf("expected recovery handle cleared")
	}
	if _, result, err := h.engine.ResumeAfterAuth(ctx, "capitals"); err != nil || result != nil {
		t.Fatalf("expected no snapshot to consume after reset, got %+v %v", result, err)
	}
}

func TestResultForSlugFallsBackToBackend(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	completeAttempt(t, h)
	if _, _, err := h.engine.Submit(ctx, "capitals", true, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// With the live session gone, the persisted result is served instead.
	h.engine.Reset(ctx, "capitals")
	result, err := h.engine.ResultForSlug(ctx, "capitals")
	if err != nil {
		t.Fatalf("result for slug: %v", err)
	}
	if result.Score != 2 || result.QuizSlug != "capitals" {
		t.Fatalf("unexpected persisted result %+v", result)
	}

	if _, err := h.engine.ResultForSlug(ctx, "never-taken"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecoveryHandlePersistedOnLoad(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	view, err := h.engine.Load(ctx, "capitals")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	id, ok, err := h.engine.RecoveredSessionID(ctx, "capitals")
	if err != nil || !ok || id != view.SessionID {
		t.Fatalf("expected recovery handle %q, got %q ok=%v err=%v", view.SessionID, id, ok, err)
	}
}
