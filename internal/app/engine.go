// Package app wires the attempt state machine to its external collaborators:
// the quiz source, the submission backend, the auth redirect bridge and the
// reload recovery store.
package app

import (
	"context"
	"errors"
	"log"

	"quiz-attempt-engine/internal/authflow"
	"quiz-attempt-engine/internal/domain"
	"quiz-attempt-engine/internal/session"
)

// SessionRepository abstracts how live attempts are held (one per slug).
type SessionRepository interface {
	GetOrCreate(slug string) *session.Session
	Get(slug string) (*session.Session, bool)
	Delete(slug string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, slug string) (domain.Quiz, error)
}

// ResultSink is the submission backend: it accepts the attempt payload and
// returns the canonical Result, and serves previously persisted Results.
type ResultSink interface {
	SaveResult(ctx context.Context, req domain.SubmissionRequest, result domain.Result) (domain.Result, error)
	ResultBySlug(ctx context.Context, slug string) (domain.Result, error)
}

// EventPublisher emits domain events after state changes worth broadcasting.
type EventPublisher interface {
	Publish(eventType string, payload any) error
}

// AttemptEngine contains the quiz attempt use cases.
type AttemptEngine struct {
	sessions SessionRepository
	quizzes  QuizRepository
	sink     ResultSink
	bridge   *authflow.Bridge
	recovery *authflow.Recovery
	events   EventPublisher
}

func NewAttemptEngine(sessions SessionRepository, quizzes QuizRepository, sink ResultSink, bridge *authflow.Bridge, recovery *authflow.Recovery) *AttemptEngine {
	return &AttemptEngine{
		sessions: sessions,
		quizzes:  quizzes,
		sink:     sink,
		bridge:   bridge,
		recovery: recovery,
	}
}

// UseEvents attaches an optional event publisher. Publishing is best-effort;
// failures are logged and never affect the attempt.
func (e *AttemptEngine) UseEvents(pub EventPublisher) {
	e.events = pub
}

// Load starts (or reuses) the attempt for slug. A live attempt for the same
// slug is returned as-is: two attempts are never merged. A source failure
// lands the session in error with a retryable message.
func (e *AttemptEngine) Load(ctx context.Context, slug string) (session.View, error) {
	sess := e.sessions.GetOrCreate(slug)

	gen, err := sess.BeginLoad(slug)
	if errors.Is(err, domain.ErrInvalidTransition) {
		return sess.View(), nil
	}

	quiz, err := e.quizzes.GetQuiz(ctx, slug)
	if err != nil {
		sess.FailLoad(gen, "failed to load quiz: "+err.Error())
		return sess.View(), err
	}
	if quiz.Slug == "" {
		quiz.Slug = slug
	}
	if err := sess.FinishLoad(gen, quiz); err != nil {
		// Reset raced the fetch; the stale response is discarded.
		return sess.View(), nil
	}

	if err := e.recovery.PersistHandle(ctx, slug, sess.ID()); err != nil {
		log.Printf("persist session handle for %s: %v", slug, err)
	}
	return sess.View(), nil
}

// Answer grades and records one response on the live attempt. An unknown
// question id is logged and skipped without touching the session status.
func (e *AttemptEngine) Answer(slug string, questionID domain.ID, raw string, timeSpentSeconds, hintsUsed int) (domain.Answer, session.View, error) {
	sess, ok := e.sessions.Get(slug)
	if !ok {
		return domain.Answer{}, session.View{}, domain.ErrSessionNotFound
	}
	answer, err := sess.Answer(questionID, raw, timeSpentSeconds, hintsUsed)
	if errors.Is(err, domain.ErrUnknownQuestion) {
		log.Printf("skipping answer for unknown question %s in %s", questionID, slug)
	}
	return answer, sess.View(), err
}

// Advance moves to the next question; past the last question it returns the
// preview Result.
func (e *AttemptEngine) Advance(slug string) (session.View, *domain.Result, error) {
	sess, ok := e.sessions.Get(slug)
	if !ok {
		return session.View{}, nil, domain.ErrSessionNotFound
	}
	preview, err := sess.Advance()
	return sess.View(), preview, err
}

// Submit finalizes the attempt. Unauthenticated callers are parked in
// awaitingAuth with a redirect snapshot persisted; authenticated callers get
// the canonical Result from the submission backend. Submission is
// at-most-once: concurrent or repeated calls observe the single outcome.
func (e *AttemptEngine) Submit(ctx context.Context, slug string, authenticated bool, returnPath string) (session.View, *domain.Result, error) {
	sess, ok := e.sessions.Get(slug)
	if !ok {
		return session.View{}, nil, domain.ErrSessionNotFound
	}

	if !authenticated {
		if sess.Status() == session.StatusCompleting {
			if err := sess.RequireAuth(); err != nil {
				return sess.View(), nil, err
			}
		}
		snap, err := sess.SnapshotForRedirect(returnPath)
		if err != nil {
			return sess.View(), nil, err
		}
		if err := e.bridge.SaveForRedirect(ctx, snap); err != nil {
			return sess.View(), nil, err
		}
		return sess.View(), sess.PreviewResult(), nil
	}

	gen, started, err := sess.BeginSubmit()
	if err != nil {
		return sess.View(), nil, err
	}
	if !started {
		return sess.View(), sess.FinalResult(), nil
	}

	req := sess.SubmissionRequest()
	preview := sess.PreviewResult()
	result, err := e.sink.SaveResult(ctx, req, *preview)
	if err != nil {
		sess.FailSubmit(gen, "submission failed: "+err.Error())
		return sess.View(), sess.PreviewResult(), err
	}

	if sess.FinishSubmit(gen, result) {
		if err := e.recovery.Clear(ctx, slug); err != nil {
			log.Printf("clear recovery handle for %s: %v", slug, err)
		}
		if err := e.bridge.Clear(ctx, slug); err != nil {
			log.Printf("clear auth snapshot for %s: %v", slug, err)
		}
		if e.events != nil {
			if err := e.events.Publish("result.submitted", result); err != nil {
				log.Printf("publish result.submitted for %s: %v", slug, err)
			}
		}
	}
	return sess.View(), sess.FinalResult(), nil
}

// ResumeAfterAuth handles the return leg of the sign-in redirect: reload the
// quiz if needed, consume the snapshot, reapply it and submit. A missing or
// unusable snapshot falls back to the attempt as-is, never an error the user
// sees.
func (e *AttemptEngine) ResumeAfterAuth(ctx context.Context, slug string) (session.View, *domain.Result, error) {
	sess := e.sessions.GetOrCreate(slug)
	if status := sess.Status(); status == session.StatusIdle || status == session.StatusError {
		if _, err := e.Load(ctx, slug); err != nil {
			return sess.View(), nil, err
		}
	}

	snap, err := e.bridge.RestoreAfterRedirect(ctx, slug)
	if err != nil {
		return sess.View(), nil, err
	}
	if snap == nil {
		return sess.View(), nil, nil
	}

	skipped, err := sess.ApplySnapshot(*snap)
	if err != nil {
		log.Printf("snapshot for %s not applied: %v", slug, err)
		return sess.View(), nil, nil
	}
	if skipped > 0 {
		log.Printf("skipped %d snapshot answers unknown to quiz %s", skipped, slug)
	}
	return e.Submit(ctx, slug, true, snap.ReturnPath)
}

// Reset clears the attempt for a retake and drops both persistence
// namespaces for the slug. Resetting an unknown slug is a no-op.
func (e *AttemptEngine) Reset(ctx context.Context, slug string) {
	if sess, ok := e.sessions.Get(slug); ok {
		sess.Reset()
	}
	if err := e.recovery.Clear(ctx, slug); err != nil {
		log.Printf("clear recovery handle for %s: %v", slug, err)
	}
	if err := e.bridge.Clear(ctx, slug); err != nil {
		log.Printf("clear auth snapshot for %s: %v", slug, err)
	}
}

// View returns the current projection of the attempt for slug.
func (e *AttemptEngine) View(slug string) (session.View, error) {
	sess, ok := e.sessions.Get(slug)
	if !ok {
		return session.View{}, domain.ErrSessionNotFound
	}
	return sess.View(), nil
}

// ResultForSlug reconciles whichever Result shape is available: the live
// attempt's canonical Result first, then the submission backend's persisted
// copy.
func (e *AttemptEngine) ResultForSlug(ctx context.Context, slug string) (domain.Result, error) {
	if sess, ok := e.sessions.Get(slug); ok {
		if final := sess.FinalResult(); final != nil {
			return *final, nil
		}
	}
	return e.sink.ResultBySlug(ctx, slug)
}

// RecoveredSessionID reports the persisted reload-recovery handle for slug.
func (e *AttemptEngine) RecoveredSessionID(ctx context.Context, slug string) (string, bool, error) {
	return e.recovery.LoadHandle(ctx, slug)
}
