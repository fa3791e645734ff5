package session

import (
	"sync"
	"time"

	"quiz-attempt-engine/internal/domain"
	"quiz-attempt-engine/internal/scoring"
	"quiz-attempt-engine/internal/similarity"
)

// Status is the discrete state of one quiz attempt.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusLoading      Status = "loading"
	StatusReady        Status = "ready"
	StatusAnswering    Status = "answering"
	StatusCompleting   Status = "completingPreview"
	StatusAwaitingAuth Status = "awaitingAuth"
	StatusSubmitting   Status = "submitting"
	StatusSubmitted    Status = "submitted"
	StatusError        Status = "error"
)

// Session is the state machine for a single quiz attempt. All mutation goes
// through its operations; each runs to completion under the lock before the
// next is accepted. Async collaborators (quiz fetch, submission) bracket
// their work with Begin*/Finish* pairs and carry the generation number so a
// response arriving after Reset can never resurrect the old attempt.
type Session struct {
	mu         sync.Mutex
	id         string
	generation uint64

	slug         string
	title        string
	quizID       string
	quizType     domain.QuizType
	questions    []domain.Question
	answers      *AnswerStore
	currentIndex int
	status       Status
	pendingAuth  bool
	preview      *domain.Result
	final        *domain.Result
	errMsg       string

	threshold float64
	now       func() time.Time
}

func New(id string) *Session {
	return NewWithOptions(id, similarity.DefaultThreshold, time.Now)
}

// NewWithOptions lets callers set the open-ended grading threshold and, for
// tests, a deterministic clock.
func NewWithOptions(id string, threshold float64, now func() time.Time) *Session {
	if threshold <= 0 {
		threshold = similarity.DefaultThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:        id,
		status:    StatusIdle,
		answers:   NewAnswerStore(),
		threshold: threshold,
		now:       now,
	}
}

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// BeginLoad marks the session loading for slug and returns the generation to
// pass back to FinishLoad. Valid from idle or error only; a live attempt for
// the same slug must be reused or explicitly reset, never reloaded over.
func (s *Session) BeginLoad(slug string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusIdle && s.status != StatusError {
		return 0, domain.ErrInvalidTransition
	}
	s.slug = slug
	s.status = StatusLoading
	s.errMsg = ""
	return s.generation, nil
}

// FinishLoad installs the fetched quiz. A stale generation (the session was
// reset while the fetch was in flight) is discarded. An empty question list
// still reaches ready; empty-quiz handling is a presentation concern.
func (s *Session) FinishLoad(gen uint64, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.status != StatusLoading {
		return domain.ErrInvalidTransition
	}
	s.slug = quiz.Slug
	s.title = quiz.Title
	s.quizID = quiz.ID
	s.quizType = quiz.Type
	s.questions = quiz.Questions
	s.answers.Clear()
	s.currentIndex = 0
	s.preview = nil
	s.final = nil
	s.pendingAuth = false
	s.status = StatusReady
	return nil
}

// FailLoad records a load failure. Stale generations are discarded.
func (s *Session) FailLoad(gen uint64, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.status != StatusLoading {
		return
	}
	s.status = StatusError
	s.errMsg = msg
}

// Load is the synchronous load path for callers that already hold the quiz.
func (s *Session) Load(quiz domain.Quiz) error {
	gen, err := s.BeginLoad(quiz.Slug)
	if err != nil {
		return err
	}
	return s.FinishLoad(gen, quiz)
}

// Answer grades and records a response. Re-answering any question overwrites
// the previous answer. An unknown question id is reported and skipped; it
// does not change the session status.
func (s *Session) Answer(questionID domain.ID, raw string, timeSpentSeconds, hintsUsed int) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady && s.status != StatusAnswering {
		return domain.Answer{}, domain.ErrInvalidTransition
	}

	question, ok := s.questionByID(questionID)
	if !ok {
		return domain.Answer{}, domain.ErrUnknownQuestion
	}

	res := scoring.Resolve(question, raw, s.threshold)
	answer := domain.Answer{
		QuestionID:       question.ID,
		Type:             question.Type,
		RawValue:         res.Normalized,
		IsCorrect:        res.IsCorrect,
		Similarity:       res.Similarity,
		HintsUsed:        hintsUsed,
		TimeSpentSeconds: timeSpentSeconds,
		AnsweredAtMs:     s.now().UnixMilli(),
	}
	s.answers.Put(answer)
	s.status = StatusAnswering
	return answer, nil
}

// Advance moves to the next question, or past the last question into
// completingPreview, building the preview Result. The returned Result is nil
// until the attempt completes.
func (s *Session) Advance() (*domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady && s.status != StatusAnswering {
		return nil, domain.ErrInvalidTransition
	}

	if s.currentIndex < len(s.questions)-1 {
		s.currentIndex++
		s.status = StatusAnswering
		return nil, nil
	}

	s.currentIndex = len(s.questions)
	s.status = StatusCompleting
	s.preview = s.aggregateLocked()
	out := *s.preview
	return &out, nil
}

// RequireAuth parks a completed preview behind authentication. The caller is
// expected to persist a redirect snapshot next.
func (s *Session) RequireAuth() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusCompleting {
		return domain.ErrInvalidTransition
	}
	s.status = StatusAwaitingAuth
	s.pendingAuth = true
	return nil
}

// SnapshotForRedirect captures everything needed to resume after the sign-in
// round trip.
func (s *Session) SnapshotForRedirect(returnPath string) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusCompleting && s.status != StatusAwaitingAuth {
		return domain.Snapshot{}, domain.ErrInvalidTransition
	}
	var temp *domain.Result
	if s.preview != nil {
		cp := *s.preview
		temp = &cp
	}
	return domain.Snapshot{
		QuizSlug:     s.slug,
		QuizType:     s.quizType,
		Answers:      s.answers.All(s.questions),
		CurrentIndex: s.currentIndex,
		TempResult:   temp,
		ReturnPath:   returnPath,
	}, nil
}

// ApplySnapshot repopulates the attempt from a restored snapshot and parks it
// in awaitingAuth ready for submission. Answers for unknown question ids are
// skipped rather than failing the whole restore; the skip count is returned
// for logging. The quiz must already be loaded.
func (s *Session) ApplySnapshot(snap domain.Snapshot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case StatusReady, StatusAnswering, StatusCompleting, StatusAwaitingAuth:
	default:
		return 0, domain.ErrInvalidTransition
	}
	if snap.QuizSlug != s.slug {
		return 0, domain.ErrSnapshotMismatch
	}

	s.answers.Clear()
	skipped := 0
	for _, a := range snap.Answers {
		if _, ok := s.questionByID(a.QuestionID); !ok {
			skipped++
			continue
		}
		s.answers.Put(a)
	}

	s.currentIndex = snap.CurrentIndex
	if s.currentIndex < 0 {
		s.currentIndex = 0
	}
	if s.currentIndex > len(s.questions) {
		s.currentIndex = len(s.questions)
	}
	if snap.TempResult != nil {
		cp := *snap.TempResult
		s.preview = &cp
	}
	s.status = StatusAwaitingAuth
	s.pendingAuth = true
	return skipped, nil
}

// BeginSubmit moves the attempt into submitting and returns the generation
// for the matching FinishSubmit/FailSubmit. Submission is at-most-once per
// attempt: when already submitting or submitted, started is false and the
// caller should surface the existing outcome instead of re-sending. A failed
// submission (status error with a retained preview) may retry without
// recomputing scores.
func (s *Session) BeginSubmit() (gen uint64, started bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusSubmitting, StatusSubmitted:
		return 0, false, nil
	case StatusCompleting, StatusAwaitingAuth:
	case StatusError:
		if s.preview == nil {
			return 0, false, domain.ErrInvalidTransition
		}
	default:
		return 0, false, domain.ErrInvalidTransition
	}

	if s.preview == nil {
		// Restored without a temp result; compute it now.
		s.preview = s.aggregateLocked()
	}
	s.status = StatusSubmitting
	s.errMsg = ""
	return s.generation, true, nil
}

// FinishSubmit installs the canonical Result. Stale generations and
// out-of-order callbacks are discarded; it reports whether the result was
// accepted.
func (s *Session) FinishSubmit(gen uint64, result domain.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.status != StatusSubmitting {
		return false
	}
	s.final = &result
	s.status = StatusSubmitted
	s.pendingAuth = false
	return true
}

// FailSubmit records a submission failure, retaining the computed preview so
// a retry can resubmit without re-scoring.
func (s *Session) FailSubmit(gen uint64, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.status != StatusSubmitting {
		return false
	}
	s.status = StatusError
	s.errMsg = msg
	return true
}

// SubmissionRequest builds the backend payload from the current attempt.
func (s *Session) SubmissionRequest() domain.SubmissionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers := s.answers.All(s.questions)
	total := 0
	for _, a := range answers {
		total += a.TimeSpentSeconds
	}
	return domain.SubmissionRequest{
		Slug:             s.slug,
		QuizID:           s.quizID,
		QuizType:         s.quizType,
		Answers:          answers,
		TimeTakenSeconds: total,
	}
}

// Reset returns the session to idle for a retake. The generation bump marks
// any in-flight load or submission as discardable.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.slug = ""
	s.title = ""
	s.quizID = ""
	s.quizType = ""
	s.questions = nil
	s.answers.Clear()
	s.currentIndex = 0
	s.preview = nil
	s.final = nil
	s.pendingAuth = false
	s.errMsg = ""
	s.status = StatusIdle
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Slug() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slug
}

// PreviewResult returns the pre-submission Result, or nil before completion.
func (s *Session) PreviewResult() *domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preview == nil {
		return nil
	}
	cp := *s.preview
	return &cp
}

// FinalResult returns the canonical Result after submission, or nil.
func (s *Session) FinalResult() *domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.final == nil {
		return nil
	}
	cp := *s.final
	return &cp
}

// View is the UI-facing projection of the session, derived on demand so no
// cached copy can drift from the machine state.
type View struct {
	SessionID           string           `json:"sessionId"`
	QuizSlug            string           `json:"quizSlug"`
	QuizTitle           string           `json:"quizTitle"`
	QuizType            domain.QuizType  `json:"quizType"`
	Status              Status           `json:"status"`
	CurrentIndex        int              `json:"currentIndex"`
	QuestionCount       int              `json:"questionCount"`
	AnsweredCount       int              `json:"answeredCount"`
	ProgressPercent     int              `json:"progressPercent"`
	PendingAuthRequired bool             `json:"pendingAuthRequired"`
	IsLoading           bool             `json:"isLoading"`
	IsSubmitting        bool             `json:"isSubmitting"`
	IsComplete          bool             `json:"isComplete"`
	HasError            bool             `json:"hasError"`
	ErrorMessage        string           `json:"errorMessage,omitempty"`
	CurrentQuestion     *domain.Question `json:"currentQuestion,omitempty"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		SessionID:           s.id,
		QuizSlug:            s.slug,
		QuizTitle:           s.title,
		QuizType:            s.quizType,
		Status:              s.status,
		CurrentIndex:        s.currentIndex,
		QuestionCount:       len(s.questions),
		AnsweredCount:       s.answers.Count(),
		PendingAuthRequired: s.pendingAuth,
		IsLoading:           s.status == StatusLoading,
		IsSubmitting:        s.status == StatusSubmitting,
		IsComplete:          s.status == StatusSubmitted,
		HasError:            s.status == StatusError,
		ErrorMessage:        s.errMsg,
	}
	if len(s.questions) > 0 {
		v.ProgressPercent = 100 * s.currentIndex / len(s.questions)
		if s.currentIndex < len(s.questions) {
			q := s.questions[s.currentIndex]
			v.CurrentQuestion = &q
		}
	}
	return v
}

func (s *Session) aggregateLocked() *domain.Result {
	result := scoring.Aggregate(s.questions, s.answers.Map(), s.quizType, s.title, s.slug, s.now())
	return &result
}

func (s *Session) questionByID(id domain.ID) (domain.Question, bool) {
	for i := range s.questions {
		if s.questions[i].ID == id {
			return s.questions[i], true
		}
	}
	return domain.Question{}, false
}
