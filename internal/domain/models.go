package domain

import (
	"encoding/json"
	"fmt"
)

// QuizType selects the correctness rule applied to a question.
type QuizType string

const (
	TypeMCQ       QuizType = "mcq"
	TypeCode      QuizType = "code"
	TypeBlanks    QuizType = "blanks"
	TypeOpenEnded QuizType = "openended"
	TypeFlashcard QuizType = "flashcard"
)

// Valid reports whether t is one of the known quiz types.
func (t QuizType) Valid() bool {
	switch t {
	case TypeMCQ, TypeCode, TypeBlanks, TypeOpenEnded, TypeFlashcard:
		return true
	}
	return false
}

// Flashcard self-report tokens. Correctness for flashcards is declared by the
// user, never computed from a reference.
const (
	ReportCorrect       = "correct"
	ReportIncorrect     = "incorrect"
	ReportStillLearning = "still_learning"
)

// ValidSelfReport reports whether v is an allowed flashcard self-report.
func ValidSelfReport(v string) bool {
	return v == ReportCorrect || v == ReportIncorrect || v == ReportStillLearning
}

// ID is a question identifier. Upstream payloads disagree on whether ids are
// JSON strings or numbers; both decode to the canonical string form so that
// answer lookups never miss on a type mismatch.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Option represents a possible answer for a single-choice question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is immutable once loaded into a session.
type Question struct {
	ID              ID       `json:"id"`
	Prompt          string   `json:"prompt"`
	Type            QuizType `json:"type"`
	ReferenceAnswer string   `json:"referenceAnswer,omitempty"`
	AcceptedAnswers []string `json:"acceptedAnswers,omitempty"`
	Options         []Option `json:"options,omitempty"`
	CodeSnippet     string   `json:"codeSnippet,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// CorrectOptionID returns the designated correct option for single-choice
// questions, or "" when the question carries none.
func (q Question) CorrectOptionID() string {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt.ID
		}
	}
	return ""
}

// References returns every acceptable phrasing for free-text grading.
func (q Question) References() []string {
	if len(q.AcceptedAnswers) > 0 {
		return q.AcceptedAnswers
	}
	if q.ReferenceAnswer != "" {
		return []string{q.ReferenceAnswer}
	}
	return nil
}

// Quiz is the payload supplied by the quiz source.
type Quiz struct {
	ID        string     `json:"id"`
	Slug      string     `json:"slug"`
	Title     string     `json:"title"`
	Type      QuizType   `json:"type"`
	Questions []Question `json:"questions"`
}

// Answer is the latest recorded response for one question in one attempt.
// Re-answering overwrites; answers never append.
type Answer struct {
	QuestionID       ID       `json:"questionId"`
	Type             QuizType `json:"type"`
	RawValue         string   `json:"rawValue"`
	IsCorrect        bool     `json:"isCorrect"`
	Similarity       *float64 `json:"similarity,omitempty"`
	HintsUsed        int      `json:"hintsUsed,omitempty"`
	TimeSpentSeconds int      `json:"timeSpentSeconds"`
	AnsweredAtMs     int64    `json:"answeredAtEpochMs"`
}

// QuestionResult is one line of a Result breakdown.
type QuestionResult struct {
	QuestionID    ID       `json:"questionId"`
	UserAnswer    string   `json:"userAnswer"`
	CorrectAnswer string   `json:"correctAnswer"`
	IsCorrect     bool     `json:"isCorrect"`
	Similarity    *float64 `json:"similarity,omitempty"`
}

// Result is a derived, immutable snapshot of a completed attempt. A new
// Result replaces the old one; nothing mutates a Result in place.
type Result struct {
	QuizSlug      string           `json:"quizSlug"`
	Title         string           `json:"title"`
	Score         int              `json:"score"`
	MaxScore      int              `json:"maxScore"`
	Percentage    int              `json:"percentage"`
	PerQuestion   []QuestionResult `json:"perQuestion"`
	ReviewAgain   []ID             `json:"reviewAgain,omitempty"`
	StillLearning []ID             `json:"stillLearning,omitempty"`
	CompletedAt   string           `json:"completedAtIso"`
}

// Snapshot carries in-progress attempt state across an auth redirect.
// Persisted under authRedirect:<slug> and consumed exactly once.
type Snapshot struct {
	QuizSlug     string   `json:"quizSlug"`
	QuizType     QuizType `json:"quizType"`
	Answers      []Answer `json:"answers"`
	CurrentIndex int      `json:"currentIndex"`
	TempResult   *Result  `json:"tempResult,omitempty"`
	ReturnPath   string   `json:"returnPath"`
}

// SubmissionRequest is the payload handed to the submission backend.
type SubmissionRequest struct {
	Slug             string   `json:"slug"`
	QuizID           string   `json:"quizId"`
	QuizType         QuizType `json:"quizType"`
	Answers          []Answer `json:"answers"`
	TimeTakenSeconds int      `json:"timeTakenSeconds"`
}
