package scoring

import (
	"math"
	"time"

	"quiz-attempt-engine/internal/domain"
)

// Aggregate builds a Result from the question list and the recorded answers.
// It is a pure function of its inputs apart from the completion timestamp:
// identical answers always produce identical scores and breakdowns.
// Correctness is taken from each Answer as resolved at answer time; the
// aggregator never re-derives it.
func Aggregate(questions []domain.Question, answers map[domain.ID]domain.Answer, quizType domain.QuizType, title, slug string, now time.Time) domain.Result {
	perQuestion := make([]domain.QuestionResult, 0, len(questions))
	score := 0

	for _, q := range questions {
		qr := domain.QuestionResult{
			QuestionID:    q.ID,
			CorrectAnswer: correctAnswerFor(q),
		}
		if a, ok := answers[q.ID]; ok {
			qr.UserAnswer = a.RawValue
			qr.IsCorrect = a.IsCorrect
			qr.Similarity = a.Similarity
			if a.IsCorrect {
				score++
			}
		}
		perQuestion = append(perQuestion, qr)
	}

	maxScore := len(questions)
	percentage := 0
	if maxScore > 0 {
		percentage = int(math.Round(100 * float64(score) / float64(maxScore)))
	}

	result := domain.Result{
		QuizSlug:    slug,
		Title:       title,
		Score:       score,
		MaxScore:    maxScore,
		Percentage:  percentage,
		PerQuestion: perQuestion,
		CompletedAt: now.UTC().Format(time.RFC3339),
	}

	if quizType == domain.TypeFlashcard {
		result.ReviewAgain, result.StillLearning = reviewSubsets(perQuestion)
	}
	return result
}

// reviewSubsets derives the flashcard review sets in a single pass over the
// breakdown, so they can never drift from it.
func reviewSubsets(perQuestion []domain.QuestionResult) (incorrect, stillLearning []domain.ID) {
	for _, qr := range perQuestion {
		switch qr.UserAnswer {
		case domain.ReportIncorrect:
			incorrect = append(incorrect, qr.QuestionID)
		case domain.ReportStillLearning:
			stillLearning = append(stillLearning, qr.QuestionID)
		}
	}
	return incorrect, stillLearning
}

func correctAnswerFor(q domain.Question) string {
	switch q.Type {
	case domain.TypeMCQ, domain.TypeCode:
		id := q.CorrectOptionID()
		for _, opt := range q.Options {
			if opt.ID == id && opt.Text != "" {
				return opt.Text
			}
		}
		return id
	case domain.TypeBlanks, domain.TypeOpenEnded:
		if refs := q.References(); len(refs) > 0 {
			return refs[0]
		}
	}
	// Flashcards have no computed reference.
	return ""
}
