package scoring

import (
	"reflect"
	"testing"
	"time"

	"quiz-attempt-engine/internal/domain"
)

func threeMCQs() []domain.Question {
	qs := make([]domain.Question, 0, 3)
	correct := []string{"A", "B", "C"}
	for i, c := range correct {
		qs = append(qs, domain.Question{
			ID:   domain.ID([]string{"q1", "q2", "q3"}[i]),
			Type: domain.TypeMCQ,
			Options: []domain.Option{
				{ID: "A", Text: "A", Correct: c == "A"},
				{ID: "B", Text: "B", Correct: c == "B"},
				{ID: "C", Text: "C", Correct: c == "C"},
				{ID: "D", Text: "D", Correct: c == "D"},
			},
		})
	}
	return qs
}

func answersFor(qs []domain.Question, picks []string) map[domain.ID]domain.Answer {
	answers := make(map[domain.ID]domain.Answer, len(qs))
	for i, q := range qs {
		res := Resolve(q, picks[i], 0)
		answers[q.ID] = domain.Answer{
			QuestionID: q.ID,
			Type:       q.Type,
			RawValue:   res.Normalized,
			IsCorrect:  res.IsCorrect,
			Similarity: res.Similarity,
		}
	}
	return answers
}

func TestAggregateScoresTwoOfThree(t *testing.T) {
	qs := threeMCQs()
	answers := answersFor(qs, []string{"A", "B", "D"})

	result := Aggregate(qs, answers, domain.TypeMCQ, "Sample", "sample-quiz", time.Now())
	if result.Score != 2 || result.MaxScore != 3 {
		t.Fatalf("expected 2/3, got %d/%d", result.Score, result.MaxScore)
	}
	if result.Percentage != 67 {
		t.Fatalf("expected percentage 67, got %d", result.Percentage)
	}
	if len(result.PerQuestion) != 3 {
		t.Fatalf("expected 3 breakdown rows, got %d", len(result.PerQuestion))
	}
	if result.PerQuestion[2].IsCorrect {
		t.Fatalf("expected third answer wrong, got %+v", result.PerQuestion[2])
	}
}

func TestAggregateUnansweredTreatedAsIncorrect(t *testing.T) {
	qs := threeMCQs()
	answers := answersFor(qs[:1], []string{"A"})

	result := Aggregate(qs, answers, domain.TypeMCQ, "Sample", "sample-quiz", time.Now())
	if result.Score != 1 {
		t.Fatalf("expected score 1, got %d", result.Score)
	}
	if result.PerQuestion[1].UserAnswer != "" || result.PerQuestion[1].IsCorrect {
		t.Fatalf("expected unanswered row to be empty and incorrect, got %+v", result.PerQuestion[1])
	}
}

func TestAggregateEmptyQuizNoDivisionByZero(t *testing.T) {
	result := Aggregate(nil, nil, domain.TypeMCQ, "Empty", "empty-quiz", time.Now())
	if result.MaxScore != 0 || result.Percentage != 0 {
		t.Fatalf("expected zero max score and percentage, got %d and %d", result.MaxScore, result.Percentage)
	}
}

func TestAggregateDeterminism(t *testing.T) {
	qs := threeMCQs()
	answers := answersFor(qs, []string{"A", "B", "D"})
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := Aggregate(qs, answers, domain.TypeMCQ, "Sample", "sample-quiz", at)
	second := Aggregate(qs, answers, domain.TypeMCQ, "Sample", "sample-quiz", at)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results for identical inputs:\n%+v\n%+v", first, second)
	}
}

func TestAggregateFlashcardReviewSubsets(t *testing.T) {
	qs := make([]domain.Question, 5)
	reports := []string{"correct", "incorrect", "still_learning", "correct", "incorrect"}
	answers := make(map[domain.ID]domain.Answer, 5)
	for i := range qs {
		id := domain.ID([]string{"c1", "c2", "c3", "c4", "c5"}[i])
		qs[i] = domain.Question{ID: id, Type: domain.TypeFlashcard}
		res := Resolve(qs[i], reports[i], 0)
		answers[id] = domain.Answer{
			QuestionID: id,
			Type:       domain.TypeFlashcard,
			RawValue:   res.Normalized,
			IsCorrect:  res.IsCorrect,
		}
	}

	result := Aggregate(qs, answers, domain.TypeFlashcard, "Cards", "cards", time.Now())
	if result.Score != 2 {
		t.Fatalf("expected score 2, got %d", result.Score)
	}
	if len(result.ReviewAgain) != 2 {
		t.Fatalf("expected 2 cards to review again, got %v", result.ReviewAgain)
	}
	if len(result.StillLearning) != 1 || result.StillLearning[0] != "c3" {
		t.Fatalf("expected c3 still learning, got %v", result.StillLearning)
	}
}
