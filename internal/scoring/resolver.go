// Package scoring decides per-question correctness and aggregates attempt
// results. It is the only place that knows per-type answer semantics;
// everything downstream consumes the normalized Answer shape.
package scoring

import (
	"strings"

	"quiz-attempt-engine/internal/domain"
	"quiz-attempt-engine/internal/similarity"
)

// Resolution is the outcome of grading one raw answer against its question.
type Resolution struct {
	IsCorrect  bool
	Normalized string
	Similarity *float64
}

// Resolve grades a raw user value against the question's correctness rule.
// A question with no resolvable reference and no self-report resolves to
// incorrect; malformed input never fails scoring.
func Resolve(q domain.Question, raw string, threshold float64) Resolution {
	trimmed := strings.TrimSpace(raw)

	switch q.Type {
	case domain.TypeMCQ, domain.TypeCode:
		correct := q.CorrectOptionID()
		return Resolution{
			IsCorrect:  correct != "" && trimmed == correct,
			Normalized: trimmed,
		}
	case domain.TypeBlanks:
		score := similarity.Score(raw, q.ReferenceAnswer)
		return Resolution{
			IsCorrect:  q.ReferenceAnswer != "" && similarity.IsAcceptable(score, threshold),
			Normalized: trimmed,
			Similarity: &score,
		}
	case domain.TypeOpenEnded:
		refs := q.References()
		score := similarity.BestScore(raw, refs)
		return Resolution{
			IsCorrect:  len(refs) > 0 && similarity.IsAcceptable(score, threshold),
			Normalized: trimmed,
			Similarity: &score,
		}
	case domain.TypeFlashcard:
		report := strings.ToLower(trimmed)
		if !domain.ValidSelfReport(report) {
			return Resolution{Normalized: report}
		}
		return Resolution{
			IsCorrect:  report == domain.ReportCorrect,
			Normalized: report,
		}
	default:
		return Resolution{Normalized: trimmed}
	}
}

// DisplayScore applies the hints-used penalty to a similarity score for
// presentation. Stored correctness and similarity are never adjusted.
func DisplayScore(score float64, hintsUsed int) float64 {
	adjusted := score - 0.1*float64(hintsUsed)
	if adjusted < 0 {
		return 0
	}
	return adjusted
}
