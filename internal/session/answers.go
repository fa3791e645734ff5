// Package session owns the quiz attempt lifecycle: the answer store and the
// state machine that drives one attempt from load through submission.
package session

import "quiz-attempt-engine/internal/domain"

// AnswerStore keeps the latest answer per question for one attempt. Re-putting
// an answer for the same question overwrites it. Single answers are never
// removed; a retake clears the whole store.
type AnswerStore struct {
	byID  map[domain.ID]domain.Answer
	order []domain.ID // first-answered order
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{byID: make(map[domain.ID]domain.Answer)}
}

// Put records or overwrites the answer for its question.
func (s *AnswerStore) Put(a domain.Answer) {
	if _, seen := s.byID[a.QuestionID]; !seen {
		s.order = append(s.order, a.QuestionID)
	}
	s.byID[a.QuestionID] = a
}

func (s *AnswerStore) Get(id domain.ID) (domain.Answer, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// All returns the recorded answers in question order, regardless of the order
// they were answered in, so downstream aggregation is stable.
func (s *AnswerStore) All(questions []domain.Question) []domain.Answer {
	answers := make([]domain.Answer, 0, len(s.byID))
	for _, q := range questions {
		if a, ok := s.byID[q.ID]; ok {
			answers = append(answers, a)
		}
	}
	return answers
}

// Map returns a copy of the answers keyed by question id.
func (s *AnswerStore) Map() map[domain.ID]domain.Answer {
	out := make(map[domain.ID]domain.Answer, len(s.byID))
	for id, a := range s.byID {
		out[id] = a
	}
	return out
}

func (s *AnswerStore) Count() int {
	return len(s.byID)
}

func (s *AnswerStore) Clear() {
	s.byID = make(map[domain.ID]domain.Answer)
	s.order = nil
}
