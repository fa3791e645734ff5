package memory

import (
	"context"
	"sync"

	"quiz-attempt-engine/internal/domain"
)

// ResultSink is an in-memory submission backend: it accepts the computed
// Result as canonical and keeps the latest one per slug.
type ResultSink struct {
	mu      sync.RWMutex
	results map[string]domain.Result
}

func NewResultSink() *ResultSink {
	return &ResultSink{results: make(map[string]domain.Result)}
}

func (s *ResultSink) SaveResult(_ context.Context, req domain.SubmissionRequest, result domain.Result) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[req.Slug] = result
	return result, nil
}

func (s *ResultSink) ResultBySlug(_ context.Context, slug string) (domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if result, ok := s.results[slug]; ok {
		return result, nil
	}
	return domain.Result{}, domain.ErrResultNotFound
}
