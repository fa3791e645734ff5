package similarity

import "testing"

func TestScoreMonotonicity(t *testing.T) {
	exact := Score("hello world", "hello world")
	partial := Score("hello", "hello world")
	unrelated := Score("goodbye", "hello world")

	if exact != 1 {
		t.Fatalf("expected exact match to score 1, got %v", exact)
	}
	if !(exact > partial) {
		t.Fatalf("expected exact > partial, got %v vs %v", exact, partial)
	}
	if !(partial > unrelated) {
		t.Fatalf("expected partial > unrelated, got %v vs %v", partial, unrelated)
	}
}

func TestScoreIgnoresCaseAndWhitespace(t *testing.T) {
	if s := Score("  paris ", "Paris"); s != 1 {
		t.Fatalf("expected case/whitespace-insensitive match to score 1, got %v", s)
	}
	if s := Score("The   Eiffel Tower", "the eiffel tower"); s != 1 {
		t.Fatalf("expected collapsed whitespace match, got %v", s)
	}
}

func TestScoreEmptyCandidate(t *testing.T) {
	if s := Score("", "anything"); s != 0 {
		t.Fatalf("expected empty candidate to score 0, got %v", s)
	}
	if s := Score("   ", "anything"); s != 0 {
		t.Fatalf("expected blank candidate to score 0, got %v", s)
	}
}

func TestScoreDeterminism(t *testing.T) {
	a := Score("mostly right answer", "mostly right answers")
	b := Score("mostly right answer", "mostly right answers")
	if a != b {
		t.Fatalf("expected identical scores on repeat calls, got %v and %v", a, b)
	}
	if a <= 0 || a >= 1 {
		t.Fatalf("expected near-match score strictly between 0 and 1, got %v", a)
	}
}

func TestBestScoreTakesMax(t *testing.T) {
	refs := []string{"completely different", "paris"}
	if s := BestScore("Paris", refs); s != 1 {
		t.Fatalf("expected best score 1 across references, got %v", s)
	}
	if s := BestScore("anything", nil); s != 0 {
		t.Fatalf("expected 0 with no references, got %v", s)
	}
}

func TestIsAcceptable(t *testing.T) {
	if !IsAcceptable(0.6, 0.6) {
		t.Fatalf("expected score at threshold to pass")
	}
	if IsAcceptable(0.59, 0.6) {
		t.Fatalf("expected score below threshold to fail")
	}
	if !IsAcceptable(0.7, 0) {
		t.Fatalf("expected default threshold fallback to accept 0.7")
	}
}
