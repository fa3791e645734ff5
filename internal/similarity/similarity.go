// Package similarity grades free-text answers against reference phrasings.
// Scores are deterministic: no randomness, no external calls.
package similarity

import "strings"

// DefaultThreshold is the pass/fail cut used by open-ended grading.
const DefaultThreshold = 0.6

// Score compares a candidate answer to a reference and returns a value in
// [0,1]. Case and surrounding/internal whitespace differences are ignored.
// An empty candidate scores 0 regardless of the reference.
func Score(candidate, reference string) float64 {
	c := normalize(candidate)
	r := normalize(reference)
	if c == "" || r == "" {
		return 0
	}
	if c == r {
		return 1
	}
	ca, ra := []rune(c), []rune(r)
	longest := len(ca)
	if len(ra) > longest {
		longest = len(ra)
	}
	dist := levenshtein(ca, ra)
	return 1 - float64(dist)/float64(longest)
}

// BestScore takes the max score over multiple acceptable references.
func BestScore(candidate string, references []string) float64 {
	best := 0.0
	for _, ref := range references {
		if s := Score(candidate, ref); s > best {
			best = s
		}
	}
	return best
}

// IsAcceptable applies the pass/fail cut. A non-positive threshold falls back
// to DefaultThreshold.
func IsAcceptable(score, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return score >= threshold
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// levenshtein computes edit distance with the classic two-row DP.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
