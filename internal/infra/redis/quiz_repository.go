package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"quiz-attempt-engine/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizSource fetches quiz content from a backing store (e.g., postgres).
type QuizSource interface {
	LoadQuiz(ctx context.Context, slug string) (domain.Quiz, error)
}

// QuizRepository caches the full quiz document in Redis and falls back to the
// source on cache miss. The whole document is cached (not just answer keys)
// because free-text grading needs the reference answers and accepted
// phrasings, not only option ids.
// Documents are stored as: SET quiz:{slug}:doc {json} with TTL+jitter.
type QuizRepository struct {
	client *redis.Client
	source QuizSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizRepository(client *redis.Client, source QuizSource, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, slug string) (domain.Quiz, error) {
	key := r.docKey(slug)

	if quiz, ok := r.cachedQuiz(ctx, key); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(slug, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cachedQuiz(ctx, key); ok {
			return quiz, nil
		}

		quiz, err := r.source.LoadQuiz(ctx, slug)
		if err != nil {
			return domain.Quiz{}, err
		}

		data, err := json.Marshal(quiz)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("marshal quiz %s: %w", slug, err)
		}
		// Cache write failures are non-fatal; the quiz is already loaded.
		_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()

		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) cachedQuiz(ctx context.Context, key string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		// Corrupt cache entry; treat as a miss and let the source refill it.
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) docKey(slug string) string {
	return "quiz:" + slug + ":doc"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
