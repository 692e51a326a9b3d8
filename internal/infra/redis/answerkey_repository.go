package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

// AnswerKeyRepository caches the full answer key set per quiz as a JSON value
// (SET quizkey:{quizID}) and falls back to a loader on cache miss. Matching
// questions carry nested pair lists, so the key set is stored whole rather
// than flattened into per-question hash fields.
type AnswerKeyRepository struct {
	client *redis.Client
	loader memory.AnswerKeyLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewAnswerKeyRepository(client *redis.Client, loader memory.AnswerKeyLoader, ttl time.Duration) *AnswerKeyRepository {
	return &AnswerKeyRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *AnswerKeyRepository) GetQuizKey(ctx context.Context, quizID string) (domain.QuizKey, error) {
	cacheKey := r.cacheKey(quizID)

	if raw, err := r.client.Get(ctx, cacheKey).Bytes(); err == nil {
		var key domain.QuizKey
		if jsonErr := json.Unmarshal(raw, &key); jsonErr == nil {
			return key, nil
		}
		// Corrupt cache entry; fall through to the loader and rewrite it.
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, cacheKey).Bytes(); err == nil {
			var key domain.QuizKey
			if jsonErr := json.Unmarshal(raw, &key); jsonErr == nil {
				return key, nil
			}
		}

		key, err := r.loader.LoadQuizKey(ctx, quizID)
		if err != nil {
			return domain.QuizKey{}, err
		}

		if raw, err := json.Marshal(key); err == nil {
			// best-effort cache fill
			_ = r.client.Set(ctx, cacheKey, raw, r.ttlWithJitter()).Err()
		}
		return key, nil
	})
	if err != nil {
		return domain.QuizKey{}, err
	}
	return result.(domain.QuizKey), nil
}

func (r *AnswerKeyRepository) cacheKey(quizID string) string {
	return "quizkey:" + quizID
}

func (r *AnswerKeyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
