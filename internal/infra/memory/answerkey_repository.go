package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quiz-session-service/internal/domain"
)

// AnswerKeyLoader fetches canonical answer keys from a backing store.
type AnswerKeyLoader interface {
	LoadQuizKey(ctx context.Context, quizID string) (domain.QuizKey, error)
}

// AnswerKeyRepository caches answer keys with TTL to avoid repeated DB hits.
type AnswerKeyRepository struct {
	loader AnswerKeyLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedKey
}

type cachedKey struct {
	key       domain.QuizKey
	expiresAt time.Time
}

func NewAnswerKeyRepository(loader AnswerKeyLoader, ttl time.Duration) *AnswerKeyRepository {
	return &AnswerKeyRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedKey),
	}
}

func (r *AnswerKeyRepository) GetQuizKey(ctx context.Context, quizID string) (domain.QuizKey, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.key, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.key, nil
		}
		r.mu.RUnlock()

		key, err := r.loader.LoadQuizKey(ctx, quizID)
		if err != nil {
			return domain.QuizKey{}, err
		}

		r.mu.Lock()
		r.cache[quizID] = cachedKey{
			key:       key,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return key, nil
	})
	if err != nil {
		return domain.QuizKey{}, err
	}
	return result.(domain.QuizKey), nil
}

func (r *AnswerKeyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticAnswerKeyLoader is a loader backed by an in-memory map (tests/demos).
type StaticAnswerKeyLoader struct {
	keys map[string]domain.QuizKey
}

func NewStaticAnswerKeyLoader(keys map[string]domain.QuizKey) *StaticAnswerKeyLoader {
	return &StaticAnswerKeyLoader{keys: keys}
}

func (l *StaticAnswerKeyLoader) LoadQuizKey(_ context.Context, quizID string) (domain.QuizKey, error) {
	if key, ok := l.keys[quizID]; ok {
		return key, nil
	}
	return domain.QuizKey{}, domain.ErrQuizNotFound
}
