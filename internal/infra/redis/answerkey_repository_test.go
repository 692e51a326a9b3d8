package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

func TestAnswerKeyRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		AnswerKeyLoader: memory.NewStaticAnswerKeyLoader(map[string]domain.QuizKey{
			"quiz-1": sampleQuizKey(),
		}),
	}
	repo := NewAnswerKeyRepository(client, loader, time.Minute)

	key, err := repo.GetQuizKey(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz key: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if len(key.Keys) != 2 {
		t.Fatalf("expected 2 answer keys, got %d", len(key.Keys))
	}
	if !mr.Exists("quizkey:quiz-1") {
		t.Fatalf("expected cache key written")
	}

	// Second call should hit cache; nested match pairs must round-trip.
	key, err = repo.GetQuizKey(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz key 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	var matching *domain.AnswerKey
	for i := range key.Keys {
		if key.Keys[i].Kind == domain.KindMatching {
			matching = &key.Keys[i]
		}
	}
	if matching == nil || len(matching.Pairs) != 1 || matching.Pairs[0].RightText != "meow" {
		t.Fatalf("matching pairs lost through cache: %+v", key.Keys)
	}
}

type countingLoader struct {
	memory.AnswerKeyLoader
	calls int
}

func (l *countingLoader) LoadQuizKey(ctx context.Context, quizID string) (domain.QuizKey, error) {
	l.calls++
	return l.AnswerKeyLoader.LoadQuizKey(ctx, quizID)
}

func sampleQuizKey() domain.QuizKey {
	return domain.QuizKey{
		QuizID: "quiz-1",
		Keys: []domain.AnswerKey{
			{QuestionID: "q1", Kind: domain.KindMultipleChoice, Points: 2, Correct: []string{"B"}},
			{QuestionID: "q2", Kind: domain.KindMatching, Pairs: []domain.MatchPair{
				{ID: "p1", LeftText: "cat", RightText: "meow", Points: 1},
			}},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
