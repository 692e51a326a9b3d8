package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-session-service/internal/domain"
)

// AnswerKeyLoader loads quiz answer keys stored as JSONB in Postgres.
type AnswerKeyLoader struct {
	pool *pgxpool.Pool
}

func NewAnswerKeyLoader(pool *pgxpool.Pool) *AnswerKeyLoader {
	return &AnswerKeyLoader{pool: pool}
}

func (l *AnswerKeyLoader) LoadQuizKey(ctx context.Context, quizID string) (domain.QuizKey, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT answer_keys FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if err != nil {
		return domain.QuizKey{}, fmt.Errorf("load quiz key: %w", err)
	}
	var keys []domain.AnswerKey
	if err := json.Unmarshal(raw, &keys); err != nil {
		return domain.QuizKey{}, fmt.Errorf("unmarshal quiz key: %w", err)
	}
	return domain.QuizKey{QuizID: quizID, Keys: keys}, nil
}
