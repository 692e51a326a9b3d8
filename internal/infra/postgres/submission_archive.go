package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-session-service/internal/domain"
)

// SubmissionArchive persists graded submissions for later grading disputes.
// Writes are best-effort relative to the live event broadcast; the session
// core never waits on them.
type SubmissionArchive struct {
	pool *pgxpool.Pool
}

func NewSubmissionArchive(pool *pgxpool.Pool) *SubmissionArchive {
	return &SubmissionArchive{pool: pool}
}

func (a *SubmissionArchive) Archive(ctx context.Context, submission domain.Submission) error {
	payload, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO quiz_submissions (session_id, user_id, submitted_at, total_score, max_score, data)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (session_id, user_id) DO NOTHING`,
		submission.SessionID, submission.UserID, submission.SubmittedAt,
		submission.Summary.TotalScore, submission.Summary.MaxScore, string(payload))
	if err != nil {
		return fmt.Errorf("archive submission: %w", err)
	}
	return nil
}
