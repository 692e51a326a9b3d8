package scoring

import (
	"math"
	"testing"
	"time"

	"quiz-session-service/internal/domain"
)

// Worked example: Q1 single-answer MC 2pts correct=B, Q2 multi-answer MC 3pts
// correct={A,C}, Q3 matching with two 1pt pairs. Participant gets Q1 right,
// Q2 wrong (missing C), and one of two pairs on Q3.
func TestWorkedExample(t *testing.T) {
	keys := []domain.AnswerKey{
		{QuestionID: "q1", Kind: domain.KindMultipleChoice, Points: 2, Correct: []string{"B"}},
		{QuestionID: "q2", Kind: domain.KindMultipleChoice, Points: 3, Correct: []string{"A", "C"}, AllowMultiple: true},
		{QuestionID: "q3", Kind: domain.KindMatching, Pairs: []domain.MatchPair{
			{ID: "p1", LeftText: "cat", RightText: "meow", Points: 1},
			{ID: "p2", LeftText: "dog", RightText: "woof", Points: 1},
		}},
	}
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	answers := []domain.QuestionAnswer{
		{QuestionID: "q1", Selections: []domain.Selection{{Value: "B", At: now}}},
		{QuestionID: "q2", Selections: []domain.Selection{{Value: "A", At: now}}},
		{QuestionID: "q3", Pairs: []domain.MatchPair{
			{ID: "p1", LeftText: "cat", RightText: "meow"},
			{ID: "p2", LeftText: "dog", RightText: "meow"},
		}},
	}

	results, err := Reconcile(answers, keys)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	summary := Summarize(results, keys)

	if summary.TotalScore != 3 {
		t.Fatalf("expected totalScore 3, got %d", summary.TotalScore)
	}
	if summary.MaxScore != 7 {
		t.Fatalf("expected maxScore 7, got %d", summary.MaxScore)
	}
	if math.Abs(summary.Percentage-42.857142857142854) > 0.001 {
		t.Fatalf("expected percentage ~42.9, got %f", summary.Percentage)
	}

	var q3 domain.QuestionResult
	for _, r := range results {
		if r.QuestionID == "q3" {
			q3 = r
		}
	}
	if q3.IsCorrect {
		t.Fatalf("q3 must be flagged incorrect despite partial points")
	}
	if q3.PointsAwarded != 1 {
		t.Fatalf("q3 should award 1 partial point, got %d", q3.PointsAwarded)
	}

	// sum(perQuestionPoints) == totalScore
	sum := 0
	for _, r := range results {
		sum += r.PointsAwarded
	}
	if sum != summary.TotalScore {
		t.Fatalf("per-question sum %d != total %d", sum, summary.TotalScore)
	}

	mc := summary.Breakdown[domain.KindMultipleChoice]
	if mc.Correct != 1 || mc.Total != 2 {
		t.Fatalf("expected MC breakdown 1/2, got %+v", mc)
	}
	matching := summary.Breakdown[domain.KindMatching]
	if matching.Correct != 0 || matching.Total != 1 {
		t.Fatalf("expected matching breakdown 0/1, got %+v", matching)
	}
}

func TestSummarizeZeroMaxScore(t *testing.T) {
	summary := Summarize(nil, nil)
	if summary.Percentage != 0 {
		t.Fatalf("zero max score must yield 0 percent, got %f", summary.Percentage)
	}
}

func TestRankOrdersByScoreThenSubmissionTime(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	subs := []domain.Submission{
		{UserID: "late-high", Summary: domain.ScoreSummary{TotalScore: 9}, SubmittedAt: base.Add(3 * time.Minute)},
		{UserID: "early-mid", Summary: domain.ScoreSummary{TotalScore: 5}, SubmittedAt: base},
		{UserID: "late-mid", Summary: domain.ScoreSummary{TotalScore: 5}, SubmittedAt: base.Add(time.Minute)},
		{UserID: "low", Summary: domain.ScoreSummary{TotalScore: 1}, SubmittedAt: base},
	}

	entries := Rank(subs)
	want := []string{"late-high", "early-mid", "late-mid", "low"}
	for i, userID := range want {
		if entries[i].UserID != userID {
			t.Fatalf("rank %d: expected %s, got %s", i+1, userID, entries[i].UserID)
		}
		if entries[i].Rank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, entries[i].Rank)
		}
	}
}
