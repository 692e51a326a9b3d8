package scoring

import (
	"sort"

	"quiz-session-service/internal/domain"
)

// Summarize folds per-question results into a submission summary. MaxScore is
// the attainable total across the whole quiz, independent of what was
// submitted; matching questions contribute the sum of their pair points.
func Summarize(results []domain.QuestionResult, keys []domain.AnswerKey) domain.ScoreSummary {
	summary := domain.ScoreSummary{
		Breakdown: make(map[domain.QuestionKind]domain.CategoryStat),
	}

	for _, key := range keys {
		summary.MaxScore += maxPoints(key)
		stat := summary.Breakdown[key.Kind]
		stat.Total++
		summary.Breakdown[key.Kind] = stat
	}

	for _, result := range results {
		summary.TotalScore += result.PointsAwarded
		if result.IsCorrect {
			stat := summary.Breakdown[result.Kind]
			stat.Correct++
			summary.Breakdown[result.Kind] = stat
		}
	}

	if summary.MaxScore > 0 {
		summary.Percentage = float64(summary.TotalScore) / float64(summary.MaxScore) * 100
	}
	return summary
}

func maxPoints(key domain.AnswerKey) int {
	if key.Kind == domain.KindMatching {
		total := 0
		for _, pair := range key.Pairs {
			total += pair.Points
		}
		return total
	}
	return key.Points
}

// Rank orders accepted submissions into a scoreboard: score descending, ties
// broken by earlier submission, then by user id for a total order.
func Rank(submissions []domain.Submission) []domain.ScoreboardEntry {
	entries := make([]domain.ScoreboardEntry, 0, len(submissions))
	for _, sub := range submissions {
		entries = append(entries, domain.ScoreboardEntry{
			UserID:      sub.UserID,
			TotalScore:  sub.Summary.TotalScore,
			SubmittedAt: sub.SubmittedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		if !entries[i].SubmittedAt.Equal(entries[j].SubmittedAt) {
			return entries[i].SubmittedAt.Before(entries[j].SubmittedAt)
		}
		return entries[i].UserID < entries[j].UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
