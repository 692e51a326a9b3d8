// Package scoring compares submitted answers against canonical answer keys.
// Everything here is pure and re-entrant; grading a submission never mutates
// the keys or depends on session state.
package scoring

import (
	"quiz-session-service/internal/domain"
)

// Reconcile grades every answered question against its key and returns one
// result per submitted answer. A submitted question id with no matching key
// is an authoring invariant violation and fails the whole reconciliation.
func Reconcile(answers []domain.QuestionAnswer, keys []domain.AnswerKey) ([]domain.QuestionResult, error) {
	byID := make(map[string]domain.AnswerKey, len(keys))
	for _, key := range keys {
		byID[key.QuestionID] = key
	}

	results := make([]domain.QuestionResult, 0, len(answers))
	for _, answer := range answers {
		key, ok := byID[answer.QuestionID]
		if !ok {
			return nil, domain.ErrAnswerKeyNotFound
		}
		results = append(results, reconcileQuestion(answer, key))
	}
	return results, nil
}

func reconcileQuestion(answer domain.QuestionAnswer, key domain.AnswerKey) domain.QuestionResult {
	result := domain.QuestionResult{
		QuestionID: key.QuestionID,
		Kind:       key.Kind,
	}

	switch key.Kind {
	case domain.KindMatching:
		result.IsCorrect, result.PointsAwarded = reconcileMatching(answer.Pairs, key.Pairs)
	case domain.KindMultipleChoice:
		if key.AllowMultiple {
			result.IsCorrect = reconcileMultiSelect(answer.Selections, key.Correct)
		} else {
			result.IsCorrect = reconcileSingleSelect(answer.Selections, key.Correct)
		}
		if result.IsCorrect {
			result.PointsAwarded = key.Points
		}
	}
	return result
}

// reconcileSingleSelect applies last-write-wins: a participant may select once
// per interaction before final submit, and the temporally last selection is
// the effective answer.
func reconcileSingleSelect(selections []domain.Selection, correct []string) bool {
	if len(selections) == 0 {
		return false
	}
	effective := selections[0]
	for _, sel := range selections[1:] {
		if !sel.At.Before(effective.At) {
			effective = sel
		}
	}
	for _, value := range correct {
		if value == effective.Value {
			return true
		}
	}
	return false
}

// reconcileMultiSelect requires exact set equality: no missing selections,
// no extras. An empty submitted set is always incorrect.
func reconcileMultiSelect(selections []domain.Selection, correct []string) bool {
	if len(selections) == 0 {
		return false
	}
	submitted := make(map[string]struct{}, len(selections))
	for _, sel := range selections {
		submitted[sel.Value] = struct{}{}
	}
	if len(submitted) != len(correct) {
		return false
	}
	for _, value := range correct {
		if _, ok := submitted[value]; !ok {
			return false
		}
	}
	return true
}

// reconcileMatching scores each submitted pair on its own: a matched pair
// contributes its canonical point value even when other pairs are wrong. The
// question-level flag is all-or-nothing over the submitted pairs; an empty
// pair list is vacuously correct and scores zero.
func reconcileMatching(submitted, canonical []domain.MatchPair) (bool, int) {
	allCorrect := true
	points := 0
	for _, pair := range submitted {
		match, ok := findCanonicalPair(pair, canonical)
		if ok {
			points += match.Points
		} else {
			allCorrect = false
		}
	}
	return allCorrect, points
}

// findCanonicalPair matches by pair id when the submission carries one,
// otherwise by content equality on both sides.
func findCanonicalPair(pair domain.MatchPair, canonical []domain.MatchPair) (domain.MatchPair, bool) {
	for _, cand := range canonical {
		if pair.ID != "" && cand.ID != "" {
			if pair.ID == cand.ID && pairContentEqual(pair, cand) {
				return cand, true
			}
			continue
		}
		if pairContentEqual(pair, cand) {
			return cand, true
		}
	}
	return domain.MatchPair{}, false
}

func pairContentEqual(a, b domain.MatchPair) bool {
	return a.LeftText == b.LeftText && a.RightText == b.RightText
}
