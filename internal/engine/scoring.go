package engine

import (
	"math"

	"quiz-attempt-service/internal/domain"
)

// roundingSlack absorbs float error from summed partial credit so that exact
// halves still round up.
const roundingSlack = 1e-9

// Score returns the attempt percentage (0-100) for the given selections.
// Single-select questions earn full points only for exactly one correct pick.
// Multi-select questions earn full points for the exact correct set, otherwise
// points*|hits|/|correct| when at least one correct option was chosen.
func Score(questions []domain.Question, answers map[string][]int) int {
	var awarded, total float64
	for _, q := range questions {
		points := float64(q.Points)
		total += points
		awarded += questionCredit(q, answers[q.ID]) * points
	}
	if total <= 0 {
		return 0
	}

	pct := math.Floor(100*awarded/total + 0.5 + roundingSlack)
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return int(pct)
}

// questionCredit is the fraction (0..1) of a question's points earned.
func questionCredit(q domain.Question, selected []int) float64 {
	correct := toSet(q.CorrectAnswers)
	chosen := toSet(selected)
	if len(correct) == 0 {
		return 0
	}

	switch q.Type {
	case domain.SingleSelect:
		if len(chosen) != 1 {
			return 0
		}
		for idx := range chosen {
			if _, ok := correct[idx]; ok {
				return 1
			}
		}
		return 0
	case domain.MultiSelect:
		hits := 0
		for idx := range chosen {
			if _, ok := correct[idx]; ok {
				hits++
			}
		}
		if hits == len(correct) && len(chosen) == len(correct) {
			return 1
		}
		return float64(hits) / float64(len(correct))
	}
	return 0
}

func toSet(indices []int) map[int]struct{} {
	set := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		set[idx] = struct{}{}
	}
	return set
}
