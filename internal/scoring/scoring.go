// Package scoring computes exam results from an answer set.
package scoring

import (
	"math"

	"github.com/stemsi/ept-backend/internal/model"
)

// PassThreshold is the minimum percentage required to pass.
const PassThreshold = 60

// Score grades answers against questions. Matching tasks count one item per
// sub-question; unanswered items count as wrong.
func Score(questions []model.Question, answers model.AnswerMap) model.ScoreResult {
	correct, total := 0, 0
	for i := range questions {
		q := &questions[i]
		if q.IsMatching() {
			total += len(q.SubQuestions)
			for _, sq := range q.SubQuestions {
				if got, ok := answers[sq.ID]; ok && got == sq.CorrectAnswer {
					correct++
				}
			}
			continue
		}
		total++
		if got, ok := answers[q.ID]; ok && got == q.CorrectAnswer {
			correct++
		}
	}
	if total == 0 {
		total = 1
	}
	pct := percentage(correct, total)
	return model.ScoreResult{
		RawScore:   correct,
		TotalItems: total,
		Percentage: pct,
		Passed:     pct >= PassThreshold,
	}
}

// Forced builds a result from an externally supplied percentage. The raw
// score is back-computed for record keeping only.
func Forced(questions []model.Question, pct int) model.ScoreResult {
	total := TotalItems(questions)
	if total == 0 {
		total = 1
	}
	return model.ScoreResult{
		RawScore:   int(math.Round(float64(pct) / 100 * float64(total))),
		TotalItems: total,
		Percentage: pct,
		Passed:     pct >= PassThreshold,
	}
}

// TotalItems counts gradable items.
func TotalItems(questions []model.Question) int {
	n := 0
	for i := range questions {
		if questions[i].IsMatching() {
			n += len(questions[i].SubQuestions)
		} else {
			n++
		}
	}
	return n
}

// CEFRLevel maps a percentage to the level printed on performance reports.
func CEFRLevel(pct int) model.ProficiencyLevel {
	switch {
	case pct >= 85:
		return model.LevelC1
	case pct >= PassThreshold:
		return model.LevelB2
	case pct >= 40:
		return model.LevelB1
	case pct >= 20:
		return model.LevelA2
	default:
		return model.LevelA1
	}
}

func percentage(correct, total int) int {
	return int(math.Round(float64(correct) / float64(total) * 100))
}
