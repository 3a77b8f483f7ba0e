package session

import (
	"time"

	"github.com/stemsi/ept-backend/internal/model"
)

const (
	perSubQuestion    = 45 * time.Second
	readingDuration   = 300 * time.Second
	listeningDuration = 300 * time.Second
	useOfEnglishTime  = 90 * time.Second
	defaultDuration   = 60 * time.Second
)

// QuestionDuration returns how long a question stays on screen.
func QuestionDuration(q *model.Question) time.Duration {
	if q.IsMatching() {
		return perSubQuestion * time.Duration(len(q.SubQuestions))
	}
	switch q.Section {
	case model.SectionReading:
		return readingDuration
	case model.SectionListening:
		return listeningDuration
	case model.SectionUseOfEnglish:
		return useOfEnglishTime
	default:
		return defaultDuration
	}
}

// secondsLeft rounds the time until deadline up to whole seconds, floored at 0.
func secondsLeft(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
