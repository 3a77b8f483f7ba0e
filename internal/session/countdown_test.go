package session

import (
	"testing"
	"time"

	"github.com/stemsi/ept-backend/internal/model"
)

func TestQuestionDuration(t *testing.T) {
	sub := func(n int) []model.SubQuestion {
		out := make([]model.SubQuestion, n)
		for i := range out {
			out[i] = model.SubQuestion{ID: string(rune('a' + i))}
		}
		return out
	}
	tests := []struct {
		name string
		q    model.Question
		want time.Duration
	}{
		{"matching beats section", model.Question{Section: model.SectionReading, SubQuestions: sub(4)}, 180 * time.Second},
		{"reading", model.Question{Section: model.SectionReading}, 300 * time.Second},
		{"listening", model.Question{Section: model.SectionListening}, 300 * time.Second},
		{"use of english", model.Question{Section: model.SectionUseOfEnglish}, 90 * time.Second},
		{"grammar", model.Question{Section: model.SectionGrammar}, 60 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuestionDuration(&tt.q); got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSecondsLeft(t *testing.T) {
	now := time.Unix(1000, 0)
	if got := secondsLeft(now.Add(-time.Second), now); got != 0 {
		t.Fatalf("past deadline: %d", got)
	}
	if got := secondsLeft(now.Add(100*time.Millisecond), now); got != 1 {
		t.Fatalf("partial second rounds up: %d", got)
	}
	if got := secondsLeft(now.Add(60*time.Second), now); got != 60 {
		t.Fatalf("exact: %d", got)
	}
}
