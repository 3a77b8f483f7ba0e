package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stemsi/ept-backend/internal/model"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
}

func TestNormalize_StandardQuestion(t *testing.T) {
	tests := []struct {
		name string
		raw  RawQuestion
		want int
	}{
		{"index field", RawQuestion{Text: "t", Options: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: float64(2)}, 2},
		{"numeric correct answer", RawQuestion{Text: "t", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: float64(1)}, 1},
		{"index wins over answer", RawQuestion{Text: "t", Options: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: 3, CorrectAnswer: 1}, 3},
		{"letter", RawQuestion{Text: "t", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: " c "}, 2},
		{"answer text", RawQuestion{Text: "t", Options: []string{"Red", "Blue", "Green"}, AnswerText: "  green"}, 2},
		{"answer text wins over letter", RawQuestion{Text: "t", Options: []string{"x", "y", "z", "w"}, CorrectAnswer: "A", AnswerText: "w"}, 3},
		{"clamped high", RawQuestion{Text: "t", Options: []string{"a", "b"}, CorrectAnswerIndex: 9}, 3},
		{"clamped low", RawQuestion{Text: "t", Options: []string{"a", "b"}, CorrectAnswerIndex: -4}, 0},
		{"missing", RawQuestion{Text: "t", Options: []string{"a"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize([]RawQuestion{tt.raw}, Options{NewID: seqIDs()})
			if len(res.Questions) != 1 {
				t.Fatalf("expected 1 question, got %d", len(res.Questions))
			}
			q := res.Questions[0]
			if q.CorrectAnswer != tt.want {
				t.Fatalf("correct answer = %d, want %d", q.CorrectAnswer, tt.want)
			}
			if len(q.Options) != StandardOptionCount {
				t.Fatalf("expected %d options, got %v", StandardOptionCount, q.Options)
			}
			if err := q.Validate(); err != nil {
				t.Fatalf("normalized question invalid: %v", err)
			}
		})
	}
}

func TestNormalize_PadsAndTruncatesOptions(t *testing.T) {
	res := Normalize([]RawQuestion{
		{Text: "short", Options: []string{"only"}},
		{Text: "long", Options: []string{"1", "2", "3", "4", "5", "6"}},
	}, Options{NewID: seqIDs()})

	short := res.Questions[0].Options
	if short[1] != "Option 2" || short[3] != "Option 4" {
		t.Fatalf("unexpected padding: %v", short)
	}
	long := res.Questions[1].Options
	if len(long) != 4 || long[3] != "4" {
		t.Fatalf("unexpected truncation: %v", long)
	}
}

func TestNormalize_DefaultsAndDrops(t *testing.T) {
	res := Normalize([]RawQuestion{
		{Level: "Z9", Section: "Poetry", Text: "kept"},
		{Level: "c1", Section: "use of english", Text: "cased"},
		{Text: "   "},
	}, Options{NewID: seqIDs(), StartNumber: 10})

	if res.Dropped != 1 || len(res.Questions) != 2 {
		t.Fatalf("expected 2 kept and 1 dropped, got %+v", res)
	}
	if q := res.Questions[0]; q.Level != model.LevelB2 || q.Section != model.SectionGrammar {
		t.Fatalf("unexpected defaults: %s / %s", q.Level, q.Section)
	}
	if q := res.Questions[1]; q.Level != model.LevelC1 || q.Section != model.SectionUseOfEnglish {
		t.Fatalf("case-insensitive match failed: %s / %s", q.Level, q.Section)
	}
	if res.Questions[0].Number != 10 || res.Questions[1].Number != 11 || res.NextNumber != 12 {
		t.Fatalf("unexpected numbering: %+v", res)
	}
}

func TestNormalize_CallerDefaults(t *testing.T) {
	res := Normalize([]RawQuestion{{Text: "x"}}, Options{
		DefaultLevel:   model.LevelA2,
		DefaultSection: model.SectionListening,
	})
	if q := res.Questions[0]; q.Level != model.LevelA2 || q.Section != model.SectionListening {
		t.Fatalf("caller defaults ignored: %+v", q)
	}
	if len(res.Questions[0].ID) != 9 {
		t.Fatalf("expected generated 9-char id, got %q", res.Questions[0].ID)
	}
}

func TestNormalize_MatchingTask(t *testing.T) {
	res := Normalize([]RawQuestion{{
		Text:          "Match each person to a profession",
		Options:       []string{"A", "B", "C", "D", "E", "F"},
		CorrectAnswer: 3,
		SubQuestions: []RawSubQuestion{
			{Text: "Ann", CorrectAnswerIndex: float64(5)},
			{Text: "Bob"},
			{Text: "Cy", CorrectAnswerIndex: 40},
		},
	}}, Options{NewID: seqIDs()})

	q := res.Questions[0]
	if len(q.Options) != 6 {
		t.Fatalf("matching options must be kept, got %d", len(q.Options))
	}
	if q.CorrectAnswer != 0 {
		t.Fatalf("matching parent answer must be 0")
	}
	got := []int{q.SubQuestions[0].CorrectAnswer, q.SubQuestions[1].CorrectAnswer, q.SubQuestions[2].CorrectAnswer}
	if got[0] != 5 || got[1] != 0 || got[2] != 5 {
		t.Fatalf("unexpected sub answers %v", got)
	}
	if err := model.ValidateSet(res.Questions); err != nil {
		t.Fatalf("normalized set invalid: %v", err)
	}
}

func TestNormalize_MatchingWithoutOptionsDropped(t *testing.T) {
	res := Normalize([]RawQuestion{{Text: "m", SubQuestions: []RawSubQuestion{{Text: "a"}}}}, Options{})
	if res.Dropped != 1 {
		t.Fatalf("expected drop, got %+v", res)
	}
}

func TestParseResponse(t *testing.T) {
	fenced := "```json\n[{\"text\":\"q\",\"options\":[\"a\"],\"correctAnswerIndex\":0}]\n```"
	qs, err := ParseResponse(fenced)
	if err != nil || len(qs) != 1 || qs[0].Text != "q" {
		t.Fatalf("fenced parse: %v %+v", err, qs)
	}

	wrapped := `{"questions":[{"text":"a"},{"text":"b"}]}`
	qs, err = ParseResponse(wrapped)
	if err != nil || len(qs) != 2 {
		t.Fatalf("wrapped parse: %v %+v", err, qs)
	}

	if _, err := ParseResponse("not json"); err == nil {
		t.Fatalf("expected error for garbage")
	}
}

func TestChunks(t *testing.T) {
	if got := Chunks("", 3); len(got) != 0 {
		t.Fatalf("expected no chunks, got %v", got)
	}
	got := Chunks("abcdefg", 3)
	if len(got) != 3 || got[2] != "g" {
		t.Fatalf("unexpected chunks %v", got)
	}
}

func TestReadRawFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	content := `
- level: C1
  section: Reading
  text: "What is implied?"
  options: [one, two, three, four]
  correctAnswer: B
- level: A1
  section: Grammar
  text: "Pick one"
  options: [x, y]
  correctAnswerIndex: 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	raw, err := ReadRawFile(path)
	if err != nil {
		t.Fatalf("ReadRawFile: %v", err)
	}
	res := Normalize(raw, Options{NewID: seqIDs()})
	if len(res.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(res.Questions))
	}
	if res.Questions[0].CorrectAnswer != 1 || res.Questions[1].CorrectAnswer != 1 {
		t.Fatalf("unexpected answers: %d %d", res.Questions[0].CorrectAnswer, res.Questions[1].CorrectAnswer)
	}
}

func TestLoadQuestionsFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "questions.json")
	if err := os.WriteFile(good, []byte(`{"questions":[{"id":"a","level":"B1","section":"Grammar","text":"t","options":["x","y"],"correctAnswer":1}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	qs, err := LoadQuestionsFile(good)
	if err != nil || len(qs) != 1 || qs[0].CorrectAnswer != 1 {
		t.Fatalf("LoadQuestionsFile: %v %+v", err, qs)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`[{"id":"a","level":"B1","section":"Grammar","text":"t","options":["x"],"correctAnswer":4}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadQuestionsFile(bad); err == nil {
		t.Fatalf("expected validation error")
	}

	if _, err := LoadQuestionsFile(filepath.Join(dir, "q.txt")); err == nil {
		t.Fatalf("expected unsupported format")
	}
}
