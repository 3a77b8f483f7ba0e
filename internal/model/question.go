package model

import (
	"errors"
	"fmt"
)

// ErrInvalidQuestion is returned when a question fails structural validation.
var ErrInvalidQuestion = errors.New("invalid question")

// ProficiencyLevel is a CEFR level.
type ProficiencyLevel string

const (
	LevelA1 ProficiencyLevel = "A1"
	LevelA2 ProficiencyLevel = "A2"
	LevelB1 ProficiencyLevel = "B1"
	LevelB2 ProficiencyLevel = "B2"
	LevelC1 ProficiencyLevel = "C1"
	LevelC2 ProficiencyLevel = "C2"
)

// AllLevels lists every proficiency level in ascending order.
var AllLevels = []ProficiencyLevel{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// Valid reports whether l is a known level.
func (l ProficiencyLevel) Valid() bool {
	for _, v := range AllLevels {
		if v == l {
			return true
		}
	}
	return false
}

// Section is the exam category a question belongs to.
type Section string

const (
	SectionReading      Section = "Reading"
	SectionGrammar      Section = "Grammar"
	SectionUseOfEnglish Section = "Use of English"
	SectionListening    Section = "Listening"
)

// AllSections lists every exam section.
var AllSections = []Section{SectionReading, SectionGrammar, SectionUseOfEnglish, SectionListening}

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	for _, v := range AllSections {
		if v == s {
			return true
		}
	}
	return false
}

// SubQuestion is one item of a matching task, scored against the parent's options.
type SubQuestion struct {
	ID            string `json:"id" yaml:"id"`
	Text          string `json:"text" yaml:"text"`
	CorrectAnswer int    `json:"correctAnswer" yaml:"correctAnswer"`
}

// Question represents a single exam item.
type Question struct {
	ID            string           `json:"id" yaml:"id"`
	Number        int              `json:"number,omitempty" yaml:"number,omitempty"`
	Level         ProficiencyLevel `json:"level" yaml:"level"`
	Section       Section          `json:"section" yaml:"section"`
	Text          string           `json:"text" yaml:"text"`
	Context       string           `json:"context,omitempty" yaml:"context,omitempty"`
	AudioURL      string           `json:"audioUrl,omitempty" yaml:"audioUrl,omitempty"`
	Options       []string         `json:"options" yaml:"options"`
	CorrectAnswer int              `json:"correctAnswer" yaml:"correctAnswer"`
	SubQuestions  []SubQuestion    `json:"subQuestions,omitempty" yaml:"subQuestions,omitempty"`
}

// IsMatching reports whether the question is scored through its sub-questions.
func (q *Question) IsMatching() bool {
	return len(q.SubQuestions) > 0
}

// ItemIDs returns the AnswerMap keys this question owns.
func (q *Question) ItemIDs() []string {
	if !q.IsMatching() {
		return []string{q.ID}
	}
	ids := make([]string, len(q.SubQuestions))
	for i, sq := range q.SubQuestions {
		ids[i] = sq.ID
	}
	return ids
}

// Validate checks the structural invariants scoring depends on.
func (q *Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidQuestion)
	}
	if !q.Level.Valid() {
		return fmt.Errorf("%w: question %s has unknown level %q", ErrInvalidQuestion, q.ID, q.Level)
	}
	if !q.Section.Valid() {
		return fmt.Errorf("%w: question %s has unknown section %q", ErrInvalidQuestion, q.ID, q.Section)
	}
	if len(q.Options) == 0 {
		return fmt.Errorf("%w: question %s has no options", ErrInvalidQuestion, q.ID)
	}
	if !q.IsMatching() {
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return fmt.Errorf("%w: question %s correct answer %d out of range", ErrInvalidQuestion, q.ID, q.CorrectAnswer)
		}
		return nil
	}
	for _, sq := range q.SubQuestions {
		if sq.ID == "" {
			return fmt.Errorf("%w: question %s has a sub-question without id", ErrInvalidQuestion, q.ID)
		}
		if sq.CorrectAnswer < 0 || sq.CorrectAnswer >= len(q.Options) {
			return fmt.Errorf("%w: sub-question %s correct answer %d out of range", ErrInvalidQuestion, sq.ID, sq.CorrectAnswer)
		}
	}
	return nil
}

// ValidateSet validates every question and checks that answer keys are unique
// across questions and sub-questions.
func ValidateSet(questions []Question) error {
	seen := make(map[string]struct{}, len(questions))
	for i := range questions {
		if err := questions[i].Validate(); err != nil {
			return err
		}
		for _, id := range questions[i].ItemIDs() {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: duplicate item id %s", ErrInvalidQuestion, id)
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}

// AnswerMap maps a question or sub-question id to the selected option index.
// An unanswered item has no entry.
type AnswerMap map[string]int

// Clone returns an independent copy.
func (a AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// QuestionForCandidate is a question without answer keys, sent over the exam stream.
type QuestionForCandidate struct {
	ID           string                    `json:"id"`
	Number       int                       `json:"number,omitempty"`
	Level        ProficiencyLevel          `json:"level"`
	Section      Section                   `json:"section"`
	Text         string                    `json:"text"`
	Context      string                    `json:"context,omitempty"`
	AudioURL     string                    `json:"audioUrl,omitempty"`
	Options      []string                  `json:"options"`
	SubQuestions []SubQuestionForCandidate `json:"subQuestions,omitempty"`
}

// SubQuestionForCandidate is a matching item without its answer key.
type SubQuestionForCandidate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ForCandidate strips the answer keys.
func (q *Question) ForCandidate() QuestionForCandidate {
	out := QuestionForCandidate{
		ID:       q.ID,
		Number:   q.Number,
		Level:    q.Level,
		Section:  q.Section,
		Text:     q.Text,
		Context:  q.Context,
		AudioURL: q.AudioURL,
		Options:  append([]string(nil), q.Options...),
	}
	for _, sq := range q.SubQuestions {
		out.SubQuestions = append(out.SubQuestions, SubQuestionForCandidate{ID: sq.ID, Text: sq.Text})
	}
	return out
}

// ReplaceQuestionsRequest is the payload for bulk replacing the question bank.
type ReplaceQuestionsRequest struct {
	Questions []Question `json:"questions" binding:"required,min=1"`
}

// AddQuestionRequest is the payload for adding one question to the bank.
type AddQuestionRequest struct {
	Level         ProficiencyLevel `json:"level" binding:"required,cefr"`
	Section       Section          `json:"section" binding:"required,section"`
	Text          string           `json:"text" binding:"required,min=1,max=4000"`
	Context       string           `json:"context" binding:"omitempty,max=8000"`
	AudioURL      string           `json:"audioUrl" binding:"omitempty,url"`
	Options       []string         `json:"options" binding:"required,min=1,dive,required"`
	CorrectAnswer int              `json:"correctAnswer" binding:"min=0"`
	SubQuestions  []SubQuestion    `json:"subQuestions" binding:"omitempty,dive"`
}

// GenerateQuestionsRequest asks the AI extractor for new questions. With
// Text set, questions are extracted from it; otherwise Count questions are
// generated for Level and Section.
type GenerateQuestionsRequest struct {
	Text    string           `json:"text" binding:"omitempty,max=200000"`
	Level   ProficiencyLevel `json:"level" binding:"omitempty,cefr"`
	Section Section          `json:"section" binding:"omitempty,section"`
	Topic   string           `json:"topic" binding:"omitempty,max=200"`
	Count   int              `json:"count" binding:"omitempty,min=1,max=50"`
}

// ImportQuestionsResponse reports the result of an import or generation run.
type ImportQuestionsResponse struct {
	Added      int        `json:"added"`
	Dropped    int        `json:"dropped"`
	NextNumber int        `json:"next_number"`
	Questions  []Question `json:"questions"`
}
