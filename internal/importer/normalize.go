// Package importer turns loosely typed question objects from files, admin
// pastes and AI output into validated model.Question values.
package importer

import (
	"crypto/rand"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stemsi/ept-backend/internal/model"
)

// RawSubQuestion is a matching item as found in untrusted input.
type RawSubQuestion struct {
	ID                 string `json:"id" yaml:"id"`
	Text               string `json:"text" yaml:"text"`
	CorrectAnswer      any    `json:"correctAnswer" yaml:"correctAnswer"`
	CorrectAnswerIndex any    `json:"correctAnswerIndex" yaml:"correctAnswerIndex"`
}

// RawQuestion is a question as found in untrusted input. Answer fields may be
// numbers, numeric strings or letters.
type RawQuestion struct {
	Level              string           `json:"level" yaml:"level"`
	Section            string           `json:"section" yaml:"section"`
	Text               string           `json:"text" yaml:"text"`
	Context            string           `json:"context" yaml:"context"`
	AudioURL           string           `json:"audioUrl" yaml:"audioUrl"`
	Options            []string         `json:"options" yaml:"options"`
	CorrectAnswer      any              `json:"correctAnswer" yaml:"correctAnswer"`
	CorrectAnswerIndex any              `json:"correctAnswerIndex" yaml:"correctAnswerIndex"`
	AnswerText         string           `json:"answerText" yaml:"answerText"`
	SubQuestions       []RawSubQuestion `json:"subQuestions" yaml:"subQuestions"`
}

// StandardOptionCount is the number of options a standard question ends up with.
const StandardOptionCount = 4

// Options controls normalization defaults.
type Options struct {
	DefaultLevel   model.ProficiencyLevel
	DefaultSection model.Section
	// StartNumber is the display number given to the first kept question.
	StartNumber int
	NewID       func() string
}

// Result is the output of Normalize.
type Result struct {
	Questions  []model.Question
	Dropped    int
	NextNumber int
}

// Normalize converts raw questions. Questions without text, or matching tasks
// without options, are dropped; everything else is coerced into a valid shape.
func Normalize(raw []RawQuestion, opts Options) Result {
	if !opts.DefaultLevel.Valid() {
		opts.DefaultLevel = model.LevelB2
	}
	if !opts.DefaultSection.Valid() {
		opts.DefaultSection = model.SectionGrammar
	}
	if opts.StartNumber < 1 {
		opts.StartNumber = 1
	}
	if opts.NewID == nil {
		opts.NewID = NewID
	}

	res := Result{NextNumber: opts.StartNumber}
	for i := range raw {
		q, ok := normalizeOne(&raw[i], opts)
		if !ok {
			res.Dropped++
			continue
		}
		q.Number = res.NextNumber
		res.NextNumber++
		res.Questions = append(res.Questions, q)
	}
	return res
}

func normalizeOne(r *RawQuestion, opts Options) (model.Question, bool) {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return model.Question{}, false
	}

	q := model.Question{
		ID:       opts.NewID(),
		Level:    model.ProficiencyLevel(strings.ToUpper(strings.TrimSpace(r.Level))),
		Section:  matchSection(r.Section),
		Text:     text,
		Context:  strings.TrimSpace(r.Context),
		AudioURL: strings.TrimSpace(r.AudioURL),
	}
	if !q.Level.Valid() {
		q.Level = opts.DefaultLevel
	}
	if !q.Section.Valid() {
		q.Section = opts.DefaultSection
	}

	if len(r.SubQuestions) > 0 {
		if len(r.Options) == 0 {
			return model.Question{}, false
		}
		q.Options = append([]string(nil), r.Options...)
		q.CorrectAnswer = 0
		for _, sq := range r.SubQuestions {
			idx, ok := asIndex(sq.CorrectAnswerIndex)
			if !ok {
				idx, _ = asIndex(sq.CorrectAnswer)
			}
			q.SubQuestions = append(q.SubQuestions, model.SubQuestion{
				ID:            opts.NewID(),
				Text:          strings.TrimSpace(sq.Text),
				CorrectAnswer: clamp(idx, 0, len(q.Options)-1),
			})
		}
		return q, true
	}

	q.Options = padOptions(r.Options)
	q.CorrectAnswer = clamp(resolveIndex(r, q.Options), 0, StandardOptionCount-1)
	return q, true
}

// resolveIndex applies, in order: correctAnswerIndex, numeric correctAnswer,
// letter correctAnswer, answerText match.
func resolveIndex(r *RawQuestion, options []string) int {
	idx, ok := asIndex(r.CorrectAnswerIndex)
	if !ok {
		idx, _ = asIndex(r.CorrectAnswer)
	}
	if s, isStr := r.CorrectAnswer.(string); isStr {
		letter := strings.ToUpper(strings.TrimSpace(s))
		if len(letter) == 1 && letter[0] >= 'A' && letter[0] <= 'D' {
			idx = int(letter[0] - 'A')
		}
	}
	if want := strings.ToLower(strings.TrimSpace(r.AnswerText)); want != "" {
		for i, o := range options {
			if strings.ToLower(strings.TrimSpace(o)) == want {
				idx = i
				break
			}
		}
	}
	return idx
}

func padOptions(in []string) []string {
	out := make([]string, 0, StandardOptionCount)
	for _, o := range in {
		if len(out) == StandardOptionCount {
			break
		}
		out = append(out, o)
	}
	for len(out) < StandardOptionCount {
		out = append(out, fmt.Sprintf("Option %d", len(out)+1))
	}
	return out
}

func matchSection(s string) model.Section {
	s = strings.TrimSpace(s)
	for _, sec := range model.AllSections {
		if strings.EqualFold(string(sec), s) {
			return sec
		}
	}
	return model.Section(s)
}

// asIndex reads an integer out of a decoded JSON/YAML value. Strings are
// accepted only when they hold a plain integer.
func asIndex(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID returns a random 9 character lowercase base-36 id.
func NewID() string {
	buf := make([]byte, 9)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf)
}
