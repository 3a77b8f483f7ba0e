package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/importer"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/repository"
)

// ErrNothingImported is returned when every submitted question was dropped.
var ErrNothingImported = errors.New("no usable questions in input")

const (
	questionBankTTL      = time.Hour
	defaultGenerateCount = 5
)

// QuestionService manages the question bank and feeds new exam sessions.
type QuestionService struct {
	questionRepo  *repository.QuestionRepository
	settingSvc    *SettingService
	rdb           *redis.Client
	extractor     importer.Extractor
	questionsFile string
	log           zerolog.Logger
}

// NewQuestionService creates a new QuestionService. extractor may be nil when
// no AI key is configured.
func NewQuestionService(
	questionRepo *repository.QuestionRepository,
	settingSvc *SettingService,
	rdb *redis.Client,
	extractor importer.Extractor,
	questionsFile string,
	log zerolog.Logger,
) *QuestionService {
	return &QuestionService{
		questionRepo:  questionRepo,
		settingSvc:    settingSvc,
		rdb:           rdb,
		extractor:     extractor,
		questionsFile: questionsFile,
		log:           log.With().Str("component", "question_service").Logger(),
	}
}

// LoadQuestions returns the exam question list. It tries the Redis cache,
// then Postgres, then the configured questions file and finally the built-in
// sample set. A database or file hit re-warms the cache.
func (s *QuestionService) LoadQuestions(ctx context.Context) ([]model.Question, error) {
	key := config.CacheKey.QuestionBankKey()
	if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var cached []model.Question
		if json.Unmarshal(data, &cached) == nil && len(cached) > 0 {
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Question cache unavailable")
	}

	questions, err := s.questionRepo.List(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load questions from database")
	}

	if len(questions) == 0 && s.questionsFile != "" {
		questions, err = importer.LoadQuestionsFile(s.questionsFile)
		if err != nil {
			s.log.Warn().Err(err).Str("path", s.questionsFile).Msg("Failed to load questions file")
		}
	}

	if len(questions) == 0 {
		s.log.Info().Msg("Question bank empty, serving sample questions")
		return model.SampleQuestions(), nil
	}

	if data, err := json.Marshal(questions); err == nil {
		if err := s.rdb.Set(ctx, key, data, questionBankTTL).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to warm question cache")
		}
	}
	return questions, nil
}

// List returns the stored bank in exam order.
func (s *QuestionService) List(ctx context.Context) ([]model.Question, error) {
	questions, err := s.questionRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// GetByID retrieves one question.
func (s *QuestionService) GetByID(ctx context.Context, id string) (*model.Question, error) {
	return s.questionRepo.GetByID(ctx, id)
}

// Add appends a single question with a fresh id and the next display number.
func (s *QuestionService) Add(ctx context.Context, req *model.AddQuestionRequest) (*model.Question, error) {
	q := questionFromRequest(req)
	q.ID = importer.NewID()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	number, err := s.settingSvc.ReserveQuestionNumbers(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("reserve number: %w", err)
	}
	q.Number = number

	if err := s.questionRepo.Append(ctx, []model.Question{q}); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return &q, nil
}

// Replace swaps the whole bank. The set is validated as a unit.
func (s *QuestionService) Replace(ctx context.Context, questions []model.Question) error {
	if err := model.ValidateSet(questions); err != nil {
		return err
	}
	if err := s.questionRepo.ReplaceAll(ctx, questions); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.Info().Int("count", len(questions)).Msg("Question bank replaced")
	return nil
}

// Update overwrites one question, keeping its id, number and position.
func (s *QuestionService) Update(ctx context.Context, id string, req *model.AddQuestionRequest) (*model.Question, error) {
	existing, err := s.questionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	q := questionFromRequest(req)
	q.ID = existing.ID
	q.Number = existing.Number
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := s.questionRepo.Update(ctx, &q); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return &q, nil
}

// Delete removes a question from the bank.
func (s *QuestionService) Delete(ctx context.Context, id string) error {
	if err := s.questionRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Import normalizes loosely typed questions and appends the survivors,
// numbering them from the next_question_number setting.
func (s *QuestionService) Import(ctx context.Context, raw []importer.RawQuestion, level model.ProficiencyLevel, section model.Section) (*model.ImportQuestionsResponse, error) {
	res := importer.Normalize(raw, importer.Options{DefaultLevel: level, DefaultSection: section})
	if len(res.Questions) == 0 {
		return nil, fmt.Errorf("%w: %d dropped", ErrNothingImported, res.Dropped)
	}

	start, err := s.settingSvc.ReserveQuestionNumbers(ctx, len(res.Questions))
	if err != nil {
		return nil, fmt.Errorf("reserve numbers: %w", err)
	}
	for i := range res.Questions {
		res.Questions[i].Number = start + i
	}

	if err := s.questionRepo.Append(ctx, res.Questions); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.log.Info().
		Int("added", len(res.Questions)).
		Int("dropped", res.Dropped).
		Msg("Questions imported")

	return &model.ImportQuestionsResponse{
		Added:      len(res.Questions),
		Dropped:    res.Dropped,
		NextNumber: start + len(res.Questions),
		Questions:  res.Questions,
	}, nil
}

// Generate asks the AI extractor for questions, either extracted from the
// supplied text or generated for a level and section, and imports them.
func (s *QuestionService) Generate(ctx context.Context, req *model.GenerateQuestionsRequest) (*model.ImportQuestionsResponse, error) {
	if s.extractor == nil {
		return nil, importer.ErrExtractorDisabled
	}

	var (
		raw []importer.RawQuestion
		err error
	)
	if req.Text != "" {
		raw, err = s.extractor.Extract(ctx, req.Text)
	} else {
		count := req.Count
		if count <= 0 {
			count = defaultGenerateCount
		}
		raw, err = s.extractor.Generate(ctx, importer.GenerateParams{
			Level:   req.Level,
			Section: req.Section,
			Topic:   req.Topic,
			Count:   count,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("ai extraction: %w", err)
	}
	return s.Import(ctx, raw, req.Level, req.Section)
}

func (s *QuestionService) invalidate(ctx context.Context) {
	if err := s.rdb.Del(ctx, config.CacheKey.QuestionBankKey()).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate question cache")
	}
}

func questionFromRequest(req *model.AddQuestionRequest) model.Question {
	subs := append([]model.SubQuestion(nil), req.SubQuestions...)
	for i := range subs {
		if subs[i].ID == "" {
			subs[i].ID = importer.NewID()
		}
	}
	return model.Question{
		Level:         req.Level,
		Section:       req.Section,
		Text:          req.Text,
		Context:       req.Context,
		AudioURL:      req.AudioURL,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		SubQuestions:  subs,
	}
}
