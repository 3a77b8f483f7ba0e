package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/importer"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/response"
	"github.com/stemsi/ept-backend/internal/service"
	"github.com/stemsi/ept-backend/internal/validator"
)

const maxImportBytes = 8 << 20

// QuestionHandler handles question bank endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
	log             zerolog.Logger
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService, log zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
		log:             log.With().Str("component", "question_handler").Logger(),
	}
}

// ListQuestions godoc
// GET /api/v1/admin/questions
// Lists the bank in exam order, answer keys included.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	questions, err := h.questionService.List(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestion godoc
// POST /api/v1/admin/questions
// Appends one question with the next display number.
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Add(c.Request.Context(), &req)
	if err != nil {
		h.failQuestion(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// ReplaceQuestions godoc
// PUT /api/v1/admin/questions
// Bulk replaces the whole bank.
func (h *QuestionHandler) ReplaceQuestions(c *gin.Context) {
	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.questionService.Replace(c.Request.Context(), req.Questions); err != nil {
		h.failQuestion(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "questions replaced successfully"})
}

// UpdateQuestion godoc
// PUT /api/v1/admin/questions/:id
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.failQuestion(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// DeleteQuestion godoc
// DELETE /api/v1/admin/questions/:id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	if err := h.questionService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.failQuestion(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "question deleted successfully"})
}

// ImportQuestions godoc
// POST /api/v1/admin/questions/import?level=B2&section=Grammar
// Accepts loosely typed questions as a JSON or YAML list (or an object with a
// "questions" list), normalizes them and appends the usable ones.
func (h *QuestionHandler) ImportQuestions(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil || len(data) == 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	format := importer.FormatJSON
	if strings.Contains(c.ContentType(), "yaml") {
		format = importer.FormatYAML
	}
	raw, err := importer.DecodeRaw(data, format)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	level := model.ProficiencyLevel(strings.ToUpper(c.Query("level")))
	section := model.Section(c.Query("section"))

	res, err := h.questionService.Import(c.Request.Context(), raw, level, section)
	if err != nil {
		h.failQuestion(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

// GenerateQuestions godoc
// POST /api/v1/admin/questions/generate
// Extracts questions from text, or generates new ones, with the AI model and
// imports them like a manual import.
func (h *QuestionHandler) GenerateQuestions(c *gin.Context) {
	var req model.GenerateQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.questionService.Generate(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, importer.ErrExtractorDisabled):
			response.Fail(c, http.StatusServiceUnavailable, response.ErrExtractorDisabled)
		case errors.Is(err, service.ErrNothingImported):
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrNothingImported)
		default:
			h.log.Error().Err(err).Msg("AI question generation failed")
			response.Fail(c, http.StatusBadGateway, response.ErrExtractorFailed)
		}
		return
	}
	response.Success(c, http.StatusCreated, res)
}

func (h *QuestionHandler) failQuestion(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, model.ErrInvalidQuestion):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidQuestion, map[string]string{
			"question": err.Error(),
		})
	case errors.Is(err, service.ErrNothingImported):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNothingImported)
	default:
		h.log.Error().Err(err).Msg("Question bank operation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
