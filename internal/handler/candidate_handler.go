package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/middleware"
	"github.com/stemsi/ept-backend/internal/response"
	"github.com/stemsi/ept-backend/internal/service"
)

// CandidateHandler handles the candidate portal.
type CandidateHandler struct {
	candidateService   *service.CandidateService
	certificateService *service.CertificateService
	log                zerolog.Logger
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(candidateService *service.CandidateService, certificateService *service.CertificateService, log zerolog.Logger) *CandidateHandler {
	return &CandidateHandler{
		candidateService:   candidateService,
		certificateService: certificateService,
		log:                log.With().Str("component", "candidate_handler").Logger(),
	}
}

// Dashboard godoc
// GET /api/v1/candidate/dashboard
// Returns status, latest outcome, history and retake availability.
func (h *CandidateHandler) Dashboard(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	dashboard, err := h.candidateService.Dashboard(c.Request.Context(), claims.CandidateID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build candidate dashboard")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, dashboard)
}

// Retake godoc
// POST /api/v1/candidate/retake
// Archives the latest result and reopens the exam once the cooldown elapsed.
func (h *CandidateHandler) Retake(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	err := h.candidateService.Retake(c.Request.Context(), claims.CandidateID)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNoResultToRetake):
		response.Fail(c, http.StatusConflict, response.ErrNothingToRetake)
		return
	case errors.Is(err, service.ErrRetakeCooldown):
		response.FailWithDetail(c, http.StatusForbidden, response.ErrRetakeCooldown, err.Error())
		return
	default:
		h.log.Error().Err(err).Msg("Retake failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	dashboard, err := h.candidateService.Dashboard(c.Request.Context(), claims.CandidateID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, dashboard)
}

// Certificate godoc
// GET /api/v1/candidate/certificate.pdf
// Downloads the certificate when passed, otherwise the performance report.
func (h *CandidateHandler) Certificate(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	pdf, filename, err := h.certificateService.RenderForCandidate(c.Request.Context(), claims.CandidateID)
	if err != nil {
		if errors.Is(err, service.ErrNoExamResult) {
			response.Fail(c, http.StatusNotFound, response.ErrNoExamResult)
			return
		}
		h.log.Error().Err(err).Msg("Failed to render certificate")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Attachment(c, "application/pdf", filename, pdf)
}
