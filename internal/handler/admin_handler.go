package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/middleware"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/response"
	"github.com/stemsi/ept-backend/internal/service"
	"github.com/stemsi/ept-backend/internal/session"
	"github.com/stemsi/ept-backend/internal/validator"
)

// AdminHandler handles candidate sales and live session management.
type AdminHandler struct {
	candidateService *service.CandidateService
	sessionService   *service.ExamSessionService
	monitorService   *service.MonitorService
	log              zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	candidateService *service.CandidateService,
	sessionService *service.ExamSessionService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		candidateService: candidateService,
		sessionService:   sessionService,
		monitorService:   monitorService,
		log:              log.With().Str("component", "admin_handler").Logger(),
	}
}

// ListCandidates godoc
// GET /api/v1/admin/candidates?page=1&per_page=10&search=&purchased=&passed=
// Returns the paginated sales list.
func (h *AdminHandler) ListCandidates(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	filter := model.CandidateListFilter{
		Search:  c.Query("search"),
		Page:    page,
		PerPage: perPage,
	}
	if v, err := strconv.ParseBool(c.Query("purchased")); err == nil {
		filter.Purchased = &v
	}
	if v, err := strconv.ParseBool(c.Query("passed")); err == nil {
		filter.Passed = &v
	}

	candidates, pagination, err := h.candidateService.List(c.Request.Context(), filter)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if candidates == nil {
		candidates = []model.Candidate{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"candidates": candidates}, pagination)
}

// RecordPurchase godoc
// POST /api/v1/admin/candidates/:id/purchase
// Marks the exam as paid once the payment redirect completed.
func (h *AdminHandler) RecordPurchase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RecordPurchaseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	candidate, err := h.candidateService.RecordPurchase(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.log.Info().
		Int("admin_id", adminID(c)).
		Str("candidate_id", id.String()).
		Msg("Purchase recorded")
	response.Success(c, http.StatusOK, gin.H{"candidate": candidate})
}

// UnlockCandidate godoc
// POST /api/v1/admin/candidates/:id/unlock
// Reopens the exam immediately, without the retake cooldown.
func (h *AdminHandler) UnlockCandidate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.candidateService.Unlock(c.Request.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "candidate unlocked"})
}

// AnnulSession godoc
// POST /api/v1/admin/sessions/:candidate_id/annul
// Ends a live session with a forced score. No certificate is issued.
func (h *AdminHandler) AnnulSession(c *gin.Context) {
	candidateID, err := uuid.Parse(c.Param("candidate_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AnnulSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err = h.sessionService.Annul(c.Request.Context(), candidateID, req.Percentage, req.Reason)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNoLiveSession):
		response.Fail(c, http.StatusNotFound, response.ErrNoLiveSession)
		return
	case errors.Is(err, session.ErrInvalidScore):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"percentage": err.Error(),
		})
		return
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.log.Warn().
		Int("admin_id", adminID(c)).
		Str("candidate_id", candidateID.String()).
		Int("percentage", req.Percentage).
		Str("reason", req.Reason).
		Msg("Session annulled by admin")
	response.Success(c, http.StatusAccepted, gin.H{"message": "session annulment submitted"})
}

// ListLiveSessions godoc
// GET /api/v1/admin/sessions/live
func (h *AdminHandler) ListLiveSessions(c *gin.Context) {
	sessions, err := h.monitorService.LiveSessions(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// ReviewAttempt godoc
// GET /api/v1/admin/attempts/:attempt_id
// Returns the answer audit count, integrity events and evidence frame list.
func (h *AdminHandler) ReviewAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	review, err := h.monitorService.ReviewAttempt(c.Request.Context(), attemptID)
	if err != nil {
		h.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to load attempt review")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, review)
}

// GetFrame godoc
// GET /api/v1/admin/attempts/:attempt_id/frames/:seq
// Serves one stored evidence frame as JPEG.
func (h *AdminHandler) GetFrame(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil || seq < 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	img, err := h.monitorService.Frame(c.Request.Context(), attemptID, seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", img)
}

func adminID(c *gin.Context) int {
	if claims := middleware.GetClaims(c); claims != nil {
		return claims.AdminID
	}
	return 0
}
