package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/ept-backend/internal/response"
	"github.com/stemsi/ept-backend/internal/service"
)

// PublicHandler serves unauthenticated endpoints.
type PublicHandler struct {
	certificateService *service.CertificateService
	settingService     *service.SettingService
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(certificateService *service.CertificateService, settingService *service.SettingService) *PublicHandler {
	return &PublicHandler{certificateService: certificateService, settingService: settingService}
}

// VerifyCertificate godoc
// GET /api/v1/public/certificates/:code
// Looks a certificate up by code, case-insensitively.
func (h *PublicHandler) VerifyCertificate(c *gin.Context) {
	cert, err := h.certificateService.Verify(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, service.ErrCertificateNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, cert)
}

// GetPublicSettings godoc
// GET /api/v1/public/settings
func (h *PublicHandler) GetPublicSettings(c *gin.Context) {
	settings, err := h.settingService.GetPublicSettings(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, settings)
}
