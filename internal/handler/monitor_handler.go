package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/middleware"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/response"
	"github.com/stemsi/ept-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second
)

type MonitorHandler struct {
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSessionsSSE godoc
// GET /api/v1/admin/sessions/monitor
// Streams a snapshot of live sessions, then every session event, with a
// periodic refresh while sessions are running.
func (h *MonitorHandler) MonitorSessionsSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	events := h.monitorService.Subscribe(reqCtx)

	live := h.sendSessions(c, reqCtx, "snapshot")

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Int("admin_id", claims.AdminID).Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Int("admin_id", claims.AdminID).Msg("Admin disconnected from live monitor SSE")
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent("message", gin.H{"type": "event", "event": ev})
			c.Writer.Flush()
			live = live || ev.Type == model.SessionEventStarted

		case <-refreshTicker.C:
			if !live {
				continue
			}
			live = h.sendSessions(c, reqCtx, "refresh")

		case <-keepAliveTicker.C:
			c.SSEvent("message", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

// sendSessions writes the live session list and reports whether any session
// is running.
func (h *MonitorHandler) sendSessions(c *gin.Context, parentCtx context.Context, kind string) bool {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	sessions, err := h.monitorService.LiveSessions(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch live sessions")
		return true
	}

	c.SSEvent("message", gin.H{
		"type":     kind,
		"total":    len(sessions),
		"sessions": sessions,
	})
	c.Writer.Flush()
	return len(sessions) > 0
}
