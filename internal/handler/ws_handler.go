package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/evidence"
	"github.com/stemsi/ept-backend/internal/middleware"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/response"
	"github.com/stemsi/ept-backend/internal/service"
	"github.com/stemsi/ept-backend/internal/session"
	ws "github.com/stemsi/ept-backend/internal/websocket"
)

const statePushInterval = time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the candidate exam stream.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/v1/candidate/exam?token=
// Opens or resumes the candidate's exam session and streams its state.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	// Eligibility is checked before the upgrade so refusals stay plain HTTP.
	live, err := h.sessionService.Start(c.Request.Context(), claims.CandidateID)
	if err != nil {
		if errors.Is(err, service.ErrNotEligible) {
			response.Fail(c, http.StatusForbidden, response.ErrNotEligible)
			return
		}
		h.log.Error().Err(err).Str("candidate_id", claims.CandidateID.String()).Msg("Failed to start exam session")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Str("candidate_id", claims.CandidateID.String()).
		Str("attempt_id", live.Machine.AttemptID().String()).
		Logger()
	wsLog.Info().Msg("Candidate connected")

	events, unsubscribe := live.Subscribe()
	defer unsubscribe()

	stop := make(chan struct{})
	defer close(stop)
	go h.push(conn, live, events, stop, wsLog)

	h.writeState(conn, live)

	for {
		var msg ws.ClientMessage
		if err := conn.ReadMessage(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		// The session outlives this connection, so actions use their own context.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := h.dispatch(ctx, conn, live, &msg)
		cancel()

		if err != nil {
			code := wsErrCode(err)
			if code == response.ErrInternal {
				wsLog.Error().Err(err).Str("action", string(msg.Action)).Msg("Exam action failed")
			}
			conn.WriteError(string(code), response.GetMessage(code))
			continue
		}
		if msg.Action != ws.ActionPing && msg.Action != ws.ActionFrame && msg.Action != ws.ActionIntegrity {
			h.writeState(conn, live)
		}
	}
}

// dispatch applies one client action to the live session.
func (h *WSHandler) dispatch(ctx context.Context, conn *ws.Conn, live *service.LiveSession, msg *ws.ClientMessage) error {
	switch msg.Action {
	case ws.ActionGrant:
		return h.sessionService.Grant(ctx, live, true)
	case ws.ActionDeny:
		return h.sessionService.Grant(ctx, live, false)
	case ws.ActionSelect:
		if msg.ItemID == "" || msg.Option == nil {
			return errMissingSelection
		}
		return h.sessionService.Select(ctx, live, msg.ItemID, *msg.Option)
	case ws.ActionNext:
		return h.sessionService.Next(ctx, live)
	case ws.ActionFinish:
		return h.sessionService.Finish(live)
	case ws.ActionFrame:
		data, err := ws.DecodeFrame(msg.Image)
		if err != nil {
			return evidence.ErrBadFrame
		}
		return h.sessionService.PushFrame(live, data)
	case ws.ActionIntegrity:
		h.sessionService.ReportIntegrity(ctx, live, model.IntegrityKind(msg.Kind), msg.Detail)
		return nil
	case ws.ActionPing:
		return conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
	default:
		return errUnknownAction
	}
}

// push sends periodic state and the session's host events until the session
// settles or the connection goes away.
func (h *WSHandler) push(conn *ws.Conn, live *service.LiveSession, events <-chan service.HostEvent, stop <-chan struct{}, log zerolog.Logger) {
	ticker := time.NewTicker(statePushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := h.writeState(conn, live); err != nil {
				return
			}
		case ev := <-events:
			switch ev.Kind {
			case model.SessionEventCompleted:
				h.writeState(conn, live)
				conn.WriteTyped(ws.CompletedResponse{Event: ws.EventCompleted, Score: ev.Score})
				log.Info().Int("score", ev.Score).Msg("Exam completed")
				h.closeNormal(conn)
				return
			case model.SessionEventAnnulled:
				h.writeState(conn, live)
				conn.WriteTyped(ws.AnnulledResponse{Event: ws.EventAnnulled, Reason: ev.Reason})
				log.Warn().Str("reason", ev.Reason).Msg("Exam annulled")
				h.closeNormal(conn)
				return
			case model.SessionEventError:
				code := wsErrCode(ev.Err)
				conn.WriteError(string(code), response.GetMessage(code))
				h.writeState(conn, live)
			}
		}
	}
}

func (h *WSHandler) writeState(conn *ws.Conn, live *service.LiveSession) error {
	return conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: live.Machine.Snapshot()})
}

func (h *WSHandler) closeNormal(conn *ws.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
		time.Now().Add(time.Second))
	conn.Close()
}

var (
	errMissingSelection = errors.New("item_id and option are required")
	errUnknownAction    = errors.New("unknown action")
)

// wsErrCode maps session errors to stable client codes.
func wsErrCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, session.ErrCapabilityDenied):
		return response.ErrCapabilityDenied
	case errors.Is(err, session.ErrNotInProgress):
		return response.ErrSessionNotInProgress
	case errors.Is(err, session.ErrUnknownItem),
		errors.Is(err, session.ErrOptionOutOfRange),
		errors.Is(err, errMissingSelection):
		return response.ErrInvalidSelection
	case errors.Is(err, session.ErrPersistFailed):
		return response.ErrPersistFailed
	case errors.Is(err, evidence.ErrBadFrame):
		return response.ErrBadFrame
	case errors.Is(err, errUnknownAction):
		return response.ErrUnknownAction
	default:
		return response.ErrInternal
	}
}
