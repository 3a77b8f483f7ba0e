package websocket

import "github.com/stemsi/ept-backend/internal/session"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionGrant     Action = "grant"
	ActionDeny      Action = "deny"
	ActionSelect    Action = "select"
	ActionNext      Action = "next"
	ActionFinish    Action = "finish"
	ActionFrame     Action = "frame"
	ActionIntegrity Action = "integrity"
	ActionPing      Action = "ping"
)

// ClientMessage is every client action; fields are used per action.
type ClientMessage struct {
	Action Action `json:"action"`

	// select
	ItemID string `json:"item_id,omitempty"`
	Option *int   `json:"option,omitempty"`

	// frame: base64 image, a data URL prefix is allowed
	Image string `json:"image,omitempty"`

	// integrity
	Kind   string `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventCompleted Event = "completed"
	EventAnnulled  Event = "annulled"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

type StateResponse struct {
	Event Event            `json:"event"`
	State session.Snapshot `json:"state"`
}

type CompletedResponse struct {
	Event Event `json:"event"`
	Score int   `json:"score"`
}

type AnnulledResponse struct {
	Event  Event  `json:"event"`
	Reason string `json:"reason"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
