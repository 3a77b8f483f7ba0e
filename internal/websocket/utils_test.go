package websocket

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestDecodeFrame(t *testing.T) {
	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	enc := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		in      string
		want    []byte
		wantErr error
	}{
		{"plain base64", enc, raw, nil},
		{"data url", "data:image/jpeg;base64," + enc, raw, nil},
		{"empty", "", nil, ErrEmptyFrame},
		{"empty data url", "data:image/jpeg;base64,", nil, ErrEmptyFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFrame(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DecodeFrame() error = %v, want %v", err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("DecodeFrame() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := DecodeFrame("not base64!"); err == nil {
		t.Error("DecodeFrame(garbage) returned no error")
	}
}

func TestConnRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewConn(raw)
		defer conn.Close()

		var msg ClientMessage
		if err := conn.ReadMessage(&msg); err != nil {
			return
		}
		if msg.Action == ActionPing {
			_ = conn.WriteTyped(PongResponse{Event: EventPong})
			return
		}
		_ = conn.WriteError("UNKNOWN_ACTION", "unknown action")
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	tests := []struct {
		action    Action
		wantEvent Event
	}{
		{ActionPing, EventPong},
		{Action("dance"), EventError},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			c, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			defer c.Close()

			if err := c.WriteJSON(ClientMessage{Action: tt.action}); err != nil {
				t.Fatalf("write: %v", err)
			}
			var resp ErrorResponse
			if err := c.ReadJSON(&resp); err != nil {
				t.Fatalf("read: %v", err)
			}
			if resp.Event != tt.wantEvent {
				t.Errorf("event = %q, want %q", resp.Event, tt.wantEvent)
			}
			if tt.wantEvent == EventError && resp.Code != "UNKNOWN_ACTION" {
				t.Errorf("code = %q", resp.Code)
			}
		})
	}
}
