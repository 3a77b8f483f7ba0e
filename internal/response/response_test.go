package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNewPagination(t *testing.T) {
	tests := []struct {
		page, perPage, total int
		wantPages            int
	}{
		{1, 10, 0, 0},
		{1, 10, 10, 1},
		{2, 10, 11, 2},
		{1, 0, 5, 0},
	}
	for _, tt := range tests {
		p := NewPagination(tt.page, tt.perPage, tt.total)
		if p.TotalPages != tt.wantPages {
			t.Errorf("NewPagination(%d, %d, %d).TotalPages = %d, want %d",
				tt.page, tt.perPage, tt.total, p.TotalPages, tt.wantPages)
		}
	}
}

func TestValidRequestID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"", false},
		{"abc-123", true},
		{"has space", false},
		{"tab\tinside", false},
		{strings.Repeat("a", maxRequestIDLen), true},
		{strings.Repeat("a", maxRequestIDLen+1), false},
		{"ünicode", false},
	}
	for _, tt := range tests {
		if got := validRequestID(tt.id); got != tt.want {
			t.Errorf("validRequestID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/cooldown", func(c *gin.Context) {
		FailWithDetail(c, http.StatusForbidden, ErrRetakeCooldown, "12 days left")
	})

	req := httptest.NewRequest(http.MethodGet, "/cooldown", nil)
	req.Header.Set("X-Request-ID", "client-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("X-Request-ID"); got != "client-42" {
		t.Errorf("X-Request-ID = %q", got)
	}

	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == nil || body.Error.Code != ErrRetakeCooldown || body.Error.Detail != "12 days left" {
		t.Errorf("error = %+v", body.Error)
	}
	if body.Error.Message != GetMessage(ErrRetakeCooldown) {
		t.Errorf("message = %q", body.Error.Message)
	}
	if body.Metadata.RequestID != "client-42" || body.Metadata.ServerTime == 0 {
		t.Errorf("metadata = %+v", body.Metadata)
	}
}
