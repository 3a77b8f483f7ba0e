package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stemsi/ept-backend/internal/model"
)

type levelPayload struct {
	Level   string `json:"level" binding:"required,cefr"`
	Section string `json:"section" binding:"omitempty,section"`
}

func init() {
	gin.SetMode(gin.TestMode)
	Setup()
}

func TestCustomTags(t *testing.T) {
	tests := []struct {
		name      string
		in        levelPayload
		wantField string
	}{
		{"valid", levelPayload{Level: "B2", Section: string(model.SectionReading)}, ""},
		{"valid without section", levelPayload{Level: "C1"}, ""},
		{"bad level", levelPayload{Level: "D1"}, "level"},
		{"lowercase level", levelPayload{Level: "b2"}, "level"},
		{"bad section", levelPayload{Level: "A1", Section: "Writing"}, "section"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&tt.in)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected a validation error")
			}
			fields := TranslateErrors(err)
			msg, ok := fields[tt.wantField]
			if !ok {
				t.Fatalf("fields = %v, want key %q", fields, tt.wantField)
			}
			if !strings.HasPrefix(msg, tt.wantField+" must be one of") {
				t.Errorf("message = %q", msg)
			}
		})
	}
}

func TestBind(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"ok", `{"level":"A2"}`, ""},
		{"missing required", `{}`, "level"},
		{"malformed json", `{"level":`, "detail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var dst levelPayload
			fields := Bind(c, &dst)
			if tt.wantField == "" {
				if fields != nil {
					t.Fatalf("Bind() = %v, want nil", fields)
				}
				return
			}
			if _, ok := fields[tt.wantField]; !ok {
				t.Errorf("Bind() = %v, want key %q", fields, tt.wantField)
			}
		})
	}
}
