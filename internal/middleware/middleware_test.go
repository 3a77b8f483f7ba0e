package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/response"
	"github.com/stemsi/ept-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHasAnyPermission(t *testing.T) {
	granted := []string{"questions:read", "reports:read"}

	tests := []struct {
		name  string
		perms []model.Permission
		want  bool
	}{
		{"single match", []model.Permission{model.PermissionReportsRead}, true},
		{"one of many", []model.Permission{model.PermissionSettingsWrite, model.PermissionQuestionsRead}, true},
		{"no match", []model.Permission{model.PermissionSessionsAnnul}, false},
		{"nothing requested", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasAnyPermission(granted, tt.perms...); got != tt.want {
				t.Errorf("HasAnyPermission() = %v, want %v", got, tt.want)
			}
		})
	}

	if HasAnyPermission(nil, model.PermissionReportsRead) {
		t.Error("empty grant list matched")
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name   string
		claims *service.Claims
		want   int
	}{
		{"no claims", nil, http.StatusUnauthorized},
		{"missing permission", &service.Claims{Permissions: []string{"reports:read"}}, http.StatusForbidden},
		{"granted", &service.Claims{Permissions: []string{"sessions:annul"}}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) {
				if tt.claims != nil {
					c.Set(ContextKeyClaims, tt.claims)
				}
				c.Next()
			}, RequirePermission(model.PermissionSessionsAnnul), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestTokenErrCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want response.ErrCode
	}{
		{"missing", errTokenMissing, response.ErrTokenRequired},
		{"expired", fmt.Errorf("parse token: %w", jwt.ErrTokenExpired), response.ErrTokenExpired},
		{"other", errors.New("signature is invalid"), response.ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tokenErrCode(tt.err); got != tt.want {
				t.Errorf("tokenErrCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompressible(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"", true},
		{"application/json; charset=utf-8", true},
		{"text/html", true},
		{"application/javascript", true},
		{"image/svg+xml", true},
		{"application/pdf", false},
		{"image/jpeg", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := compressible(tt.contentType); got != tt.want {
				t.Errorf("compressible(%q) = %v, want %v", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestBrotli(t *testing.T) {
	large := bytes.Repeat([]byte(`{"level":"B2","section":"Reading"},`), 100)
	small := []byte(`{"ok":true}`)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.Data(http.StatusOK, "application/json", large) })
	r.GET("/small", func(c *gin.Context) { c.Data(http.StatusOK, "application/json", small) })
	r.GET("/pdf", func(c *gin.Context) { c.Data(http.StatusOK, "application/pdf", large) })

	do := func(path, accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if accept != "" {
			req.Header.Set("Accept-Encoding", accept)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("large body is compressed", func(t *testing.T) {
		w := do("/large", "gzip, br")
		if got := w.Header().Get("Content-Encoding"); got != "br" {
			t.Fatalf("Content-Encoding = %q, want br", got)
		}
		body, err := io.ReadAll(brotli.NewReader(w.Body))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(body, large) {
			t.Error("decoded body differs from original")
		}
	})

	t.Run("small body passes through", func(t *testing.T) {
		w := do("/small", "br")
		if w.Header().Get("Content-Encoding") != "" {
			t.Error("small body was compressed")
		}
		if !bytes.Equal(w.Body.Bytes(), small) {
			t.Errorf("body = %q", w.Body.String())
		}
	})

	t.Run("binary body passes through", func(t *testing.T) {
		w := do("/pdf", "br")
		if w.Header().Get("Content-Encoding") != "" {
			t.Error("pdf was compressed")
		}
		if !bytes.Equal(w.Body.Bytes(), large) {
			t.Error("pdf body altered")
		}
	})

	t.Run("client without br", func(t *testing.T) {
		w := do("/large", "gzip")
		if w.Header().Get("Content-Encoding") != "" {
			t.Error("compressed for a client that did not ask")
		}
	})
}
