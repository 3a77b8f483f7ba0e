package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/response"
)

// RequirePermission checks that the admin JWT carries perm.
func RequirePermission(perm model.Permission) gin.HandlerFunc {
	return RequireAnyPermission(perm)
}

// RequireAnyPermission checks that the admin JWT carries at least one of perms.
func RequireAnyPermission(perms ...model.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if HasAnyPermission(claims.Permissions, perms...) {
			c.Next()
			return
		}
		response.AbortFail(c, http.StatusForbidden, response.ErrPermissionDenied)
	}
}

// HasAnyPermission reports whether granted contains one of perms.
func HasAnyPermission(granted []string, perms ...model.Permission) bool {
	for _, g := range granted {
		for _, p := range perms {
			if g == string(p) {
				return true
			}
		}
	}
	return false
}
