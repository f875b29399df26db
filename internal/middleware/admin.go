package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Proton-105/inovabank/internal/errors"
	"github.com/Proton-105/inovabank/internal/i18n"
)

// AdminIDHeader identifies the acting admin. Authentication happens upstream.
const AdminIDHeader = "X-Admin-ID"

const adminIDKey = "inovabank.admin_id"

// RequireAdmin rejects requests without an admin identifier and stores it for later handlers.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID := strings.TrimSpace(c.GetHeader(AdminIDHeader))
		if adminID == "" {
			Fail(c, apperrors.NewValidationError("cabeçalho "+AdminIDHeader+" obrigatório"), nil)
			return
		}
		c.Set(adminIDKey, adminID)
		c.Next()
	}
}

// AdminID returns the identifier stored by RequireAdmin.
func AdminID(c *gin.Context) string {
	return c.GetString(adminIDKey)
}

// Locale stores the Accept-Language of the request in its context.
func Locale() gin.HandlerFunc {
	return func(c *gin.Context) {
		if lang := c.GetHeader("Accept-Language"); lang != "" {
			c.Request = c.Request.WithContext(i18n.WithLang(c.Request.Context(), lang))
		}
		c.Next()
	}
}
