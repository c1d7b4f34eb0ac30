package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hospitalrecords/internal/services"
)

// Context keys set by AuthMiddleware.
const (
	CtxAccountID = "account_id"
	CtxUsername  = "username"
	CtxRole      = "role"
	CtxToken     = "token"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*services.Claims, error)
}

// AuthMiddleware requires a Bearer token backed by an active session.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimSpace(parts[1])

		claims, err := auth.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			if services.IsAuthFailure(err) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Set(CtxAccountID, claims.AccountID)
		c.Set(CtxUsername, claims.Subject)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxToken, tokenStr)

		c.Next()
	}
}
