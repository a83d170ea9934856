package middleware

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rehive/adapter-framework/internal/api_gateway/service"
	"github.com/rehive/adapter-framework/internal/domain/user"
)

const (
	adminScheme = "Secret"
	userScheme  = "JWT"

	// UserKey is the key used to store the authenticated ledger user in the context
	UserKey = "user"
)

// AdminAuth accepts requests carrying "Authorization: Secret <secret>".
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := credentials(c, adminScheme)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid admin credentials")
			return
		}
		c.Next()
	}
}

// WebhookSecret accepts requests whose "secret" query parameter matches
// secret. An empty secret disables the check.
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.Query("secret")), []byte(secret)) != 1 {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid webhook secret")
			return
		}
		c.Next()
	}
}

// UserAuth accepts requests carrying "Authorization: JWT <token>" that the
// platform verifies, and stores the resulting ledger user on the context.
func UserAuth(logger *slog.Logger, auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := credentials(c, userScheme)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user token")
			return
		}

		u, err := auth.AuthenticateUser(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrUnauthenticated):
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user token")
			return
		case errors.Is(err, service.ErrCompanyMismatch):
			abort(c, http.StatusForbidden, "FORBIDDEN", "User is not permitted")
			return
		default:
			logger.Error("Failed to authenticate user", "error", err, "correlation_id", GetCorrelationID(c))
			abort(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Unable to verify user token")
			return
		}

		c.Set(UserKey, u)
		c.Next()
	}
}

// CurrentUser returns the user stored by UserAuth, or nil
func CurrentUser(c *gin.Context) *user.User {
	if v, exists := c.Get(UserKey); exists {
		if u, ok := v.(*user.User); ok {
			return u
		}
	}
	return nil
}

func credentials(c *gin.Context, scheme string) (string, bool) {
	header := c.GetHeader("Authorization")
	prefix, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(prefix, scheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, status int, code, message string) {
	response := gin.H{"error": gin.H{"code": code, "message": message}}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(status, response)
}
