package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/utils"
)

const CorrelationIdHeader = "X-Correlation-Id"

// SessionMiddleware resolves the token header to a user. Requests without a token
// pass through anonymous; RequireRole decides whether that is acceptable.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		user, err := models.GetUserByUsername(c.Request.Context(), username)
		if err != nil || (user.IsActive != nil && !*user.IsActive) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, user.Username)
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUserRoleInContext(ctx, string(user.Role))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole rejects anonymous requests with 401 and under-privileged ones with 403.
func RequireRole(min models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := CheckRole(c, min); err != nil {
			status := http.StatusForbidden
			if errors.Is(err, utils.ErrorUnauthorized) {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

func CheckRole(c *gin.Context, min models.UserRole) error {
	if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
		return utils.ErrorUnauthorized
	}
	role, _ := utils.GetUserRoleFromContext(c.Request.Context())
	if models.UserRole(role).Rank() < min.Rank() {
		return utils.ErrorForbidden
	}
	return nil
}

// CorrelationMiddleware tags the request with an id, reusing the caller's when present.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIdHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(CorrelationIdHeader, id)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), id))
		c.Next()
	}
}
