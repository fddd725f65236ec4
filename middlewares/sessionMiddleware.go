package middlewares

import (
	"net/http"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware accepts opaque session tokens kept in redis under
// "Token:<token>" (value: username). Bearer tokens are handled by AuthMiddleware.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		if _, ok := utils.GetUserIdFromContext(c.Request.Context()); ok {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetUsernameInContext(c.Request.Context(), username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
