package middlewares

import (
	"net/http"
	"strings"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware verifies an identity-provider bearer token when one is sent
// and puts the caller's id, email and names in the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		const bearer = "Bearer "
		if len(auth) < len(bearer) || !strings.EqualFold(auth[:len(bearer)], bearer) {
			c.Next()
			return
		}
		token := strings.TrimSpace(auth[len(bearer):])

		claims, err := utils.JwtValidate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), claims.Subject)
		ctx = utils.SetUserEmailInContext(ctx, claims.Email)
		ctx = utils.SetUsernameInContext(ctx, claims.Username)
		ctx = utils.SetUserNameInContext(ctx, claims.Name)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireIdentity rejects anonymous callers when AUTH_REQUIRED is on.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.AuthRequired() {
			c.Next()
			return
		}
		if utils.ActorFromContext(c.Request.Context()) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
