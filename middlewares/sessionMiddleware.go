package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/provenroll/enrollfix_backend/utils"
)

// SessionMiddleware validates the token header and attaches the caller's
// identity to the request context. Requests without a token pass through
// anonymously; handlers that need an identity reject those themselves.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		claims, err := utils.JwtValidate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUserIdInContext(ctx, claims.UserId)
		ctx = utils.SetUserEmailInContext(ctx, claims.Email)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
