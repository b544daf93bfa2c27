package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/auth"
)

// UserIDKey is the gin context key carrying the authenticated user id.
const UserIDKey = "userID"

// AuthMiddleware validates the Authorization header and stores the resolved
// user id on the request context.
func AuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.FromAuthorizationHeader(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		userID, err := verifier.VerifySubject(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}
