package middleware

import (
	"errors"

	"go_domainlink/internal/auth"
	"go_domainlink/internal/httpx"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextUID is the gin context key holding the authenticated user id
const ContextUID = "uid"

// AuthRequired is a middleware that validates the JWT bearer token
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			httpx.FailErr(c, httpx.ErrUnauthorized(err.Error()))
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				httpx.FailErr(c, httpx.ErrTokenExpired("token expired"))
			} else {
				httpx.FailErr(c, httpx.ErrInvalidToken("invalid token"))
			}
			c.Abort()
			return
		}

		c.Set(ContextUID, claims.UID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by AuthRequired
func UserID(c *gin.Context) (int, bool) {
	uid, ok := c.Get(ContextUID)
	if !ok {
		return 0, false
	}
	id, ok := uid.(int)
	return id, ok && id > 0
}
