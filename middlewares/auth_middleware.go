package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mozoqr/utils"
)

// Context keys set by the middlewares in this package.
const (
	CtxUserID       = "userID"
	CtxUserRestID   = "userRestaurantID"
	CtxRole         = "role"
	CtxRestaurantID = "restaurantID"
	CtxRestaurant   = "restaurant"
)

func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("authorization header missing"))
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid authorization format"))
			c.Abort()
			return
		}

		if !setClaims(c, secret, strings.TrimPrefix(authHeader, "Bearer ")) {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid or expired token"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// WebSocketAuthMiddleware reads the token from the query string, since
// browsers cannot set headers on a websocket handshake.
func WebSocketAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" || !setClaims(c, secret, token) {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func setClaims(c *gin.Context, secret []byte, token string) bool {
	claims, err := utils.ParseToken(secret, token)
	if err != nil {
		return false
	}
	c.Set(CtxUserID, claims.UserID)
	c.Set(CtxUserRestID, claims.RestaurantID)
	c.Set(CtxRole, claims.Role)
	return true
}
