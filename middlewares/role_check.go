package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mozoqr/models"
	"github.com/yeremiapane/mozoqr/utils"
)

// StaffOnly admits staff and owners of the restaurant in the path. It runs
// after AuthMiddleware and ByRestaurant.
func StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(CtxRole)
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
			c.Abort()
			return
		}
		if role != models.RoleStaff && role != models.RoleOwner {
			utils.RespondError(c, http.StatusForbidden, errors.New("staff access required"))
			c.Abort()
			return
		}
		if c.GetUint(CtxUserRestID) != TenantID(c) {
			utils.RespondError(c, http.StatusForbidden, errors.New("forbidden for this restaurant"))
			c.Abort()
			return
		}
		c.Next()
	}
}
