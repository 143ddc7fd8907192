package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mozoqr/models"
	"github.com/yeremiapane/mozoqr/utils"
	"gorm.io/gorm"
)

// ByRestaurant resolves the :slug path parameter to a restaurant and stores
// its id as the tenant scope of the request.
func ByRestaurant(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug")
		var restaurant models.Restaurant
		err := db.WithContext(c.Request.Context()).Where("slug = ?", slug).First(&restaurant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errors.New("restaurant not found"))
			c.Abort()
			return
		}
		if err != nil {
			utils.ErrorLogger.Errorf("resolve restaurant %q: %v", slug, err)
			utils.RespondError(c, http.StatusInternalServerError, errors.New("internal error"))
			c.Abort()
			return
		}

		c.Set(CtxRestaurantID, restaurant.ID)
		c.Set(CtxRestaurant, restaurant)
		c.Next()
	}
}

// TenantID is the restaurant resolved by ByRestaurant.
func TenantID(c *gin.Context) uint {
	return c.GetUint(CtxRestaurantID)
}

// Tenant is the restaurant resolved by ByRestaurant.
func Tenant(c *gin.Context) models.Restaurant {
	r, _ := c.Get(CtxRestaurant)
	restaurant, _ := r.(models.Restaurant)
	return restaurant
}
