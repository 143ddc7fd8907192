package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mozoqr/config"
	"github.com/yeremiapane/mozoqr/controllers"
	"github.com/yeremiapane/mozoqr/kds"
	"github.com/yeremiapane/mozoqr/middlewares"
	"github.com/yeremiapane/mozoqr/services"
	"gorm.io/gorm"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	DB       *gorm.DB
	Config   config.Config
	Hub      *kds.Hub
	Orders   *services.OrderService
	Payments *services.PaymentService
	Sessions *services.SessionService
	Catalog  *services.CatalogService
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())

	secret := []byte(d.Config.JWTSecret)
	limiter := middlewares.NewRateLimiter(d.Config.RateLimitRPS, d.Config.RateLimitBurst)
	auth := middlewares.AuthMiddleware(secret)
	staff := middlewares.StaffOnly()

	userCtrl := controllers.NewUserController(d.DB, secret, d.Config.JWTTTL)
	orderCtrl := controllers.NewOrderController(d.Orders)
	paymentCtrl := controllers.NewPaymentController(d.Payments)
	tableCtrl := controllers.NewTableController(d.Sessions, d.Config.PublicBaseURL)
	menuCtrl := controllers.NewMenuController(d.Catalog)
	kdsCtrl := controllers.NewKDSController(d.Hub, d.Config.CORSOrigins)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.POST("/auth/login", limiter.RateLimit(), userCtrl.Login)

	rest := r.Group("/restaurants/:slug", middlewares.ByRestaurant(d.DB))
	{
		// diner facing, reached from the table QR
		rest.GET("/menu", menuCtrl.GetMenu)
		rest.GET("/tables/:number/session", tableCtrl.GetOpenSession)
		rest.POST("/orders", limiter.RateLimit(), orderCtrl.CreateOrder)
		rest.POST("/payments",
			limiter.RateLimit(),
			middlewares.PaymentSecurityHeaders(),
			middlewares.LogPaymentRequest(),
			middlewares.PaymentAuthority(secret, d.Config.PaymentWebhookSecret),
			paymentCtrl.RecordPayment,
		)

		// kitchen display, token in the query string
		rest.GET("/kds/ws", middlewares.WebSocketAuthMiddleware(secret), staff, kdsCtrl.Serve)
	}

	// ----------------------------------------------------------------
	//                      STAFF ROUTES
	// ----------------------------------------------------------------
	staffGroup := rest.Group("", auth, staff)
	{
		staffGroup.GET("/orders", orderCtrl.ListOrders)
		staffGroup.GET("/orders/:id", orderCtrl.GetOrder)
		staffGroup.PATCH("/orders/:id/status", orderCtrl.UpdateOrderStatus)
		staffGroup.PATCH("/products/:id", menuCtrl.UpdateProduct)
		staffGroup.GET("/tables/:number/qr", tableCtrl.GetTableQR)
	}

	return r
}
