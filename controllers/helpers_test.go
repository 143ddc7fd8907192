package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/mozoqr/config"
	"github.com/yeremiapane/mozoqr/database"
	"github.com/yeremiapane/mozoqr/kds"
	"github.com/yeremiapane/mozoqr/models"
	"github.com/yeremiapane/mozoqr/router"
	"github.com/yeremiapane/mozoqr/services"
	"github.com/yeremiapane/mozoqr/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testSecret        = "controller-test-secret"
	testWebhookSecret = "controller-test-webhook"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.InitLogger("error")
}

type testApp struct {
	r     *gin.Engine
	db    *gorm.DB
	demo  *database.DemoData
	hub   *kds.Hub
	token string
}

type envelope struct {
	Status  bool                   `json:"status"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Error   map[string]interface{} `json:"error"`
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := database.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared", logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	demo, err := database.Seed(db)
	require.NoError(t, err)

	cfg := config.Config{
		JWTSecret:        testSecret,
		JWTTTL:           time.Hour,
		PublicBaseURL:    "https://mozoqr.test",
		OrderDedupWindow: 90 * time.Second,
		RateLimitRPS:     1000,
		RateLimitBurst:   1000,

		PaymentWebhookSecret: testWebhookSecret,
	}
	hub := kds.NewHub()
	orders := services.NewOrderService(db, services.WithPublisher(hub), services.WithDedupWindow(cfg.OrderDedupWindow))
	r := router.SetupRouter(router.Deps{
		DB:       db,
		Config:   cfg,
		Hub:      hub,
		Orders:   orders,
		Payments: services.NewPaymentService(db, orders),
		Sessions: services.NewSessionService(db),
		Catalog:  services.NewCatalogService(db),
	})

	return &testApp{
		r:     r,
		db:    db,
		demo:  demo,
		hub:   hub,
		token: staffToken(t, demo.Staff.ID, demo.Restaurant.ID),
	}
}

func staffToken(t *testing.T, userID, restaurantID uint) string {
	t.Helper()
	tok, err := utils.GenerateToken([]byte(testSecret), time.Hour, userID, restaurantID, models.RoleStaff)
	require.NoError(t, err)
	return tok
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, token string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeOrder(t *testing.T, w *httptest.ResponseRecorder) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &order), w.Body.String())
	return order
}

func (a *testApp) placeOrder(t *testing.T, qty int) models.Order {
	t.Helper()
	w := a.do(t, http.MethodPost, "/restaurants/demo/orders", gin.H{
		"table": database.DemoTableNumber,
		"items": []gin.H{{"productId": a.demo.Available.ID, "quantity": qty}},
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeOrder(t, w)
}

// rival creates a second restaurant with one table, product and order.
func (a *testApp) rival(t *testing.T) (models.Restaurant, models.Order) {
	t.Helper()
	r := models.Restaurant{Slug: "rival", Name: "Rival"}
	require.NoError(t, a.db.Create(&r).Error)
	require.NoError(t, a.db.Create(&models.Table{RestaurantID: r.ID, Number: 1}).Error)
	require.NoError(t, a.db.Create(&models.Product{RestaurantID: r.ID, Name: "Pizza", Price: decimalFrom(700), Available: true}).Error)

	var product models.Product
	require.NoError(t, a.db.Where("restaurant_id = ?", r.ID).First(&product).Error)
	w := a.do(t, http.MethodPost, "/restaurants/rival/orders", gin.H{
		"table": 1,
		"items": []gin.H{{"productId": product.ID, "quantity": 1}},
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return r, decodeOrder(t, w)
}
