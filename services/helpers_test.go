package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/mozoqr/database"
	"github.com/yeremiapane/mozoqr/events"
	"github.com/yeremiapane/mozoqr/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) types() []string {
	var out []string
	for _, c := range m.Calls {
		out = append(out, c.Arguments.Get(1).(events.Event).Type)
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	db       *gorm.DB
	demo     *database.DemoData
	clock    *fakeClock
	pub      *mockPublisher
	orders   *OrderService
	payments *PaymentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared", logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	demo, err := database.Seed(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	clock := &fakeClock{t: time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)}

	orders := NewOrderService(db,
		WithClock(clock.Now),
		WithPublisher(pub),
		WithDedupWindow(DefaultDedupWindow),
	)
	return &testEnv{
		db:       db,
		demo:     demo,
		clock:    clock,
		pub:      pub,
		orders:   orders,
		payments: NewPaymentService(db, orders),
	}
}

func item(productID uint, qty int) map[string]interface{} {
	return map[string]interface{}{"productId": float64(productID), "quantity": float64(qty)}
}

func (e *testEnv) order(t *testing.T, items ...map[string]interface{}) *models.Order {
	t.Helper()
	order, deduped, err := e.orders.CreateOrder(context.Background(), CreateOrderRequest{
		RestaurantID: e.demo.Restaurant.ID,
		TableNumber:  database.DemoTableNumber,
		Items:        items,
	})
	require.NoError(t, err)
	require.False(t, deduped)
	return order
}

// otherRestaurant creates a second tenant with one table and one product.
func (e *testEnv) otherRestaurant(t *testing.T) (models.Restaurant, models.Product) {
	t.Helper()
	r := models.Restaurant{Slug: "other-" + uuid.NewString()[:6], Name: "Other"}
	require.NoError(t, e.db.Create(&r).Error)
	require.NoError(t, e.db.Create(&models.Table{RestaurantID: r.ID, Number: 1}).Error)
	p := models.Product{RestaurantID: r.ID, Name: "Pizza", Price: decimal.NewFromInt(700), Available: true}
	require.NoError(t, e.db.Create(&p).Error)
	return r, p
}

func (e *testEnv) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

// interleave runs the statements inside the next UPDATE issued through the
// env's db, right before it reaches the database. It stands in for a
// concurrent writer committing between a read and the write that follows it.
func (e *testEnv) interleave(t *testing.T, stmts ...string) {
	t.Helper()
	const name = "test:interleave"
	var once sync.Once
	require.NoError(t, e.db.Callback().Update().Before("gorm:update").Register(name, func(db *gorm.DB) {
		once.Do(func() {
			for _, stmt := range stmts {
				assert.NoError(t, db.Session(&gorm.Session{NewDB: true}).Exec(stmt).Error)
			}
		})
	}))
	t.Cleanup(func() { _ = e.db.Callback().Update().Remove(name) })
}
