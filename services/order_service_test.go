package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/mozoqr/database"
	"github.com/yeremiapane/mozoqr/events"
	"github.com/yeremiapane/mozoqr/models"
)

func TestCreateOrderUsesCatalogPrice(t *testing.T) {
	env := newTestEnv(t)
	a := env.demo.Available

	raw := item(a.ID, 2)
	raw["price"] = 1 // client claims a bargain
	order := env.order(t, raw)

	assert.Equal(t, models.OrderStatusPending, order.OrderStatus)
	assert.Equal(t, "2000.00", order.Total.StringFixed(2))
	require.Len(t, order.Items, 1)
	assert.Equal(t, "1000.00", order.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "2000.00", order.Items[0].TotalPrice.StringFixed(2))
	assert.Equal(t, "Milanesa", order.Items[0].Title)

	require.NotNil(t, order.Session)
	assert.Equal(t, models.SessionStatusOpen, order.Session.SessionStatus)
	assert.Equal(t, "2000.00", order.Session.Total.StringFixed(2))
	assert.Regexp(t, `^sess_\d+_[0-9a-f-]{8}$`, order.Session.Code)
	require.NotNil(t, order.Table)
	assert.Equal(t, uint(database.DemoTableNumber), order.Table.Number)

	assert.Equal(t, []string{events.OrderCreated}, env.pub.types())
}

func TestCreateOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	other, foreign := env.otherRestaurant(t)
	rid := env.demo.Restaurant.ID
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateOrderRequest
		want error
	}{
		{"missing table", CreateOrderRequest{RestaurantID: rid, Items: []map[string]interface{}{item(env.demo.Available.ID, 1)}}, ErrValidation},
		{"no items", CreateOrderRequest{RestaurantID: rid, TableNumber: database.DemoTableNumber}, ErrValidation},
		{"zero quantity", CreateOrderRequest{RestaurantID: rid, TableNumber: database.DemoTableNumber,
			Items: []map[string]interface{}{item(env.demo.Available.ID, 0)}}, ErrInvalidLineItem},
		{"unknown table", CreateOrderRequest{RestaurantID: rid, TableNumber: 99,
			Items: []map[string]interface{}{item(env.demo.Available.ID, 1)}}, ErrInvalidTable},
		{"table of another restaurant", CreateOrderRequest{RestaurantID: other.ID, TableNumber: database.DemoTableNumber,
			Items: []map[string]interface{}{item(foreign.ID, 1)}}, ErrInvalidTable},
		{"unknown product", CreateOrderRequest{RestaurantID: rid, TableNumber: database.DemoTableNumber,
			Items: []map[string]interface{}{item(9999, 1)}}, ErrProductNotFound},
		{"foreign product", CreateOrderRequest{RestaurantID: rid, TableNumber: database.DemoTableNumber,
			Items: []map[string]interface{}{item(foreign.ID, 1)}}, ErrCrossTenantProduct},
		{"unavailable product", CreateOrderRequest{RestaurantID: rid, TableNumber: database.DemoTableNumber,
			Items: []map[string]interface{}{item(env.demo.Unavailable.ID, 1)}}, ErrProductUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := env.orders.CreateOrder(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.Zero(t, env.count(t, &models.Order{}))
	assert.Empty(t, env.pub.types())
}

func TestCreateOrderLeavesNothingOnFailure(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.orders.CreateOrder(context.Background(), CreateOrderRequest{
		RestaurantID: env.demo.Restaurant.ID,
		TableNumber:  database.DemoTableNumber,
		Items: []map[string]interface{}{
			item(env.demo.Available.ID, 2),
			item(env.demo.Unavailable.ID, 1),
		},
	})
	require.ErrorIs(t, err, ErrProductUnavailable)
	assert.Contains(t, err.Error(), "item[1]")

	assert.Zero(t, env.count(t, &models.Order{}))
	assert.Zero(t, env.count(t, &models.OrderItem{}))
	assert.Zero(t, env.count(t, &models.TableSession{}))
}

func TestCreateOrderDedupWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.demo.Available.ID
	req := CreateOrderRequest{
		RestaurantID: env.demo.Restaurant.ID,
		TableNumber:  database.DemoTableNumber,
		Items:        []map[string]interface{}{item(a, 2)},
	}

	first, deduped, err := env.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	require.False(t, deduped)

	env.clock.Advance(30 * time.Second)
	again, deduped, err := env.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.True(t, deduped)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, again.Items, 1)

	var session models.TableSession
	require.NoError(t, env.db.First(&session, first.SessionID).Error)
	assert.Equal(t, "2000.00", session.Total.StringFixed(2))

	// different subtotal in the window is a new order
	bigger, deduped, err := env.orders.CreateOrder(ctx, CreateOrderRequest{
		RestaurantID: req.RestaurantID,
		TableNumber:  req.TableNumber,
		Items:        []map[string]interface{}{item(a, 3)},
	})
	require.NoError(t, err)
	assert.False(t, deduped)
	assert.NotEqual(t, first.ID, bigger.ID)

	// same subtotal once the window has passed is a new order too
	env.clock.Advance(61 * time.Second)
	later, deduped, err := env.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.False(t, deduped)
	assert.NotEqual(t, first.ID, later.ID)
	assert.Equal(t, first.SessionID, later.SessionID)

	assert.Equal(t, int64(3), env.count(t, &models.Order{}))
}

func TestCreateOrderDedupIgnoresOrdersInProgress(t *testing.T) {
	env := newTestEnv(t)
	first := env.order(t, item(env.demo.Available.ID, 1))
	_, err := env.orders.UpdateStatus(context.Background(), first.ID, env.demo.Restaurant.ID, models.OrderStatusPreparing)
	require.NoError(t, err)

	second := env.order(t, item(env.demo.Available.ID, 1))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateOrderClientRequestID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.demo.Available.ID
	req := CreateOrderRequest{
		RestaurantID:    env.demo.Restaurant.ID,
		TableNumber:     database.DemoTableNumber,
		ClientRequestID: "req-1",
		Items:           []map[string]interface{}{item(a, 2)},
	}

	first, deduped, err := env.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	require.False(t, deduped)
	require.NotNil(t, first.ClientRequestID)
	assert.Equal(t, "req-1", *first.ClientRequestID)

	// retried long after the time window still resolves to the stored order
	env.clock.Advance(10 * time.Minute)
	again, deduped, err := env.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.True(t, deduped)
	assert.Equal(t, first.ID, again.ID)

	// a new key is a new order even with the same subtotal
	req.ClientRequestID = "req-2"
	other, deduped, err := env.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.False(t, deduped)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCreateOrderConcurrentDuplicatesSerialize(t *testing.T) {
	env := newTestEnv(t)
	req := CreateOrderRequest{
		RestaurantID: env.demo.Restaurant.ID,
		TableNumber:  database.DemoTableNumber,
		Items:        []map[string]interface{}{item(env.demo.Available.ID, 2)},
	}

	const n = 8
	ids := make([]uint, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, _, err := env.orders.CreateOrder(context.Background(), req)
			errs[i] = err
			if order != nil {
				ids[i] = order.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, int64(1), env.count(t, &models.Order{}))
	assert.Equal(t, int64(1), env.count(t, &models.TableSession{}))
}

func TestPriceChangeDoesNotTouchExistingItems(t *testing.T) {
	env := newTestEnv(t)
	order := env.order(t, item(env.demo.Available.ID, 2))

	require.NoError(t, env.db.Model(&models.Product{}).
		Where("id = ?", env.demo.Available.ID).
		Update("price", decimal.NewFromInt(1500)).Error)

	var items []models.OrderItem
	require.NoError(t, env.db.Where("order_id = ?", order.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, "1000.00", items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "2000.00", items[0].TotalPrice.StringFixed(2))

	got, err := env.orders.GetOrder(context.Background(), order.ID, env.demo.Restaurant.ID)
	require.NoError(t, err)
	assert.Equal(t, "2000.00", ServerSubtotal(got).StringFixed(2))

	// new orders use the new price
	next := env.order(t, item(env.demo.Available.ID, 1))
	assert.Equal(t, "1500.00", next.Total.StringFixed(2))
}

func TestSessionCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.demo.Available.ID
	base := CreateOrderRequest{RestaurantID: env.demo.Restaurant.ID, TableNumber: database.DemoTableNumber}

	withCode := base
	withCode.SessionCode = "qr-abc"
	withCode.Items = []map[string]interface{}{item(a, 1)}
	first, _, err := env.orders.CreateOrder(ctx, withCode)
	require.NoError(t, err)
	assert.Equal(t, "qr-abc", first.Session.Code)

	withCode.Items = []map[string]interface{}{item(a, 2)}
	second, _, err := env.orders.CreateOrder(ctx, withCode)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, "3000.00", second.Session.Total.StringFixed(2))

	// no code joins whatever session is open on the table
	noCode := base
	noCode.Items = []map[string]interface{}{item(a, 3)}
	third, _, err := env.orders.CreateOrder(ctx, noCode)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, third.SessionID)

	other := base
	other.SessionCode = "qr-other"
	other.Items = []map[string]interface{}{item(a, 4)}
	fourth, _, err := env.orders.CreateOrder(ctx, other)
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, fourth.SessionID)
}

func TestUpdateStatusFollowsTransitionTable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rid := env.demo.Restaurant.ID

	allowed := map[[2]string]bool{
		{"pending", "preparing"}: true, {"pending", "served"}: true, {"pending", "paid"}: true,
		{"preparing", "served"}: true, {"preparing", "paid"}: true,
		{"served", "paid"}: true,
	}

	for _, from := range OrderStatuses {
		for _, to := range OrderStatuses {
			order := env.order(t, item(env.demo.Available.ID, 1))
			require.NoError(t, env.db.Model(order).Update("order_status", from).Error)
			env.clock.Advance(2 * time.Minute)

			got, err := env.orders.UpdateStatus(ctx, order.ID, rid, to)
			if allowed[[2]string{from, to}] {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, got.OrderStatus)
				continue
			}
			var te *TransitionError
			require.ErrorAs(t, err, &te, "%s -> %s", from, to)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, from, te.From)
			assert.Equal(t, to, te.To)

			var stored models.Order
			require.NoError(t, env.db.First(&stored, order.ID).Error)
			assert.Equal(t, from, stored.OrderStatus)
		}
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	order := env.order(t, item(env.demo.Available.ID, 1))

	_, err := env.orders.UpdateStatus(context.Background(), order.ID, env.demo.Restaurant.ID, "cancelled")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), `"pending"`)
	assert.Contains(t, err.Error(), `"cancelled"`)
}

func TestUpdateStatusTenantScope(t *testing.T) {
	env := newTestEnv(t)
	other, _ := env.otherRestaurant(t)
	order := env.order(t, item(env.demo.Available.ID, 1))
	ctx := context.Background()

	_, err := env.orders.UpdateStatus(ctx, order.ID, other.ID, models.OrderStatusPreparing)
	assert.ErrorIs(t, err, ErrCrossTenantAccess)

	_, err = env.orders.UpdateStatus(ctx, 424242, env.demo.Restaurant.ID, models.OrderStatusPreparing)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.orders.GetOrder(ctx, order.ID, other.ID)
	assert.ErrorIs(t, err, ErrCrossTenantAccess)

	var stored models.Order
	require.NoError(t, env.db.First(&stored, order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, stored.OrderStatus)
}

func TestPayingLastOrderClosesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rid := env.demo.Restaurant.ID

	first := env.order(t, item(env.demo.Available.ID, 1))
	second := env.order(t, item(env.demo.Available.ID, 2))
	require.Equal(t, first.SessionID, second.SessionID)

	_, err := env.orders.UpdateStatus(ctx, first.ID, rid, models.OrderStatusPaid)
	require.NoError(t, err)

	var session models.TableSession
	require.NoError(t, env.db.First(&session, first.SessionID).Error)
	assert.Equal(t, models.SessionStatusOpen, session.SessionStatus)
	assert.Equal(t, "1000.00", session.PaidTotal.StringFixed(2))
	assert.Equal(t, "3000.00", session.Total.StringFixed(2))

	env.pub.Calls = nil
	_, err = env.orders.UpdateStatus(ctx, second.ID, rid, models.OrderStatusPaid)
	require.NoError(t, err)

	require.NoError(t, env.db.First(&session, first.SessionID).Error)
	assert.Equal(t, models.SessionStatusClosed, session.SessionStatus)
	assert.Equal(t, "3000.00", session.PaidTotal.StringFixed(2))
	require.NotNil(t, session.ClosedAt)
	assert.Equal(t,
		[]string{events.OrderStatusChanged, events.OrderPaid, events.SessionClosed},
		env.pub.types())

	// the next diner at the table gets a fresh session
	next := env.order(t, item(env.demo.Available.ID, 1))
	assert.NotEqual(t, first.SessionID, next.SessionID)
}

func TestUpdateStatusLosesToConcurrentPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.order(t, item(env.demo.Available.ID, 1))
	env.pub.Calls = nil

	env.interleave(t, fmt.Sprintf("UPDATE orders SET order_status = 'paid' WHERE id = %d", order.ID))

	_, err := env.orders.UpdateStatus(ctx, order.ID, env.demo.Restaurant.ID, models.OrderStatusServed)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, models.OrderStatusPaid, terr.From)
	assert.Equal(t, models.OrderStatusServed, terr.To)

	var stored models.Order
	require.NoError(t, env.db.First(&stored, order.ID).Error)
	assert.Equal(t, models.OrderStatusPaid, stored.OrderStatus)
	assert.Empty(t, env.pub.types())
}

func TestListOrdersFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rid := env.demo.Restaurant.ID
	other, foreign := env.otherRestaurant(t)

	require.NoError(t, env.db.Create(&models.Table{RestaurantID: rid, Number: 7}).Error)

	atFive := env.order(t, item(env.demo.Available.ID, 1))
	env.clock.Advance(5 * time.Minute)
	atSeven, _, err := env.orders.CreateOrder(ctx, CreateOrderRequest{
		RestaurantID: rid, TableNumber: 7,
		Items: []map[string]interface{}{item(env.demo.Available.ID, 2)},
	})
	require.NoError(t, err)
	_, err = env.orders.UpdateStatus(ctx, atSeven.ID, rid, models.OrderStatusPreparing)
	require.NoError(t, err)
	_, _, err = env.orders.CreateOrder(ctx, CreateOrderRequest{
		RestaurantID: other.ID, TableNumber: 1,
		Items: []map[string]interface{}{item(foreign.ID, 1)},
	})
	require.NoError(t, err)

	all, err := env.orders.ListOrders(ctx, rid, OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, atSeven.ID, all[0].ID, "newest first")

	byTable, err := env.orders.ListOrders(ctx, rid, OrderFilter{TableNumber: 5})
	require.NoError(t, err)
	require.Len(t, byTable, 1)
	assert.Equal(t, atFive.ID, byTable[0].ID)

	byStatus, err := env.orders.ListOrders(ctx, rid, OrderFilter{Status: models.OrderStatusPreparing})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, atSeven.ID, byStatus[0].ID)

	since := atFive.CreatedAt.Add(time.Minute)
	recent, err := env.orders.ListOrders(ctx, rid, OrderFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, atSeven.ID, recent[0].ID)

	_, err = env.orders.ListOrders(ctx, rid, OrderFilter{Status: "lost"})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestPublishFailureDoesNotFailOrder(t *testing.T) {
	env := newTestEnv(t)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	orders := NewOrderService(env.db, WithPublisher(pub), WithClock(env.clock.Now))

	order, _, err := orders.CreateOrder(context.Background(), CreateOrderRequest{
		RestaurantID: env.demo.Restaurant.ID,
		TableNumber:  database.DemoTableNumber,
		Items:        []map[string]interface{}{item(env.demo.Available.ID, 1)},
	})
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	pub.AssertNumberOfCalls(t, "Publish", 1)
}
