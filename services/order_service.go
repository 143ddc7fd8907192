package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/mozoqr/events"
	"github.com/yeremiapane/mozoqr/models"
	"github.com/yeremiapane/mozoqr/utils"
	"gorm.io/gorm"
)

const DefaultDedupWindow = 90 * time.Second

// OrderService places orders and drives them through the status machine.
type OrderService struct {
	db        *gorm.DB
	locker    Locker
	publisher events.Publisher
	window    time.Duration
	now       func() time.Time
}

type OrderOption func(*OrderService)

func WithLocker(l Locker) OrderOption {
	return func(s *OrderService) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithPublisher(p events.Publisher) OrderOption {
	return func(s *OrderService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithDedupWindow sets how long an identical pending order in the same
// session is treated as a resubmission.
func WithDedupWindow(d time.Duration) OrderOption {
	return func(s *OrderService) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithClock(now func() time.Time) OrderOption {
	return func(s *OrderService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewOrderService(db *gorm.DB, opts ...OrderOption) *OrderService {
	s := &OrderService{
		db:        db,
		locker:    NewLocalLocker(),
		publisher: events.Nop{},
		window:    DefaultDedupWindow,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateOrderRequest struct {
	RestaurantID    uint
	TableNumber     uint
	SessionCode     string
	ClientRequestID string
	Items           []map[string]interface{}
	Notes           string
}

// CreateOrder validates the items against the catalog and persists the order
// with its items in one transaction. deduped is true when an earlier order
// was returned instead of creating a new one.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (order *models.Order, deduped bool, err error) {
	if req.TableNumber == 0 {
		return nil, false, fmt.Errorf("%w: table is required", ErrValidation)
	}
	if len(req.Items) == 0 {
		return nil, false, fmt.Errorf("%w: items are required", ErrValidation)
	}

	lines := make([]LineItem, len(req.Items))
	for i, raw := range req.Items {
		line, err := NormalizeLineItem(raw)
		if err != nil {
			return nil, false, fmt.Errorf("item[%d]: %w", i, err)
		}
		lines[i] = line
	}

	table, err := findTable(s.db.WithContext(ctx), req.RestaurantID, req.TableNumber)
	if err != nil {
		return nil, false, err
	}

	unlock, err := s.locker.Lock(ctx, fmt.Sprintf("table:%d", table.ID))
	if err != nil {
		return nil, false, persistence("lock table", err)
	}
	defer unlock()

	requestID := strings.TrimSpace(req.ClientRequestID)
	now := s.now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := resolveSession(tx, now, req.RestaurantID, table, req.SessionCode)
		if err != nil {
			return err
		}

		if requestID != "" {
			existing, err := findByRequestID(tx, session.ID, requestID)
			if err != nil {
				return err
			}
			if existing != nil {
				order, deduped = existing, true
				return nil
			}
		}

		items := make([]models.OrderItem, len(lines))
		subtotal := decimal.Zero
		for i, line := range lines {
			product, err := orderableProduct(tx, req.RestaurantID, line.ProductID)
			if err != nil {
				return fmt.Errorf("item[%d]: %w", i, err)
			}
			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			subtotal = subtotal.Add(lineTotal)

			title := line.Title
			if title == "" {
				title = product.Name
			}
			items[i] = models.OrderItem{
				ProductID:  product.ID,
				Title:      title,
				Quantity:   line.Quantity,
				UnitPrice:  product.Price,
				TotalPrice: lineTotal,
				Notes:      line.Notes,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
		}

		if requestID == "" {
			existing, err := s.recentDuplicate(tx, session.ID, subtotal, now)
			if err != nil {
				return err
			}
			if existing != nil {
				order, deduped = existing, true
				return nil
			}
		}

		created := models.Order{
			RestaurantID:  req.RestaurantID,
			SessionID:     session.ID,
			TableID:       table.ID,
			OrderStatus:   models.OrderStatusPending,
			Total:         subtotal,
			CustomerNotes: strings.TrimSpace(req.Notes),
			Items:         items,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if requestID != "" {
			created.ClientRequestID = &requestID
		}
		if err := tx.Create(&created).Error; err != nil {
			return persistence("create order", err)
		}

		session.Total = session.Total.Add(subtotal)
		if err := tx.Model(session).Update("total", session.Total).Error; err != nil {
			return persistence("update session total", err)
		}

		created.Session = session
		order = &created
		return nil
	})

	// another replica inserted the same request key first
	if requestID != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, lookupErr := s.orderByRequestID(ctx, req.RestaurantID, table.ID, requestID)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		return existing, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	order.Table = table
	if deduped {
		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id":   order.ID,
			"session_id": order.SessionID,
		}).Info("Duplicate order submission, returning existing order")
		return order, true, nil
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"session_id": order.SessionID,
		"table":      table.Number,
		"total":      order.Total.StringFixed(2),
	}).Info("Order created")
	s.publish(ctx, eventFor(events.OrderCreated, order, table.Number))
	return order, false, nil
}

func orderableProduct(tx *gorm.DB, restaurantID, productID uint) (*models.Product, error) {
	var product models.Product
	err := tx.First(&product, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %d: %w", productID, ErrProductNotFound)
	}
	if err != nil {
		return nil, persistence("load product", err)
	}
	if product.RestaurantID != restaurantID {
		return nil, fmt.Errorf("product %d: %w", productID, ErrCrossTenantProduct)
	}
	if !product.Available {
		return nil, fmt.Errorf("product %d: %w", productID, ErrProductUnavailable)
	}
	return &product, nil
}

func findByRequestID(tx *gorm.DB, sessionID uint, requestID string) (*models.Order, error) {
	var order models.Order
	err := tx.Preload("Items").Preload("Session").
		Where("session_id = ? AND client_request_id = ?", sessionID, requestID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("load order by request id", err)
	}
	return &order, nil
}

func (s *OrderService) orderByRequestID(ctx context.Context, restaurantID, tableID uint, requestID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").Preload("Session").Preload("Table").
		Where("restaurant_id = ? AND table_id = ? AND client_request_id = ?", restaurantID, tableID, requestID).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, persistence("load order by request id", err)
	}
	return &order, nil
}

// recentDuplicate finds a pending order in the session with the same total
// placed inside the dedup window.
func (s *OrderService) recentDuplicate(tx *gorm.DB, sessionID uint, subtotal decimal.Decimal, now time.Time) (*models.Order, error) {
	var pending []models.Order
	if err := tx.Where("session_id = ? AND order_status = ?", sessionID, models.OrderStatusPending).
		Order("created_at DESC").
		Find(&pending).Error; err != nil {
		return nil, persistence("load pending orders", err)
	}

	cutoff := now.Add(-s.window)
	for i := range pending {
		candidate := &pending[i]
		if candidate.CreatedAt.Before(cutoff) || !candidate.Total.Equal(subtotal) {
			continue
		}
		if err := tx.Preload("Items").Preload("Session").First(candidate, candidate.ID).Error; err != nil {
			return nil, persistence("load order", err)
		}
		return candidate, nil
	}
	return nil, nil
}

// UpdateStatus moves an order to status following the transition table.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, tenantID uint, status string) (*models.Order, error) {
	var (
		order  models.Order
		from   string
		closed *models.TableSession
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadTenantOrder(tx.Preload("Items").Preload("Table"), &order, orderID, tenantID); err != nil {
			return err
		}
		from = order.OrderStatus
		if err := CheckTransition(from, status); err != nil {
			return err
		}
		var err error
		closed, err = s.applyStatus(tx, &order, from, status)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, &order, from, closed)
	if fresh, err := s.GetOrder(ctx, orderID, tenantID); err == nil {
		return fresh, nil
	}
	return &order, nil
}

// applyStatus writes the new status and, for paid, settles the session. The
// write only lands while the row still holds from; a concurrent change wins
// and is reported as a rejected transition out of the stored state.
func (s *OrderService) applyStatus(tx *gorm.DB, order *models.Order, from, status string) (*models.TableSession, error) {
	now := s.now()
	res := tx.Model(&models.Order{}).
		Where("id = ? AND order_status = ?", order.ID, from).
		Updates(map[string]interface{}{
			"order_status": status,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, persistence("update order status", res.Error)
	}
	if res.RowsAffected == 0 {
		var current models.Order
		if err := tx.Select("order_status").First(&current, order.ID).Error; err != nil {
			return nil, persistence("reload order status", err)
		}
		order.OrderStatus = current.OrderStatus
		return nil, &TransitionError{From: current.OrderStatus, To: status}
	}
	order.OrderStatus = status
	order.UpdatedAt = now

	if status != models.OrderStatusPaid {
		return nil, nil
	}
	return settleSession(tx, now, order)
}

func (s *OrderService) afterTransition(ctx context.Context, order *models.Order, from string, closed *models.TableSession) {
	tableNumber := s.tableNumber(ctx, order)
	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     from,
		"to":       order.OrderStatus,
	}).Info("Order status changed")

	changed := eventFor(events.OrderStatusChanged, order, tableNumber)
	changed.FromStatus = from
	s.publish(ctx, changed)

	if order.OrderStatus == models.OrderStatusPaid {
		s.publish(ctx, eventFor(events.OrderPaid, order, tableNumber))
	}
	if closed != nil {
		utils.InfoLogger.WithFields(logrus.Fields{
			"session_id": closed.ID,
			"paid_total": closed.PaidTotal.StringFixed(2),
		}).Info("Table session closed")
		s.publish(ctx, events.Event{
			Type:         events.SessionClosed,
			RestaurantID: closed.RestaurantID,
			SessionID:    closed.ID,
			TableNumber:  tableNumber,
			Status:       closed.SessionStatus,
			Total:        closed.PaidTotal,
			OccurredAt:   s.now(),
		})
	}
}

func (s *OrderService) tableNumber(ctx context.Context, order *models.Order) uint {
	if order.Table != nil {
		return order.Table.Number
	}
	var table models.Table
	if err := s.db.WithContext(ctx).Select("number").First(&table, order.TableID).Error; err != nil {
		return 0
	}
	return table.Number
}

func (s *OrderService) publish(ctx context.Context, event events.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"type":     event.Type,
			"order_id": event.OrderID,
		}).Warnf("Publish event: %v", err)
	}
}

func eventFor(kind string, order *models.Order, tableNumber uint) events.Event {
	return events.Event{
		Type:         kind,
		RestaurantID: order.RestaurantID,
		SessionID:    order.SessionID,
		OrderID:      order.ID,
		TableNumber:  tableNumber,
		Status:       order.OrderStatus,
		Total:        order.Total,
	}
}

func loadTenantOrder(tx *gorm.DB, order *models.Order, orderID, tenantID uint) error {
	err := tx.First(order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}
	if err != nil {
		return persistence("load order", err)
	}
	if order.RestaurantID != tenantID {
		return fmt.Errorf("order %d: %w", orderID, ErrCrossTenantAccess)
	}
	return nil
}

// GetOrder returns one order of the tenant with items, session and table.
func (s *OrderService) GetOrder(ctx context.Context, orderID, tenantID uint) (*models.Order, error) {
	var order models.Order
	db := s.db.WithContext(ctx).Preload("Items").Preload("Session").Preload("Table")
	if err := loadTenantOrder(db, &order, orderID, tenantID); err != nil {
		return nil, err
	}
	return &order, nil
}

type OrderFilter struct {
	Status      string
	TableNumber uint
	Since       *time.Time
	Limit       int
}

const maxListLimit = 200

// ListOrders returns the tenant's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, tenantID uint, f OrderFilter) ([]models.Order, error) {
	q := s.db.WithContext(ctx).Model(&models.Order{}).
		Preload("Items").Preload("Table").
		Where("orders.restaurant_id = ?", tenantID)

	if f.Status != "" {
		if !IsKnownStatus(f.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
		}
		q = q.Where("orders.order_status = ?", f.Status)
	}
	if f.TableNumber != 0 {
		q = q.Joins("JOIN tables ON tables.id = orders.table_id").
			Where("tables.number = ?", f.TableNumber)
	}
	if f.Since != nil {
		q = q.Where("orders.created_at >= ?", f.Since.UTC())
	}

	limit := f.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	var orders []models.Order
	if err := q.Order("orders.created_at DESC").Order("orders.id DESC").Limit(limit).Find(&orders).Error; err != nil {
		return nil, persistence("list orders", err)
	}
	return orders, nil
}
