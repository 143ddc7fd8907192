package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/mozoqr/events"
	"github.com/yeremiapane/mozoqr/models"
	"github.com/yeremiapane/mozoqr/utils"
	"gorm.io/gorm"
)

const PaymentStatusPending = "pending"

// PaymentService reconciles payment confirmations against the amounts stored
// on the order. It is the only path that moves an order straight to paid.
type PaymentService struct {
	db     *gorm.DB
	orders *OrderService
}

func NewPaymentService(db *gorm.DB, orders *OrderService) *PaymentService {
	return &PaymentService{db: db, orders: orders}
}

type PaymentRequest struct {
	RestaurantID uint
	OrderID      uint
	// Amount is the total the caller claims was paid. Nil skips the check.
	Amount      *decimal.Decimal
	Status      string
	Provider    string
	ExternalRef string
	// Authorized marks a verified staff or provider caller. Only those may
	// approve a payment.
	Authorized bool
}

type PaymentResult struct {
	Order *models.Order
	// Payment is nil when the record could not be stored.
	Payment        *models.Payment
	ServerSubtotal decimal.Decimal
}

// RecordPayment validates the claimed amount against the item snapshot,
// records the payment and marks the order paid when the status is approved.
func (s *PaymentService) RecordPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = PaymentStatusPending
	}
	if status == models.PaymentStatusApproved && !req.Authorized {
		return nil, ErrApprovalForbidden
	}

	var (
		res    PaymentResult
		order  models.Order
		from   string
		paid   bool
		closed *models.TableSession
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadTenantOrder(tx.Preload("Items"), &order, req.OrderID, req.RestaurantID); err != nil {
			return err
		}
		from = order.OrderStatus

		res.ServerSubtotal = ServerSubtotal(&order)
		if req.Amount != nil && !SameCents(*req.Amount, res.ServerSubtotal) {
			return &AmountMismatchError{Claimed: *req.Amount, Server: res.ServerSubtotal}
		}

		payment := models.Payment{
			RestaurantID: order.RestaurantID,
			OrderID:      order.ID,
			Amount:       res.ServerSubtotal,
			Status:       status,
			Provider:     strings.TrimSpace(req.Provider),
			ExternalRef:  strings.TrimSpace(req.ExternalRef),
		}
		// savepoint: a failed record must not roll back the status change
		if err := tx.Transaction(func(ptx *gorm.DB) error {
			return ptx.Create(&payment).Error
		}); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"order_id": order.ID,
				"status":   status,
			}).Warnf("Payment record not stored: %v", err)
		} else {
			res.Payment = &payment
		}

		if status != models.PaymentStatusApproved || order.IsTerminal() {
			return nil
		}
		if err := CheckTransition(from, models.OrderStatusPaid); err != nil {
			return err
		}
		var err error
		closed, err = s.orders.applyStatus(tx, &order, from, models.OrderStatusPaid)
		var terr *TransitionError
		if errors.As(err, &terr) && terr.From == models.OrderStatusPaid {
			// settled by a concurrent approval
			return nil
		}
		paid = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Order = &order
	if res.Payment != nil {
		s.orders.publish(ctx, events.Event{
			Type:         events.PaymentRecorded,
			RestaurantID: order.RestaurantID,
			SessionID:    order.SessionID,
			OrderID:      order.ID,
			Status:       status,
			Total:        res.ServerSubtotal,
		})
	}
	if paid {
		s.orders.afterTransition(ctx, &order, from, closed)
	}
	return &res, nil
}

// ServerSubtotal sums quantity times the snapshotted unit price of every item.
// Orders without items fall back to their stored total.
func ServerSubtotal(order *models.Order) decimal.Decimal {
	if len(order.Items) == 0 {
		return order.Total
	}
	sum := decimal.Zero
	for _, it := range order.Items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// SameCents compares two amounts after rounding both to whole cents.
func SameCents(a, b decimal.Decimal) bool {
	return a.Round(2).Equal(b.Round(2))
}
