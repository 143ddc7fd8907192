package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/mozoqr/models"
	"gorm.io/gorm"
)

// SessionService reads table sessions. Sessions are opened by order placement
// and closed by payment; there is no explicit start or end call.
type SessionService struct {
	db *gorm.DB
}

func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{db: db}
}

// OpenSession returns the open session of a table with its orders and items.
func (s *SessionService) OpenSession(ctx context.Context, restaurantID, tableNumber uint) (*models.TableSession, error) {
	db := s.db.WithContext(ctx)
	table, err := findTable(db, restaurantID, tableNumber)
	if err != nil {
		return nil, err
	}

	var session models.TableSession
	err = db.Where("restaurant_id = ? AND table_id = ? AND session_status = ?",
		restaurantID, table.ID, models.SessionStatusOpen).
		Preload("Orders", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC") }).
		Preload("Orders.Items").
		Order("opened_at DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("table %d: %w", tableNumber, ErrSessionNotFound)
	}
	if err != nil {
		return nil, persistence("load session", err)
	}
	session.Table = table
	return &session, nil
}

// Table looks up a table of the restaurant by its number.
func (s *SessionService) Table(ctx context.Context, restaurantID, number uint) (*models.Table, error) {
	return findTable(s.db.WithContext(ctx), restaurantID, number)
}

func findTable(db *gorm.DB, restaurantID, number uint) (*models.Table, error) {
	var table models.Table
	err := db.Where("restaurant_id = ? AND number = ?", restaurantID, number).First(&table).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("table %d: %w", number, ErrInvalidTable)
	}
	if err != nil {
		return nil, persistence("load table", err)
	}
	return &table, nil
}

// resolveSession returns the open session of the table matching code, or
// opens a new one. An empty code matches whichever session is open.
func resolveSession(tx *gorm.DB, now time.Time, restaurantID uint, table *models.Table, code string) (*models.TableSession, error) {
	q := tx.Where("restaurant_id = ? AND table_id = ? AND session_status = ?",
		restaurantID, table.ID, models.SessionStatusOpen)
	if code != "" {
		q = q.Where("code = ?", code)
	}

	var session models.TableSession
	err := q.Order("opened_at DESC").First(&session).Error
	if err == nil {
		return &session, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, persistence("load session", err)
	}

	if code == "" {
		code = newSessionCode(now)
	}
	session = models.TableSession{
		RestaurantID:  restaurantID,
		TableID:       table.ID,
		Code:          code,
		SessionStatus: models.SessionStatusOpen,
		OpenedAt:      now,
		Total:         decimal.Zero,
		PaidTotal:     decimal.Zero,
	}
	if err := tx.Create(&session).Error; err != nil {
		return nil, persistence("open session", err)
	}
	return &session, nil
}

func newSessionCode(now time.Time) string {
	return fmt.Sprintf("sess_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

// settleSession books a paid order against its session and closes the session
// when nothing in it is left unpaid. It returns the session when it was closed.
func settleSession(tx *gorm.DB, now time.Time, order *models.Order) (*models.TableSession, error) {
	if err := tx.Model(&models.TableSession{}).
		Where("id = ?", order.SessionID).
		Update("paid_total", gorm.Expr("paid_total + ?", order.Total)).Error; err != nil {
		return nil, persistence("book paid total", err)
	}

	var unpaid int64
	if err := tx.Model(&models.Order{}).
		Where("session_id = ? AND order_status <> ?", order.SessionID, models.OrderStatusPaid).
		Count(&unpaid).Error; err != nil {
		return nil, persistence("count unpaid orders", err)
	}

	closed := false
	if unpaid == 0 {
		res := tx.Model(&models.TableSession{}).
			Where("id = ? AND session_status = ?", order.SessionID, models.SessionStatusOpen).
			Updates(map[string]interface{}{
				"session_status": models.SessionStatusClosed,
				"closed_at":      now,
			})
		if res.Error != nil {
			return nil, persistence("close session", res.Error)
		}
		closed = res.RowsAffected == 1
	}
	if !closed {
		return nil, nil
	}

	var session models.TableSession
	if err := tx.First(&session, order.SessionID).Error; err != nil {
		return nil, persistence("load session", err)
	}
	return &session, nil
}
