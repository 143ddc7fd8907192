package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mozoqr/middlewares"
	"github.com/yeremiapane/mozoqr/services"
	"github.com/yeremiapane/mozoqr/utils"
)

type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

type createOrderRequest struct {
	Table           interface{}              `json:"table"`
	TableSessionID  interface{}              `json:"tableSessionId"`
	ClientRequestID string                   `json:"clientRequestId"`
	Items           []map[string]interface{} `json:"items"`
	Notes           string                   `json:"notes"`
}

// CreateOrder -> diner places an order from the table QR page
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var body createOrderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	table, err := services.ParseTableNumber(body.Table)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	requestID := c.GetHeader("Idempotency-Key")
	if requestID == "" {
		requestID = body.ClientRequestID
	}

	order, deduped, err := oc.Orders.CreateOrder(c.Request.Context(), services.CreateOrderRequest{
		RestaurantID:    middlewares.TenantID(c),
		TableNumber:     table,
		SessionCode:     sessionCode(body.TableSessionID),
		ClientRequestID: requestID,
		Items:           body.Items,
		Notes:           body.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if deduped {
		utils.RespondJSONMeta(c, http.StatusOK, "Order already placed", order, gin.H{"deduped": true})
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// sessionCode accepts the session id as a string or a number.
func sessionCode(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

// ListOrders -> staff view of the restaurant's orders
func (oc *OrderController) ListOrders(c *gin.Context) {
	var filter services.OrderFilter
	filter.Status = c.Query("status")

	if raw := c.Query("table"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || n == 0 {
			badRequest(c, errors.New("table must be a positive integer"))
			return
		}
		filter.TableNumber = uint(n)
	}
	if raw := c.Query("since"); raw != "" {
		since, err := parseSince(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.Since = &since
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, errors.New("limit must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}

	orders, err := oc.Orders.ListOrders(c.Request.Context(), middlewares.TenantID(c), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// parseSince accepts RFC 3339 or unix seconds.
func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	return time.Time{}, errors.New("since must be RFC 3339 or unix seconds")
}

// GetOrder -> one order with items
func (oc *OrderController) GetOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := oc.Orders.GetOrder(c.Request.Context(), id, middlewares.TenantID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// UpdateOrderStatus -> staff moves the order along the kitchen flow
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, errors.New("status is required"))
		return
	}

	order, err := oc.Orders.UpdateStatus(c.Request.Context(), id, middlewares.TenantID(c), strings.TrimSpace(body.Status))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

func orderID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, errors.New("invalid order id"))
		return 0, false
	}
	return uint(id), true
}
