package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/mozoqr/middlewares"
	"github.com/yeremiapane/mozoqr/services"
	"github.com/yeremiapane/mozoqr/utils"
)

type PaymentController struct {
	Payments *services.PaymentService
}

func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{Payments: payments}
}

type recordPaymentRequest struct {
	OrderID     uint             `json:"orderId"`
	Status      string           `json:"status"`
	Amount      *decimal.Decimal `json:"amount"`
	Provider    string           `json:"provider"`
	ExternalRef string           `json:"externalRef"`
}

// RecordPayment -> payment confirmation from the checkout page, staff or a
// signed provider callback. Anonymous callers cannot approve.
func (pc *PaymentController) RecordPayment(c *gin.Context) {
	var body recordPaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if body.OrderID == 0 {
		badRequest(c, errors.New("orderId is required"))
		return
	}

	res, err := pc.Payments.RecordPayment(c.Request.Context(), services.PaymentRequest{
		RestaurantID: middlewares.TenantID(c),
		OrderID:      body.OrderID,
		Amount:       body.Amount,
		Status:       body.Status,
		Provider:     body.Provider,
		ExternalRef:  body.ExternalRef,
		Authorized:   middlewares.PaymentCaller(c) != "",
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment recorded", gin.H{
		"order":    res.Order,
		"payment":  res.Payment,
		"subtotal": res.ServerSubtotal.StringFixed(2),
	})
}
