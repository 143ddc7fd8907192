package middlewares

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/mozoqr/models"
	"github.com/yeremiapane/mozoqr/utils"
)

// CtxPaymentCaller holds who vouched for a payment request: "staff",
// "provider", or nothing for an anonymous diner.
const CtxPaymentCaller = "paymentCaller"

const (
	PaymentCallerStaff    = "staff"
	PaymentCallerProvider = "provider"

	// PaymentSignatureHeader carries the hex HMAC-SHA256 of the raw body.
	PaymentSignatureHeader = "X-Payment-Signature"
)

// PaymentAuthority identifies the caller of a payment route. A staff token of
// the restaurant in the path or a body signed with webhookSecret makes the
// caller trusted. Requests with neither pass through as anonymous; a bad
// token or signature is rejected.
func PaymentAuthority(secret []byte, webhookSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") ||
				!setClaims(c, secret, strings.TrimPrefix(authHeader, "Bearer ")) {
				utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid or expired token"))
				c.Abort()
				return
			}
			role := c.GetString(CtxRole)
			if (role == models.RoleStaff || role == models.RoleOwner) && c.GetUint(CtxUserRestID) == TenantID(c) {
				c.Set(CtxPaymentCaller, PaymentCallerStaff)
			}
			c.Next()
			return
		}

		signature := c.GetHeader(PaymentSignatureHeader)
		if signature == "" {
			c.Next()
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("unreadable body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		if webhookSecret == "" || !validSignature(webhookSecret, body, signature) {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid payment signature"))
			c.Abort()
			return
		}
		c.Set(CtxPaymentCaller, PaymentCallerProvider)
		c.Next()
	}
}

// PaymentCaller returns the caller set by PaymentAuthority.
func PaymentCaller(c *gin.Context) string {
	return c.GetString(CtxPaymentCaller)
}

// SignPayment returns the signature a provider sends for body.
func SignPayment(webhookSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(webhookSecret string, body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(SignPayment(webhookSecret, body))
	return hmac.Equal(got, want)
}

// PaymentSecurityHeaders keeps payment responses out of caches and frames.
func PaymentSecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}

// LogPaymentRequest logs every payment request with its caller and outcome.
func LogPaymentRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		caller := PaymentCaller(c)
		if caller == "" {
			caller = "anonymous"
		}
		fields := logrus.Fields{
			"restaurant_id": TenantID(c),
			"caller":        caller,
			"status":        c.Writer.Status(),
			"latency":       time.Since(start).String(),
			"client_ip":     c.ClientIP(),
		}
		if c.Writer.Status() >= http.StatusBadRequest {
			utils.ErrorLogger.WithFields(fields).Warn("Payment request rejected")
			return
		}
		utils.InfoLogger.WithFields(fields).Info("Payment request")
	}
}
