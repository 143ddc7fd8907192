package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mozoqr/services"
	"github.com/yeremiapane/mozoqr/utils"
)

// respondServiceError maps core errors to HTTP statuses. Datastore details
// stay in the log.
func respondServiceError(c *gin.Context, err error) {
	var (
		transition *services.TransitionError
		mismatch   *services.AmountMismatchError
	)
	switch {
	case errors.As(err, &transition):
		utils.RespondErrorDetail(c, http.StatusBadRequest, err.Error(), gin.H{
			"code": "invalid_transition",
			"from": transition.From,
			"to":   transition.To,
		})
	case errors.As(err, &mismatch):
		utils.RespondErrorDetail(c, http.StatusBadRequest, err.Error(), gin.H{
			"code":     "amount_mismatch",
			"claimed":  mismatch.Claimed.StringFixed(2),
			"expected": mismatch.Server.StringFixed(2),
		})
	case errors.Is(err, services.ErrValidation):
		utils.RespondErrorDetail(c, http.StatusBadRequest, err.Error(), gin.H{"code": "validation"})
	case errors.Is(err, services.ErrProductUnavailable):
		utils.RespondErrorDetail(c, http.StatusBadRequest, err.Error(), gin.H{"code": "product_unavailable"})
	case errors.Is(err, services.ErrApprovalForbidden):
		utils.RespondErrorDetail(c, http.StatusForbidden, err.Error(), gin.H{"code": "approval_forbidden"})
	case errors.Is(err, services.ErrCrossTenantAccess):
		utils.RespondErrorDetail(c, http.StatusForbidden, err.Error(), gin.H{"code": "cross_tenant"})
	case errors.Is(err, services.ErrNotFound):
		utils.RespondErrorDetail(c, http.StatusNotFound, err.Error(), gin.H{"code": "not_found"})
	default:
		utils.ErrorLogger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		utils.RespondErrorDetail(c, http.StatusInternalServerError, "internal error", gin.H{"code": "internal"})
	}
}

func badRequest(c *gin.Context, err error) {
	utils.RespondErrorDetail(c, http.StatusBadRequest, err.Error(), gin.H{"code": "validation"})
}
