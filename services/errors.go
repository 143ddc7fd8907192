package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errors returned by the order, session and payment services. Callers match
// them with errors.Is; the wrapping message carries the context.
var (
	ErrValidation         = errors.New("validation error")
	ErrInvalidLineItem    = fmt.Errorf("%w: invalid line item", ErrValidation)
	ErrNotFound           = errors.New("not found")
	ErrRestaurantNotFound = fmt.Errorf("restaurant %w", ErrNotFound)
	ErrInvalidTable       = fmt.Errorf("table %w", ErrNotFound)
	ErrOrderNotFound      = fmt.Errorf("order %w", ErrNotFound)
	ErrProductNotFound    = fmt.Errorf("product %w", ErrNotFound)
	ErrSessionNotFound    = fmt.Errorf("open session %w", ErrNotFound)
	ErrCrossTenantAccess  = errors.New("entity belongs to another restaurant")
	ErrCrossTenantProduct = fmt.Errorf("product: %w", ErrCrossTenantAccess)
	ErrProductUnavailable = errors.New("product is not available")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrAmountMismatch     = errors.New("amount does not match order subtotal")
	ErrApprovalForbidden  = errors.New("payment approval requires staff or a signed provider callback")
	ErrPersistence        = errors.New("persistence error")
)

// TransitionError reports a rejected status change with both states.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// AmountMismatchError reports a claimed payment amount that differs from the
// server-side subtotal at cent precision.
type AmountMismatchError struct {
	Claimed decimal.Decimal
	Server  decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("claimed amount %s does not match order subtotal %s",
		e.Claimed.StringFixed(2), e.Server.StringFixed(2))
}

func (e *AmountMismatchError) Unwrap() error { return ErrAmountMismatch }

func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
