package services

import "github.com/yeremiapane/mozoqr/models"

// allowedTransitions is the complete order lifecycle. paid is terminal.
var allowedTransitions = map[string][]string{
	models.OrderStatusPending:   {models.OrderStatusPreparing, models.OrderStatusServed, models.OrderStatusPaid},
	models.OrderStatusPreparing: {models.OrderStatusServed, models.OrderStatusPaid},
	models.OrderStatusServed:    {models.OrderStatusPaid},
	models.OrderStatusPaid:      {},
}

// OrderStatuses lists every known status in lifecycle order.
var OrderStatuses = []string{
	models.OrderStatusPending,
	models.OrderStatusPreparing,
	models.OrderStatusServed,
	models.OrderStatusPaid,
}

func IsKnownStatus(s string) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// AllowedNext returns the statuses reachable from s in one step.
func AllowedNext(s string) []string {
	next := allowedTransitions[s]
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// CheckTransition returns a *TransitionError unless from -> to is allowed.
func CheckTransition(from, to string) error {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}
