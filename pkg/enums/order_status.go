package enums

import (
	"fmt"
	"strings"
)

// OrderStatus tracks an order through fulfillment.
type OrderStatus string

const (
	OrderStatusOrdered    OrderStatus = "ordered"
	OrderStatusInProgress OrderStatus = "in progress"
	OrderStatusPickedUp   OrderStatus = "picked up"
	OrderStatusDelivered  OrderStatus = "delivered"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusOrdered,
	OrderStatusInProgress,
	OrderStatusPickedUp,
	OrderStatusDelivered,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition exists.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered
}

// ParseOrderStatus accepts the canonical value as well as "in_progress" and
// "picked-up" spellings, which are friendlier in URLs.
func ParseOrderStatus(value string) (OrderStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	for _, candidate := range validOrderStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
