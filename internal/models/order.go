package models

import (
	"fmt"
	"time"
)

// OrderStatus is the closed set of order states.
//
// The persisted history of older clients used "completed" as a synonym for
// paid; ParseOrderStatus folds it into StatusPaid once at ingestion so no
// comparison site has to know about the alias.
type OrderStatus string

const (
	StatusDraft     OrderStatus = "draft"
	StatusSaved     OrderStatus = "saved"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusServed    OrderStatus = "served"
	StatusPaid      OrderStatus = "paid"
	StatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus validates a raw status string and resolves legacy aliases.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusDraft, StatusSaved, StatusConfirmed, StatusPreparing,
		StatusReady, StatusServed, StatusPaid, StatusCancelled:
		return OrderStatus(s), nil
	case "completed":
		return StatusPaid, nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// IsOpenUnpaid reports whether the status keeps a table occupied: the order
// has been saved but the bill has not been settled.
func (s OrderStatus) IsOpenUnpaid() bool {
	switch s {
	case StatusSaved, StatusConfirmed, StatusPreparing, StatusReady, StatusServed:
		return true
	}
	return false
}

// IsTerminal reports whether the order is closed and must never be restamped.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// ItemStatus tracks a line item through the kitchen. Informational only to
// the ordering core.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemServed    ItemStatus = "served"
)

// OrderItem is one dish line on an order. DishName is denormalized at
// add-time for display; Price is refreshed from the menu on every
// reconciliation point and must not be trusted long-term. Quantity is always
// at least 1 — an item reaching zero is removed, never kept.
type OrderItem struct {
	ID       string     `json:"id"`
	DishID   string     `json:"dish_id"`
	DishName string     `json:"dish_name"`
	Quantity int        `json:"quantity"`
	Price    int64      `json:"price"`
	Status   ItemStatus `json:"status"`
}

// Order represents a table's order through its whole lifecycle.
type Order struct {
	ID             string      `json:"id"`
	TableID        string      `json:"table_id"`
	TableName      string      `json:"table_name"`
	WaiterID       string      `json:"waiter_id"`
	WaiterName     string      `json:"waiter_name"`
	Items          []OrderItem `json:"items"`
	Status         OrderStatus `json:"status"`
	TotalAmount    int64       `json:"total_amount"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	SavedAt        *time.Time  `json:"saved_at,omitempty"`
	CustomerName   string      `json:"customer_name,omitempty"`
	DiscountAmount int64       `json:"discount_amount,omitempty"`
	PaymentMethod  string      `json:"payment_method,omitempty"`
	Notes          string      `json:"notes,omitempty"`
}

// RecalculateTotal resets TotalAmount from the line items. Persisted totals
// are never trusted.
func (o *Order) RecalculateTotal() {
	var total int64
	for _, item := range o.Items {
		total += item.Price * int64(item.Quantity)
	}
	o.TotalAmount = total
}

// Clone returns a deep copy so snapshots handed to callers cannot alias the
// engine's state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	if o.SavedAt != nil {
		t := *o.SavedAt
		c.SavedAt = &t
	}
	return &c
}
