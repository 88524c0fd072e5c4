package models

import "errors"

// Validation failures. These are recovered at the engine boundary and shown
// to the waiter as advisory messages, never as faults.
var (
	ErrEmptyOrder      = errors.New("order has no items")
	ErrTableNotFound   = errors.New("table not found")
	ErrDishNotFound    = errors.New("dish not found")
	ErrNoTableSelected = errors.New("no table selected")
	ErrInvalidQuantity = errors.New("quantity must not be negative")
)
