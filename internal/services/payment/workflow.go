// Package payment runs the short payment state machine layered on top of the
// order lifecycle: pick a method, optionally show a transfer QR, complete,
// show success briefly, close. Completing here is the only path that marks an
// order paid in persistent storage.
package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"restaurant-pos/internal/history"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

// State is the workflow position.
type State string

const (
	StateMethodSelection State = "method_selection"
	StateQRDisplay       State = "qr_display"
	StateSuccess         State = "success"
	StateClosed          State = "closed"
	StateCancelled       State = "cancelled"
)

// Method is a supported payment method.
type Method string

const (
	MethodCash     Method = "cash"
	MethodTransfer Method = "transfer"
)

// MethodLabel returns the human label stored on the paid order.
func MethodLabel(m Method) string {
	switch m {
	case MethodCash:
		return "Tiền mặt"
	case MethodTransfer:
		return "Chuyển khoản"
	default:
		return string(m)
	}
}

// Receipt summarizes the completed payment. The discount is applied here for
// display only; the stored order keeps its full totalAmount.
type Receipt struct {
	Subtotal int64  `json:"subtotal"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
	Method   string `json:"method"`
}

// Notifier publishes the paid event to the kitchen. May be nil.
type Notifier interface {
	PublishOrderPaid(ctx context.Context, order *models.Order) error
}

// Workflow is one payment attempt for one order. It owns a cancelable
// success timer; the completion callback runs exactly once, on timer fire or
// explicit dismissal, never after cancellation.
type Workflow struct {
	mu         sync.Mutex
	order      *models.Order
	store      *history.Store
	notifier   Notifier
	logger     *logger.Logger
	displayFor time.Duration
	onClosed   func(tableID string)

	state  State
	method Method
	timer  *time.Timer
	now    func() time.Time
}

// New starts a workflow for the order. The entry guard rejects a missing or
// empty order.
func New(order *models.Order, store *history.Store, notifier Notifier, log *logger.Logger, displayFor time.Duration, onClosed func(tableID string)) (*Workflow, error) {
	if order == nil || len(order.Items) == 0 {
		return nil, models.ErrEmptyOrder
	}
	return &Workflow{
		order:      order.Clone(),
		store:      store,
		notifier:   notifier,
		logger:     log,
		displayFor: displayFor,
		onClosed:   onClosed,
		state:      StateMethodSelection,
		now:        time.Now,
	}, nil
}

// State returns the current workflow position.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Order returns a copy of the order the workflow holds.
func (w *Workflow) Order() *models.Order {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order.Clone()
}

// ChooseMethod records the payment method. Cash proceeds straight to
// completion; transfer moves to the QR display first.
func (w *Workflow) ChooseMethod(m Method) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateMethodSelection {
		return fmt.Errorf("cannot choose a method in state %s", w.state)
	}
	switch m {
	case MethodCash:
		w.method = m
	case MethodTransfer:
		w.method = m
		w.state = StateQRDisplay
	default:
		return fmt.Errorf("unsupported payment method %q", m)
	}
	return nil
}

// Complete settles the bill: the order is stamped paid with the method label
// and persisted, the kitchen is notified, and the success screen timer
// starts. On a persistence failure the workflow stays where it is so the
// waiter can retry; nothing is marked paid.
func (w *Workflow) Complete(ctx context.Context) (Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.state == StateMethodSelection && w.method == MethodCash:
	case w.state == StateQRDisplay && w.method == MethodTransfer:
	default:
		return Receipt{}, fmt.Errorf("cannot complete payment in state %s", w.state)
	}

	paid := w.order.Clone()
	paid.Status = models.StatusPaid
	paid.PaymentMethod = MethodLabel(w.method)
	paid.UpdatedAt = w.now()

	stored, _, err := w.store.Save(ctx, paid)
	if err != nil {
		return Receipt{}, fmt.Errorf("persist paid order: %w", err)
	}
	w.order = stored

	if w.notifier != nil {
		if err := w.notifier.PublishOrderPaid(ctx, stored); err != nil && w.logger != nil {
			w.logger.Error("kitchen_notify_failed", "Paid event not delivered", "", err, map[string]interface{}{
				"order_id": stored.ID,
			})
		}
	}

	w.state = StateSuccess
	if w.displayFor > 0 {
		w.timer = time.AfterFunc(w.displayFor, w.autoClose)
	}

	receipt := Receipt{
		Subtotal: stored.TotalAmount,
		Discount: stored.DiscountAmount,
		Total:    stored.TotalAmount - stored.DiscountAmount,
		Method:   stored.PaymentMethod,
	}
	return receipt, nil
}

// SetNotes attaches payment notes; they are carried onto the paid record.
func (w *Workflow) SetNotes(notes string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.order.Notes = notes
}

// Dismiss closes the success screen early.
func (w *Workflow) Dismiss() {
	w.close()
}

// Cancel aborts the workflow before completion. No persistence side effects;
// canceling after completion is rejected because the order is already paid.
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateMethodSelection, StateQRDisplay:
		w.state = StateCancelled
		return nil
	default:
		return fmt.Errorf("cannot cancel payment in state %s", w.state)
	}
}

func (w *Workflow) autoClose() {
	w.close()
}

// close transitions Success to Closed and fires the completion callback. The
// state check makes the transition single-shot no matter how many of the
// timer and Dismiss race in.
func (w *Workflow) close() {
	w.mu.Lock()
	if w.state != StateSuccess {
		w.mu.Unlock()
		return
	}
	w.state = StateClosed
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	callback := w.onClosed
	tableID := w.order.TableID
	w.mu.Unlock()

	if callback != nil {
		callback(tableID)
	}
}
