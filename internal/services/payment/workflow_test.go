package payment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"restaurant-pos/internal/history"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

func newTestStore(t *testing.T) *history.Store {
	t.Helper()
	return history.NewStore(storage.NewMemory(), logger.New("payment-test"))
}

func testOrder() *models.Order {
	order := &models.Order{
		ID:        "o1",
		TableID:   "1",
		TableName: "A1",
		Items: []models.OrderItem{
			{ID: "i1", DishID: "1", DishName: "Salad Tuna", Quantity: 2, Price: 200000, Status: models.ItemPending},
		},
		Status:         models.StatusSaved,
		DiscountAmount: 30000,
	}
	order.RecalculateTotal()
	return order
}

func TestNewRejectsEmptyOrder(t *testing.T) {
	store := newTestStore(t)

	if _, err := New(nil, store, nil, nil, 0, nil); !errors.Is(err, models.ErrEmptyOrder) {
		t.Errorf("nil order: expected ErrEmptyOrder, got %v", err)
	}
	empty := &models.Order{ID: "o1", Items: []models.OrderItem{}}
	if _, err := New(empty, store, nil, nil, 0, nil); !errors.Is(err, models.ErrEmptyOrder) {
		t.Errorf("empty order: expected ErrEmptyOrder, got %v", err)
	}
}

func TestCashPaymentCompletes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	workflow, err := New(testOrder(), store, nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("new workflow: %v", err)
	}
	if workflow.State() != StateMethodSelection {
		t.Fatalf("expected method selection, got %s", workflow.State())
	}

	if err := workflow.ChooseMethod(MethodCash); err != nil {
		t.Fatalf("choose cash: %v", err)
	}
	if workflow.State() != StateMethodSelection {
		t.Errorf("cash must not detour through the QR screen, got %s", workflow.State())
	}
	workflow.SetNotes("paid at counter")

	receipt, err := workflow.Complete(ctx)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if workflow.State() != StateSuccess {
		t.Errorf("expected success state, got %s", workflow.State())
	}
	if receipt.Subtotal != 400000 || receipt.Discount != 30000 || receipt.Total != 370000 {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
	if receipt.Method != "Tiền mặt" {
		t.Errorf("expected cash label, got %q", receipt.Method)
	}

	stored, err := store.FindByID(ctx, "o1")
	if err != nil || stored == nil {
		t.Fatalf("history lookup: %v", err)
	}
	if stored.Status != models.StatusPaid {
		t.Errorf("expected paid status, got %s", stored.Status)
	}
	if stored.PaymentMethod != "Tiền mặt" {
		t.Errorf("expected stored method label, got %q", stored.PaymentMethod)
	}
	// The discount is a receipt-level adjustment; the stored total stays full.
	if stored.TotalAmount != 400000 {
		t.Errorf("stored total must stay 400000, got %d", stored.TotalAmount)
	}
	if stored.Notes != "paid at counter" {
		t.Errorf("expected notes on the paid record, got %q", stored.Notes)
	}
}

func TestTransferGoesThroughQRDisplay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	workflow, err := New(testOrder(), store, nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("new workflow: %v", err)
	}

	if err := workflow.ChooseMethod(MethodTransfer); err != nil {
		t.Fatalf("choose transfer: %v", err)
	}
	if workflow.State() != StateQRDisplay {
		t.Fatalf("expected QR display, got %s", workflow.State())
	}

	receipt, err := workflow.Complete(ctx)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if receipt.Method != "Chuyển khoản" {
		t.Errorf("expected transfer label, got %q", receipt.Method)
	}

	stored, err := store.FindByID(ctx, "o1")
	if err != nil || stored == nil {
		t.Fatalf("history lookup: %v", err)
	}
	if stored.PaymentMethod != "Chuyển khoản" {
		t.Errorf("expected stored transfer label, got %q", stored.PaymentMethod)
	}
}

func TestCompleteRequiresMethod(t *testing.T) {
	workflow, err := New(testOrder(), newTestStore(t), nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("new workflow: %v", err)
	}
	if _, err := workflow.Complete(context.Background()); err == nil {
		t.Error("completing without a method must fail")
	}
}

func TestUnsupportedMethodRejected(t *testing.T) {
	workflow, err := New(testOrder(), newTestStore(t), nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("new workflow: %v", err)
	}
	if err := workflow.ChooseMethod(Method("card")); err == nil {
		t.Error("expected unsupported-method error")
	}
}

func TestCancelBeforeCompletionHasNoEffects(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	workflow, err := New(testOrder(), store, nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("new workflow: %v", err)
	}
	if err := workflow.ChooseMethod(MethodTransfer); err != nil {
		t.Fatalf("choose transfer: %v", err)
	}
	if err := workflow.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if workflow.State() != StateCancelled {
		t.Errorf("expected cancelled state, got %s", workflow.State())
	}

	stored, err := store.FindByID(ctx, "o1")
	if err != nil {
		t.Fatalf("history lookup: %v", err)
	}
	if stored != nil {
		t.Error("cancel must not persist anything")
	}
}

func TestCancelAfterCompletionRejected(t *testing.T) {
	workflow, err := New(testOrder(), newTestStore(t), nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("new workflow: %v", err)
	}
	workflow.ChooseMethod(MethodCash)
	if _, err := workflow.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := workflow.Cancel(); err == nil {
		t.Error("canceling a settled payment must fail")
	}
}

func TestDismissClosesExactlyOnce(t *testing.T) {
	var closes atomic.Int32

	workflow, err := New(testOrder(), newTestStore(t), nil, nil, time.Hour, func(tableID string) {
		if tableID != "1" {
			t.Errorf("expected table 1 in callback, got %q", tableID)
		}
		closes.Add(1)
	})
	if err != nil {
		t.Fatalf("new workflow: %v", err)
	}
	workflow.ChooseMethod(MethodCash)
	if _, err := workflow.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	workflow.Dismiss()
	workflow.Dismiss()
	if workflow.State() != StateClosed {
		t.Errorf("expected closed state, got %s", workflow.State())
	}
	if got := closes.Load(); got != 1 {
		t.Errorf("expected one close callback, got %d", got)
	}
}

func TestSuccessScreenAutoCloses(t *testing.T) {
	closed := make(chan string, 1)

	workflow, err := New(testOrder(), newTestStore(t), nil, nil, 10*time.Millisecond, func(tableID string) {
		closed <- tableID
	})
	if err != nil {
		t.Fatalf("new workflow: %v", err)
	}
	workflow.ChooseMethod(MethodCash)
	if _, err := workflow.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	select {
	case tableID := <-closed:
		if tableID != "1" {
			t.Errorf("expected table 1, got %q", tableID)
		}
	case <-time.After(time.Second):
		t.Fatal("success screen never auto-closed")
	}
	if workflow.State() != StateClosed {
		t.Errorf("expected closed state, got %s", workflow.State())
	}

	// A late dismissal after the timer fired must not fire the callback again.
	workflow.Dismiss()
	select {
	case <-closed:
		t.Error("close callback fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}
