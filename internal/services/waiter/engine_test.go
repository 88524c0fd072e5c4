package waiter

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"restaurant-pos/internal/history"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/menu"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/orders"
	"restaurant-pos/internal/storage"
	"restaurant-pos/internal/tables"
)

func newTestEngine(t *testing.T) (*Engine, *history.Store, *menu.Catalog, *tables.Registry) {
	t.Helper()
	return newTestEngineWithKV(t, storage.NewMemory())
}

func newTestEngineWithKV(t *testing.T, kv storage.KeyValue) (*Engine, *history.Store, *menu.Catalog, *tables.Registry) {
	t.Helper()

	log := logger.New("waiter-test")
	hist := history.NewStore(kv, log)
	catalog := menu.NewCatalog(menu.DefaultCategories(), menu.DefaultDishes())

	var tableReg *tables.Registry
	active := orders.NewRegistry(func(tableID string) (models.Table, bool) {
		return tableReg.FindByID(tableID)
	})
	occ := &Occupancy{History: hist, Active: active, Logger: log}
	tableReg = tables.NewRegistry(tables.DefaultFloor1(), occ)

	engine := NewEngine(catalog, tableReg, hist, active, nil, log, "W1", "Alice")
	return engine, hist, catalog, tableReg
}

func tableByID(t *testing.T, list []models.Table, id string) models.Table {
	t.Helper()
	for _, table := range list {
		if table.ID == id {
			return table
		}
	}
	t.Fatalf("table %s not in list", id)
	return models.Table{}
}

func TestAddSameDishTwiceMergesLines(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.SelectTable(ctx, "1"); err != nil {
		t.Fatalf("select table: %v", err)
	}
	if _, err := engine.AddDish(ctx, "1"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	snapshot, err := engine.AddDish(ctx, "1")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	order := snapshot.CurrentOrder
	if order == nil {
		t.Fatal("expected a current order")
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected one merged line, got %d", len(order.Items))
	}
	if order.Items[0].Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", order.Items[0].Quantity)
	}
	if order.TotalAmount != 400000 {
		t.Errorf("expected total 400000, got %d", order.TotalAmount)
	}
	if !snapshot.HasUnsavedChanges {
		t.Error("expected unsaved changes after adding a dish")
	}
}

func TestPriceChangePropagatesOnReselect(t *testing.T) {
	engine, _, catalog, _ := newTestEngine(t)
	ctx := context.Background()

	engine.SelectTable(ctx, "1")
	engine.AddDish(ctx, "1")
	engine.AddDish(ctx, "1")
	if _, _, err := engine.SaveOrder(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	if !catalog.SetPrice("1", 250000) {
		t.Fatal("price update failed")
	}

	// Navigate away and back; the reload reconciles against the live menu.
	engine.SelectTable(ctx, "2")
	snapshot, err := engine.SelectTable(ctx, "1")
	if err != nil {
		t.Fatalf("reselect: %v", err)
	}

	order := snapshot.CurrentOrder
	if order == nil || len(order.Items) != 1 {
		t.Fatal("expected the saved order back")
	}
	if order.Items[0].Price != 250000 {
		t.Errorf("expected reconciled price 250000, got %d", order.Items[0].Price)
	}
	if order.TotalAmount != 500000 {
		t.Errorf("expected reconciled total 500000, got %d", order.TotalAmount)
	}
}

func TestZeroQuantityRemovesLineAndEmptySaveFails(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.SelectTable(ctx, "1")
	snapshot, err := engine.AddDish(ctx, "1")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	itemID := snapshot.CurrentOrder.Items[0].ID

	snapshot, err = engine.UpdateItemQuantity(ctx, itemID, 0)
	if err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if len(snapshot.CurrentOrder.Items) != 0 {
		t.Fatalf("expected no lines, got %d", len(snapshot.CurrentOrder.Items))
	}
	if snapshot.CurrentOrder.TotalAmount != 0 {
		t.Errorf("expected total 0, got %d", snapshot.CurrentOrder.TotalAmount)
	}

	if _, _, err := engine.SaveOrder(ctx); !errors.Is(err, models.ErrEmptyOrder) {
		t.Errorf("expected ErrEmptyOrder, got %v", err)
	}
}

func TestNegativeQuantityRejected(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.SelectTable(ctx, "1")
	snapshot, _ := engine.AddDish(ctx, "1")
	itemID := snapshot.CurrentOrder.Items[0].ID

	if _, err := engine.UpdateItemQuantity(ctx, itemID, -1); !errors.Is(err, models.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestAddDishWithoutSelection(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	_, err := engine.AddDish(context.Background(), "1")
	if !errors.Is(err, models.ErrNoTableSelected) {
		t.Errorf("expected ErrNoTableSelected, got %v", err)
	}
	if !IsValidationError(err) {
		t.Error("expected a validation error")
	}
}

func TestUnknownDishRejected(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.SelectTable(ctx, "1")
	if _, err := engine.AddDish(ctx, "no-such-dish"); !errors.Is(err, models.ErrDishNotFound) {
		t.Errorf("expected ErrDishNotFound, got %v", err)
	}
}

func TestSelectTableIdempotent(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.SelectTable(ctx, "1")
	engine.AddDish(ctx, "1")
	engine.AddDish(ctx, "8")

	first, err := engine.SelectTable(ctx, "1")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	second, err := engine.SelectTable(ctx, "1")
	if err != nil {
		t.Fatalf("reselect: %v", err)
	}

	if first.CurrentOrder.ID != second.CurrentOrder.ID {
		t.Error("reselecting the same table must not create a new order")
	}
	if second.SelectedTableID != "1" {
		t.Errorf("expected selection on table 1, got %q", second.SelectedTableID)
	}
	// With no mutation in between, the whole view must be identical: same
	// items, prices, total, table statuses, and flags.
	if !reflect.DeepEqual(first, second) {
		t.Errorf("double select produced divergent snapshots:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

type failingKV struct {
	*storage.Memory
}

func (f *failingKV) Store(ctx context.Context, key string, value []byte) error {
	return &storage.PersistenceError{Op: "store", Key: key, Err: errors.New("disk full")}
}

func TestSaveFailureKeepsOrderUnsaved(t *testing.T) {
	engine, hist, _, _ := newTestEngineWithKV(t, &failingKV{Memory: storage.NewMemory()})
	ctx := context.Background()

	engine.SelectTable(ctx, "1")
	engine.AddDish(ctx, "1")

	snapshot, updated, err := engine.SaveOrder(ctx)
	var perr *storage.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if updated {
		t.Error("a failed save must not report an update")
	}

	// The in-memory order survives untouched and still counts as unsaved.
	if snapshot.CurrentOrder == nil || len(snapshot.CurrentOrder.Items) != 1 {
		t.Fatalf("expected the order kept in memory, got %+v", snapshot.CurrentOrder)
	}
	if snapshot.CurrentOrder.Status != models.StatusDraft {
		t.Errorf("expected status draft, got %s", snapshot.CurrentOrder.Status)
	}
	if snapshot.CurrentOrder.SavedAt != nil {
		t.Error("a failed save must not stamp a save timestamp")
	}
	if !snapshot.HasUnsavedChanges {
		t.Error("expected unsaved changes to remain flagged")
	}

	entries, err := hist.List(ctx)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("history must stay empty after a failed save, got %d entries", len(entries))
	}
}

func TestUnknownTableSelectIsNoOp(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.SelectTable(ctx, "1")
	snapshot, err := engine.SelectTable(ctx, "99")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.SelectedTableID != "1" {
		t.Errorf("selection must stay on table 1, got %q", snapshot.SelectedTableID)
	}
}

func TestSingleSelectedTableInvariant(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.SelectTable(ctx, "1")
	snapshot, _ := engine.SelectTable(ctx, "2")

	selected := 0
	for _, table := range snapshot.Tables {
		if table.Status == models.TableSelected {
			selected++
			if table.ID != "2" {
				t.Errorf("wrong table selected: %s", table.ID)
			}
		}
	}
	if selected != 1 {
		t.Errorf("expected exactly one selected table, got %d", selected)
	}
}

func TestSaveReloadRoundTrip(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.SelectTable(ctx, "1")
	engine.AddDish(ctx, "1")
	engine.AddDish(ctx, "8")
	saved, updated, err := engine.SaveOrder(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if updated {
		t.Error("first save must not report an update")
	}
	if saved.CurrentOrder.Status != models.StatusSaved {
		t.Errorf("expected status saved, got %s", saved.CurrentOrder.Status)
	}
	if saved.CurrentOrder.SavedAt == nil {
		t.Error("expected a save timestamp")
	}

	engine.SelectTable(ctx, "2")
	reloaded, err := engine.SelectTable(ctx, "1")
	if err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if reloaded.CurrentOrder.ID != saved.CurrentOrder.ID {
		t.Error("expected the saved order back on reselect")
	}
	if len(reloaded.CurrentOrder.Items) != 2 {
		t.Errorf("expected two lines, got %d", len(reloaded.CurrentOrder.Items))
	}
}

func TestSavedOrderSupersedesDraft(t *testing.T) {
	engine, hist, _, _ := newTestEngine(t)
	ctx := context.Background()

	// Build a draft for table 1, then a saved record lands for the same table
	// behind the engine's back.
	engine.SelectTable(ctx, "1")
	draft, _ := engine.AddDish(ctx, "8")

	external := &models.Order{
		ID:        "ext-1",
		TableID:   "1",
		TableName: "A1",
		Items: []models.OrderItem{
			{ID: "i1", DishID: "1", DishName: "Salad Tuna", Quantity: 1, Price: 200000, Status: models.ItemPending},
		},
		Status: models.StatusDraft,
	}
	external.RecalculateTotal()
	if _, _, err := hist.Save(ctx, external); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	engine.SelectTable(ctx, "2")
	snapshot, err := engine.SelectTable(ctx, "1")
	if err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if snapshot.CurrentOrder.ID != "ext-1" {
		t.Errorf("history record must win over the draft, got order %s", snapshot.CurrentOrder.ID)
	}
	if snapshot.CurrentOrder.ID == draft.CurrentOrder.ID {
		t.Error("draft must have been evicted")
	}
}

func TestSaveOccupiesAndCancelFrees(t *testing.T) {
	engine, hist, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.SelectTable(ctx, "1")
	engine.AddDish(ctx, "1")
	engine.SaveOrder(ctx)

	engine.SelectTable(ctx, "2")
	snapshot := engine.Snapshot()
	if got := tableByID(t, snapshot.Tables, "1").Status; got != models.TableOccupied {
		t.Fatalf("expected table 1 occupied after save, got %s", got)
	}

	engine.SelectTable(ctx, "1")
	snapshot, err := engine.CancelOrder(ctx)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(snapshot.CurrentOrder.Items) != 0 {
		t.Error("cancel must empty the order")
	}
	if snapshot.CurrentOrder.Status != models.StatusDraft {
		t.Errorf("cancel must reset status to draft, got %s", snapshot.CurrentOrder.Status)
	}

	open, err := hist.FindOpenByTable(ctx, "1")
	if err != nil {
		t.Fatalf("history lookup: %v", err)
	}
	if open != nil {
		t.Error("cancel must remove the table's open history record")
	}

	engine.SelectTable(ctx, "2")
	snapshot = engine.Snapshot()
	if got := tableByID(t, snapshot.Tables, "1").Status; got != models.TableEmpty {
		t.Errorf("expected table 1 empty after cancel, got %s", got)
	}
}

func TestCompletePaymentClearsState(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.SelectTable(ctx, "1")
	engine.AddDish(ctx, "1")
	engine.SaveOrder(ctx)

	snapshot := engine.CompletePayment(ctx, "1")
	if snapshot.CurrentOrder != nil {
		t.Error("expected no current order after payment")
	}
	if snapshot.HasUnsavedChanges {
		t.Error("expected no unsaved changes after payment")
	}
	if got := tableByID(t, snapshot.Tables, "1").Status; got == models.TableSelected {
		t.Error("table must not stay selected after payment")
	}
}

func TestReservedTableReturnsToReservedAfterPayment(t *testing.T) {
	engine, hist, _, _ := newTestEngine(t)
	ctx := context.Background()

	// Table 13 is reserved in the stock floor plan.
	engine.SelectTable(ctx, "13")
	engine.AddDish(ctx, "8")
	saved, _, err := engine.SaveOrder(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	paid := saved.CurrentOrder.Clone()
	paid.Status = models.StatusPaid
	if _, _, err := hist.Save(ctx, paid); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	snapshot := engine.CompletePayment(ctx, "13")
	if got := tableByID(t, snapshot.Tables, "13").Status; got != models.TableReserved {
		t.Errorf("expected table 13 back to reserved, got %s", got)
	}
}

func TestApplyHistoryOrderMarksView(t *testing.T) {
	engine, hist, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.SelectTable(ctx, "1")
	engine.AddDish(ctx, "1")
	saved, _, err := engine.SaveOrder(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	record, err := hist.FindByID(ctx, saved.CurrentOrder.ID)
	if err != nil || record == nil {
		t.Fatalf("history lookup: %v", err)
	}

	snapshot, err := engine.ApplyHistoryOrder(ctx, record)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !snapshot.IsViewingHistoryOrder {
		t.Error("expected history-view flag")
	}
	if snapshot.SelectedTableID != "1" {
		t.Errorf("expected selection to follow the record, got %q", snapshot.SelectedTableID)
	}
	if snapshot.HasUnsavedChanges {
		t.Error("loading a record must not mark unsaved changes")
	}
}
