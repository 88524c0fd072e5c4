// Package waiter implements the order lifecycle engine: the single
// orchestration surface behind the front-of-house screen. Every operation
// consults the menu, the table registry, the active drafts, and the saved
// history, mutates the relevant store, and hands back a fresh immutable
// snapshot.
package waiter

import (
	"context"
	"errors"
	"sync"
	"time"

	"restaurant-pos/internal/history"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/menu"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/orders"
	"restaurant-pos/internal/tables"
)

// KitchenNotifier publishes lifecycle events for kitchen consumers. May be
// nil; publishing is best-effort and never fails an operation.
type KitchenNotifier interface {
	PublishOrderSaved(ctx context.Context, order *models.Order) error
}

// Snapshot is the consistent view handed to the presentation layer after
// every operation. All slices and the order are copies.
type Snapshot struct {
	Dishes                []models.Dish  `json:"dishes"`
	Tables                []models.Table `json:"tables"`
	SelectedTableID       string         `json:"selected_table_id,omitempty"`
	CurrentOrder          *models.Order  `json:"current_order,omitempty"`
	HasUnsavedChanges     bool           `json:"has_unsaved_changes"`
	IsViewingHistoryOrder bool           `json:"is_viewing_history_order"`
}

// Engine serializes all order mutations behind one lock. Operations run one
// at a time, so every snapshot reflects a settled state.
type Engine struct {
	mu sync.Mutex

	catalog  *menu.Catalog
	tables   *tables.Registry
	history  *history.Store
	active   *orders.Registry
	notifier KitchenNotifier
	logger   *logger.Logger

	waiterID   string
	waiterName string

	currentOrder          *models.Order
	selectedTableID       string
	hasUnsavedChanges     bool
	isViewingHistoryOrder bool
	now                   func() time.Time
}

// NewEngine wires the engine and performs the session-start status sync so
// tables occupied by earlier saved orders show up occupied immediately.
func NewEngine(catalog *menu.Catalog, tableReg *tables.Registry, hist *history.Store, active *orders.Registry, notifier KitchenNotifier, log *logger.Logger, waiterID, waiterName string) *Engine {
	e := &Engine{
		catalog:    catalog,
		tables:     tableReg,
		history:    hist,
		active:     active,
		notifier:   notifier,
		logger:     log,
		waiterID:   waiterID,
		waiterName: waiterName,
		now:        time.Now,
	}
	e.tables.Sync()
	return e
}

// Occupancy builds the derived-occupancy source for a table registry: a
// table is occupied when the history holds an unpaid order for it, or when
// an active draft for it has at least one item.
type Occupancy struct {
	History *history.Store
	Active  *orders.Registry
	Logger  *logger.Logger
}

func (o *Occupancy) TableOccupied(tableID string) bool {
	open, err := o.History.FindOpenByTable(context.Background(), tableID)
	if err != nil {
		if o.Logger != nil {
			o.Logger.Warn("occupancy_check_failed", "History unavailable, assuming table empty", "", map[string]interface{}{
				"table_id": tableID,
			})
		}
	} else if open != nil {
		return true
	}
	if draft := o.Active.GetByTable(tableID); draft != nil && len(draft.Items) > 0 {
		return true
	}
	return false
}

// Snapshot returns the current view without mutating anything.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// SelectTable makes the table the working selection and resolves its order:
// a saved-but-unpaid history record wins, then an in-memory draft, then a
// new empty draft. Loaded orders are price-reconciled against the live menu.
// An unknown table id is a silent no-op.
func (e *Engine) SelectTable(ctx context.Context, tableID string) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tables.FindByID(tableID); !ok {
		e.logger.Debug("table_select_ignored", "Unknown table id", "", map[string]interface{}{
			"table_id": tableID,
		})
		return e.snapshot(), nil
	}

	e.tables.Select(tableID)
	e.selectedTableID = tableID
	e.hasUnsavedChanges = false
	e.isViewingHistoryOrder = false

	saved, err := e.history.FindOpenByTable(ctx, tableID)
	if err != nil {
		e.logger.Error("history_load_failed", "Falling back to in-memory order state", "", err, map[string]interface{}{
			"table_id": tableID,
		})
		saved = nil
	}
	if saved != nil {
		// The durable record supersedes any in-memory draft. Evict a shadowed
		// non-empty draft so it cannot resurface after the record is settled.
		if draft := e.active.GetByTable(tableID); draft != nil && len(draft.Items) > 0 {
			e.logger.Warn("draft_superseded", "Unsaved draft discarded in favor of saved order", "", map[string]interface{}{
				"table_id": tableID,
				"draft_id": draft.ID,
			})
			e.active.Remove(tableID)
		}
		e.currentOrder = e.reconcile(saved)
		return e.snapshot(), nil
	}

	if draft := e.active.GetByTable(tableID); draft != nil {
		e.currentOrder = e.reconcile(draft)
		e.active.Put(e.currentOrder)
		return e.snapshot(), nil
	}

	created, err := e.active.CreateForTable(tableID, e.waiterID, e.waiterName)
	if err != nil {
		// The table passed FindByID above, so this signals a data-integrity
		// bug rather than user input; it must surface hard.
		return e.snapshot(), err
	}
	e.currentOrder = created
	return e.snapshot(), nil
}

// AddDish adds one unit of the dish to the current order. Without a selected
// table the call is rejected with ErrNoTableSelected, which callers surface
// as an advisory message.
func (e *Engine) AddDish(ctx context.Context, dishID string) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.selectedTableID == "" || e.currentOrder == nil {
		return e.snapshot(), models.ErrNoTableSelected
	}
	dish, ok := e.catalog.FindByID(dishID)
	if !ok {
		return e.snapshot(), models.ErrDishNotFound
	}

	e.currentOrder = e.active.AddItem(e.currentOrder, dish, 1)
	e.hasUnsavedChanges = true
	e.tables.Sync()
	return e.snapshot(), nil
}

// UpdateItemQuantity sets a line's quantity. Zero removes the line; a
// positive quantity also refreshes the line's price from the live menu.
// Negative quantities are invalid input.
func (e *Engine) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentOrder == nil {
		return e.snapshot(), nil
	}
	if quantity < 0 {
		return e.snapshot(), models.ErrInvalidQuantity
	}

	updated := e.currentOrder.Clone()
	if quantity == 0 {
		kept := updated.Items[:0]
		for _, item := range updated.Items {
			if item.ID != itemID {
				kept = append(kept, item)
			}
		}
		updated.Items = kept
	} else {
		for i := range updated.Items {
			if updated.Items[i].ID != itemID {
				continue
			}
			updated.Items[i].Quantity = quantity
			if dish, ok := e.catalog.FindByID(updated.Items[i].DishID); ok {
				updated.Items[i].Price = dish.Price
			}
			break
		}
	}
	updated.RecalculateTotal()

	e.currentOrder = updated
	e.hasUnsavedChanges = true
	if updated.Status == models.StatusDraft {
		e.active.Put(updated)
	}
	e.tables.Sync()
	return e.snapshot(), nil
}

// SaveOrder persists the current order to history. The boolean reports
// whether an existing history entry was updated, which callers use only for
// messaging. A persistence failure leaves the in-memory order untouched and
// unsaved.
func (e *Engine) SaveOrder(ctx context.Context) (Snapshot, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentOrder == nil || len(e.currentOrder.Items) == 0 {
		return e.snapshot(), false, models.ErrEmptyOrder
	}

	stored, updated, err := e.history.Save(ctx, e.currentOrder)
	if err != nil {
		return e.snapshot(), false, err
	}

	e.currentOrder = stored.Clone()
	e.hasUnsavedChanges = false
	// The draft is now owned by history; drop the in-memory copy.
	e.active.Remove(stored.TableID)
	e.tables.Sync()

	if e.notifier != nil {
		if err := e.notifier.PublishOrderSaved(ctx, stored); err != nil {
			e.logger.Error("kitchen_notify_failed", "Saved event not delivered", "", err, map[string]interface{}{
				"order_id": stored.ID,
			})
		}
	}
	return e.snapshot(), updated, nil
}

// CancelOrder empties the current order and removes the table's
// saved-but-unpaid history record so the table does not stay occupied by a
// record that will never be paid. The order identity is kept.
func (e *Engine) CancelOrder(ctx context.Context) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentOrder == nil {
		return e.snapshot(), nil
	}

	cancelled := e.currentOrder.Clone()
	cancelled.Items = []models.OrderItem{}
	cancelled.RecalculateTotal()
	cancelled.Status = models.StatusDraft
	e.currentOrder = cancelled
	e.hasUnsavedChanges = false

	if err := e.history.DeleteOpenByTable(ctx, cancelled.TableID); err != nil {
		e.logger.Error("history_cleanup_failed", "Cancelled order may still show as occupied", "", err, map[string]interface{}{
			"table_id": cancelled.TableID,
		})
	}
	e.active.Remove(cancelled.TableID)
	e.tables.Sync()
	return e.snapshot(), nil
}

// TableSummary aggregates floor occupancy for the header widgets.
func (e *Engine) TableSummary() models.TableStatusSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tables.Summary()
}

// PrintBill acknowledges the print action; actual rendering belongs to an
// external export collaborator.
func (e *Engine) PrintBill() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info("bill_print_requested", "Exporting bill", "", map[string]interface{}{
		"table_id": e.selectedTableID,
	})
	return e.snapshot()
}

// CompletePayment clears the engine state for a table whose bill was just
// settled by the payment workflow. Persisting the paid order already
// happened there; this only resets the working view.
func (e *Engine) CompletePayment(ctx context.Context, tableID string) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active.Remove(tableID)
	e.tables.Deselect(tableID)
	e.currentOrder = nil
	e.hasUnsavedChanges = false
	e.isViewingHistoryOrder = false
	return e.snapshot()
}

// ApplyHistoryOrder loads an order picked from history search instead of the
// table grid. The view is marked read-mostly via IsViewingHistoryOrder.
func (e *Engine) ApplyHistoryOrder(ctx context.Context, order *models.Order) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if order == nil {
		return e.snapshot(), nil
	}
	e.selectedTableID = order.TableID
	e.currentOrder = e.reconcile(order)
	e.hasUnsavedChanges = false
	e.isViewingHistoryOrder = true
	return e.snapshot(), nil
}

// reconcile replaces every line's price with the menu's current price (a
// vanished dish keeps its stored price) and recomputes the total.
func (e *Engine) reconcile(order *models.Order) *models.Order {
	updated := order.Clone()
	for i := range updated.Items {
		if dish, ok := e.catalog.FindByID(updated.Items[i].DishID); ok {
			updated.Items[i].Price = dish.Price
		}
	}
	updated.RecalculateTotal()
	return updated
}

// snapshot builds the caller-facing view. Caller holds the lock.
func (e *Engine) snapshot() Snapshot {
	return Snapshot{
		Dishes:                e.catalog.ListByCategory(models.CategoryAll),
		Tables:                e.tables.List(),
		SelectedTableID:       e.selectedTableID,
		CurrentOrder:          e.currentOrder.Clone(),
		HasUnsavedChanges:     e.hasUnsavedChanges,
		IsViewingHistoryOrder: e.isViewingHistoryOrder,
	}
}

// IsValidationError reports whether the error is one of the advisory
// validation failures recovered at the presentation boundary.
func IsValidationError(err error) bool {
	return errors.Is(err, models.ErrEmptyOrder) ||
		errors.Is(err, models.ErrNoTableSelected) ||
		errors.Is(err, models.ErrInvalidQuantity) ||
		errors.Is(err, models.ErrDishNotFound)
}
