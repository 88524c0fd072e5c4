// Package orders keeps the in-memory registry of open drafts: orders created
// for a table this session that have never been saved to history. Nothing
// here survives the process.
package orders

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"restaurant-pos/internal/models"
)

// TableLookup resolves a table identifier. Implemented by the table registry.
type TableLookup func(tableID string) (models.Table, bool)

// Registry holds at most one draft per table.
type Registry struct {
	mu      sync.Mutex
	byTable map[string]*models.Order
	lookup  TableLookup
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(lookup TableLookup) *Registry {
	return &Registry{
		byTable: make(map[string]*models.Order),
		lookup:  lookup,
		now:     time.Now,
	}
}

// GetByTable returns a copy of the table's draft, or nil.
func (r *Registry) GetByTable(tableID string) *models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byTable[tableID].Clone()
}

// Put stores (or replaces) the draft for the order's table.
func (r *Registry) Put(order *models.Order) {
	if order == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTable[order.TableID] = order.Clone()
}

// Remove drops the table's draft, if any.
func (r *Registry) Remove(tableID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byTable, tableID)
}

// CreateForTable builds a new empty draft for the table and registers it.
// An unknown table identifier is a data-integrity failure, not a user error.
func (r *Registry) CreateForTable(tableID, waiterID, waiterName string) (*models.Order, error) {
	table, ok := r.lookup(tableID)
	if !ok {
		return nil, models.ErrTableNotFound
	}

	now := r.now()
	order := &models.Order{
		ID:         uuid.NewString(),
		TableID:    table.ID,
		TableName:  table.Name,
		WaiterID:   waiterID,
		WaiterName: waiterName,
		Items:      []models.OrderItem{},
		Status:     models.StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTable[table.ID] = order.Clone()
	return order, nil
}

// AddItem adds quantity of the dish to the order. An existing line for the
// same dish has its quantity incremented without a price refresh — price
// reconciliation is a separate explicit step owned by the engine. A new line
// is appended at the dish's current price. The total and updatedAt are
// always recomputed.
func (r *Registry) AddItem(order *models.Order, dish models.Dish, quantity int) *models.Order {
	updated := order.Clone()

	found := false
	for i := range updated.Items {
		if updated.Items[i].DishID == dish.ID {
			updated.Items[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		updated.Items = append(updated.Items, models.OrderItem{
			ID:       uuid.NewString(),
			DishID:   dish.ID,
			DishName: dish.Name,
			Quantity: quantity,
			Price:    dish.Price,
			Status:   models.ItemPending,
		})
	}

	updated.RecalculateTotal()
	updated.UpdatedAt = r.now()

	if updated.Status == models.StatusDraft {
		r.mu.Lock()
		r.byTable[updated.TableID] = updated.Clone()
		r.mu.Unlock()
	}
	return updated
}
