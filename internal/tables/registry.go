// Package tables keeps the floor's table set and derives each table's display
// status. Statuses are never stored authoritatively: occupied is computed
// from order state, reserved comes from the static floor configuration, and
// at most one table is selected at any time.
package tables

import (
	"sync"

	"restaurant-pos/internal/models"
)

// Occupancy reports whether a table currently has an unpaid order. It is
// implemented over the history store and the active-order registry.
type Occupancy interface {
	TableOccupied(tableID string) bool
}

// Registry holds the current table list for one floor.
type Registry struct {
	mu         sync.Mutex
	tables     []models.Table
	selectedID string
	occ        Occupancy
}

// NewRegistry copies the floor configuration. Reserved flags are taken from
// the configuration; statuses are derived on the first Sync.
func NewRegistry(floor []models.Table, occ Occupancy) *Registry {
	r := &Registry{
		tables: make([]models.Table, len(floor)),
		occ:    occ,
	}
	copy(r.tables, floor)
	for i := range r.tables {
		if r.tables[i].Status == models.TableReserved {
			r.tables[i].Reserved = true
		}
	}
	return r
}

// List returns a copy of the current table list.
func (r *Registry) List() []models.Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// FindByID looks up a table by identifier.
func (r *Registry) FindByID(tableID string) (models.Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, table := range r.tables {
		if table.ID == tableID {
			return table, true
		}
	}
	return models.Table{}, false
}

// SelectedID returns the identifier of the selected table, or "".
func (r *Registry) SelectedID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedID
}

// ComputeStatus derives the base status of a table from order state alone.
// It deliberately returns only empty or occupied; the selected and reserved
// overlays are applied by the registry itself.
func (r *Registry) ComputeStatus(tableID string) models.TableStatus {
	if r.occ != nil && r.occ.TableOccupied(tableID) {
		return models.TableOccupied
	}
	return models.TableEmpty
}

// Select marks the target table selected, downgrades any previously selected
// table to its derived status, and returns the new table list. The second
// return value is false when the table id is unknown, in which case nothing
// changes.
func (r *Registry) Select(tableID string) ([]models.Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for _, table := range r.tables {
		if table.ID == tableID {
			found = true
			break
		}
	}
	if !found {
		return r.snapshot(), false
	}

	r.selectedID = tableID
	r.recompute()
	return r.snapshot(), true
}

// Deselect clears the selection if it is on the given table and recomputes
// all statuses.
func (r *Registry) Deselect(tableID string) []models.Table {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.selectedID == tableID {
		r.selectedID = ""
	}
	r.recompute()
	return r.snapshot()
}

// Sync recomputes every table's derived status, preserving the selection.
// Called on session start and after any operation that changes occupancy.
func (r *Registry) Sync() []models.Table {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recompute()
	return r.snapshot()
}

// Summary counts tables per status for the floor header.
func (r *Registry) Summary() models.TableStatusSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	var summary models.TableStatusSummary
	for _, table := range r.tables {
		switch table.Status {
		case models.TableEmpty:
			summary.Empty++
		case models.TableOccupied:
			summary.Occupied++
		case models.TableReserved:
			summary.Reserved++
		case models.TableSelected:
			summary.Selected = table.Name
		}
	}
	return summary
}

// recompute applies the status derivation to every table:
// selected > occupied > reserved > empty. Caller holds the lock.
func (r *Registry) recompute() {
	for i := range r.tables {
		table := &r.tables[i]
		switch {
		case table.ID == r.selectedID:
			table.Status = models.TableSelected
		case r.occ != nil && r.occ.TableOccupied(table.ID):
			table.Status = models.TableOccupied
		case table.Reserved:
			table.Status = models.TableReserved
		default:
			table.Status = models.TableEmpty
		}
	}
}

func (r *Registry) snapshot() []models.Table {
	out := make([]models.Table, len(r.tables))
	copy(out, r.tables)
	return out
}
