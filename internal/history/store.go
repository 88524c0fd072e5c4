// Package history persists orders that have been explicitly saved or paid.
// The whole history lives under one namespaced, versioned key in the
// key-value store; an unreadable payload is treated as empty history, never
// as a fatal error.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

// historyKey is versioned so a future schema change reads as empty history
// instead of corrupting or crashing on old payloads.
const historyKey = "restaurant:order_history:v1"

// maxEntries caps the history at the most recently saved orders.
const maxEntries = 100

// Statistics aggregates the history for the dashboard.
type Statistics struct {
	TotalOrders  int   `json:"total_orders"`
	TodayOrders  int   `json:"today_orders"`
	TotalRevenue int64 `json:"total_revenue"`
	TodayRevenue int64 `json:"today_revenue"`
}

// Store is the durable order-history collection.
type Store struct {
	kv     storage.KeyValue
	logger *logger.Logger
	now    func() time.Time
}

// NewStore creates a history store over the given key-value driver.
func NewStore(kv storage.KeyValue, log *logger.Logger) *Store {
	return &Store{kv: kv, logger: log, now: time.Now}
}

// Save upserts the order into history. An empty order is rejected with
// ErrEmptyOrder and the store is left untouched. The stored copy gets a save
// timestamp; its status becomes saved unless the order is already closed
// (a paid order keeps its paid status). The upsert matches an existing entry
// by order id, or by the same table still holding a saved entry — so a table
// accumulates at most one outstanding saved order. New entries are prepended
// and the history is capped at the 100 most recent.
//
// The returned flag reports whether an existing entry was replaced.
func (s *Store) Save(ctx context.Context, order *models.Order) (*models.Order, bool, error) {
	if order == nil || len(order.Items) == 0 {
		return nil, false, models.ErrEmptyOrder
	}

	entries, err := s.load(ctx)
	if err != nil {
		return nil, false, err
	}

	stamped := order.Clone()
	savedAt := s.now()
	stamped.SavedAt = &savedAt
	if !stamped.Status.IsTerminal() {
		stamped.Status = models.StatusSaved
	}

	replaced := false
	for i := range entries {
		if entries[i].ID == stamped.ID ||
			(entries[i].TableID == stamped.TableID && entries[i].Status == models.StatusSaved) {
			entries[i] = *stamped
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append([]models.Order{*stamped}, entries...)
	}
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}

	if err := s.persist(ctx, entries); err != nil {
		return nil, false, err
	}
	return stamped, replaced, nil
}

// List returns the history, most recently saved first.
func (s *Store) List(ctx context.Context) ([]models.Order, error) {
	return s.load(ctx)
}

// ListByTable filters the history by table identifier.
func (s *Store) ListByTable(ctx context.Context, tableID string) ([]models.Order, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Order
	for _, entry := range entries {
		if entry.TableID == tableID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// ListByWaiter filters the history by waiter identifier.
func (s *Store) ListByWaiter(ctx context.Context, waiterID string) ([]models.Order, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Order
	for _, entry := range entries {
		if entry.WaiterID == waiterID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// ListByDate returns orders created on the given calendar day, using local
// dates rather than UTC.
func (s *Store) ListByDate(ctx context.Context, date time.Time) ([]models.Order, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Order
	for _, entry := range entries {
		if sameLocalDay(entry.CreatedAt, date) {
			out = append(out, entry)
		}
	}
	return out, nil
}

// FindByID looks a single order up by identifier.
func (s *Store) FindByID(ctx context.Context, orderID string) (*models.Order, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == orderID {
			return entries[i].Clone(), nil
		}
	}
	return nil, nil
}

// FindOpenByTable returns the table's saved-but-unpaid order, or nil.
func (s *Store) FindOpenByTable(ctx context.Context, tableID string) (*models.Order, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].TableID == tableID && entries[i].Status.IsOpenUnpaid() {
			return entries[i].Clone(), nil
		}
	}
	return nil, nil
}

// Delete removes one order from the history.
func (s *Store) Delete(ctx context.Context, orderID string) error {
	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, entry := range entries {
		if entry.ID != orderID {
			kept = append(kept, entry)
		}
	}
	return s.persist(ctx, kept)
}

// DeleteOpenByTable removes the table's saved-but-unpaid entries. Used when
// a waiter cancels an order so the table does not stay occupied by a record
// that will never be paid. Paid entries are never touched.
func (s *Store) DeleteOpenByTable(ctx context.Context, tableID string) error {
	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, entry := range entries {
		if entry.TableID == tableID && entry.Status.IsOpenUnpaid() {
			continue
		}
		kept = append(kept, entry)
	}
	return s.persist(ctx, kept)
}

// Clear drops the whole history.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, historyKey); err != nil {
		return fmt.Errorf("clear order history: %w", err)
	}
	return nil
}

// Statistics computes dashboard aggregates. "Today" is the local calendar day.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{TotalOrders: len(entries)}
	today := s.now()
	for _, entry := range entries {
		stats.TotalRevenue += entry.TotalAmount
		if sameLocalDay(entry.CreatedAt, today) {
			stats.TodayOrders++
			stats.TodayRevenue += entry.TotalAmount
		}
	}
	return stats, nil
}

// load reads and decodes the history. A missing key is empty history; a
// payload that fails to decode is logged and treated as empty rather than
// failing the caller.
func (s *Store) load(ctx context.Context) ([]models.Order, error) {
	data, ok, err := s.kv.Load(ctx, historyKey)
	if err != nil {
		return nil, fmt.Errorf("load order history: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var entries []models.Order
	if err := json.Unmarshal(data, &entries); err != nil {
		if s.logger != nil {
			s.logger.Warn("history_decode_failed", "Order history payload unreadable, starting empty", "", map[string]interface{}{
				"bytes": len(data),
			})
		}
		return nil, nil
	}

	// Resolve legacy status aliases once at ingestion.
	for i := range entries {
		if status, err := models.ParseOrderStatus(string(entries[i].Status)); err == nil {
			entries[i].Status = status
		}
	}
	return entries, nil
}

func (s *Store) persist(ctx context.Context, entries []models.Order) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode order history: %w", err)
	}
	if err := s.kv.Store(ctx, historyKey, data); err != nil {
		return fmt.Errorf("persist order history: %w", err)
	}
	return nil
}

func sameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
