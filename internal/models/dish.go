package models

// CategoryAll is the sentinel category identifier that matches every dish.
const CategoryAll = "all"

// Dish represents a single menu entry. Dishes are read-only to the ordering
// core; menu administration owns mutation. The catalog price is the single
// source of truth for line totals, so callers must look a dish up fresh at
// every price-sensitive step instead of caching it.
type Dish struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	Currency     string `json:"currency"`
	CategoryID   string `json:"category"`
	IsAvailable  bool   `json:"is_available"`
	Requirements string `json:"requirements,omitempty"`
}

// DishCategory partitions the menu for display.
type DishCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
