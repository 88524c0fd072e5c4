// Package menu holds the live dish catalog. Contents are supplied by menu
// administration; the ordering core only reads them, and reads them fresh at
// every price-sensitive step so price changes propagate to active and
// historical orders alike.
package menu

import (
	"sync"

	"restaurant-pos/internal/models"
)

// Catalog answers dish lookups by category and identifier.
type Catalog struct {
	mu         sync.RWMutex
	categories []models.DishCategory
	dishes     []models.Dish
}

// NewCatalog builds a catalog over the given categories and dishes.
func NewCatalog(categories []models.DishCategory, dishes []models.Dish) *Catalog {
	c := &Catalog{
		categories: make([]models.DishCategory, len(categories)),
		dishes:     make([]models.Dish, len(dishes)),
	}
	copy(c.categories, categories)
	copy(c.dishes, dishes)
	return c
}

// Categories returns the category list, "all" sentinel first.
func (c *Catalog) Categories() []models.DishCategory {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.DishCategory, len(c.categories))
	copy(out, c.categories)
	return out
}

// ListByCategory returns dishes in insertion order. The "all" sentinel (or an
// empty id) returns every dish. Availability is not filtered here; that is a
// presentation concern.
func (c *Catalog) ListByCategory(categoryID string) []models.Dish {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if categoryID == "" || categoryID == models.CategoryAll {
		out := make([]models.Dish, len(c.dishes))
		copy(out, c.dishes)
		return out
	}

	var out []models.Dish
	for _, dish := range c.dishes {
		if dish.CategoryID == categoryID {
			out = append(out, dish)
		}
	}
	return out
}

// FindByID looks up a dish by identifier.
func (c *Catalog) FindByID(dishID string) (models.Dish, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, dish := range c.dishes {
		if dish.ID == dishID {
			return dish, true
		}
	}
	return models.Dish{}, false
}

// SetPrice updates a dish price. This is the menu-administration boundary;
// the ordering core never calls it.
func (c *Catalog) SetPrice(dishID string, price int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.dishes {
		if c.dishes[i].ID == dishID {
			c.dishes[i].Price = price
			return true
		}
	}
	return false
}
