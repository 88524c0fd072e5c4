package menu

import "restaurant-pos/internal/models"

// DefaultCategories returns the stock category set.
func DefaultCategories() []models.DishCategory {
	return []models.DishCategory{
		{ID: models.CategoryAll, Name: "Tất cả"},
		{ID: "appetizers", Name: "Đồ nhậu"},
		{ID: "hotpot", Name: "Lẩu"},
		{ID: "grilled", Name: "Đồ nướng"},
		{ID: "drinks", Name: "Đồ uống"},
	}
}

// DefaultDishes returns the stock menu. Prices are whole VND.
func DefaultDishes() []models.Dish {
	return []models.Dish{
		{ID: "1", Name: "Salad Tuna", Price: 200000, Currency: "VND", CategoryID: "appetizers", IsAvailable: true, Requirements: "Must choose level"},
		{ID: "2", Name: "Salad Egg", Price: 350500, Currency: "VND", CategoryID: "appetizers", IsAvailable: true},
		{ID: "3", Name: "Wagyu Sate", Price: 1200000, Currency: "VND", CategoryID: "grilled", IsAvailable: true, Requirements: "Must choose level"},
		{ID: "4", Name: "Wagyu Black Paper", Price: 1500000, Currency: "VND", CategoryID: "grilled", IsAvailable: true, Requirements: "Must choose level"},
		{ID: "5", Name: "Wagyu", Price: 2000000, Currency: "VND", CategoryID: "grilled", IsAvailable: true, Requirements: "Must choose level"},
		{ID: "6", Name: "Lẩu Thái", Price: 800000, Currency: "VND", CategoryID: "hotpot", IsAvailable: true},
		{ID: "7", Name: "Lẩu Hải Sản", Price: 1200000, Currency: "VND", CategoryID: "hotpot", IsAvailable: true},
		{ID: "8", Name: "Coca Cola", Price: 50000, Currency: "VND", CategoryID: "drinks", IsAvailable: true},
		{ID: "9", Name: "Nước Cam", Price: 80000, Currency: "VND", CategoryID: "drinks", IsAvailable: true},
		{ID: "10", Name: "Bia Tiger", Price: 120000, Currency: "VND", CategoryID: "drinks", IsAvailable: true},
	}
}
