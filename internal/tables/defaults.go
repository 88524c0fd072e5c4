package tables

import (
	"strconv"

	"restaurant-pos/internal/models"
)

// DefaultFloor1 returns the floor-1 grid: 24 tables in 3 rows of 8.
func DefaultFloor1() []models.Table {
	rows := []string{"A", "B", "C"}
	capacities := []int{4, 2, 6, 4, 2, 4, 6, 2}
	reserved := map[string]bool{"13": true, "16": true, "22": true, "24": true}

	var out []models.Table
	id := 1
	for y, row := range rows {
		for x := 0; x < 8; x++ {
			tableID := strconv.Itoa(id)
			out = append(out, models.Table{
				ID:       tableID,
				Name:     row + strconv.Itoa(x+1),
				Floor:    1,
				Capacity: capacities[x],
				Status:   models.TableEmpty,
				Reserved: reserved[tableID],
				PosX:     x,
				PosY:     y,
			})
			id++
		}
	}
	return out
}
