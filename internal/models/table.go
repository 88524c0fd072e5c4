package models

// TableStatus is the display status of a table on the floor grid.
type TableStatus string

const (
	TableEmpty    TableStatus = "empty"
	TableOccupied TableStatus = "occupied"
	TableReserved TableStatus = "reserved"
	TableSelected TableStatus = "selected"
)

// Table represents one table on a floor. Status is derived, never stored
// authoritatively: occupied means an unpaid order exists for the table,
// reserved comes from the static floor configuration, selected marks the one
// table the waiter is currently working on.
type Table struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Floor    int         `json:"floor"`
	Capacity int         `json:"capacity"`
	Status   TableStatus `json:"status"`
	Reserved bool        `json:"reserved,omitempty"`
	PosX     int         `json:"pos_x"`
	PosY     int         `json:"pos_y"`
}

// TableStatusSummary aggregates floor occupancy for the header widgets.
type TableStatusSummary struct {
	Empty    int    `json:"empty"`
	Occupied int    `json:"occupied"`
	Reserved int    `json:"reserved"`
	Selected string `json:"selected,omitempty"`
}
