package model

// Category is a team or grouping. Color is a 24-bit RGB value.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color int    `json:"color"`
}

// SyncedCategoryID is assigned to imported meetings unless the caller picks another.
const SyncedCategoryID = "synced"
