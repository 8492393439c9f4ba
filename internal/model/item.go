package model

import "time"

// Item is one inventory ledger row.
type Item struct {
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}
