package model

import "time"

// Movement records one item applied by a reconciliation.
type Movement struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Item      string    `json:"item"`
	Action    string    `json:"action"`
	Delta     int       `json:"delta"`    // signed change
	Quantity  int       `json:"quantity"` // resulting stock
	CreatedAt time.Time `json:"created_at"`
}
