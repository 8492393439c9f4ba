package model

import "time"

// Evidence is a saved frame that produced newly seen items.
type Evidence struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Filename   string    `json:"filename"`
	FilePath   string    `json:"-"`
	FileSize   int64     `json:"file_size"`
	Labels     []string  `json:"labels"`
	CapturedAt time.Time `json:"captured_at"`
}

// EvidenceFilter narrows an evidence query. Zero fields match everything.
type EvidenceFilter struct {
	SessionID string
	Label     string
	Limit     int
	Offset    int
}
