package domain

import "time"

const (
	EventStatusSuccess = "success"
	EventStatusError   = "error"
)

// ProcessingEvent describes one pipeline run. It never carries note content.
type ProcessingEvent struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"request_id,omitempty"`
	Provider         string    `json:"provider"`
	Status           string    `json:"status"`
	ErrorCode        string    `json:"error_code,omitempty"`
	Category         string    `json:"category,omitempty"`
	Confidence       float64   `json:"confidence,omitempty"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	OccurredAt       time.Time `json:"occurred_at"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}
