package entity

import "time"

type HealthStatus struct {
	Healthy             bool      `json:"healthy"`
	CheckedAt           time.Time `json:"checked_at"`
	RecognizedText      []string  `json:"recognized_text,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}
