package models

import "time"

type RateLimitEntry struct {
	IPAddress     string    `json:"ip_address"`
	Action        string    `json:"action"`
	AttemptCount  int       `json:"attempt_count"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
}
