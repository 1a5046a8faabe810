package models

import "time"

type Violation struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	CarID              string    `json:"car_id"`
	Reason             string    `json:"violation_reason"`
	ViolationAt        time.Time `json:"violation_datetime"`
	CheckpointPosition string    `json:"checkpoint_position"`
	FineAmount         float64   `json:"fine_amount"`
	CreatedAt          time.Time `json:"created_at"`

	// Officer fields are filled by admin listings that join users.
	OfficerUsername string `json:"username,omitempty"`
	OfficerName     string `json:"full_name,omitempty"`
}

// ViolationFilter narrows admin listings. Dates are YYYY-MM-DD and inclusive.
type ViolationFilter struct {
	UserID   int64
	CarID    string
	DateFrom string
	DateTo   string
}

type OfficerStat struct {
	UserID          int64   `json:"id"`
	Username        string  `json:"username"`
	FullName        string  `json:"full_name"`
	ViolationCount  int     `json:"violation_count"`
	AmountCollected float64 `json:"amount_collected"`
}

type DailyStat struct {
	Date  string  `json:"violation_date"`
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

type ViolationStats struct {
	TotalViolations int           `json:"total_violations"`
	TotalCollected  float64       `json:"total_collected"`
	ByOfficer       []OfficerStat `json:"by_policeman"`
	ByDate          []DailyStat   `json:"by_date"`
}
