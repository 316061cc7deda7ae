package storage

import "time"

// Finding is one Warning or Trouble result kept for follow-up.
type Finding struct {
	ID             string    `json:"id"`
	RecordedAt     time.Time `json:"recordedAt"`
	TableName      string    `json:"table"`
	RecordKey      string    `json:"recordKey"`
	Subject        string    `json:"subject"`
	Value          string    `json:"value"`
	Status         string    `json:"status"`
	Recommendation string    `json:"recommendation"`
	Operator       string    `json:"operator"`
	Treated        bool      `json:"treated"`
}

type FindingFilter struct {
	Status  string
	Table   string
	Treated *bool
	Limit   int
}
