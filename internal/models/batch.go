package models

import "time"

// BatchConfig represents a parsed batch manifest.
type BatchConfig struct {
	Repository  string        `yaml:"repository" json:"repository"`
	NConcurrent int           `yaml:"n_concurrent" json:"n_concurrent"`
	FailFast    bool          `yaml:"fail_fast" json:"fail_fast"`
	Packages    []PackageSpec `yaml:"packages" json:"packages"`
}

// BatchResult contains aggregate outcomes across all promotions of a batch.
type BatchResult struct {
	Repository       string             `json:"repository"`
	Cancelled        bool               `json:"cancelled"`
	Total            int                `json:"total"`
	Succeeded        int                `json:"succeeded"`
	Failed           int                `json:"failed"`
	Skipped          int                `json:"skipped"`
	Registered       int                `json:"registered"`
	TotalDurationSec float64            `json:"total_duration_sec"`
	StartedAt        time.Time          `json:"started_at"`
	EndedAt          time.Time          `json:"ended_at"`
	Results          []*PromotionResult `json:"results"`
}
