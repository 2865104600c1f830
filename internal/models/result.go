package models

import "time"

// RepositoryConfig is the destination index an alias resolves to.
type RepositoryConfig struct {
	Alias    string
	URL      string
	Username string
	Password string
}

// PromotionResult contains the outcome of one promotion.
type PromotionResult struct {
	RunID      string       `json:"run_id"`
	Spec       PackageSpec  `json:"spec"`
	Repository string       `json:"repository"`
	Project    string       `json:"project,omitempty"`
	Version    string       `json:"version,omitempty"`
	Archive    string       `json:"archive,omitempty"`
	Artifact   string       `json:"artifact,omitempty"`
	Prebuilt   bool         `json:"prebuilt"`
	Registered bool         `json:"registered"` // registration performed by this run
	Uploaded   bool         `json:"uploaded"`
	Error      *ResultError `json:"error,omitempty"`
	Durations  Durations    `json:"durations"`
	Timestamps Timestamps   `json:"timestamps"`
}

// ResultError is the serializable form of a failed promotion.
type ResultError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

type Durations struct {
	TotalSec   float64  `json:"total_sec"`
	FetchSec   *float64 `json:"fetch_sec"`
	BuildSec   *float64 `json:"build_sec"`
	CheckSec   *float64 `json:"check_sec"`
	PublishSec *float64 `json:"publish_sec"`
}

type Timestamps struct {
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}
