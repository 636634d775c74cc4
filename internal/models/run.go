package models

import (
	"time"

	"gorm.io/gorm"
)

// Run outcomes.
const (
	OutcomeRunning   = "running"
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
	OutcomeFailed    = "failed"
)

// RunRecord is one execution of a compiled workspace snapshot.
type RunRecord struct {
	gorm.Model
	UUID      string     `gorm:"uniqueIndex;not null" json:"uuid"`
	Snapshot  string     `json:"snapshot"`
	Blocks    int        `json:"blocks"`
	Ticks     int        `json:"ticks"`
	Outcome   string     `gorm:"not null" json:"outcome"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
}
