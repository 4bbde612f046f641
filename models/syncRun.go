package models

import "time"

const (
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual    = "manual"
	SyncTriggeredScheduled = "scheduled"
	SyncTriggeredRetry     = "retry"
)

// SyncRun brackets one orchestrator execution against one source. Created in
// running state before any fetch, updated exactly once with a terminal state;
// never deleted by the engine so operators can audit past runs.
type SyncRun struct {
	ID             uint         `gorm:"primary_key" json:"id"`
	SourceSystem   SourceSystem `gorm:"index;size:10;not null" json:"source_system"`
	Status         string       `gorm:"size:20;not null" json:"status"`
	TriggeredBy    string       `gorm:"size:20" json:"triggered_by"`
	RecordsFetched int          `json:"records_fetched"`
	RecordsCreated int          `json:"records_created"`
	RecordsUpdated int          `json:"records_updated"`
	FlagsPreserved int          `json:"flags_preserved"`
	ErrorCount     int          `json:"error_count"`
	StartedAt      *time.Time   `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at"`
	DurationMs     int64        `json:"duration_ms"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// SyncRunError is one row per record that failed during a run, in the order
// the records were processed.
type SyncRunError struct {
	ID         uint      `gorm:"primary_key" json:"id"`
	SyncRunId  uint      `gorm:"index;not null" json:"sync_run_id"`
	ExternalId string    `gorm:"size:128" json:"external_id"`
	Message    string    `gorm:"type:text" json:"message"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
