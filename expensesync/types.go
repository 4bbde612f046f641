package expensesync

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/expenses_backend/models"
	"github.com/shopspring/decimal"
)

// CardExternalIdPrefix namespaces card-platform transaction ids so they can
// never collide with bare ERP bill ids in the canonical store.
const CardExternalIdPrefix = "CARD-"

// Downstream-sync states the card platform reports for its own accounting
// export. Queries partitioned by these states are the only way to get
// exhaustive coverage; an unfiltered query is not guaranteed complete.
const (
	ProviderSyncStateSynced       = "SYNCED"
	ProviderSyncStateManualSynced = "MANUAL_SYNCED"
	ProviderSyncStateNotSynced    = "NOT_SYNCED"
	ProviderSyncStateError        = "ERROR"
)

// ProviderSyncStates lists the partitions queried during a historical import.
var ProviderSyncStates = []string{
	ProviderSyncStateSynced,
	ProviderSyncStateManualSynced,
	ProviderSyncStateNotSynced,
	ProviderSyncStateError,
}

// RawRecord is the source-agnostic shape both adapters produce. ExternalId is
// already namespaced by the adapter. SyncState is empty when the upstream
// query did not carry a partition filter (state unknown).
type RawRecord struct {
	ExternalId      string
	Source          models.SourceSystem
	Date            time.Time
	StatusRaw       string
	SyncState       string
	Currency        string
	TransactionType string

	// ERP bills reference the vendor by internal id; resolved to a display
	// name via FetchRelatedName.
	VendorRef string

	// Card transactions carry the merchant name inline and the cardholder as
	// a user id resolved through the user directory.
	MerchantName string
	CardholderId string
	Description  string

	// Card-platform custom attributes arrive as an association list keyed by
	// field uuid, not as named fields.
	CustomFields []CustomFieldValue
}

type CustomFieldValue struct {
	FieldUUID string
	Value     string
}

// RawDetail is the per-record detail object; Total and UserTotal feed the
// amount fallback chain.
type RawDetail struct {
	Total     decimal.Decimal
	UserTotal decimal.Decimal
	Memo      string
	Currency  string
}

type RawLineItem struct {
	Department string
	Branch     string
	Category   string
	Memo       string
}

// SourceAdapter fetches raw records and their subsidiary objects from one
// upstream system. Detail, line-item and name lookups may fail independently;
// callers treat those failures as "data unavailable" and fall back, never as a
// fatal run error. Only FetchRecords failing aborts a run.
type SourceAdapter interface {
	Source() models.SourceSystem
	FetchRecords(ctx context.Context, fromDate time.Time) ([]RawRecord, error)
	FetchDetails(ctx context.Context, externalId string) (*RawDetail, error)
	FetchLineItems(ctx context.Context, externalId string) ([]RawLineItem, error)
	FetchRelatedName(ctx context.Context, refId string) (string, error)
}

// PartitionedAdapter is implemented by adapters whose upstream must be queried
// per downstream-sync state to guarantee exhaustive coverage.
type PartitionedAdapter interface {
	SourceAdapter
	FetchRecordsBySyncState(ctx context.Context, daysBack int, state string) ([]RawRecord, error)
}

// UserDirectory resolves upstream user ids to display names, fetched once per
// run. A lookup failure degrades to the "Unknown User" placeholder.
type UserDirectory interface {
	UserNameMapping(ctx context.Context) (map[string]string, error)
}

// CustomFieldResolver maps human labels to field uuids and extracts values
// from a record's custom-field association list.
type CustomFieldResolver interface {
	CustomFieldUUIDByLabel(ctx context.Context, label string) (string, error)
	ExtractCustomFieldValue(rec RawRecord, fieldUUID string) *string
}

// RecordStore is the canonical store surface the orchestrator needs. Upsert is
// an atomic insert-or-update keyed on external id; it does not itself report
// create vs update, hence Exists.
type RecordStore interface {
	FlagsByExternalIds(ctx context.Context, externalIds []string) (map[string]*string, error)
	Exists(ctx context.Context, externalId string) (bool, error)
	Upsert(ctx context.Context, rec *models.ExpenseRecord) error
}

// RunLog persists run metadata: create-on-start, update-on-finish.
type RunLog interface {
	Start(ctx context.Context, source models.SourceSystem, triggeredBy string) (*models.SyncRun, error)
	Finish(ctx context.Context, run *models.SyncRun, summary *RunSummary) error
}

// RecordError pairs a failed record's external id with the failure message.
type RecordError struct {
	ExternalId string `json:"identifier"`
	Message    string `json:"message"`
}

// RunSummary is the aggregate outcome of one sync run, suitable for direct
// surfacing to the HTTP caller.
type RunSummary struct {
	Status         string
	Fetched        int
	Created        int
	Updated        int
	FlagsPreserved int
	Errors         []RecordError
	StartedAt      time.Time
	CompletedAt    time.Time
}

type SyncStats struct {
	Fetched        int `json:"fetched"`
	Created        int `json:"created"`
	Updated        int `json:"updated"`
	FlagsPreserved int `json:"flagsPreserved"`
	Errors         int `json:"errors"`
}

type SyncResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Stats   SyncStats     `json:"stats"`
	Errors  []RecordError `json:"errors,omitempty"`
}

type HistoricalSyncResponse struct {
	SyncResponse
	DateRange           string         `json:"dateRange"`
	DaysImported        int            `json:"daysImported"`
	SyncStatusBreakdown map[string]int `json:"syncStatusBreakdown"`
}

type TriggerSyncRequest struct {
	FromDate *string `json:"fromDate"`
}

type HistoricalSyncRequest struct {
	DaysBack int `json:"daysBack"`
}

type FlagUpdateRequest struct {
	ExpenseId    int     `json:"expenseId" binding:"required"`
	FlagCategory *string `json:"flagCategory"`
}

type ApprovalUpdateRequest struct {
	ExpenseId      int     `json:"expenseId" binding:"required"`
	ApprovalStatus *string `json:"approvalStatus"`
}

type LastSyncResponse struct {
	Success      bool    `json:"success"`
	LastSyncTime *string `json:"lastSyncTime"`
}

type SyncRunResponse struct {
	ID             uint    `json:"id"`
	SourceSystem   string  `json:"sourceSystem"`
	Status         string  `json:"status"`
	TriggeredBy    string  `json:"triggeredBy"`
	StartedAt      *string `json:"startedAt"`
	CompletedAt    *string `json:"completedAt"`
	DurationMs     int64   `json:"durationMs"`
	RecordsFetched int     `json:"recordsFetched"`
	RecordsCreated int     `json:"recordsCreated"`
	RecordsUpdated int     `json:"recordsUpdated"`
	FlagsPreserved int     `json:"flagsPreserved"`
	ErrorCount     int     `json:"errorCount"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []RecordError `json:"errors"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type SyncPubSubPayload struct {
	Source        string `json:"source"`
	FromDate      string `json:"from_date"`
	CorrelationId string `json:"correlation_id"`
}
