package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type SourceSystem string

const (
	SourceSystemERP  SourceSystem = "ERP"
	SourceSystemCard SourceSystem = "CARD"
)

func (s SourceSystem) Value() (driver.Value, error) {
	return string(s), nil
}

func (s *SourceSystem) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*s = SourceSystem(v)
	case string:
		*s = SourceSystem(v)
	default:
		return fmt.Errorf("unsupported source system value: %v", value)
	}
	return nil
}

type ApprovalStatus string

const (
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

var ErrInvalidApprovalStatus = errors.New("approval status must be approved or rejected")

// ParseApprovalStatus validates caller input for the approval endpoint.
// nil clears the status; any value other than the two enum members is rejected.
func ParseApprovalStatus(raw *string) (*ApprovalStatus, error) {
	if raw == nil {
		return nil, nil
	}
	switch ApprovalStatus(*raw) {
	case ApprovalStatusApproved:
		s := ApprovalStatusApproved
		return &s, nil
	case ApprovalStatusRejected:
		s := ApprovalStatusRejected
		return &s, nil
	default:
		return nil, ErrInvalidApprovalStatus
	}
}

// ExpenseRecord is the canonical local representation of one upstream
// transaction, keyed exclusively by ExternalId. ERP bill ids are stored as the
// bare upstream numeric id; card transactions carry the "CARD-" prefix so the
// two id spaces can never collide.
//
// FlagCategory and ApprovalStatus are human-owned: a sync pass may set
// FlagCategory only when no record existed before, and never touches
// ApprovalStatus at all.
type ExpenseRecord struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	ExternalId         string          `gorm:"uniqueIndex;size:128;not null" json:"external_id"`
	SourceSystem       SourceSystem    `gorm:"index;size:10;not null" json:"source_system"`
	TransactionDate    time.Time       `gorm:"index;not null" json:"transaction_date"`
	VendorName         string          `gorm:"size:255" json:"vendor_name"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Currency           string          `gorm:"size:10" json:"currency"`
	StatusRaw          string          `gorm:"size:100" json:"status_raw"`
	Department         *string         `gorm:"size:255" json:"department"`
	Branch             *string         `gorm:"size:255" json:"branch"`
	Category           *string         `gorm:"size:255" json:"category"`
	Memo               *string         `gorm:"type:text" json:"memo"`
	TransactionType    string          `gorm:"size:50" json:"transaction_type"`
	Cardholder         *string         `gorm:"size:255" json:"cardholder"`
	FlagCategory       *string         `gorm:"size:100" json:"flag_category"`
	ApprovalStatus     *ApprovalStatus `gorm:"type:enum('approved','rejected');default:null" json:"approval_status"`
	ProviderSyncStatus *string         `gorm:"size:50" json:"provider_sync_status"`
	LastSyncedAt       time.Time       `json:"last_synced_at"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
