package models

import (
	"errors"
	"testing"
)

func TestParseApprovalStatus(t *testing.T) {
	approved := "approved"
	rejected := "rejected"
	pending := "pending"

	status, err := ParseApprovalStatus(&approved)
	if err != nil || status == nil || *status != ApprovalStatusApproved {
		t.Fatalf("approved: got %v, %v", status, err)
	}

	status, err = ParseApprovalStatus(&rejected)
	if err != nil || status == nil || *status != ApprovalStatusRejected {
		t.Fatalf("rejected: got %v, %v", status, err)
	}

	status, err = ParseApprovalStatus(nil)
	if err != nil || status != nil {
		t.Fatalf("nil must clear without error, got %v, %v", status, err)
	}

	if _, err = ParseApprovalStatus(&pending); !errors.Is(err, ErrInvalidApprovalStatus) {
		t.Fatalf("expected ErrInvalidApprovalStatus, got %v", err)
	}
}
