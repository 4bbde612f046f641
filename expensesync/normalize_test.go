package expensesync

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/expenses_backend/models"
	"github.com/shopspring/decimal"
)

func TestNormalizeAmount_MinorUnitHeuristic(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"15000", "150"},
		{"45.00", "45"},
		{"9999", "9999"},
		{"10000", "10000"}, // threshold itself is not converted
		{"10001", "100.01"},
		{"-15000", "-150"},
		{"0", "0"},
	}
	for _, tc := range cases {
		in, _ := decimal.NewFromString(tc.in)
		got := NormalizeAmount(in)
		if !got.Equal(decimal.RequireFromString(tc.expected)) {
			t.Fatalf("NormalizeAmount(%s) expected %s, got %s", tc.in, tc.expected, got)
		}
	}
}

func TestNormalize_AmountFallbackChain(t *testing.T) {
	raw := RawRecord{ExternalId: "1", Source: models.SourceSystemERP}

	rec := Normalize(raw, &RawDetail{Total: decimal.NewFromInt(120)}, nil, NormalizeContext{}, time.Now())
	if !rec.Amount.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected detail total to win, got %s", rec.Amount)
	}

	rec = Normalize(raw, &RawDetail{UserTotal: decimal.NewFromInt(80)}, nil, NormalizeContext{}, time.Now())
	if !rec.Amount.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("expected user total fallback, got %s", rec.Amount)
	}

	rec = Normalize(raw, nil, nil, NormalizeContext{}, time.Now())
	if !rec.Amount.IsZero() {
		t.Fatalf("expected zero amount without detail, got %s", rec.Amount)
	}
}

func TestNormalize_FirstLineItemOnly(t *testing.T) {
	raw := RawRecord{ExternalId: "1", Source: models.SourceSystemERP}
	items := []RawLineItem{
		{Department: "Ops", Branch: "Phoenix:Phx - SouthEast", Category: "Travel", Memo: "first"},
		{Department: "Finance", Branch: "Dallas:Dal - Central", Category: "Meals", Memo: "second"},
	}

	rec := Normalize(raw, nil, items, NormalizeContext{}, time.Now())
	if got := deref(rec.Department); got != "Ops" {
		t.Fatalf("expected department from first line item, got %q", got)
	}
	if got := deref(rec.Branch); got != "Phoenix - SouthEast" {
		t.Fatalf("expected normalized branch from first line item, got %q", got)
	}
	if got := deref(rec.Category); got != "Travel" {
		t.Fatalf("expected category from first line item, got %q", got)
	}
	if got := deref(rec.Memo); got != "first" {
		t.Fatalf("expected memo from first line item, got %q", got)
	}
}

func TestNormalize_NoLineItemsUsesContextFallbacks(t *testing.T) {
	dept := "Marketing"
	raw := RawRecord{ExternalId: "CARD-9", Source: models.SourceSystemCard}

	rec := Normalize(raw, nil, nil, NormalizeContext{Department: &dept}, time.Now())
	if got := deref(rec.Department); got != "Marketing" {
		t.Fatalf("expected custom-field department fallback, got %q", got)
	}
	if rec.Branch != nil {
		t.Fatalf("expected nil branch without line items or fallback, got %q", *rec.Branch)
	}
}

func TestNormalize_MemoChain(t *testing.T) {
	cardRaw := RawRecord{ExternalId: "CARD-1", Source: models.SourceSystemCard, Description: "txn desc"}

	rec := Normalize(cardRaw, &RawDetail{Memo: "detail memo"}, nil, NormalizeContext{}, time.Now())
	if got := deref(rec.Memo); got != "detail memo" {
		t.Fatalf("expected detail memo, got %q", got)
	}

	rec = Normalize(cardRaw, nil, nil, NormalizeContext{}, time.Now())
	if got := deref(rec.Memo); got != "txn desc" {
		t.Fatalf("expected card description as last resort, got %q", got)
	}

	erpRaw := RawRecord{ExternalId: "2", Source: models.SourceSystemERP, Description: "should not be used"}
	rec = Normalize(erpRaw, nil, nil, NormalizeContext{}, time.Now())
	if rec.Memo != nil {
		t.Fatalf("expected nil memo for ERP without detail or line items, got %q", *rec.Memo)
	}
}

func TestNormalize_CurrencyPrefersDetail(t *testing.T) {
	raw := RawRecord{ExternalId: "1", Source: models.SourceSystemERP, Currency: "USD"}

	rec := Normalize(raw, &RawDetail{Currency: "EUR"}, nil, NormalizeContext{}, time.Now())
	if rec.Currency != "EUR" {
		t.Fatalf("expected detail currency, got %q", rec.Currency)
	}

	rec = Normalize(raw, nil, nil, NormalizeContext{}, time.Now())
	if rec.Currency != "USD" {
		t.Fatalf("expected record currency fallback, got %q", rec.Currency)
	}
}

func TestNormalize_ProviderSyncState(t *testing.T) {
	raw := RawRecord{ExternalId: "CARD-1", Source: models.SourceSystemCard, SyncState: ProviderSyncStateSynced}
	rec := Normalize(raw, nil, nil, NormalizeContext{}, time.Now())
	if got := deref(rec.ProviderSyncStatus); got != ProviderSyncStateSynced {
		t.Fatalf("expected provider sync status SYNCED, got %q", got)
	}

	raw.SyncState = ""
	rec = Normalize(raw, nil, nil, NormalizeContext{}, time.Now())
	if rec.ProviderSyncStatus != nil {
		t.Fatalf("expected nil provider sync status for unknown state")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
