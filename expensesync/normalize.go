package expensesync

import (
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/expenses_backend/models"
	"github.com/shopspring/decimal"
)

// minorUnitThreshold drives the cents-vs-dollars heuristic: a raw amount
// strictly above this is assumed to be in minor units and divided by 100.
// The threshold is fragile (a genuine 10,050.00 bill would be halved twice
// over) but is kept for compatibility with the historical data set.
var minorUnitThreshold = decimal.NewFromInt(10000)

const (
	placeholderVendorPrefix = "Vendor ID: "
	placeholderUnknownUser  = "Unknown User"
	placeholderMerchant     = "Unknown Merchant"
)

// NormalizeContext carries the per-record inputs resolved outside the pure
// field mapping: vendor/cardholder names and card custom-field extractions.
type NormalizeContext struct {
	VendorName string
	Cardholder *string
	Department *string
	Branch     *string
	Category   *string
}

// NormalizeAmount applies the minor-unit heuristic and returns the amount in
// major currency units.
func NormalizeAmount(raw decimal.Decimal) decimal.Decimal {
	if raw.Abs().GreaterThan(minorUnitThreshold) {
		return raw.Div(decimal.NewFromInt(100))
	}
	return raw
}

// extractAmount is the declared fallback chain for the record amount:
// detail.total, then detail.userTotal, then zero.
func extractAmount(detail *RawDetail) decimal.Decimal {
	candidates := []func() decimal.Decimal{
		func() decimal.Decimal {
			if detail != nil {
				return detail.Total
			}
			return decimal.Zero
		},
		func() decimal.Decimal {
			if detail != nil {
				return detail.UserTotal
			}
			return decimal.Zero
		},
	}
	for _, candidate := range candidates {
		if v := candidate(); !v.IsZero() {
			return v
		}
	}
	return decimal.Zero
}

// extractMemo: first line item's memo, then detail memo, then (card only) the
// transaction description as last resort.
func extractMemo(raw RawRecord, detail *RawDetail, items []RawLineItem) *string {
	candidates := []func() string{
		func() string {
			if len(items) > 0 {
				return items[0].Memo
			}
			return ""
		},
		func() string {
			if detail != nil {
				return detail.Memo
			}
			return ""
		},
	}
	if raw.Source == models.SourceSystemCard {
		candidates = append(candidates, func() string { return raw.Description })
	}
	for _, candidate := range candidates {
		if v := strings.TrimSpace(candidate()); v != "" {
			return &v
		}
	}
	return nil
}

// extractCurrency: detail currency wins over the record-level value.
func extractCurrency(raw RawRecord, detail *RawDetail) string {
	if detail != nil && detail.Currency != "" {
		return detail.Currency
	}
	return raw.Currency
}

// firstLineItemField pulls department/branch/category from the first line
// item only; records without line items fall back to the value supplied in
// the NormalizeContext (custom-field extraction for card, nil for ERP).
func firstLineItemField(items []RawLineItem, pick func(RawLineItem) string, fallback *string) *string {
	if len(items) > 0 {
		if v := strings.TrimSpace(pick(items[0])); v != "" {
			return &v
		}
		return nil
	}
	return fallback
}

// Normalize maps one raw upstream record plus its optional subsidiary objects
// into the canonical schema. It is pure: all lookups happen before the call.
func Normalize(raw RawRecord, detail *RawDetail, items []RawLineItem, nc NormalizeContext, now time.Time) *models.ExpenseRecord {
	rec := &models.ExpenseRecord{
		ExternalId:      raw.ExternalId,
		SourceSystem:    raw.Source,
		TransactionDate: raw.Date,
		VendorName:      nc.VendorName,
		Amount:          NormalizeAmount(extractAmount(detail)),
		Currency:        extractCurrency(raw, detail),
		StatusRaw:       raw.StatusRaw,
		TransactionType: raw.TransactionType,
		Cardholder:      nc.Cardholder,
		Department:      firstLineItemField(items, func(li RawLineItem) string { return li.Department }, nc.Department),
		Branch:          firstLineItemField(items, func(li RawLineItem) string { return li.Branch }, nc.Branch),
		Category:        firstLineItemField(items, func(li RawLineItem) string { return li.Category }, nc.Category),
		Memo:            extractMemo(raw, detail, items),
		LastSyncedAt:    now,
	}

	if rec.Branch != nil {
		normalized := NormalizeBranch(*rec.Branch)
		rec.Branch = &normalized
	}
	if raw.SyncState != "" {
		state := raw.SyncState
		rec.ProviderSyncStatus = &state
	}
	return rec
}

// FallbackVendorName is the degraded-data placeholder when the vendor lookup
// fails; the run must not fail because a name lookup failed.
func FallbackVendorName(vendorRef string) string {
	return placeholderVendorPrefix + vendorRef
}
