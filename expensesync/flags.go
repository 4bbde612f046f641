package expensesync

import "strings"

// FlagNeedsReview is the auto-assigned classification for records whose
// category suggests an out-of-policy reimbursement.
const FlagNeedsReview = "Needs Review"

// DecideFlag resolves the flag for an outgoing canonical record.
//
// existingFlags is the batched prefetch of previously persisted flags; an
// external id present in the map means the record already exists, and its
// stored flag (even nil) is carried over untouched — a sync pass never
// overwrites a human-assigned flag. Only ids absent from the map are eligible
// for the auto-flag heuristic.
//
// Returns the flag to store and whether an existing flag value was preserved.
func DecideFlag(existingFlags map[string]*string, externalId string, category *string) (*string, bool) {
	if stored, exists := existingFlags[externalId]; exists {
		return stored, stored != nil
	}
	return AutoFlag(category), false
}

// AutoFlag applies the first-sight heuristic: category text containing
// "reimburse" (case-insensitive) is flagged for review.
func AutoFlag(category *string) *string {
	if category == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(*category), "reimburse") {
		flag := FlagNeedsReview
		return &flag
	}
	return nil
}
