package expensesync

import "testing"

func TestDecideFlag_PreservesStoredFlag(t *testing.T) {
	personal := "Personal"
	category := "Reimbursable Travel"
	existing := map[string]*string{"100": &personal}

	flag, preserved := DecideFlag(existing, "100", &category)
	if !preserved {
		t.Fatal("expected stored flag to be preserved")
	}
	if flag == nil || *flag != "Personal" {
		t.Fatalf("expected Personal, got %v", flag)
	}
}

func TestDecideFlag_ExistingRecordWithNilFlagStaysNil(t *testing.T) {
	category := "Reimbursable Travel"
	existing := map[string]*string{"100": nil}

	// Presence of the id in the map means "existing record": the auto-flag
	// heuristic must not fire even though the category matches.
	flag, preserved := DecideFlag(existing, "100", &category)
	if flag != nil {
		t.Fatalf("expected nil flag for existing unflagged record, got %q", *flag)
	}
	if preserved {
		t.Fatal("a nil stored flag does not count as preserved")
	}
}

func TestDecideFlag_AutoFlagOnFirstSight(t *testing.T) {
	category := "Employee Reimbursement"
	flag, preserved := DecideFlag(map[string]*string{}, "200", &category)
	if flag == nil || *flag != FlagNeedsReview {
		t.Fatalf("expected %q, got %v", FlagNeedsReview, flag)
	}
	if preserved {
		t.Fatal("auto-assigned flag must not count as preserved")
	}
}

func TestAutoFlag(t *testing.T) {
	cases := []struct {
		category *string
		expected *string
	}{
		{strPtr("reimburse"), strPtr(FlagNeedsReview)},
		{strPtr("REIMBURSEMENT - Q3"), strPtr(FlagNeedsReview)},
		{strPtr("Travel"), nil},
		{nil, nil},
	}
	for _, tc := range cases {
		got := AutoFlag(tc.category)
		switch {
		case tc.expected == nil && got != nil:
			t.Fatalf("AutoFlag(%v) expected nil, got %q", tc.category, *got)
		case tc.expected != nil && (got == nil || *got != *tc.expected):
			t.Fatalf("AutoFlag(%v) expected %q, got %v", tc.category, *tc.expected, got)
		}
	}
}

func strPtr(s string) *string {
	return &s
}
