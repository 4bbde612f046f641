package expensesync

import "testing"

func TestNormalizeBranch(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		// exact alias table match
		{"Phoenix:Phx - SouthEast", "Phoenix - SouthEast"},
		{"Dallas:Dal - Central", "Dallas - Central"},
		// known hierarchical prefix, unknown remainder
		{"Phoenix:Phx - Anything", "Phoenix - Anything"},
		{"Dallas:Dal - Airport", "Dallas - Airport"},
		// passthrough
		{"Las Vegas", "Las Vegas"},
		{"", ""},
		{"  Phoenix:Phx - SouthEast  ", "Phoenix - SouthEast"},
	}
	for _, tc := range cases {
		if got := NormalizeBranch(tc.in); got != tc.expected {
			t.Fatalf("NormalizeBranch(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}
