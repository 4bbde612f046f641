package expensesync

import "strings"

// branchAliases maps exact free-text location labels to their canonical form.
// Checked before the prefix rule.
var branchAliases = map[string]string{
	"Phoenix:Phx - SouthEast": "Phoenix - SouthEast",
	"Phoenix:Phx - NorthWest": "Phoenix - NorthWest",
	"Dallas:Dal - Central":    "Dallas - Central",
	"Dallas:Dal - North":      "Dallas - North",
}

// branchPrefixes rewrites two-level "Region:Subregion" codes to their short
// region form when no exact alias matched.
var branchPrefixes = map[string]string{
	"Phoenix:Phx": "Phoenix",
	"Dallas:Dal":  "Dallas",
}

// NormalizeBranch canonicalizes a free-text location label: exact alias match
// first, then the hierarchical-prefix rewrite, otherwise passthrough.
func NormalizeBranch(raw string) string {
	raw = strings.TrimSpace(raw)
	if canonical, ok := branchAliases[raw]; ok {
		return canonical
	}
	for prefix, short := range branchPrefixes {
		if strings.HasPrefix(raw, prefix) {
			return short + raw[len(prefix):]
		}
	}
	return raw
}
