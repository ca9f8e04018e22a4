package domain

import "strings"

// containsFold reports whether substr occurs in s under Unicode case folding.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
