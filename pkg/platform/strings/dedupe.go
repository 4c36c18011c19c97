// Package strings normalizes string lists read from flags, environment
// variables and token claims.
package strings

import (
	"strings"
)

// SplitList splits a comma separated value and normalizes it with
// DedupeAndTrim.
func SplitList(v string) []string {
	return DedupeAndTrim(strings.Split(v, ","))
}

// DedupeAndTrim trims every element and drops empty and repeated ones. Order
// is preserved.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimUpper is DedupeAndTrim for codes compared case-insensitively,
// such as market role codes.
func DedupeAndTrimUpper(values []string) []string {
	return dedupe(values, func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) })
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}
