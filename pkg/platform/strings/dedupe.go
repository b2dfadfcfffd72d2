// Package strings normalizes free-text lists such as screened names and
// vendor source filters before they leave the process.
package strings

import (
	"strings"
)

// DedupeNames trims each name, collapses inner whitespace, and drops empty
// and case-insensitive duplicates. The first spelling wins.
//
//	DedupeNames([]string{" Jane  Doe", "jane doe", "", "J. Doe"})
//	// []string{"Jane Doe", "J. Doe"}
func DedupeNames(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		name := strings.Join(strings.Fields(v), " ")
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, name)
	}
	return result
}

// DedupeUpper trims, upper-cases, and deduplicates enum-like tokens.
//
//	DedupeUpper([]string{"pep", " SANCTION", "Pep"})
//	// []string{"PEP", "SANCTION"}
func DedupeUpper(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		token := strings.ToUpper(strings.TrimSpace(v))
		if token == "" {
			continue
		}
		if _, ok := seen[token]; !ok {
			seen[token] = struct{}{}
			result = append(result, token)
		}
	}
	return result
}
