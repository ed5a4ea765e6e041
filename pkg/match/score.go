// Package match implements the three-way match decision engine: alias
// lookup, AI-assisted vendor matching, purchase order and goods receipt
// evidence, and the confidence scoring that merges them.
package match

import "strings"

// Fixed name-similarity scores. The scoring is deliberately simple so a
// reviewer can see exactly why a number was produced.
const (
	scoreExact     = 100
	scoreSubstring = 85
	scoreFuzzyBase = 50
)

// NameScore compares a raw vendor string against a candidate name,
// ignoring case and surrounding whitespace.
func NameScore(raw, candidate string) int {
	n1 := normalizeName(raw)
	n2 := normalizeName(candidate)

	if n1 == n2 {
		return scoreExact
	}
	if strings.Contains(n1, n2) || strings.Contains(n2, n1) {
		return scoreSubstring
	}
	return scoreFuzzyBase
}

// ThreeWayScore maps the evidence triple to a confidence value.
func ThreeWayScore(vendorMatch, poMatch, receiptExists bool) int {
	switch {
	case vendorMatch && poMatch && receiptExists:
		return 95
	case vendorMatch && poMatch:
		return 80
	case vendorMatch:
		return 60
	default:
		return 30
	}
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
