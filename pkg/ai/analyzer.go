// Package ai exposes the text-completion capability used for vendor
// matching: given raw invoice text and a candidate vendor list, return a
// structured guess with a confidence value and free-text reasoning.
package ai

import "context"

// Candidate is one known vendor offered to the analyzer.
type Candidate struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type Request struct {
	RawVendor  string      `json:"raw_vendor"`
	Amount     float64     `json:"amount"`
	RawText    string      `json:"raw_text,omitempty"`
	Candidates []Candidate `json:"candidates"`
}

type Result struct {
	BestMatchID     *uint   `json:"best_match_id"`
	ExtractedVendor string  `json:"extracted_vendor"`
	ExtractedAmount float64 `json:"extracted_amount"`
	Confidence      int     `json:"confidence"`
	Reasoning       string  `json:"reasoning"`
}

// Analyzer produces a vendor match guess. Implementations block until
// the result is available or ctx is done; callers treat an error as a
// degraded, not fatal, outcome.
type Analyzer interface {
	AnalyzeInvoice(ctx context.Context, req Request) (*Result, error)
}
