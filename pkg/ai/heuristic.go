package ai

import (
	"context"
	"fmt"
	"strings"
)

// HeuristicAnalyzer is the deterministic analyzer used when no AI
// endpoint is configured: plain normalized string comparison against
// the candidate list. It never fails.
type HeuristicAnalyzer struct{}

func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{}
}

func (a *HeuristicAnalyzer) AnalyzeInvoice(_ context.Context, req Request) (*Result, error) {
	raw := normalize(req.RawVendor)

	for _, c := range req.Candidates {
		if normalize(c.Name) == raw {
			id := c.ID
			return &Result{
				BestMatchID:     &id,
				ExtractedVendor: c.Name,
				ExtractedAmount: req.Amount,
				Confidence:      90,
				Reasoning:       fmt.Sprintf("Heuristic match: %q equals known vendor %q.", req.RawVendor, c.Name),
			}, nil
		}
	}

	for _, c := range req.Candidates {
		name := normalize(c.Name)
		if strings.Contains(name, raw) || strings.Contains(raw, name) {
			id := c.ID
			return &Result{
				BestMatchID:     &id,
				ExtractedVendor: c.Name,
				ExtractedAmount: req.Amount,
				Confidence:      70,
				Reasoning:       fmt.Sprintf("Heuristic match: %q is a substring match for known vendor %q.", req.RawVendor, c.Name),
			}, nil
		}
	}

	return &Result{
		ExtractedVendor: req.RawVendor,
		ExtractedAmount: req.Amount,
		Confidence:      30,
		Reasoning:       fmt.Sprintf("Heuristic match: no known vendor resembles %q.", req.RawVendor),
	}, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
