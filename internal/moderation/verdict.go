// Package moderation provides the client for the external content-moderation
// endpoint and the pure aggregation of per-image verdicts into one
// submission-level status.
package moderation

import (
	"strings"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
)

// Per-image verdict values with special meaning for aggregation. The provider
// may return anything; unknown values count as clean.
const (
	VerdictApproved     = "approved"
	VerdictRejected     = "rejected"
	VerdictBlocked      = "blocked"
	VerdictManualReview = "manual-review"
	VerdictFlagged      = "flagged"
	VerdictError        = "error"
)

// Aggregate folds per-image verdicts into the submission-level status.
// Precedence is fixed: any rejected/blocked wins, then any
// manual-review/flagged/error, then approved. An empty list means nothing was
// evaluated and must never read as approved.
func Aggregate(verdicts []string) model.ModerationStatus {
	anyReview := false
	for _, v := range verdicts {
		switch v {
		case VerdictRejected, VerdictBlocked:
			return model.ModerationRejected
		case VerdictManualReview, VerdictFlagged, VerdictError:
			anyReview = true
		}
	}
	if anyReview {
		return model.ModerationManualReview
	}
	if len(verdicts) > 0 {
		return model.ModerationApproved
	}
	return model.ModerationManualReview
}

// Summary builds the human-readable moderation summary:
// "<aggregate> • <reasons>" with reasons deduplicated in first-occurrence
// order, or just the aggregate when there are none.
func Summary(aggregate model.ModerationStatus, reasons []string) string {
	if len(reasons) == 0 {
		return string(aggregate)
	}

	seen := make(map[string]bool, len(reasons))
	uniq := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if seen[r] {
			continue
		}
		seen[r] = true
		uniq = append(uniq, r)
	}

	return string(aggregate) + " • " + strings.Join(uniq, ", ")
}
