package models

import (
	"fmt"
	"time"
)

// HistoryEntry records one persisted PR review. Entries are append-only:
// written once on a successful PR-sourced review, removed only by a
// clear-all, never mutated in place.
type HistoryEntry struct {
	ID        string       `json:"id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Owner     string       `json:"owner"`
	Repo      string       `json:"repo"`
	PRNumber  int          `json:"pr_number"`
	Result    ReviewResult `json:"review_data"`
}

// PRRef formats the entry's pull request as owner/repo#number.
func (e HistoryEntry) PRRef() string {
	return fmt.Sprintf("%s/%s#%d", e.Owner, e.Repo, e.PRNumber)
}
