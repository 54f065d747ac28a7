package classify

import (
	"strconv"
	"time"

	"github.com/lkoehler/docintake-go/internal/models"
)

// RecordRetry appends a retry attempt to the item's history and updates
// the derived bookkeeping fields. The classifier never performs retries
// itself; it only tracks what the backend reports.
func RecordRetry(item *models.FailureItem, outcome models.RetryOutcome, at time.Time) {
	item.RetryHistory = append(item.RetryHistory, models.RetryAttempt{
		Outcome:   outcome,
		Timestamp: at,
	})
	item.RetryCount++
	item.LastRetryAt = &at
	o := outcome
	item.LastRetryOutcome = &o
}

// RetrySummary renders a short, display-ready summary of an item's retry
// history, e.g. "3 Versuche, zuletzt still_failed".
func RetrySummary(item *models.FailureItem) string {
	if item.RetryCount == 0 {
		return "noch kein Wiederholungsversuch"
	}
	last := ""
	if item.LastRetryOutcome != nil {
		last = string(*item.LastRetryOutcome)
	}
	if item.RetryCount == 1 {
		return "1 Versuch, zuletzt " + last
	}
	return strconv.Itoa(item.RetryCount) + " Versuche, zuletzt " + last
}
