package models

import "time"

// RetryOutcome describes the result of a single retry attempt reported by
// the downstream service.
type RetryOutcome string

const (
	RetrySuccess     RetryOutcome = "success"
	RetryStillFailed RetryOutcome = "still_failed"
	RetryCrashed     RetryOutcome = "crashed"
	RetryNoContent   RetryOutcome = "no_content"
)

// RetryAttempt is one entry in a failure item's retry history.
type RetryAttempt struct {
	Outcome   RetryOutcome `json:"outcome"`
	Timestamp time.Time    `json:"timestamp"`
}

// FailureItem is a document the downstream service reported as failed.
// The item is owned by that service; the pipeline only reads and classifies
// it and records retry attempts the service reports back.
type FailureItem struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	ProcessingError  *string        `json:"processingError,omitempty"`
	ExtractionEngine *string        `json:"extractionEngine,omitempty"`
	RetryCount       int            `json:"retryCount"`
	LastRetryAt      *time.Time     `json:"lastRetryAt,omitempty"`
	LastRetryOutcome *RetryOutcome  `json:"lastRetryOutcome,omitempty"`
	RetryHistory     []RetryAttempt `json:"retryHistory,omitempty"`
}

// ErrorText returns the processing error text, or empty when none was
// reported.
func (f *FailureItem) ErrorText() string {
	if f.ProcessingError == nil {
		return ""
	}
	return *f.ProcessingError
}

// Engine returns the extraction engine name, or empty when unknown.
func (f *FailureItem) Engine() string {
	if f.ExtractionEngine == nil {
		return ""
	}
	return *f.ExtractionEngine
}
