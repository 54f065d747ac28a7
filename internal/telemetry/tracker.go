// Package telemetry provides in-memory throughput tracking and throttled
// alerting for the staging pipeline.
package telemetry

import (
	"log/slog"
	"sync"
	"time"
)

// Snapshot is a point-in-time view of pipeline telemetry. All fields are
// always present; zero means "not observed yet".
type Snapshot struct {
	QueueDepth       int     `json:"queueDepth"`
	QueuedSelections int     `json:"queuedSelections"`
	QueuedFiles      int     `json:"queuedFiles"`
	BatchCount       int64   `json:"batchCount"`
	LastBatchMs      int64   `json:"lastBatchMs"`
	PeakBatchMs      int64   `json:"peakBatchMs"`
	LastThroughput   float64 `json:"lastThroughput"`
	PeakThroughput   float64 `json:"peakThroughput"`
	ProcessedFiles   int     `json:"processedFiles"`
	TotalFiles       int     `json:"totalFiles"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("queue_depth", s.QueueDepth),
		slog.Int64("batch_count", s.BatchCount),
		slog.Int64("last_batch_ms", s.LastBatchMs),
		slog.Int64("peak_batch_ms", s.PeakBatchMs),
		slog.Float64("last_throughput", s.LastThroughput),
		slog.Float64("peak_throughput", s.PeakThroughput),
		slog.Int("processed", s.ProcessedFiles),
		slog.Int("total", s.TotalFiles),
	)
}

// Tracker aggregates per-batch timing into running throughput figures and
// monotone peaks. All methods are safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	runStart time.Time
	now      func() time.Time

	queueDepth       int
	queuedSelections int
	queuedFiles      int

	batchCount     int64
	lastBatchMs    int64
	peakBatchMs    int64
	lastThroughput float64
	peakThroughput float64
	processed      int
	total          int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// BeginRun marks the start of a read/dispatch run. Throughput is derived
// from the elapsed time since this call.
func (t *Tracker) BeginRun(totalFiles int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runStart = t.now()
	t.processed = 0
	t.total = totalFiles
}

// RecordBatch records one batch's duration and cumulative progress.
// Peaks only ever move up.
func (t *Tracker) RecordBatch(duration time.Duration, processedSoFar, totalFiles int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.batchCount++
	t.lastBatchMs = duration.Milliseconds()
	if t.lastBatchMs > t.peakBatchMs {
		t.peakBatchMs = t.lastBatchMs
	}

	t.processed = processedSoFar
	t.total = totalFiles

	if !t.runStart.IsZero() {
		elapsed := t.now().Sub(t.runStart).Seconds()
		if elapsed > 0 {
			t.lastThroughput = float64(processedSoFar) / elapsed
			if t.lastThroughput > t.peakThroughput {
				t.peakThroughput = t.lastThroughput
			}
		}
	}
}

// SetQueueState updates the pending-selection gauges.
func (t *Tracker) SetQueueState(depth, selections, files int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queueDepth = depth
	t.queuedSelections = selections
	t.queuedFiles = files
}

// Snapshot returns the current telemetry values.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		QueueDepth:       t.queueDepth,
		QueuedSelections: t.queuedSelections,
		QueuedFiles:      t.queuedFiles,
		BatchCount:       t.batchCount,
		LastBatchMs:      t.lastBatchMs,
		PeakBatchMs:      t.peakBatchMs,
		LastThroughput:   t.lastThroughput,
		PeakThroughput:   t.peakThroughput,
		ProcessedFiles:   t.processed,
		TotalFiles:       t.total,
	}
}

// Reset drops all recorded values. Only an explicit pipeline reset calls
// this; run completion keeps peaks intact.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runStart = time.Time{}
	t.queueDepth = 0
	t.queuedSelections = 0
	t.queuedFiles = 0
	t.batchCount = 0
	t.lastBatchMs = 0
	t.peakBatchMs = 0
	t.lastThroughput = 0
	t.peakThroughput = 0
	t.processed = 0
	t.total = 0
}
