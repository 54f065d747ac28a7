// Package pipeline implements the staged document ingestion pipeline: it
// stages file metadata instantly, lets the caller curate a selection, and
// on commit streams content in adaptively sized batches to the downstream
// document service. One Pipeline instance serves one upload surface and
// runs one staging/commit operation at a time; selections arriving
// mid-flight wait in a bounded FIFO queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lkoehler/docintake-go/internal/models"
	"github.com/lkoehler/docintake-go/internal/staging"
	"github.com/lkoehler/docintake-go/internal/telemetry"
)

// Phase is the pipeline lifecycle state exposed to callers.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseStaging     Phase = "staging"
	PhaseReading     Phase = "reading"
	PhaseDispatching Phase = "dispatching"
	PhaseComplete    Phase = "complete"
	PhaseError       Phase = "error"
)

// SubmitOutcome is the result of a selection submission.
type SubmitOutcome string

const (
	// SubmitAccepted means the selection was processed immediately.
	SubmitAccepted SubmitOutcome = "accepted"
	// SubmitQueued means the pipeline was busy and the selection waits in
	// the FIFO queue.
	SubmitQueued SubmitOutcome = "queued"
	// SubmitQueueFull means the queue was at capacity and the selection
	// was rejected.
	SubmitQueueFull SubmitOutcome = "queueFull"
)

// ErrBusy is returned by Commit when another operation is running.
var ErrBusy = errors.New("pipeline: operation already running")

// Dispatcher hands prepared documents to the downstream document service.
// Implementations must tolerate repeated calls with overlapping content;
// the pipeline issues no transaction around dispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context, docs []models.PreparedDocument) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, docs []models.PreparedDocument) error

func (f DispatcherFunc) Dispatch(ctx context.Context, docs []models.PreparedDocument) error {
	return f(ctx, docs)
}

// Config carries the tunables of one pipeline instance.
type Config struct {
	// MaxStagedFiles caps the total staged set; input beyond the remaining
	// capacity is counted as overflow.
	MaxStagedFiles int
	// MaxQueueDepth bounds the pending-selection queue.
	MaxQueueDepth int
	// QueueWarnDepth triggers a queue_spike alert when reached. Must be
	// below MaxQueueDepth to be useful.
	QueueWarnDepth int
	// SlowBatchThreshold triggers a slow_chunk alert for any batch taking
	// longer. Zero disables the alert.
	SlowBatchThreshold time.Duration
	// Rules validates type and size at staging time.
	Rules staging.Rules
	// FolderFunc derives an optional folder path per handle.
	FolderFunc staging.FolderFunc
}

// Progress is a point-in-time view of the pipeline for display layers.
// All fields are always present.
type Progress struct {
	Phase      Phase  `json:"phase"`
	Staged     int    `json:"staged"`
	Selected   int    `json:"selected"`
	Processed  int    `json:"processed"`
	Total      int    `json:"total"`
	Dispatched int    `json:"dispatched"`
	Rejected   int    `json:"rejected"`
	Skipped    int    `json:"skipped"`
	Overflow   int    `json:"overflow"`
	QueueDepth int    `json:"queueDepth"`
	Fatal      string `json:"fatal,omitempty"`
}

// Pipeline is one upload surface's staging pipeline. Lifecycle:
// create → Submit/selection ops → Commit → Clear. All exported methods are
// safe for concurrent use; staging and commit operations themselves are
// serialized through the busy flag and the pending-selection queue.
type Pipeline struct {
	cfg        Config
	log        *slog.Logger
	dispatcher Dispatcher
	tracker    *telemetry.Tracker
	alerter    *telemetry.Alerter

	mu         sync.Mutex
	sel        *Selection
	queue      []models.PendingSelection
	busy       bool
	phase      Phase
	fatal      string
	rejections []models.RejectionEntry
	overflow   int
	dispatched int
	processed  int
	total      int
}

// New creates a pipeline. A nil tracker or alerter is replaced with a
// functional default; a nil logger falls back to slog.Default.
func New(cfg Config, dispatcher Dispatcher, tracker *telemetry.Tracker, alerter *telemetry.Alerter, log *slog.Logger) *Pipeline {
	if cfg.MaxStagedFiles <= 0 {
		cfg.MaxStagedFiles = 1000
	}
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = 5
	}
	if cfg.QueueWarnDepth <= 0 || cfg.QueueWarnDepth > cfg.MaxQueueDepth {
		cfg.QueueWarnDepth = max(1, cfg.MaxQueueDepth-2)
	}
	if cfg.Rules.MaxFileMB == 0 {
		cfg.Rules = staging.DefaultRules()
	}
	if tracker == nil {
		tracker = telemetry.NewTracker()
	}
	if alerter == nil {
		alerter = telemetry.NewAlerter(telemetry.DefaultCooldowns(), nil, log)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		cfg:        cfg,
		log:        log,
		dispatcher: dispatcher,
		tracker:    tracker,
		alerter:    alerter,
		sel:        NewSelection(),
		phase:      PhaseIdle,
	}
}

// Submit stages a new selection of raw handles. If no operation is
// running it is processed immediately (and committed when autoSubmit is
// set), then any queued selections are drained in arrival order. If an
// operation is running the selection is queued, or rejected with
// SubmitQueueFull when the queue is at capacity.
func (p *Pipeline) Submit(ctx context.Context, handles []models.Handle, autoSubmit bool) SubmitOutcome {
	p.mu.Lock()
	if p.busy {
		if len(p.queue) >= p.cfg.MaxQueueDepth {
			p.mu.Unlock()
			p.log.Warn("selection rejected, queue full", "files", len(handles), "depth", p.cfg.MaxQueueDepth)
			return SubmitQueueFull
		}
		p.queue = append(p.queue, models.PendingSelection{
			Handles:    handles,
			AutoSubmit: autoSubmit,
			QueuedAt:   time.Now(),
		})
		depth := len(p.queue)
		p.updateQueueGauges()
		snap := p.tracker.Snapshot()
		p.mu.Unlock()

		p.log.Info("selection queued", "files", len(handles), "depth", depth)
		if depth >= p.cfg.QueueWarnDepth {
			p.alerter.Emit(telemetry.AlertQueueSpike, "warning",
				fmt.Sprintf("%d Auswahlen warten auf Verarbeitung", depth), snap)
		}
		return SubmitQueued
	}
	p.busy = true
	p.mu.Unlock()

	p.run(ctx, handles, autoSubmit)
	p.drainQueue(ctx)
	return SubmitAccepted
}

// Commit reads the selected files' content in adaptive batches and
// dispatches them downstream. Returns ErrBusy when another operation is
// running. A fatal pipeline error is returned after the queue has been
// drained, so a failed run never wedges pending selections.
func (p *Pipeline) Commit(ctx context.Context) error {
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		return ErrBusy
	}
	p.busy = true
	p.mu.Unlock()

	p.commit(ctx)

	// Capture the outcome before draining: queued runs reset the fatal
	// state and must not mask this commit's error.
	p.mu.Lock()
	fatal := ""
	if p.phase == PhaseError {
		fatal = p.fatal
	}
	p.mu.Unlock()

	p.drainQueue(ctx)

	if fatal != "" {
		return errors.New(fatal)
	}
	return nil
}

// run executes one staging pass and, when requested, the follow-up
// commit. Caller must hold the busy flag. Panics are converted into a
// fatal error so the queue can still drain.
func (p *Pipeline) run(ctx context.Context, handles []models.Handle, autoSubmit bool) {
	defer func() {
		if r := recover(); r != nil {
			p.setFatal(fmt.Sprintf("unerwarteter Fehler beim Staging: %v", r))
		}
	}()

	p.setPhase(PhaseStaging)
	p.mu.Lock()
	p.fatal = ""
	remaining := p.cfg.MaxStagedFiles - len(p.sel.files)
	p.mu.Unlock()

	res := staging.Stage(handles, p.cfg.Rules, remaining, p.cfg.FolderFunc)

	p.mu.Lock()
	added, skipped := p.sel.Add(res.Staged)
	p.rejections = append(p.rejections, res.Rejected...)
	p.overflow += res.Overflow
	p.mu.Unlock()

	p.log.Info("selection staged",
		"submitted", len(handles),
		"staged", added,
		"skipped", skipped,
		"rejected", len(res.Rejected),
		"overflow", res.Overflow,
	)

	if autoSubmit {
		p.commit(ctx)
		return
	}
	p.setPhase(PhaseIdle)
}

// commit runs the read/dispatch loop for the current selection. Caller
// must hold the busy flag.
func (p *Pipeline) commit(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.setFatal(fmt.Sprintf("unerwarteter Fehler beim Übertragen: %v", r))
		}
	}()

	p.mu.Lock()
	p.fatal = ""
	files := p.sel.SelectedFiles()
	p.processed = 0
	p.total = len(files)
	p.mu.Unlock()

	if len(files) == 0 {
		p.setPhase(PhaseComplete)
		return
	}

	readSize := ReadBatchSize(files)
	dispatchSize := DispatchBatchSize(files)
	p.tracker.BeginRun(len(files))
	p.setPhase(PhaseReading)
	p.log.Info("commit started",
		"files", len(files),
		"bytes", totalSize(files),
		"read_batch", readSize,
		"dispatch_batch", dispatchSize,
	)

	var pending []models.PreparedDocument
	lastTick := time.Now()

	for batch, err := range ReadStream(ctx, files, readSize) {
		if err != nil {
			p.setFatal(fmt.Sprintf("Lesen abgebrochen: %v", err))
			return
		}

		dur := time.Since(lastTick)
		p.tracker.RecordBatch(dur, batch.ProcessedSoFar, batch.TotalFiles)
		if p.cfg.SlowBatchThreshold > 0 && dur > p.cfg.SlowBatchThreshold {
			p.alerter.Emit(telemetry.AlertSlowChunk, "warning",
				fmt.Sprintf("Batch benötigte %d ms", dur.Milliseconds()), p.tracker.Snapshot())
		}

		p.mu.Lock()
		p.rejections = append(p.rejections, batch.Rejected...)
		p.processed = batch.ProcessedSoFar
		p.mu.Unlock()

		pending = append(pending, batch.Prepared...)
		for len(pending) >= dispatchSize {
			chunk := pending[:dispatchSize]
			pending = pending[dispatchSize:]
			if !p.dispatch(ctx, chunk) {
				return
			}
		}

		lastTick = time.Now()
	}

	if len(pending) > 0 && !p.dispatch(ctx, pending) {
		return
	}

	p.mu.Lock()
	p.sel.MarkUploaded(files)
	p.phase = PhaseComplete
	dispatched := p.dispatched
	p.mu.Unlock()

	p.log.Info("commit complete", "files", len(files), "dispatched", dispatched, "telemetry", p.tracker.Snapshot())
}

// dispatch sends one batch downstream. Returns false after recording a
// fatal error.
func (p *Pipeline) dispatch(ctx context.Context, docs []models.PreparedDocument) bool {
	p.setPhase(PhaseDispatching)
	if err := p.dispatcher.Dispatch(ctx, docs); err != nil {
		p.setFatal(fmt.Sprintf("Übertragung fehlgeschlagen: %v", err))
		return false
	}
	p.mu.Lock()
	p.dispatched += len(docs)
	p.mu.Unlock()
	p.setPhase(PhaseReading)
	return true
}

// drainQueue starts queued selections in arrival order until the queue is
// empty, then releases the busy flag. Runs on the goroutine that finished
// the previous operation, so no external trigger is needed.
func (p *Pipeline) drainQueue(ctx context.Context) {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.busy = false
			p.updateQueueGauges()
			p.mu.Unlock()
			return
		}
		next := p.queue[0]
		p.queue = p.queue[1:]
		p.updateQueueGauges()
		p.mu.Unlock()

		p.log.Info("starting queued selection", "files", len(next.Handles), "waited", time.Since(next.QueuedAt))
		p.run(ctx, next.Handles, next.AutoSubmit)
	}
}

// updateQueueGauges pushes queue state into the tracker. Caller holds mu.
func (p *Pipeline) updateQueueGauges() {
	files := 0
	for _, sel := range p.queue {
		files += len(sel.Handles)
	}
	p.tracker.SetQueueState(len(p.queue), len(p.queue), files)
}

func (p *Pipeline) setPhase(phase Phase) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
}

func (p *Pipeline) setFatal(msg string) {
	p.mu.Lock()
	p.phase = PhaseError
	p.fatal = msg
	p.mu.Unlock()
	p.log.Error("pipeline run failed", "error", msg)
}

// Progress returns the current pipeline state for display layers.
func (p *Pipeline) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	staged, selected := p.sel.Counts()
	return Progress{
		Phase:      p.phase,
		Staged:     staged,
		Selected:   selected,
		Processed:  p.processed,
		Total:      p.total,
		Dispatched: p.dispatched,
		Rejected:   len(p.rejections),
		Skipped:    p.sel.SkippedDuplicates(),
		Overflow:   p.overflow,
		QueueDepth: len(p.queue),
		Fatal:      p.fatal,
	}
}

// Telemetry returns the current telemetry snapshot.
func (p *Pipeline) Telemetry() telemetry.Snapshot {
	return p.tracker.Snapshot()
}

// Rejections returns up to limit rejection entries plus the count of
// entries beyond the limit. limit <= 0 returns everything.
func (p *Pipeline) Rejections(limit int) ([]models.RejectionEntry, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if limit <= 0 || limit >= len(p.rejections) {
		out := make([]models.RejectionEntry, len(p.rejections))
		copy(out, p.rejections)
		return out, 0
	}
	out := make([]models.RejectionEntry, limit)
	copy(out, p.rejections[:limit])
	return out, len(p.rejections) - limit
}

// StagedFiles returns the staged set in insertion order.
func (p *Pipeline) StagedFiles() []*models.StagedFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sel.Files()
}

// Remove drops one staged file.
func (p *Pipeline) Remove(key models.DedupeKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sel.Remove(key)
}

// RemoveSelected drops every selected file.
func (p *Pipeline) RemoveSelected() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sel.RemoveSelected()
}

// SelectAll selects every staged file.
func (p *Pipeline) SelectAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sel.SelectAll()
}

// SelectNone clears the selection.
func (p *Pipeline) SelectNone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sel.SelectNone()
}

// InvertSelection flips every staged file's selection state.
func (p *Pipeline) InvertSelection() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sel.Invert()
}

// Select marks one staged file as selected. Unknown keys are ignored.
func (p *Pipeline) Select(key models.DedupeKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sel.Select(key)
}

// Deselect removes one staged file from the selection.
func (p *Pipeline) Deselect(key models.DedupeKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sel.Deselect(key)
}

// IsSelected reports whether a staged file is currently selected.
func (p *Pipeline) IsSelected(key models.DedupeKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sel.IsSelected(key)
}

// Clear drops all staged state, pending selections and telemetry,
// releasing every file handle. The pipeline returns to idle.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sel.Clear()
	p.queue = nil
	p.rejections = nil
	p.overflow = 0
	p.dispatched = 0
	p.processed = 0
	p.total = 0
	p.fatal = ""
	p.phase = PhaseIdle
	p.tracker.Reset()
}

func totalSize(files []*models.StagedFile) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
