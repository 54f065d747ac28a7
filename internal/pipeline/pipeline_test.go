package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lkoehler/docintake-go/internal/models"
	"github.com/lkoehler/docintake-go/internal/telemetry"
)

// alertRecorder collects alerts delivered by the alerter's sink goroutine.
type alertRecorder struct {
	mu     sync.Mutex
	alerts []telemetry.Alert
	seen   chan telemetry.AlertKind
}

func newAlertRecorder() *alertRecorder {
	return &alertRecorder{seen: make(chan telemetry.AlertKind, 16)}
}

func (r *alertRecorder) sink(a telemetry.Alert) {
	r.mu.Lock()
	r.alerts = append(r.alerts, a)
	r.mu.Unlock()
	r.seen <- a.Kind
}

func (r *alertRecorder) waitFor(t *testing.T, kind telemetry.AlertKind) telemetry.Alert {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-r.seen:
			if got != kind {
				continue
			}
			r.mu.Lock()
			defer r.mu.Unlock()
			for i := len(r.alerts) - 1; i >= 0; i-- {
				if r.alerts[i].Kind == kind {
					return r.alerts[i]
				}
			}
		case <-deadline:
			t.Fatalf("no %s alert delivered", kind)
		}
	}
}

// countingDispatcher records every batch it receives.
type countingDispatcher struct {
	mu      sync.Mutex
	batches [][]models.PreparedDocument
}

func (d *countingDispatcher) Dispatch(_ context.Context, docs []models.PreparedDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	batch := make([]models.PreparedDocument, len(docs))
	copy(batch, docs)
	d.batches = append(d.batches, batch)
	return nil
}

func (d *countingDispatcher) sizes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int, len(d.batches))
	for i, b := range d.batches {
		out[i] = len(b)
	}
	return out
}

// blockingDispatcher signals entry and waits for release, holding the
// pipeline busy for queue tests.
type blockingDispatcher struct {
	entered chan struct{}
	release chan struct{}
	err     error
}

func newBlockingDispatcher() *blockingDispatcher {
	return &blockingDispatcher{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (d *blockingDispatcher) Dispatch(context.Context, []models.PreparedDocument) error {
	d.entered <- struct{}{}
	<-d.release
	return d.err
}

func testPipeline(t *testing.T, d Dispatcher, cfg Config) *Pipeline {
	t.Helper()
	return New(cfg, d, nil, nil, nil)
}

func manyHandles(n int, prefix string) []models.Handle {
	handles := make([]models.Handle, n)
	for i := range handles {
		handles[i] = handle(fmt.Sprintf("%s-%03d.pdf", prefix, i), "inhalt")
	}
	return handles
}

func TestPipeline_SubmitStagesWithoutCommit(t *testing.T) {
	d := &countingDispatcher{}
	p := testPipeline(t, d, Config{})

	outcome := p.Submit(context.Background(), manyHandles(3, "a"), false)
	require.Equal(t, SubmitAccepted, outcome)

	prog := p.Progress()
	assert.Equal(t, PhaseIdle, prog.Phase)
	assert.Equal(t, 3, prog.Staged)
	assert.Equal(t, 3, prog.Selected)
	assert.Empty(t, d.sizes(), "staging alone must not dispatch")
}

func TestPipeline_AutoSubmitCommitsAndMarksUploaded(t *testing.T) {
	d := &countingDispatcher{}
	p := testPipeline(t, d, Config{})

	outcome := p.Submit(context.Background(), manyHandles(4, "a"), true)
	require.Equal(t, SubmitAccepted, outcome)

	prog := p.Progress()
	assert.Equal(t, PhaseComplete, prog.Phase)
	assert.Zero(t, prog.Staged, "committed files leave the staged set")
	assert.Equal(t, 4, prog.Dispatched)
	assert.Equal(t, 4, prog.Processed)

	// Re-staging the exact same files is treated as duplicates.
	p.Submit(context.Background(), manyHandles(4, "a"), false)
	prog = p.Progress()
	assert.Zero(t, prog.Staged)
	assert.Equal(t, 4, prog.Skipped)
}

func TestPipeline_DispatchChunking(t *testing.T) {
	d := &countingDispatcher{}
	p := testPipeline(t, d, Config{})

	// 30 tiny files: read batches of 12, dispatch chunks of 25.
	outcome := p.Submit(context.Background(), manyHandles(30, "a"), true)
	require.Equal(t, SubmitAccepted, outcome)

	assert.Equal(t, []int{25, 5}, d.sizes())
	assert.Equal(t, 30, p.Progress().Dispatched)
}

func TestPipeline_CommitRespectsSelection(t *testing.T) {
	d := &countingDispatcher{}
	p := testPipeline(t, d, Config{})

	p.Submit(context.Background(), manyHandles(5, "a"), false)
	p.SelectNone()
	files := p.StagedFiles()
	// Keep only the first two.
	for _, f := range files[:2] {
		p.Select(f.Key())
	}

	require.NoError(t, p.Commit(context.Background()))

	sizes := d.sizes()
	require.Len(t, sizes, 1)
	assert.Equal(t, 2, sizes[0])

	prog := p.Progress()
	assert.Equal(t, 3, prog.Staged, "unselected files stay staged")
}

func TestPipeline_EmptyCommitCompletes(t *testing.T) {
	p := testPipeline(t, &countingDispatcher{}, Config{})

	require.NoError(t, p.Commit(context.Background()))
	assert.Equal(t, PhaseComplete, p.Progress().Phase)
}

func TestPipeline_QueueBoundAndDrain(t *testing.T) {
	d := newBlockingDispatcher()
	p := testPipeline(t, d, Config{MaxQueueDepth: 2, QueueWarnDepth: 2})

	done := make(chan SubmitOutcome, 1)
	go func() {
		done <- p.Submit(context.Background(), manyHandles(1, "a"), true)
	}()
	<-d.entered

	assert.Equal(t, SubmitQueued, p.Submit(context.Background(), manyHandles(2, "b"), false))
	assert.Equal(t, SubmitQueued, p.Submit(context.Background(), manyHandles(3, "c"), false))
	assert.Equal(t, SubmitQueueFull, p.Submit(context.Background(), manyHandles(1, "d"), false))
	assert.Equal(t, 2, p.Progress().QueueDepth)

	close(d.release)
	assert.Equal(t, SubmitAccepted, <-done)

	// Queued selections ran in arrival order on the same goroutine before
	// Submit returned; the rejected one did not.
	prog := p.Progress()
	assert.Zero(t, prog.QueueDepth)
	assert.Equal(t, 5, prog.Staged)
}

func TestPipeline_CommitWhileBusyReturnsErrBusy(t *testing.T) {
	d := newBlockingDispatcher()
	p := testPipeline(t, d, Config{})

	done := make(chan SubmitOutcome, 1)
	go func() {
		done <- p.Submit(context.Background(), manyHandles(1, "a"), true)
	}()
	<-d.entered

	assert.ErrorIs(t, p.Commit(context.Background()), ErrBusy)

	close(d.release)
	<-done
}

func TestPipeline_DispatchFailureIsFatalButDrainsQueue(t *testing.T) {
	d := newBlockingDispatcher()
	d.err = fmt.Errorf("backend nicht erreichbar")
	p := testPipeline(t, d, Config{})

	done := make(chan SubmitOutcome, 1)
	go func() {
		done <- p.Submit(context.Background(), manyHandles(1, "a"), true)
	}()
	<-d.entered
	require.Equal(t, SubmitQueued, p.Submit(context.Background(), manyHandles(2, "b"), false))

	close(d.release)
	<-done

	prog := p.Progress()
	assert.Zero(t, prog.QueueDepth, "fatal run must not wedge the queue")
	// Failed files stay staged alongside the queued selection's files.
	assert.Equal(t, 3, prog.Staged)

	// The busy flag was released and the pipeline accepts work again.
	p.SelectNone()
	require.NoError(t, p.Commit(context.Background()))
}

func TestPipeline_CommitReturnsDispatchError(t *testing.T) {
	failing := DispatcherFunc(func(context.Context, []models.PreparedDocument) error {
		return fmt.Errorf("backend nicht erreichbar")
	})
	p := testPipeline(t, failing, Config{})

	p.Submit(context.Background(), manyHandles(1, "a"), false)
	err := p.Commit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Übertragung fehlgeschlagen")
	assert.Equal(t, PhaseError, p.Progress().Phase)
	assert.NotEmpty(t, p.Progress().Fatal)
}

func TestPipeline_DispatcherPanicRecovered(t *testing.T) {
	panicking := DispatcherFunc(func(context.Context, []models.PreparedDocument) error {
		panic("kaputt")
	})
	p := testPipeline(t, panicking, Config{})

	p.Submit(context.Background(), manyHandles(1, "a"), false)
	err := p.Commit(context.Background())
	require.Error(t, err)
	assert.Equal(t, PhaseError, p.Progress().Phase)

	// The busy flag was released.
	assert.Equal(t, SubmitAccepted, p.Submit(context.Background(), manyHandles(1, "b"), false))
}

func TestPipeline_CancelledContextAbortsCommit(t *testing.T) {
	d := &countingDispatcher{}
	p := testPipeline(t, d, Config{})

	p.Submit(context.Background(), manyHandles(3, "a"), false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Commit(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Lesen abgebrochen")
	assert.Empty(t, d.sizes())
}

func TestPipeline_OverflowBeyondCap(t *testing.T) {
	p := testPipeline(t, &countingDispatcher{}, Config{MaxStagedFiles: 3})

	p.Submit(context.Background(), manyHandles(5, "a"), false)

	prog := p.Progress()
	assert.Equal(t, 3, prog.Staged)
	assert.Equal(t, 2, prog.Overflow)

	// A full staged set stages nothing more.
	p.Submit(context.Background(), manyHandles(2, "b"), false)
	prog = p.Progress()
	assert.Equal(t, 3, prog.Staged)
	assert.Equal(t, 4, prog.Overflow)
}

func TestPipeline_RejectionsTruncation(t *testing.T) {
	p := testPipeline(t, &countingDispatcher{}, Config{})

	handles := make([]models.Handle, 7)
	for i := range handles {
		handles[i] = handle(fmt.Sprintf("bild-%d.xyz", i), "x")
	}
	p.Submit(context.Background(), handles, false)

	entries, more := p.Rejections(5)
	assert.Len(t, entries, 5)
	assert.Equal(t, 2, more)

	all, more := p.Rejections(0)
	assert.Len(t, all, 7)
	assert.Zero(t, more)
}

func TestPipeline_ClearResetsEverything(t *testing.T) {
	p := testPipeline(t, &countingDispatcher{}, Config{MaxStagedFiles: 2})

	p.Submit(context.Background(), manyHandles(5, "a"), false)
	p.Clear()

	prog := p.Progress()
	assert.Equal(t, Progress{Phase: PhaseIdle}, prog)

	// Dedupe memory is gone; previously staged files stage again.
	p.Submit(context.Background(), manyHandles(2, "a"), false)
	assert.Equal(t, 2, p.Progress().Staged)
}

func TestPipeline_SelectionOperations(t *testing.T) {
	p := testPipeline(t, &countingDispatcher{}, Config{})

	p.Submit(context.Background(), manyHandles(4, "a"), false)

	p.SelectNone()
	assert.Zero(t, p.Progress().Selected)

	p.InvertSelection()
	assert.Equal(t, 4, p.Progress().Selected)

	files := p.StagedFiles()
	require.True(t, p.Remove(files[0].Key()))
	assert.Equal(t, 3, p.Progress().Staged)

	p.SelectAll()
	assert.Equal(t, 3, p.RemoveSelected())
	assert.Zero(t, p.Progress().Staged)
}

func TestPipeline_SlowBatchEmitsAlert(t *testing.T) {
	rec := newAlertRecorder()
	alerter := telemetry.NewAlerter(nil, rec.sink, nil)
	p := New(Config{SlowBatchThreshold: time.Millisecond}, &countingDispatcher{}, nil, alerter, nil)

	slow := handle("langsam.pdf", "inhalt")
	slow.openDelay = 20 * time.Millisecond
	p.Submit(context.Background(), []models.Handle{slow}, false)

	require.NoError(t, p.Commit(context.Background()))

	alert := rec.waitFor(t, telemetry.AlertSlowChunk)
	assert.Equal(t, "warning", alert.Severity)
	assert.Contains(t, alert.Message, "Batch benötigte")
	assert.Positive(t, alert.Metrics.LastBatchMs)
}

func TestPipeline_QueueSpikeEmitsAlertAtWarnDepth(t *testing.T) {
	rec := newAlertRecorder()
	alerter := telemetry.NewAlerter(nil, rec.sink, nil)
	d := newBlockingDispatcher()
	p := New(Config{MaxQueueDepth: 4, QueueWarnDepth: 2}, d, nil, alerter, nil)

	done := make(chan SubmitOutcome, 1)
	go func() {
		done <- p.Submit(context.Background(), manyHandles(1, "a"), true)
	}()
	<-d.entered

	require.Equal(t, SubmitQueued, p.Submit(context.Background(), manyHandles(1, "b"), false))
	select {
	case <-rec.seen:
		t.Fatal("alert below the warn depth")
	case <-time.After(20 * time.Millisecond):
	}

	require.Equal(t, SubmitQueued, p.Submit(context.Background(), manyHandles(1, "c"), false))
	alert := rec.waitFor(t, telemetry.AlertQueueSpike)
	assert.Equal(t, "warning", alert.Severity)
	assert.Contains(t, alert.Message, "warten auf Verarbeitung")
	assert.GreaterOrEqual(t, alert.Metrics.QueueDepth, 2)

	close(d.release)
	<-done
}

func TestPipeline_CommitErrorSurvivesQueueDrain(t *testing.T) {
	d := newBlockingDispatcher()
	d.err = fmt.Errorf("backend nicht erreichbar")
	p := New(Config{}, d, nil, nil, nil)

	p.Submit(context.Background(), manyHandles(1, "a"), false)

	done := make(chan error, 1)
	go func() {
		done <- p.Commit(context.Background())
	}()
	<-d.entered

	// A selection queued mid-commit runs in the drain and resets the
	// pipeline's error state; the commit's own error must still surface.
	require.Equal(t, SubmitQueued, p.Submit(context.Background(), manyHandles(1, "b"), false))
	close(d.release)

	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Übertragung fehlgeschlagen")

	prog := p.Progress()
	assert.Zero(t, prog.QueueDepth)
	assert.Equal(t, 2, prog.Staged)
}

func TestPipeline_TelemetryRecordedDuringCommit(t *testing.T) {
	p := testPipeline(t, &countingDispatcher{}, Config{})

	p.Submit(context.Background(), manyHandles(6, "a"), true)

	snap := p.Telemetry()
	assert.Equal(t, 6, snap.TotalFiles)
	assert.Equal(t, 6, snap.ProcessedFiles)
	assert.Positive(t, snap.BatchCount)
}
