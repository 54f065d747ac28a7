package telemetry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AlertKind identifies the condition that triggered an alert.
type AlertKind string

const (
	// AlertQueueSpike fires when the pending-selection queue depth crosses
	// the configured warning threshold.
	AlertQueueSpike AlertKind = "queue_spike"
	// AlertSlowChunk fires when a single batch exceeds the slow-batch
	// duration threshold.
	AlertSlowChunk AlertKind = "slow_chunk"
)

// Alert is the payload delivered to the alert sink.
type Alert struct {
	ID       string    `json:"id"`
	Kind     AlertKind `json:"kind"`
	Message  string    `json:"message"`
	Severity string    `json:"severity"`
	Metrics  Snapshot  `json:"metrics"`
	At       time.Time `json:"at"`
}

// Sink receives alerts. Delivery is best-effort: the pipeline never waits
// on a sink and a panicking sink is swallowed.
type Sink func(Alert)

// DefaultCooldowns returns the standard per-kind suppression windows used
// when no cooldown configuration is provided.
func DefaultCooldowns() map[AlertKind]time.Duration {
	return map[AlertKind]time.Duration{
		AlertQueueSpike: 30 * time.Second,
		AlertSlowChunk:  time.Minute,
	}
}

// Alerter emits rate-limited alerts. Each kind is suppressed independently
// for its cooldown window after an emission, so sustained slow I/O or a
// persistently full queue produces one alert per window instead of a storm.
type Alerter struct {
	mu        sync.Mutex
	cooldowns map[AlertKind]time.Duration
	lastSent  map[AlertKind]time.Time
	sink      Sink
	log       *slog.Logger
	now       func() time.Time
}

// NewAlerter creates an alerter with per-kind cooldown windows. A nil sink
// disables delivery but still records suppression state.
func NewAlerter(cooldowns map[AlertKind]time.Duration, sink Sink, log *slog.Logger) *Alerter {
	if log == nil {
		log = slog.Default()
	}
	return &Alerter{
		cooldowns: cooldowns,
		lastSent:  make(map[AlertKind]time.Time),
		sink:      sink,
		log:       log,
		now:       time.Now,
	}
}

// Emit sends an alert unless the kind is still inside its cooldown window.
// Returns true when the alert was actually delivered.
func (a *Alerter) Emit(kind AlertKind, severity, message string, metrics Snapshot) bool {
	a.mu.Lock()
	now := a.now()
	if last, ok := a.lastSent[kind]; ok {
		if cd := a.cooldowns[kind]; cd > 0 && now.Sub(last) < cd {
			a.mu.Unlock()
			return false
		}
	}
	a.lastSent[kind] = now
	sink := a.sink
	a.mu.Unlock()

	alert := Alert{
		ID:       uuid.New().String(),
		Kind:     kind,
		Message:  message,
		Severity: severity,
		Metrics:  metrics,
		At:       now,
	}

	a.log.Warn("pipeline alert", "kind", string(kind), "severity", severity, "message", message)

	if sink != nil {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					a.log.Debug("alert sink panicked", "kind", string(kind), "panic", r)
				}
			}()
			sink(alert)
		}()
	}

	return true
}
