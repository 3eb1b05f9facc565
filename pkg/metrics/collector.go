package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/worklog-bot/internal/state"
)

var (
	dialogInputsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_inputs_total",
			Help: "Total number of dialog inputs labeled by the state they arrived in and outcome",
		},
		[]string{"state", "status"},
	)
	dialogInputDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialog_input_duration_seconds",
			Help:    "Duration of dialog input handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state"},
	)
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of dialog state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
	statsCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stats_cache_requests_total",
			Help: "Stats cache lookups split by result",
		},
		[]string{"result"},
	)
	remindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_total",
			Help: "Reminder checks split by outcome",
		},
		[]string{"outcome"},
	)
	backupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backups_total",
			Help: "Per-user backup attempts split by status",
		},
		[]string{"status"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of stored dialog sessions",
		},
	)
	sessionsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessions_by_state",
			Help: "Number of sessions per dialog state",
		},
		[]string{"state"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordDialogInput tracks one handled input.
func RecordDialogInput(st, status string, duration time.Duration) {
	st = orUnknown(st)
	dialogInputsTotal.WithLabelValues(st, orUnknown(status)).Inc()
	dialogInputDurationSeconds.WithLabelValues(st).Observe(duration.Seconds())
}

// RecordCommand increments slash-command counters.
func RecordCommand(command, status string) {
	botCommandsTotal.WithLabelValues(orUnknown(command), orUnknown(status)).Inc()
}

// RecordStateTransition tracks dialog transitions.
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	errorsTotal.WithLabelValues(orUnknown(code), orUnknown(severity)).Inc()
}

func RecordStatsCacheHit()  { statsCacheTotal.WithLabelValues("hit").Inc() }
func RecordStatsCacheMiss() { statsCacheTotal.WithLabelValues("miss").Inc() }

// RecordReminder counts reminder outcomes: sent, skipped, failed.
func RecordReminder(outcome string) {
	remindersTotal.WithLabelValues(orUnknown(outcome)).Inc()
}

// RecordBackup counts per-user backup results.
func RecordBackup(status string) {
	backupsTotal.WithLabelValues(orUnknown(status)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// SessionLister is the part of the session manager the collector needs.
type SessionLister interface {
	GetAllSessions(ctx context.Context) ([]*state.Session, error)
}

// StateCollector periodically counts sessions per dialog state.
type StateCollector struct {
	sessions SessionLister
	interval time.Duration
	log      *slog.Logger
}

func NewStateCollector(sessions SessionLister, interval time.Duration, log *slog.Logger) *StateCollector {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &StateCollector{sessions: sessions, interval: interval, log: log}
}

// Run polls until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.sessions == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.collect(ctx); err != nil {
			c.log.Warn("session metrics collection failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *StateCollector) collect(ctx context.Context) error {
	sessions, err := c.sessions.GetAllSessions(ctx)
	if err != nil {
		return err
	}

	activeSessions.Set(float64(len(sessions)))

	counts := make(map[state.State]int, len(sessions))
	for _, s := range sessions {
		if s != nil {
			counts[s.State]++
		}
	}

	sessionsByState.Reset()
	for _, st := range state.All() {
		sessionsByState.WithLabelValues(string(st)).Set(float64(counts[st]))
		delete(counts, st)
	}
	for st, n := range counts {
		sessionsByState.WithLabelValues(orUnknown(string(st))).Set(float64(n))
	}

	return nil
}
