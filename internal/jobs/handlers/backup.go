package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/worklog-bot/internal/jobs"
	"github.com/Proton-105/worklog-bot/pkg/logger"
	"github.com/Proton-105/worklog-bot/pkg/metrics"
)

// BackupStore is the part of the entry store a sweep needs.
type BackupStore interface {
	ListUsers(ctx context.Context) ([]string, error)
	CreateBackup(ctx context.Context, userID string) error
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Users  int
	Failed []string
}

type BackupHandler struct {
	store BackupStore
	log   *slog.Logger
}

func NewBackupHandler(store BackupStore, log *slog.Logger) *BackupHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BackupHandler{store: store, log: log}
}

func (h *BackupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.BackupSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "backup sweep: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx = logger.WithCorrelationID(ctx)
	h.log.InfoContext(ctx, "backup sweep started",
		slog.String("reason", payload.Reason),
		slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
	)

	_, err := h.Sweep(ctx)
	return err
}

// Sweep backs up every known user. A failure for one user is logged and the sweep goes on;
// only failing to list users aborts it.
func (h *BackupHandler) Sweep(ctx context.Context) (SweepResult, error) {
	users, err := h.store.ListUsers(ctx)
	if err != nil {
		metrics.RecordBackup("failed")
		return SweepResult{}, fmt.Errorf("list users: %w", err)
	}

	result := SweepResult{Users: len(users)}
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := h.store.CreateBackup(ctx, userID); err != nil {
			metrics.RecordBackup("failed")
			result.Failed = append(result.Failed, userID)
			h.log.ErrorContext(ctx, "backup failed", slog.String("user_id", userID), slog.Any("error", err))
			continue
		}
		metrics.RecordBackup("created")
	}

	h.log.InfoContext(ctx, "backup sweep finished",
		slog.Int("users", result.Users),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}
