package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

const defaultOutboxRetentionDays = 30

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	Repository    outboxRetentionRepo
	RetentionDays int
}

// NewOutboxRetentionJob builds the job that prunes delivered outbox rows.
// Unpublished rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = defaultOutboxRetentionDays
	}
	return &outboxRetentionJob{
		logg: params.Logger,
		repo: params.Repository,
		days: days,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

type outboxRetentionJob struct {
	logg *logger.Logger
	repo outboxRetentionRepo
	days int
	now  func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-time.Duration(j.days) * 24 * time.Hour)
	deleted, err := j.repo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.days,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
