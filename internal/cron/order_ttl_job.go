package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/dailycart-backend/internal/orders"
	"github.com/angelmondragon/dailycart-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

const (
	defaultPendingTTL    = 24 * time.Hour
	defaultOrderTTLBatch = 100
	expiredOrderNote     = "Order cancelled automatically: not confirmed in time"
)

type pendingOrderCanceller interface {
	PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	Cancel(ctx context.Context, orderID uuid.UUID, note string, actor auth.Actor) (*orders.OrderView, error)
}

// OrderTTLJobParams configure the stale pending order sweep.
type OrderTTLJobParams struct {
	Logger     *logger.Logger
	Orders     pendingOrderCanceller
	PendingTTL time.Duration
	BatchSize  int
}

// NewOrderTTLJob builds the job that cancels orders left pending past the TTL.
// Cancellation goes through the lifecycle so stock is restocked.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOrderTTLBatch
	}
	return &orderTTLJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	orders pendingOrderCanceller
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.ttl)
	ids, err := j.orders.PendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var (
		errs      error
		cancelled int
		skipped   int
	)
	for _, id := range ids {
		_, err := j.orders.Cancel(ctx, id, expiredOrderNote, auth.SystemActor)
		switch {
		case err == nil:
			cancelled++
		case pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition), pkgerrors.HasCode(err, pkgerrors.CodeConcurrencyConflict):
			// confirmed or cancelled by someone else since the query
			skipped++
		default:
			errs = multierr.Append(errs, fmt.Errorf("cancel order %s: %w", id, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"found":     len(ids),
		"cancelled": cancelled,
		"skipped":   skipped,
		"failed":    len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "stale pending orders swept")
	return errs
}
