package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	OccurredAt    time.Time
}

// Emitter is what domain services depend on to queue notifications.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: func() time.Time { return time.Now().UTC() }}
}

// Emit stores the event in tx so it commits or rolls back with the business write.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !event.EventType.IsValid() {
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
	if !event.AggregateType.IsValid() {
		return fmt.Errorf("unknown aggregate type %q", event.AggregateType)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	envelope, payload, err := sealEnvelope(event)
	if err != nil {
		return err
	}

	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
		CreatedAt:     event.OccurredAt,
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":       envelope.EventID,
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID.String(),
		})
		s.logg.Debug(logCtx, "outbox event queued")
	}
	return nil
}
