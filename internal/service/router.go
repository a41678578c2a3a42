package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"mailtriage/internal/graph"
	"mailtriage/internal/model"
	"mailtriage/internal/mq"
	"mailtriage/internal/queue"
	"mailtriage/pkg/logger"
	"mailtriage/pkg/metrics"
	"mailtriage/pkg/otel"
)

const (
	// AutoRouteThreshold is the minimum confidence for automatic routing.
	AutoRouteThreshold = 0.80
	// TaskDueIn is how far after the move a follow-up task is due.
	TaskDueIn = 7 * 24 * time.Hour
)

// Outcome is what the router did with a message.
type Outcome string

const (
	OutcomeRouted    Outcome = "routed"
	OutcomePending   Outcome = "pending"
	OutcomeDuplicate Outcome = "duplicate"
)

// ShouldAutoRoute is the routing gate: confidence at or above
// AutoRouteThreshold and a matched building. With the current scoring only
// a building match reaches the threshold.
func ShouldAutoRoute(cls model.Classification) bool {
	return cls.Confidence >= AutoRouteThreshold && cls.HasBuilding()
}

// Router sends a classified message either to its building/category folder
// or to the pending queue.
type Router struct {
	mailbox Mailbox
	folders FolderResolver
	queue   *queue.PendingQueue
	events  *mq.Producer
	now     func() time.Time
	logger  *zap.Logger
}

func NewRouter(mailbox Mailbox, folders FolderResolver, q *queue.PendingQueue, events *mq.Producer, logger *zap.Logger) *Router {
	return &Router{
		mailbox: mailbox,
		folders: folders,
		queue:   q,
		events:  events,
		now:     time.Now,
		logger:  logger,
	}
}

// Route applies the routing decision for msg. Side effects happen in order:
// folder resolution, move, task. A failed task does not undo the move and
// is not returned as an error.
func (r *Router) Route(ctx context.Context, token string, msg model.Message, cls model.Classification, roots model.Skeleton) (Outcome, error) {
	ctx, span := otel.StartSpan(ctx, "router.route")
	defer span.End()
	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("triage.category", string(cls.Category)),
		attribute.Float64("triage.confidence", cls.Confidence),
	)

	if ShouldAutoRoute(cls) {
		if err := r.routeAutomatically(ctx, token, msg, cls, roots); err != nil {
			return "", err
		}
		return OutcomeRouted, nil
	}
	return r.enqueue(ctx, msg, cls), nil
}

func (r *Router) routeAutomatically(ctx context.Context, token string, msg model.Message, cls model.Classification, roots model.Skeleton) error {
	log := logger.WithTrace(ctx, r.logger).With(zap.String("message_id", msg.ID))

	folderID, err := r.folders.ResolvePath(ctx, token, roots.Properties, cls.Building, cls.Category.Label())
	if err != nil {
		return fmt.Errorf("resolve folder for %s/%s: %w", cls.Building, cls.Category.Label(), err)
	}

	if err := r.mailbox.MoveMessage(ctx, token, msg.ID, folderID); err != nil {
		if graph.IsNotFound(err) {
			// folder may have been deleted; resolve it again next time
			r.folders.Forget(ctx, roots.Properties, cls.Building, cls.Category.Label())
		}
		return fmt.Errorf("move message %s: %w", msg.ID, err)
	}
	log.Info("Email routed automatically",
		zap.String("building", cls.Building),
		zap.String("category", cls.Category.Label()),
		zap.String("folder_id", folderID),
	)

	event := mq.TriageEventPayload{
		MessageID:  msg.ID,
		Subject:    msg.Subject,
		Outcome:    string(OutcomeRouted),
		Building:   cls.Building,
		Category:   cls.Category,
		Confidence: cls.Confidence,
		Folder:     cls.Building + "/" + cls.Category.Label(),
	}

	if cls.Category.Actionable() {
		title := fmt.Sprintf("%s - %s", cls.Category.Label(), msg.Subject)
		due := r.now().UTC().Add(TaskDueIn).Truncate(time.Second)

		if err := r.mailbox.CreateTask(ctx, token, title, msg.BodyPreview, due); err != nil {
			// the move stands; no rollback
			metrics.IncrementTaskFailure()
			log.Error("Email moved but follow-up task creation failed",
				zap.String("title", title),
				zap.Error(err),
			)
		} else {
			event.TaskTitle = title
			log.Info("Follow-up task created", zap.String("title", title), zap.Time("due", due))
		}
	}

	event.OccurredAt = r.now().UTC()
	r.events.Emit(ctx, mq.RoutingKeyRouted, event)
	return nil
}

func (r *Router) enqueue(ctx context.Context, msg model.Message, cls model.Classification) Outcome {
	log := logger.WithTrace(ctx, r.logger).With(zap.String("message_id", msg.ID))

	item := model.NewPendingItem(msg, cls, r.now().UTC())
	if !r.queue.Enqueue(item) {
		log.Debug("Email already pending or dismissed")
		return OutcomeDuplicate
	}

	log.Info("Email queued for review",
		zap.String("building", cls.Building),
		zap.String("category", string(cls.Category)),
		zap.Float64("confidence", cls.Confidence),
	)
	r.events.Emit(ctx, mq.RoutingKeyPending, mq.TriageEventPayload{
		MessageID:  msg.ID,
		Subject:    msg.Subject,
		Outcome:    string(OutcomePending),
		Building:   cls.Building,
		Category:   cls.Category,
		Confidence: cls.Confidence,
		OccurredAt: item.QueuedAt,
	})
	return OutcomePending
}
