package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	"mailtriage/pkg/util"
)

var (
	// ErrNotFound is returned when no pending item has the requested id.
	ErrNotFound = errors.New("pending item not found")
	// ErrEmptyFolder is returned when an approval names no folder.
	ErrEmptyFolder = errors.New("folder name is required")
)

// Approval is the operator side of the pending queue.
type Approval struct {
	mailbox Mailbox
	folders FolderResolver
	queue   *queue.PendingQueue
	events  *mq.Producer
	rootID  string
	now     func() time.Time
	logger  *zap.Logger
}

// NewApproval creates the approval service. Approved messages go to a
// folder directly under rootID.
func NewApproval(mailbox Mailbox, folders FolderResolver, q *queue.PendingQueue, events *mq.Producer, rootID string, logger *zap.Logger) *Approval {
	return &Approval{
		mailbox: mailbox,
		folders: folders,
		queue:   q,
		events:  events,
		rootID:  rootID,
		now:     time.Now,
		logger:  logger,
	}
}

// Pending returns a snapshot of the queue.
func (a *Approval) Pending() []model.PendingItem {
	return a.queue.List()
}

// Approve moves the pending message id into folderName under the root,
// creating the folder when needed. The item leaves the queue before any
// mailbox call and its id stays claimed while the calls run; on success the
// id is marked handled, on failure the item is put back and the error is
// returned.
func (a *Approval) Approve(ctx context.Context, id, folderName string) (err error) {
	folderName = strings.TrimSpace(folderName)
	if folderName == "" {
		return ErrEmptyFolder
	}

	ctx, span := otel.StartSpan(ctx, "approval.approve")
	defer span.End()
	span.SetAttributes(attribute.String("message.id", id), attribute.String("folder", folderName))
	log := logger.WithTrace(ctx, a.logger).With(zap.String("message_id", id))

	item, ok := a.queue.Remove(id)
	if !ok {
		metrics.IncrementApproval("approve", "not_found")
		return ErrNotFound
	}

	defer func() {
		if err != nil {
			a.queue.Restore(item)
			metrics.IncrementApproval("approve", "failed")
			log.Error("Approval failed, item restored to queue",
				zap.String("folder", folderName),
				zap.String("error_type", util.ClassifyError(err)),
				zap.Error(err),
			)
		}
	}()

	token, err := a.mailbox.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	folderID, err := a.folders.ResolveOrCreate(ctx, token, folderName, a.rootID)
	if err != nil {
		return fmt.Errorf("resolve folder %s: %w", folderName, err)
	}

	if err := a.mailbox.MoveMessage(ctx, token, id, folderID); err != nil {
		if graph.IsNotFound(err) {
			a.folders.Forget(ctx, a.rootID, folderName)
		}
		return fmt.Errorf("move message %s: %w", id, err)
	}

	a.queue.Complete(id)
	metrics.IncrementApproval("approve", "ok")
	log.Info("Email approved", zap.String("folder", folderName), zap.String("folder_id", folderID))
	a.events.Emit(ctx, mq.RoutingKeyApproved, mq.TriageEventPayload{
		MessageID:  id,
		Subject:    item.Subject,
		Outcome:    "approved",
		Building:   item.Building,
		Category:   item.Category,
		Confidence: item.Confidence,
		Folder:     folderName,
		OccurredAt: a.now().UTC(),
	})
	return nil
}

// Reject drops every pending item with id. It always succeeds; rejecting
// an unknown id is a no-op. Returns how many items were removed.
func (a *Approval) Reject(ctx context.Context, id string) int {
	removed := a.queue.RemoveAll(id)
	metrics.IncrementApproval("reject", "ok")
	if removed == 0 {
		return 0
	}

	logger.WithTrace(ctx, a.logger).Info("Email rejected", zap.String("message_id", id), zap.Int("removed", removed))
	a.events.Emit(ctx, mq.RoutingKeyRejected, mq.TriageEventPayload{
		MessageID:  id,
		Outcome:    "rejected",
		OccurredAt: a.now().UTC(),
	})
	return removed
}
