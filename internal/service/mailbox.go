package service

import (
	"context"
	"time"

	"mailtriage/internal/model"
)

// Mailbox is the mailbox and task API used by the triage services.
// *graph.Client implements it.
type Mailbox interface {
	Authenticate(ctx context.Context) (string, error)
	ListUnreadInbox(ctx context.Context, token string) ([]model.Message, error)
	MoveMessage(ctx context.Context, token, messageID, destinationID string) error
	CreateTask(ctx context.Context, token, title, body string, due time.Time) error
}

// FolderResolver finds or provisions mail folders. *folder.Resolver
// implements it.
type FolderResolver interface {
	ResolveOrCreate(ctx context.Context, token, name, parentID string) (string, error)
	ResolvePath(ctx context.Context, token, parentID string, names ...string) (string, error)
	Forget(ctx context.Context, parentID string, names ...string)
}

// Classifier assigns building and category. *classify.Classifier implements it.
type Classifier interface {
	Classify(subject, body, sender string) model.Classification
}
