package folder

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mailtriage/internal/model"
)

// Mailbox is the part of the Graph client the resolver needs.
type Mailbox interface {
	ListChildFolders(ctx context.Context, token, parentID string) ([]model.Folder, error)
	CreateChildFolder(ctx context.Context, token, parentID, name string) (string, error)
}

// Resolver finds a child folder by display name, creating it when missing.
// Concurrent resolutions of the same (parent, name) pair share one
// list-and-create round trip, so a new folder is created once.
type Resolver struct {
	mailbox Mailbox
	cache   Cache
	group   singleflight.Group
	logger  *zap.Logger
}

// NewResolver builds a resolver; cache may be nil to always ask the mailbox.
func NewResolver(mailbox Mailbox, cache Cache, logger *zap.Logger) *Resolver {
	return &Resolver{
		mailbox: mailbox,
		cache:   cache,
		logger:  logger,
	}
}

// ResolveOrCreate returns the id of the child of parentID whose display name
// equals name ignoring case, creating the folder if none exists. Mailbox
// errors are returned unchanged in the chain.
//
// The shared round trip runs on a context detached from the caller's
// cancellation, so one caller giving up does not fail the others waiting on
// the same folder; each caller still returns as soon as its own ctx is done.
func (r *Resolver) ResolveOrCreate(ctx context.Context, token, name, parentID string) (string, error) {
	if id, ok := r.cached(ctx, parentID, name); ok {
		return id, nil
	}

	ch := r.group.DoChan(cacheKey(parentID, name), func() (interface{}, error) {
		return r.resolve(context.WithoutCancel(ctx), token, name, parentID)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// ResolvePath resolves names one level below the other, starting at parentID,
// and returns the id of the last folder.
func (r *Resolver) ResolvePath(ctx context.Context, token, parentID string, names ...string) (string, error) {
	id := parentID
	for _, name := range names {
		next, err := r.ResolveOrCreate(ctx, token, name, id)
		if err != nil {
			return "", err
		}
		id = next
	}
	return id, nil
}

// Forget drops the cached ids along names, starting under parentID, after
// the mailbox reported one of those folders missing. The next resolution
// lists the mailbox again.
func (r *Resolver) Forget(ctx context.Context, parentID string, names ...string) {
	if r.cache == nil {
		return
	}
	for _, name := range names {
		id, ok := r.cached(ctx, parentID, name)
		if err := r.cache.Delete(ctx, parentID, name); err != nil {
			r.logger.Warn("Folder cache delete failed", zap.String("name", name), zap.Error(err))
		}
		if !ok {
			return
		}
		parentID = id
	}
}

func (r *Resolver) resolve(ctx context.Context, token, name, parentID string) (string, error) {
	folders, err := r.mailbox.ListChildFolders(ctx, token, parentID)
	if err != nil {
		return "", fmt.Errorf("list child folders of %s: %w", parentID, err)
	}

	for _, f := range folders {
		if strings.EqualFold(f.DisplayName, name) {
			r.store(ctx, parentID, name, f.ID)
			return f.ID, nil
		}
	}

	id, err := r.mailbox.CreateChildFolder(ctx, token, parentID, name)
	if err != nil {
		return "", fmt.Errorf("create folder %q under %s: %w", name, parentID, err)
	}
	r.logger.Info("Created new folder", zap.String("name", name), zap.String("parent_id", parentID))

	r.store(ctx, parentID, name, id)
	return id, nil
}

func (r *Resolver) cached(ctx context.Context, parentID, name string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	id, ok, err := r.cache.Get(ctx, parentID, name)
	if err != nil {
		// treat an unavailable cache as a miss
		r.logger.Warn("Folder cache lookup failed", zap.String("name", name), zap.Error(err))
		return "", false
	}
	return id, ok
}

func (r *Resolver) store(ctx context.Context, parentID, name, id string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, parentID, name, id); err != nil {
		r.logger.Warn("Folder cache store failed", zap.String("name", name), zap.Error(err))
	}
}
