package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/pkg/logger"
	"mailtriage/pkg/metrics"
	"mailtriage/pkg/otel"
	"mailtriage/pkg/trace"
	"mailtriage/pkg/util"
)

// PollerState is the lifecycle phase of the Poller.
type PollerState int32

const (
	StateInitializing PollerState = iota
	StatePolling
	StateStopped
)

func (s PollerState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StatePolling:
		return "polling"
	default:
		return "stopped"
	}
}

// PollerConfig holds the folder skeleton names and loop settings.
type PollerConfig struct {
	Root            string
	Properties      string
	Operational     string
	NeedsReview     string
	Interval        time.Duration
	IsolateFailures bool
}

// Poller provisions the folder skeleton once, then fetches unread mail on a
// fixed interval and hands every message to the Router.
type Poller struct {
	mailbox    Mailbox
	folders    FolderResolver
	classifier Classifier
	router     *Router
	cfg        PollerConfig
	state      atomic.Int32
	logger     *zap.Logger
}

func NewPoller(mailbox Mailbox, folders FolderResolver, classifier Classifier, router *Router, cfg PollerConfig, logger *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 20 * time.Second
	}
	return &Poller{
		mailbox:    mailbox,
		folders:    folders,
		classifier: classifier,
		router:     router,
		cfg:        cfg,
		logger:     logger,
	}
}

// State reports the current lifecycle phase. Safe for concurrent use.
func (p *Poller) State() PollerState {
	return PollerState(p.state.Load())
}

// Initialize authenticates and provisions Properties and Operational under
// the root, and NeedsReview under Operational.
func (p *Poller) Initialize(ctx context.Context) (model.Skeleton, error) {
	ctx, span := otel.StartSpan(ctx, "poller.initialize")
	defer span.End()

	token, err := p.mailbox.Authenticate(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.Skeleton{}, fmt.Errorf("initialize: %w", err)
	}

	skeleton := model.Skeleton{Root: p.cfg.Root}
	if skeleton.Properties, err = p.folders.ResolveOrCreate(ctx, token, p.cfg.Properties, p.cfg.Root); err != nil {
		return model.Skeleton{}, fmt.Errorf("initialize %s: %w", p.cfg.Properties, err)
	}
	if skeleton.Operational, err = p.folders.ResolveOrCreate(ctx, token, p.cfg.Operational, p.cfg.Root); err != nil {
		return model.Skeleton{}, fmt.Errorf("initialize %s: %w", p.cfg.Operational, err)
	}
	if skeleton.NeedsReview, err = p.folders.ResolveOrCreate(ctx, token, p.cfg.NeedsReview, skeleton.Operational); err != nil {
		return model.Skeleton{}, fmt.Errorf("initialize %s: %w", p.cfg.NeedsReview, err)
	}

	p.logger.Info("Folder skeleton ready",
		zap.String("properties_id", skeleton.Properties),
		zap.String("operational_id", skeleton.Operational),
		zap.String("needs_review_id", skeleton.NeedsReview),
	)
	return skeleton, nil
}

// Run initializes the skeleton and polls until ctx is cancelled. It returns
// nil on cancellation, the initialization error, or, with failure
// isolation disabled, the first iteration error.
func (p *Poller) Run(ctx context.Context) error {
	defer p.state.Store(int32(StateStopped))
	p.state.Store(int32(StateInitializing))

	skeleton, err := p.Initialize(ctx)
	if err != nil {
		return err
	}

	p.state.Store(int32(StatePolling))
	p.logger.Info("Starting poller",
		zap.Duration("interval", p.cfg.Interval),
		zap.Bool("isolate_failures", p.cfg.IsolateFailures),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return nil
		case <-timer.C:
			if err := p.PollOnce(ctx, skeleton); err != nil {
				if ctx.Err() != nil {
					p.logger.Info("Poller stopped")
					return nil
				}
				if !p.cfg.IsolateFailures {
					return err
				}
			}
			timer.Reset(p.cfg.Interval)
		}
	}
}

// PollOnce runs a single iteration: authenticate, list unread, then
// classify and route each message in fetch order. With failure isolation a
// message error is logged and the next message is processed; the returned
// error then only reports iteration-level failures.
func (p *Poller) PollOnce(ctx context.Context, skeleton model.Skeleton) (err error) {
	ctx = trace.WithContext(ctx, trace.GenerateTraceID())
	ctx, span := otel.StartSpan(ctx, "poller.iteration")
	defer span.End()
	log := logger.WithTrace(ctx, p.logger)

	defer func() {
		status := "ok"
		if err != nil {
			status = "failed"
			span.SetStatus(codes.Error, err.Error())
			log.Error("Poll iteration failed",
				zap.String("error_type", util.ClassifyError(err)),
				zap.Error(err),
			)
		}
		metrics.IncrementPollIteration(status)
	}()

	token, err := p.mailbox.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	messages, err := p.mailbox.ListUnreadInbox(ctx, token)
	if err != nil {
		return fmt.Errorf("list unread: %w", err)
	}
	span.SetAttributes(attribute.Int("messages.count", len(messages)))
	if len(messages) > 0 {
		log.Info("Fetched unread emails", zap.Int("count", len(messages)))
	}

	for _, msg := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		outcome, err := p.process(ctx, token, msg, skeleton)
		if err != nil {
			metrics.IncrementEmailProcessed("failed")
			if !p.cfg.IsolateFailures {
				return fmt.Errorf("message %s: %w", msg.ID, err)
			}
			log.Error("Email processing failed, continuing",
				zap.String("message_id", msg.ID),
				zap.String("error_type", util.ClassifyError(err)),
				zap.Error(err),
			)
			continue
		}
		metrics.IncrementEmailProcessed(string(outcome))
	}
	return nil
}

// process classifies and routes one message. With failure isolation a
// panic is turned into an error so one bad message cannot stop the loop.
func (p *Poller) process(ctx context.Context, token string, msg model.Message, skeleton model.Skeleton) (outcome Outcome, err error) {
	if p.cfg.IsolateFailures {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic while processing message: %v", r)
			}
		}()
	}

	cls := p.classifier.Classify(msg.Subject, msg.BodyPreview, msg.From)
	metrics.IncrementClassification(string(cls.Category), cls.HasBuilding())

	return p.router.Route(ctx, token, msg, cls, skeleton)
}
