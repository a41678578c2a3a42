package mq

import (
	"context"

	"go.uber.org/zap"

	pkgmq "mailtriage/pkg/mq"
)

// EventPublisher is what the triage services need from the broker.
type EventPublisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// Producer publishes triage events. Broker failures are logged and never
// returned: events are notifications, not part of the routing decision.
type Producer struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func NewProducer(publisher EventPublisher, logger *zap.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// NewNopProducer returns a Producer that drops every event.
func NewNopProducer() *Producer {
	return &Producer{}
}

// Connect opens a RabbitMQ publisher when url is set, otherwise returns a
// no-op producer. The returned close func is always safe to call.
func Connect(url string, logger *zap.Logger) (*Producer, func(), error) {
	if url == "" {
		logger.Info("MQ url not configured, triage events disabled")
		return NewNopProducer(), func() {}, nil
	}
	pub, err := pkgmq.NewPublisher(url)
	if err != nil {
		return nil, nil, err
	}
	return NewProducer(pub, logger), pub.Close, nil
}

// Emit publishes payload under routingKey.
func (p *Producer) Emit(ctx context.Context, routingKey string, payload TriageEventPayload) {
	if p == nil || p.publisher == nil {
		return
	}
	if err := p.publisher.PublishWithContext(ctx, routingKey, payload); err != nil {
		p.logger.Warn("Failed to publish triage event",
			zap.String("routing_key", routingKey),
			zap.String("message_id", payload.MessageID),
			zap.Error(err),
		)
	}
}
