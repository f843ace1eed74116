package publishers

import (
	"context"
	"fmt"
)

// queueSender is one provider's client behind a queue publisher.
type queueSender interface {
	Send(ctx context.Context, evt Event) error
	Close() error
}

type senderFactory func(ctx context.Context, q *QueueConfig, log Logger) (queueSender, error)

var queueSenders = map[string]senderFactory{
	QueueProviderAWSSQS: func(ctx context.Context, q *QueueConfig, log Logger) (queueSender, error) {
		return newAWSSQSSender(ctx, q.SQS, log)
	},
	QueueProviderAWSSNS: func(ctx context.Context, q *QueueConfig, log Logger) (queueSender, error) {
		return newAWSSNSSender(ctx, q.SNS, log)
	},
	QueueProviderGCP: func(ctx context.Context, q *QueueConfig, log Logger) (queueSender, error) {
		return newGCPPubSubSender(ctx, q.GCP, log)
	},
	QueueProviderKafka: func(ctx context.Context, q *QueueConfig, log Logger) (queueSender, error) {
		return newKafkaSender(ctx, q.Kafka, log)
	},
}

type queuePublisher struct {
	id       string
	provider string
	sender   queueSender
}

func newQueuePublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("publisher %q missing queue configuration", cfg.ID)
	}
	build, ok := queueSenders[cfg.Queue.Provider]
	if !ok {
		return nil, fmt.Errorf("publisher %q: queue provider %q is not supported", cfg.ID, cfg.Queue.Provider)
	}
	sender, err := build(ctx, cfg.Queue, log)
	if err != nil {
		return nil, fmt.Errorf("publisher %q: %w", cfg.ID, err)
	}
	return &queuePublisher{id: cfg.ID, provider: cfg.Queue.Provider, sender: sender}, nil
}

func (p *queuePublisher) ID() string   { return p.id }
func (p *queuePublisher) Type() string { return TypeQueue }

func (p *queuePublisher) Publish(ctx context.Context, evt Event) error {
	if err := p.sender.Send(ctx, evt); err != nil {
		return fmt.Errorf("%s send: %w", p.provider, err)
	}
	return nil
}

func (p *queuePublisher) Close() error { return p.sender.Close() }
