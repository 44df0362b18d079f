package engine

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// BusConfig configures the internal pub/sub bus. Grounded on the
// teacher's internal/architecture/fx/eventbus_adapters.go
// WatermillEventBusConfig shape.
type BusConfig struct {
	NatsURL     string
	TopicPrefix string
}

// DefaultBusConfig points at a local NATS server with the "hft." topic
// prefix.
func DefaultBusConfig() BusConfig {
	return BusConfig{NatsURL: natsgo.DefaultURL, TopicPrefix: "hft."}
}

// Bus is the engine's internal pub/sub: book updates publish to a
// per-symbol topic and execution reports publish to
// executions.<symbol>, alongside the engine's in-process fan-out to
// registered strategies (SPEC_FULL.md §4.7). Trades are not published. Grounded on the teacher's
// internal/architecture/cqrs/eventbus/watermill_adapter.go (Watermill
// publisher/subscriber pair over watermill-nats).
type Bus struct {
	config     BusConfig
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *zap.Logger
}

// NewBus creates a Bus backed by a NATS publisher/subscriber pair.
func NewBus(config BusConfig, logger *zap.Logger) (*Bus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	wmLogger := watermill.NewStdLogger(false, false)

	publisher, err := nats.NewPublisher(nats.PublisherConfig{
		URL:       config.NatsURL,
		Marshaler: nats.GobMarshaler{},
	}, wmLogger)
	if err != nil {
		return nil, err
	}

	subscriber, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:         config.NatsURL,
		Unmarshaler:      nats.GobMarshaler{},
		QueueGroupPrefix: "hft-core",
	}, wmLogger)
	if err != nil {
		return nil, err
	}

	return &Bus{config: config, publisher: publisher, subscriber: subscriber, logger: logger}, nil
}

func (b *Bus) bookTopic(symbol string) string       { return b.config.TopicPrefix + "book." + symbol }
func (b *Bus) executionsTopic(symbol string) string { return b.config.TopicPrefix + "executions." + symbol }

// PublishBookUpdate publishes a book snapshot to its per-symbol topic.
func (b *Bus) PublishBookUpdate(symbol string, snapshot *BookSnapshot) error {
	return b.publishJSON(b.bookTopic(symbol), snapshot)
}

// PublishExecution publishes an execution report to executions.<symbol>.
func (b *Bus) PublishExecution(report *ExecutionReport) error {
	return b.publishJSON(b.executionsTopic(report.Symbol), report)
}

func (b *Bus) publishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return b.publisher.Publish(topic, msg)
}

// SubscribeBookUpdates subscribes to a symbol's book-update topic,
// invoking handler for each decoded snapshot until ctx is cancelled.
func (b *Bus) SubscribeBookUpdates(ctx context.Context, symbol string, handler func(*BookSnapshot)) error {
	messages, err := b.subscriber.Subscribe(ctx, b.bookTopic(symbol))
	if err != nil {
		return err
	}
	go func() {
		for msg := range messages {
			var snapshot BookSnapshot
			if err := json.Unmarshal(msg.Payload, &snapshot); err != nil {
				b.logger.Warn("dropping malformed book update", zap.Error(err))
				msg.Ack()
				continue
			}
			handler(&snapshot)
			msg.Ack()
		}
	}()
	return nil
}

// SubscribeExecutions subscribes to a symbol's execution-report topic.
func (b *Bus) SubscribeExecutions(ctx context.Context, symbol string, handler func(*ExecutionReport)) error {
	messages, err := b.subscriber.Subscribe(ctx, b.executionsTopic(symbol))
	if err != nil {
		return err
	}
	go func() {
		for msg := range messages {
			var report ExecutionReport
			if err := json.Unmarshal(msg.Payload, &report); err != nil {
				b.logger.Warn("dropping malformed execution report", zap.Error(err))
				msg.Ack()
				continue
			}
			handler(&report)
			msg.Ack()
		}
	}()
	return nil
}

// Close shuts down the publisher and subscriber.
func (b *Bus) Close() error {
	if err := b.publisher.Close(); err != nil {
		return err
	}
	return b.subscriber.Close()
}
