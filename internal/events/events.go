// Package events publishes domain events emitted by internal/instruction
// onto a message bus, fulfilling the interfaces.EventPublisher boundary
// with a real transport instead of the in-process NoopPublisher (§SPEC_FULL
// domain stack: downstream indexers and risk engines subscribe to these
// rather than polling account state).
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	"github.com/nats-io/nats.go"
	"github.com/segmentio/ksuid"

	"github.com/merl-labs/clob/pkg/interfaces"
	"github.com/merl-labs/clob/pkg/types"
)

// Config controls the NATS connection and topic naming used by Bus.
type Config struct {
	URL         string
	TopicPrefix string
}

func DefaultConfig() Config {
	return Config{URL: nats.DefaultURL, TopicPrefix: "clob.events."}
}

// Bus is an interfaces.EventPublisher backed by watermill's NATS publisher.
// Topics are the configured prefix plus the event kind, so a subscriber can
// filter on e.g. "clob.events.order_filled" without inspecting payloads.
type Bus struct {
	publisher message.Publisher
	prefix    string
	log       interfaces.Logger
}

// NewBus dials NATS and wraps the connection in a watermill publisher.
func NewBus(cfg Config, log interfaces.Logger) (*Bus, error) {
	if log == nil {
		log = interfaces.NoopLogger{}
	}
	pub, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:       cfg.URL,
			Marshaler: &wmnats.GobMarshaler{},
		},
		watermill.NopLogger{},
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect publisher: %w", err)
	}
	return newBus(pub, cfg.TopicPrefix, log), nil
}

// NewBusWithPublisher wires an already-constructed watermill publisher,
// letting tests (and alternate transports, e.g. gochannel) swap in their
// own without dialing a real NATS server.
func NewBusWithPublisher(pub message.Publisher, topicPrefix string, log interfaces.Logger) *Bus {
	return newBus(pub, topicPrefix, log)
}

func newBus(pub message.Publisher, prefix string, log interfaces.Logger) *Bus {
	if log == nil {
		log = interfaces.NoopLogger{}
	}
	return &Bus{publisher: pub, prefix: prefix, log: log}
}

// Publish implements interfaces.EventPublisher. It never blocks the caller
// on a delivery guarantee beyond the publisher's own Publish call; the
// Dispatcher already treats publish failures as logged-not-fatal.
func (b *Bus) Publish(ctx context.Context, event types.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	msg := message.NewMessage(ksuid.New().String(), payload)
	msg.Metadata.Set("kind", string(event.Kind))
	msg.Metadata.Set("trace_id", event.TraceID)
	msg.SetContext(ctx)

	topic := b.topic(event.Kind)
	if err := b.publisher.Publish(topic, msg); err != nil {
		b.log.Warn("events.publish_failed", "topic", topic, "trace", event.TraceID, "err", err.Error())
		return err
	}
	return nil
}

func (b *Bus) topic(kind types.EventKind) string { return b.prefix + string(kind) }

// Close releases the underlying publisher's connection.
func (b *Bus) Close() error { return b.publisher.Close() }

var _ interfaces.EventPublisher = (*Bus)(nil)
