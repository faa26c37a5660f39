package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/poshakghar/api/internal/platform/config"
)

// Event names carried in the "event" message attribute.
const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status.changed"
	StockReserved      = "stock.reserved"
	StockReleased      = "stock.released"
)

const publishTimeout = 10 * time.Second

// Publisher emits domain events. Implementations must be safe for concurrent
// use. Publishing is best effort and callers log failures instead of failing
// the originating request.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
	Close(ctx context.Context) error
}

// PubSubPublisher publishes JSON messages to a single Pub/Sub topic with the
// event name set as a message attribute.
type PubSubPublisher struct {
	cfg config.PubSubConfig

	mu     sync.Mutex
	client *pubsub.Client
	topic  *pubsub.Topic
	closed bool
}

// NewPubSubPublisher validates the configuration and returns a lazily
// connecting publisher.
func NewPubSubPublisher(cfg config.PubSubConfig) (*PubSubPublisher, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("events: pubsub project id is required")
	}
	if strings.TrimSpace(cfg.OrderEventsTopic) == "" {
		return nil, errors.New("events: pubsub topic id is required")
	}
	return &PubSubPublisher{cfg: cfg}, nil
}

// Publish serialises payload as JSON and publishes it, waiting for the server
// acknowledgement.
func (p *PubSubPublisher) Publish(ctx context.Context, event string, payload any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("events: event name is required")
	}

	topic, err := p.topicRef(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	result := topic.Publish(pubCtx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":        event,
			"content_type": "application/json",
		},
	})
	_, err = result.Get(pubCtx)
	return err
}

// Close flushes pending messages and releases the client.
func (p *PubSubPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.topic != nil {
		p.topic.Stop()
		p.topic = nil
	}
	if p.client != nil {
		err := p.client.Close()
		p.client = nil
		return err
	}
	return nil
}

func (p *PubSubPublisher) topicRef(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("events: publisher is closed")
	}
	if p.topic != nil {
		return p.topic, nil
	}

	client, err := pubsub.NewClient(ctx, p.cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	topic := client.Topic(p.cfg.OrderEventsTopic)
	topic.EnableMessageOrdering = false

	p.client = client
	p.topic = topic
	return topic, nil
}

// NopPublisher discards all events. Used when event publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close(context.Context) error                { return nil }
