package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/payments"
)

// PubSubPaymentPublisher publishes payment events to a Pub/Sub topic.
type PubSubPaymentPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPaymentPublisher constructs a Pub/Sub backed payment event publisher.
func NewPubSubPaymentPublisher(topic *pubsub.Topic) (*PubSubPaymentPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub payment publisher: topic is required")
	}
	return &PubSubPaymentPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishPaymentEvent sends event and waits for the server-assigned message id.
func (p *PubSubPaymentPublisher) PublishPaymentEvent(ctx context.Context, event payments.Event) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub payment publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal payment event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventId", event.ID)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "provider", event.Provider)
	setAttr(attrs, "status", string(event.Status))
	setAttr(attrs, "sessionId", event.SessionID)

	msg := &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	}
	// Keep every event of one checkout on the same ordering key when the topic enables ordering.
	if p.topic.EnableMessageOrdering {
		msg.OrderingKey = strings.TrimSpace(event.SessionID)
	}

	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish payment event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
