package main

import (
	"context"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

// pubsubSender adapts the shared Pub/Sub client to the publisher.
type pubsubSender struct {
	client *pubsub.Client
}

func (s pubsubSender) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s pubsubSender) Send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := s.client.Publisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}
	if _, err := pub.Publish(ctx, msg).Get(ctx); err != nil {
		if msg.OrderingKey != "" {
			pub.ResumePublish(msg.OrderingKey)
		}
		return err
	}
	return nil
}
