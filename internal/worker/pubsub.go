package worker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubConsumer receives location updates from a Pub/Sub subscription.
type PubSubConsumer struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	handler          *Handler
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub consumer.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	MaxOutstanding   int
	Handler          *Handler
	Logger           zerolog.Logger
}

// NewPubSubConsumer creates a new Pub/Sub consumer.
func NewPubSubConsumer(ctx context.Context, cfg PubSubConfig) (*PubSubConsumer, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	maxOutstanding := cfg.MaxOutstanding
	if maxOutstanding <= 0 {
		maxOutstanding = 10
	}
	subscriber.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubConsumer{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		handler:          cfg.Handler,
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (c *PubSubConsumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("subscription", c.subscriptionName).
		Msg("starting pubsub consumer")

	return c.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := c.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()

		if c.handler.Handle(ctx, msg.Data, logger) == Nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close closes the Pub/Sub client.
func (c *PubSubConsumer) Close() error {
	return c.client.Close()
}
