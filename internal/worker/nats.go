package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSConsumer receives location updates from a JetStream subject through a
// queue group, so several workers share the load.
type NATSConsumer struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	sub        *nats.Subscription
	subject    string
	queueGroup string
	handler    *Handler
	logger     zerolog.Logger
}

// NATSConfig holds configuration for the NATS consumer.
type NATSConfig struct {
	URL        string
	Subject    string
	QueueGroup string
	Handler    *Handler
	Logger     zerolog.Logger
}

// NewNATSConsumer connects to NATS. The connection keeps retrying in the
// background when the server is not reachable yet.
func NewNATSConsumer(cfg NATSConfig) (*NATSConsumer, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	return &NATSConsumer{
		conn:       conn,
		js:         js,
		subject:    cfg.Subject,
		queueGroup: cfg.QueueGroup,
		handler:    cfg.Handler,
		logger:     cfg.Logger,
	}, nil
}

// Start subscribes and blocks until ctx is cancelled.
func (c *NATSConsumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("subject", c.subject).
		Str("queue_group", c.queueGroup).
		Msg("starting nats consumer")

	sub, err := c.js.QueueSubscribe(c.subject, c.queueGroup, func(msg *nats.Msg) {
		logger := c.logger.With().Str("subject", msg.Subject).Logger()
		if meta, err := msg.Metadata(); err == nil {
			logger = logger.With().
				Uint64("stream_seq", meta.Sequence.Stream).
				Uint64("delivered", meta.NumDelivered).
				Logger()
		}

		settle(msg, c.handler.Handle(ctx, msg.Data, logger), logger)
	},
		nats.Durable(c.queueGroup),
		nats.ManualAck(),
		nats.MaxDeliver(5),
	)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", c.subject, err)
	}
	c.sub = sub

	<-ctx.Done()
	return nil
}

// Close unsubscribes and drains the connection.
func (c *NATSConsumer) Close() error {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
	return c.conn.Drain()
}

// settle acks or naks msg according to d. Broker errors are logged; the
// message is redelivered after AckWait when neither reaches the server.
func settle(msg *nats.Msg, d Decision, logger zerolog.Logger) {
	if d == Nack {
		if err := msg.Nak(); err != nil {
			logger.Warn().Err(err).Msg("failed to nak message")
		}
		return
	}
	if err := msg.Ack(); err != nil {
		logger.Warn().Err(err).Msg("failed to ack message")
	}
}
