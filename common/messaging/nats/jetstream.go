package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/telhawk-combatlog/common/logging"
	"github.com/telhawk-systems/telhawk-combatlog/common/messaging"
)

// JetStreamClient extends Client with JetStream persistence capabilities.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

var (
	_ messaging.Publisher = (*JetStreamClient)(nil)
	_ messaging.Consumer  = (*JetStreamClient)(nil)
	_ messaging.Pinger    = (*JetStreamClient)(nil)
)

// StreamConfig defines a JetStream stream configuration.
type StreamConfig struct {
	Name      string
	Subjects  []string
	MaxAge    time.Duration
	MaxBytes  int64
	MaxMsgs   int64
	Retention jetstream.RetentionPolicy
	Storage   jetstream.StorageType
}

// ConsumerConfig defines a JetStream consumer configuration.
type ConsumerConfig struct {
	// Name is the durable consumer name.
	Name string

	// FilterSubject filters which messages this consumer receives.
	FilterSubject string

	// AckWait is time to wait for acknowledgment before redelivery.
	AckWait time.Duration

	// MaxDeliver is maximum delivery attempts before giving up.
	MaxDeliver int

	// MaxAckPending is maximum unacknowledged messages.
	MaxAckPending int
}

// DefaultConsumerConfig returns defaults for a batch consumer. Report
// generation can take a while, so the ack wait is generous.
func DefaultConsumerConfig(name, filterSubject string) ConsumerConfig {
	return ConsumerConfig{
		Name:          name,
		FilterSubject: filterSubject,
		AckWait:       5 * time.Minute,
		MaxDeliver:    10,
		MaxAckPending: 100,
	}
}

// NewJetStreamClient creates a JetStream-enabled client.
func NewJetStreamClient(cfg Config) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{
		Client: client,
		js:     js,
	}, nil
}

// CreateOrUpdateStream creates or updates a stream.
func (c *JetStreamClient) CreateOrUpdateStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		MaxAge:    cfg.MaxAge,
		MaxBytes:  cfg.MaxBytes,
		MaxMsgs:   cfg.MaxMsgs,
		Retention: cfg.Retention,
		Storage:   cfg.Storage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}
	return stream, nil
}

// CreateOrUpdateConsumer creates or updates a durable consumer.
func (c *JetStreamClient) CreateOrUpdateConsumer(ctx context.Context, streamName string, cfg ConsumerConfig) (jetstream.Consumer, error) {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          cfg.Name,
		Durable:       cfg.Name,
		FilterSubject: cfg.FilterSubject,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update consumer %s: %w", cfg.Name, err)
	}
	return consumer, nil
}

// Publish stores a message in JetStream and waits for the ack.
func (c *JetStreamClient) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Consume delivers messages of a durable consumer to handler. A handler error
// NAKs the message with the configured delay; success ACKs it.
func (c *JetStreamClient) Consume(ctx context.Context, streamName, consumerName string, handler messaging.MessageHandler, opts ...messaging.ConsumeOption) (func(), error) {
	o := messaging.Apply(opts...)

	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}
	consumer, err := stream.Consumer(ctx, consumerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer %s: %w", consumerName, err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	sem := make(chan struct{}, o.MaxInFlight)

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			handle(consumeCtx, msg, handler, o.NakDelay)
		}()
	}, jetstream.PullMaxMessages(max(o.MaxInFlight, 1)))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	return func() {
		cancel()
		cons.Stop()
	}, nil
}

func handle(ctx context.Context, msg jetstream.Msg, handler messaging.MessageHandler, nakDelay time.Duration) {
	m := toMessage(msg)
	if err := handler(ctx, m); err != nil {
		slog.Warn("message handler failed, scheduling redelivery",
			slog.String("subject", m.Subject),
			slog.Uint64("delivered", m.Delivered),
			logging.Error(err))
		if nerr := msg.NakWithDelay(nakDelay); nerr != nil {
			slog.Error("nak failed", logging.Error(nerr))
		}
		return
	}
	if err := msg.Ack(); err != nil {
		slog.Error("ack failed", slog.String("subject", m.Subject), logging.Error(err))
	}
}

func toMessage(msg jetstream.Msg) *messaging.Message {
	m := &messaging.Message{
		Subject:   msg.Subject(),
		Data:      msg.Data(),
		Timestamp: time.Now(),
	}
	if md, err := msg.Metadata(); err == nil {
		m.Delivered = md.NumDelivered
		m.Timestamp = md.Timestamp
	}
	if headers := msg.Headers(); headers != nil {
		m.Metadata = make(map[string]string, len(headers))
		for k := range headers {
			m.Metadata[k] = headers.Get(k)
		}
	}
	return m
}

// Predefined stream configurations.
var (
	// BatchesStream holds raw log batches until a worker acks them.
	BatchesStream = StreamConfig{
		Name:      messaging.StreamBatches,
		Subjects:  []string{messaging.SubjectBatches + ".>"},
		MaxAge:    24 * time.Hour,
		MaxBytes:  1024 * 1024 * 1024, // 1GB
		MaxMsgs:   1000000,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	}

	// ReportsStream carries finalized partition notifications.
	ReportsStream = StreamConfig{
		Name:      messaging.StreamReports,
		Subjects:  []string{"combatlog.reports.>"},
		MaxAge:    7 * 24 * time.Hour,
		MaxBytes:  100 * 1024 * 1024, // 100MB
		MaxMsgs:   100000,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	}
)
