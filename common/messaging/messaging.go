// Package messaging defines the broker contract used to move combat log
// batches and report notifications between services.
package messaging

import (
	"context"
	"time"
)

// Message is a message received from or sent to the broker.
type Message struct {
	// Subject is the topic the message was published to.
	Subject string

	// Data is the raw payload.
	Data []byte

	// Metadata holds message headers.
	Metadata map[string]string

	// Delivered counts delivery attempts; 1 on first delivery. Zero when the
	// broker does not track it.
	Delivered uint64

	// Timestamp is when the message was published.
	Timestamp time.Time
}

// Redelivery reports whether the broker delivered the message before.
func (m *Message) Redelivery() bool {
	return m.Delivered > 1
}

// MessageHandler processes a received message. A returned error asks the
// broker to redeliver.
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher publishes messages to subjects.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Consumer delivers messages of a durable consumer to a handler until the
// returned stop function is called.
type Consumer interface {
	Consume(ctx context.Context, stream, consumer string, handler MessageHandler, opts ...ConsumeOption) (stop func(), err error)
}

// ConsumeOption configures message consumption.
type ConsumeOption func(*ConsumeOptions)

// ConsumeOptions is the resolved set of ConsumeOption values.
type ConsumeOptions struct {
	NakDelay    time.Duration
	MaxInFlight int
}

// DefaultConsumeOptions returns the options used when none are given.
func DefaultConsumeOptions() ConsumeOptions {
	return ConsumeOptions{NakDelay: 5 * time.Second, MaxInFlight: 1}
}

// Apply resolves opts over the defaults.
func Apply(opts ...ConsumeOption) ConsumeOptions {
	o := DefaultConsumeOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithNakDelay sets how long the broker waits before redelivering a message
// whose handler failed.
func WithNakDelay(d time.Duration) ConsumeOption {
	return func(o *ConsumeOptions) {
		o.NakDelay = d
	}
}

// WithMaxInFlight sets how many messages are handled concurrently.
func WithMaxInFlight(n int) ConsumeOption {
	return func(o *ConsumeOptions) {
		if n > 0 {
			o.MaxInFlight = n
		}
	}
}
