// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kunho817/shattered-moon-mcp/internal/logger"
	"github.com/kunho817/shattered-moon-mcp/internal/port/messagequeue"
)

const (
	streamName = "SHATTEREDMOON"

	headerRequestID  = "X-Request-ID"
	headerRetryCount = "X-Retry-Count"

	// maxRetries is the number of handler failures before a message
	// is moved to its dead-letter subject.
	maxRetries = 3
)

// streamSubjects are the wildcard patterns owned by the coordination stream.
var streamSubjects = []string{"graphs.>", "strategies.>", "plans.>"}

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: streamSubjects,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// Publish sends a message to the given subject. Invalid payloads are not
// retried: they go straight to the subject's dead-letter queue. The request
// ID from ctx, if any, travels in a message header.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		slog.Warn("invalid payload, moving to DLQ", "subject", subject, "error", err)
		return q.moveToDLQ(ctx, subject, data)
	}

	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	if reqID := logger.RequestID(ctx); reqID != "" {
		msg.Header.Set(headerRequestID, reqID)
	}

	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject.
// Handler failures are retried via Nak until maxRetries, then the
// message is moved to "<subject>.dlq".
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		handlerCtx := context.Background()
		if reqID := msg.Headers().Get(headerRequestID); reqID != "" {
			handlerCtx = logger.WithRequestID(handlerCtx, reqID)
		}

		if err := handler(handlerCtx, msg.Subject(), msg.Data()); err != nil {
			retries := retryCount(msg.Headers())
			if retries >= maxRetries {
				slog.Error("handler retries exhausted, moving to DLQ",
					"subject", msg.Subject(), "retries", retries, "error", err)
				if dlqErr := q.moveToDLQ(handlerCtx, msg.Subject(), msg.Data()); dlqErr != nil {
					slog.Error("nats DLQ publish failed", "error", dlqErr)
				}
				if ackErr := msg.Ack(); ackErr != nil {
					slog.Error("nats ack failed", "error", ackErr)
				}
				return
			}
			slog.Error("message handler failed", "subject", msg.Subject(), "error", err)
			if nakErr := msg.Nak(); nakErr != nil {
				slog.Error("nats nak failed", "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// moveToDLQ publishes raw data to the subject's dead-letter queue,
// bypassing schema validation.
func (q *Queue) moveToDLQ(ctx context.Context, subject string, data []byte) error {
	if _, err := q.js.Publish(ctx, subject+".dlq", data); err != nil {
		return fmt.Errorf("nats DLQ publish %s: %w", subject, err)
	}
	return nil
}

// retryCount reads the retry counter header; absent or malformed means zero.
func retryCount(hdrs nats.Header) int {
	n, err := strconv.Atoi(hdrs.Get(headerRetryCount))
	if err != nil {
		return 0
	}
	return n
}

// KeyValue returns a JetStream key-value bucket, creating it with the
// given TTL if it does not exist.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats key-value %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain gracefully drains subscriptions, processing pending messages.
func (q *Queue) Drain() error {
	return q.nc.Drain()
}

// Close shuts down the NATS connection immediately.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the NATS connection is alive.
func (q *Queue) IsConnected() bool {
	return q.nc != nil && q.nc.IsConnected()
}
