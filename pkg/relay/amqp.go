package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const maxBackoff = 30 * time.Second

// Transport moves messages between hosts.
type Transport interface {
	Publish(ctx context.Context, msg *Message) error
	// Consume calls handler for every message until ctx is cancelled.
	Consume(ctx context.Context, handler func(*Message) error) error
	Close() error
}

// AMQPTransport publishes slot changes to a fanout exchange. Every host
// consumes through its own exclusive queue, so each change reaches all hosts.
type AMQPTransport struct {
	url          string
	exchangeName string
	logger       *slog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// DialAMQP connects to the broker at url and declares the exchange.
func DialAMQP(url, exchangeName string, logger *slog.Logger) (*AMQPTransport, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t := &AMQPTransport{
		url:          url,
		exchangeName: exchangeName,
		logger:       logger,
	}
	if err := t.connect(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *AMQPTransport) connect() error {
	conn, err := amqp091.Dial(t.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		t.exchangeName, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.channel = channel
	t.mu.Unlock()
	return nil
}

func (t *AMQPTransport) currentChannel() *amqp091.Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channel
}

// Publish sends msg to every host.
func (t *AMQPTransport) Publish(ctx context.Context, msg *Message) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ch := t.currentChannel()
	if ch == nil {
		return errors.New("transport closed")
	}
	err = ch.PublishWithContext(
		ctx,
		t.exchangeName, // exchange
		"",             // routing key, ignored by fanout
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Transient,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	t.logger.Debug("published slot change", "key", msg.Key, "removed", msg.Removed, "exchange", t.exchangeName)
	return nil
}

// Consume declares an exclusive queue bound to the exchange and hands every
// delivery to handler. Lost connections are re-established with backoff.
func (t *AMQPTransport) Consume(ctx context.Context, handler func(*Message) error) error {
	for attempt := 0; ; attempt++ {
		err := t.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		t.logger.Warn("relay connection lost, reconnecting", "error", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		if err := t.connect(); err != nil {
			t.logger.Warn("relay reconnect failed", "error", err)
			continue
		}
		attempt = -1
	}
}

func (t *AMQPTransport) consumeOnce(ctx context.Context, handler func(*Message) error) error {
	ch := t.currentChannel()
	if ch == nil {
		return errors.New("transport closed")
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", t.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	t.logger.Debug("consuming slot changes", "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("connection closed")
			}

			msg, err := MessageFromJSON(delivery.Body)
			if err != nil {
				t.logger.Error("failed to unmarshal message", "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(msg); err != nil {
				t.logger.Error("failed to apply message", "error", err, "key", msg.Key)
				delivery.Nack(false, false)
				continue
			}
			delivery.Ack(false)
		}
	}
}

// Close closes the channel and the connection.
func (t *AMQPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.channel != nil {
		t.channel.Close()
		t.channel = nil
	}
	if t.conn != nil {
		err := t.conn.Close()
		t.conn = nil
		return err
	}
	return nil
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection refused", "connection closed", "EOF", "broken pipe", "use of closed network connection"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

var _ Transport = (*AMQPTransport)(nil)
