package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Client wraps a RabbitMQ connection with a durable direct exchange and
// queue for subscription sync messages. Publishing survives broker
// restarts: a connection-level failure triggers one reconnect attempt
// before the error is surfaced.
type Client struct {
	mu           sync.Mutex
	url          string
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel

	if err := c.setup(); err != nil {
		c.closeLocked()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	// Declare exchange
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Declare queue
	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Bind queue to exchange
	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// exponentialBackoff returns the delay before reconnect attempt n,
// doubling from 1s and capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	backoff := time.Second << uint(attempt)
	if backoff > 30*time.Second || backoff <= 0 {
		return 30 * time.Second
	}
	return backoff
}

// isConnectionError reports whether err looks like a broken connection
// that a reconnect could fix, as opposed to a protocol or handler error.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"channel/connection is not open",
		"use of closed network connection",
		"broken pipe",
		"EOF",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// reconnect tears down the current connection and dials again.
func (c *Client) reconnect() error {
	c.closeLocked()
	return c.connect()
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.publishLocked(ctx, body)
	if err == nil {
		return nil
	}
	if !isConnectionError(err) {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.WarnContext(ctx, "AMQP publish failed, reconnecting", "error", err)
	if rerr := c.reconnect(); rerr != nil {
		return fmt.Errorf("reconnect after publish failure: %w", rerr)
	}
	if err := c.publishLocked(ctx, body); err != nil {
		return fmt.Errorf("publish message after reconnect: %w", err)
	}
	return nil
}

func (c *Client) publishLocked(ctx context.Context, body []byte) error {
	return c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent, // make message persistent
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// PublishSubscriptionSync publishes a subscription sync message.
func (c *Client) PublishSubscriptionSync(ctx context.Context, id, version int64) error {
	body, err := NewSubscriptionSyncMessage(id, version).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published subscription sync message",
		"id", id,
		"version", version,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishSubscriptionDelete publishes a subscription delete message.
func (c *Client) PublishSubscriptionDelete(ctx context.Context, id int64, name string) error {
	body, err := NewSubscriptionDeleteMessage(id, name).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published subscription delete message",
		"id", id,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// SyncHandler processes a sync message; returning an error requeues it.
type SyncHandler func(ctx context.Context, msg *SubscriptionSyncMessage) error

// DeleteHandler processes a delete message; returning an error requeues it.
type DeleteHandler func(ctx context.Context, msg *SubscriptionDeleteMessage) error

// ConsumeMessages consumes sync and delete messages until ctx is done,
// reconnecting with exponential backoff when the broker drops the
// connection. Messages are acked only after their handler succeeds;
// malformed messages are rejected without requeue.
func (c *Client) ConsumeMessages(ctx context.Context, onSync SyncHandler, onDelete DeleteHandler) error {
	for attempt := 0; ; attempt++ {
		err := c.consumeOnce(ctx, onSync, onDelete)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		delay := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP consume interrupted, retrying",
			"error", err,
			"attempt", attempt+1,
			"backoff", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		c.mu.Lock()
		rerr := c.reconnect()
		c.mu.Unlock()
		if rerr != nil {
			slog.WarnContext(ctx, "AMQP reconnect failed", "error", rerr)
			continue
		}
		attempt = -1 // reset backoff after a successful reconnect
	}
}

func (c *Client) consumeOnce(ctx context.Context, onSync SyncHandler, onDelete DeleteHandler) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming subscription messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return nil
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed: connection closed")
			}
			c.dispatch(ctx, delivery, onSync, onDelete)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, delivery amqp091.Delivery, onSync SyncHandler, onDelete DeleteHandler) {
	msgType, err := messageType(delivery.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to classify message", "error", err)
		delivery.Nack(false, false) // reject and don't requeue
		return
	}

	switch msgType {
	case TypeSync:
		msg, err := SubscriptionSyncMessageFromJSON(delivery.Body)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal sync message", "error", err)
			delivery.Nack(false, false)
			return
		}
		if err := onSync(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to handle sync message",
				"error", err,
				"id", msg.ID,
				"version", msg.Version)
			delivery.Nack(false, true) // reject and requeue
			return
		}
	case TypeDelete:
		msg, err := SubscriptionDeleteMessageFromJSON(delivery.Body)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal delete message", "error", err)
			delivery.Nack(false, false)
			return
		}
		if err := onDelete(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to handle delete message",
				"error", err,
				"id", msg.ID)
			delivery.Nack(false, true)
			return
		}
	default:
		slog.WarnContext(ctx, "Unknown message type", "type", msgType)
		delivery.Nack(false, false)
		return
	}

	delivery.Ack(false)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
