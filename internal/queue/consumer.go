package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer binds a private queue to the reservations exchange and
// re-publishes every event it receives onto a local Bus.  Each server
// instance runs one so that cache invalidation and email delivery happen
// no matter which instance accepted the reservation.  Messages stamped
// with the consumer's own origin are skipped: that instance already
// delivered them to its bus directly.
type Consumer struct {
	url    string
	origin string
	bus    *Bus
	logger *zap.Logger

	// MaxBackoff caps the reconnect delay.
	MaxBackoff time.Duration
}

// NewConsumer returns a consumer that dispatches into bus.  An empty
// origin dispatches every message.
func NewConsumer(url, origin string, bus *Bus, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{url: url, origin: origin, bus: bus, logger: logger, MaxBackoff: 30 * time.Second}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff whenever the broker goes away.  It only returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("reservation-consumer: failed to dial broker",
				zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < c.MaxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("reservation-consumer: consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("reservation-consumer: set QoS failed", zap.Error(err))
	}
	if err := declareExchange(ch); err != nil {
		return err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", ExchangeName, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if !c.accepts(d.AppId) {
				_ = d.Ack(false)
				continue
			}
			if err := c.handle(ctx, d.Body); err != nil {
				c.logger.Error("reservation-consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) accepts(appID string) bool {
	return c.origin == "" || appID != c.origin
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	ev, err := DecodeEvent(body)
	if err != nil {
		return err
	}
	ev.Remote = true
	return c.bus.Publish(ctx, ev)
}

// DecodeEvent parses a message body and rejects events without a kind or
// resource.
func DecodeEvent(body []byte) (ReservationChanged, error) {
	var ev ReservationChanged
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Kind == "" || ev.ResourceID == "" {
		return ev, errors.New("event missing kind or resource_id")
	}
	return ev, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
