package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ExchangeName is the fanout exchange every server instance binds to.
const ExchangeName = "reservations.changed"

// AMQPPublisher publishes ReservationChanged events to RabbitMQ.  The
// connection is opened lazily and reused; a failed publish drops the
// connection and redials once before giving up.  Messages are persistent
// and stamped with the publishing instance's origin as their AppId.
type AMQPPublisher struct {
	url    string
	origin string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher returns a publisher for the broker at url.  No
// connection is made until the first Publish.
func NewAMQPPublisher(url, origin string, logger *zap.Logger) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{url: url, origin: origin, logger: logger}
}

// Publish implements Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, ev ReservationChanged) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(ev.Kind),
		AppId:        p.origin,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for attempt := 0; attempt < 2; attempt++ {
		if err = p.ensureChannel(); err != nil {
			continue
		}
		err = p.ch.PublishWithContext(ctx, ExchangeName, "", false, false, msg)
		if err == nil {
			return nil
		}
		p.logger.Warn("rabbitmq: publish failed", zap.Error(err), zap.Int("attempt", attempt+1))
		p.resetLocked()
	}
	return fmt.Errorf("publish %s: %w", ev.Kind, err)
}

// ensureChannel dials and declares the exchange if needed.  Callers hold p.mu.
func (p *AMQPPublisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.resetLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel open: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQPPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

func declareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}
