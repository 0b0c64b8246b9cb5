package notify

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPBroker publishes to and consumes from one durable queue bound to a
// direct exchange, routed by the queue name.
type AMQPBroker struct {
	mu       sync.Mutex
	url      string
	exchange string
	queue    string
	conn     *amqp.Connection
	channel  *amqp.Channel
	log      *zap.Logger
}

func NewAMQPBroker(url, exchange, queue string, log *zap.Logger) (*AMQPBroker, error) {
	b := &AMQPBroker{url: url, exchange: exchange, queue: queue, log: log}
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *AMQPBroker) connect() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := b.declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}
	b.conn, b.channel = conn, ch
	return nil
}

func (b *AMQPBroker) declare(ch *amqp.Channel) error {
	if b.exchange != "" {
		if err := ch.ExchangeDeclare(b.exchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", b.exchange, err)
		}
	}
	if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", b.queue, err)
	}
	if b.exchange != "" {
		if err := ch.QueueBind(b.queue, b.queue, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", b.queue, err)
		}
	}
	return nil
}

func (b *AMQPBroker) ensureConnection() error {
	if b.conn != nil && !b.conn.IsClosed() && b.channel != nil && !b.channel.IsClosed() {
		return nil
	}
	b.log.Warn("amqp connection lost, reconnecting")
	if b.conn != nil {
		_ = b.conn.Close()
	}
	return b.connect()
}

func (b *AMQPBroker) Publish(ctx context.Context, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureConnection(); err != nil {
		return err
	}
	err := b.channel.PublishWithContext(ctx, b.exchange, b.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Consume delivers messages to handle until ctx is cancelled. Handled
// messages are acked; failures are requeued, undecodable ones dropped.
func (b *AMQPBroker) Consume(ctx context.Context, handle Handler) error {
	b.mu.Lock()
	if err := b.ensureConnection(); err != nil {
		b.mu.Unlock()
		return err
	}
	deliveries, err := b.channel.Consume(b.queue, "", false, false, false, false, nil)
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp delivery channel closed")
			}
			b.dispatch(ctx, d, handle)
		}
	}
}

func (b *AMQPBroker) dispatch(ctx context.Context, d amqp.Delivery, handle Handler) {
	conf, err := decode(d.Body)
	if err != nil {
		b.log.Error("dropping undecodable message", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := handle(ctx, conf); err != nil {
		b.log.Warn("confirmation delivery failed, requeueing", zap.Error(err), zap.Int("reservation_id", conf.ReservationID))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel != nil {
		_ = b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
