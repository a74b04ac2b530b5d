// Package notify announces finished attendance audits on RabbitMQ.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AuditNotification is the message body consumers receive.
type AuditNotification struct {
	AuditID   string    `json:"audit_id"`
	CourseID  string    `json:"course_id"`
	Status    string    `json:"status"`
	ResultURL string    `json:"result_url,omitempty"`
	Summary   string    `json:"summary"`
	SentAt    time.Time `json:"sent_at"`
}

// Publisher owns one connection and channel bound to a durable direct
// exchange. Messages are routed with the queue name as key.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	logger   *zap.Logger
}

// NewPublisher connects and declares the exchange, queue and binding.
func NewPublisher(url, exchange, queue string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	p := &Publisher{conn: conn, channel: ch, exchange: exchange, queue: queue, logger: logger}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		p.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		p.Close()
		return nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}

	logger.Info("rabbitmq publisher ready", zap.String("exchange", exchange), zap.String("queue", queue))
	return p, nil
}

// PublishAudit sends the notification as a persistent JSON message.
func (p *Publisher) PublishAudit(ctx context.Context, n AuditNotification) error {
	msg, err := newPublishing(n, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := p.channel.PublishWithContext(ctx, p.exchange, p.queue, false, false, msg); err != nil {
		p.logger.Error("publish audit notification", zap.String("audit_id", n.AuditID), zap.Error(err))
		return fmt.Errorf("publish audit %s: %w", n.AuditID, err)
	}
	p.logger.Debug("audit notification published", zap.String("audit_id", n.AuditID))
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.logger.Info("rabbitmq connection closed")
}

func newPublishing(n AuditNotification, now time.Time) (amqp.Publishing, error) {
	if n.SentAt.IsZero() {
		n.SentAt = now
	}
	body, err := json.Marshal(n)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode audit notification: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.AuditID,
		Timestamp:    now,
		Type:         "attendance.audit." + n.Status,
		Body:         body,
	}, nil
}
