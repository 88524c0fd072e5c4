// Package messaging publishes order lifecycle events so kitchen displays can
// drive the confirmed/preparing/ready/served progression. Publishing is
// best-effort from the core's point of view: a failed notification never
// fails the order operation that triggered it.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

// KitchenEvent is the payload published to the orders topic.
type KitchenEvent struct {
	Event     string       `json:"event"` // saved | paid
	Order     models.Order `json:"order"`
	Timestamp time.Time    `json:"timestamp"`
}

// Publisher sends kitchen events over an AMQP connection.
type Publisher struct {
	conn   *Connection
	logger *logger.Logger
}

// NewPublisher creates a publisher over the given connection.
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{conn: conn, logger: log}
}

// PublishOrderSaved announces a newly saved (or re-saved) order.
func (p *Publisher) PublishOrderSaved(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, "kitchen.saved", "saved", order)
}

// PublishOrderPaid announces a settled order so the kitchen can close it out.
func (p *Publisher) PublishOrderPaid(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, "kitchen.paid", "paid", order)
}

func (p *Publisher) publish(ctx context.Context, routingKey, event string, order *models.Order) error {
	if p.conn.IsClosed() {
		if err := p.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	body, err := json.Marshal(KitchenEvent{
		Event:     event,
		Order:     *order.Clone(),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal kitchen event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = p.conn.Channel().PublishWithContext(
		ctx,
		"orders_topic", // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:   "application/json",
			Body:          body,
			DeliveryMode:  amqp091.Persistent,
			Timestamp:     time.Now(),
			CorrelationId: order.ID,
		},
	)
	if err != nil {
		p.logger.Error("kitchen_publish_failed",
			fmt.Sprintf("Failed to publish %s event", event),
			"", err, map[string]interface{}{
				"routing_key": routingKey,
				"order_id":    order.ID,
			})
		return fmt.Errorf("failed to publish kitchen event: %w", err)
	}

	p.logger.Debug("kitchen_event_published",
		fmt.Sprintf("Published %s event for table %s", event, order.TableName),
		"", map[string]interface{}{
			"routing_key": routingKey,
			"order_id":    order.ID,
		})
	return nil
}

// Close closes the underlying connection.
func (p *Publisher) Close() error {
	return p.conn.Close()
}
