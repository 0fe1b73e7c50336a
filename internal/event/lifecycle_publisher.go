package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// LifecyclePublisher publishes status-change events to RabbitMQ. It
// satisfies the services.LifecyclePublisher interface.
type LifecyclePublisher struct {
	conn *RabbitMQConnection
}

func NewLifecyclePublisher(conn *RabbitMQConnection) *LifecyclePublisher {
	return &LifecyclePublisher{conn: conn}
}

// PublishStatusChange emits one LifecycleEvent. The transition has already
// committed, so failures are logged and swallowed rather than propagated.
func (p *LifecyclePublisher) PublishStatusChange(ctx context.Context, entity string, entityID int64, from, to, actor string) {
	event := LifecycleEvent{
		ID:         uuid.NewString(),
		Entity:     entity,
		EntityID:   entityID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		OccurredAt: time.Now(),
	}

	_, err := p.conn.Channel.QueueDeclare(
		LifecycleEventsQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		slog.Error("failed to declare lifecycle queue", "error", err)
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal lifecycle event", "error", err)
		return
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",                   // exchange
		LifecycleEventsQueue, // routing key (queue name)
		false,                // mandatory
		false,                // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		slog.Error("failed to publish lifecycle event",
			"entity", entity, "entity_id", entityID, "error", err)
		return
	}

	slog.Info("Lifecycle event published",
		"queue", LifecycleEventsQueue,
		"entity", entity,
		"entity_id", entityID,
		"from", from,
		"to", to,
	)
}
