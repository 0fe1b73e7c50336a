package event

import (
	"context"
	"encoding/json"
	"log/slog"

	"hact-service/internal/models"
	"hact-service/internal/repository"
	"hact-service/internal/services"

	amqp "github.com/rabbitmq/amqp091-go"
)

// CompletionEventHandler defines the interface for handling completion events
type CompletionEventHandler interface {
	HandleActivityCompleted(ctx context.Context, event CompletionEvent) error
}

// CompletionConsumer consumes completed-activity events from RabbitMQ and
// applies the fast-path snapshot increment.
type CompletionConsumer struct {
	conn    *RabbitMQConnection
	handler CompletionEventHandler
}

func NewCompletionConsumer(conn *RabbitMQConnection, handler CompletionEventHandler) *CompletionConsumer {
	return &CompletionConsumer{
		conn:    conn,
		handler: handler,
	}
}

// Start begins consuming completion events
func (c *CompletionConsumer) Start(ctx context.Context) error {
	_, err := c.conn.Channel.QueueDeclare(
		CompletionEventsQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	msgs, err := c.conn.Channel.Consume(
		CompletionEventsQueue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (we'll manually ack after processing)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	slog.Info("Completion consumer started", "queue", CompletionEventsQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("Completion consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("Completion consumer channel closed")
					return
				}
				c.processMessage(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *CompletionConsumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	var event CompletionEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.Error("failed to unmarshal completion event", "error", err)
		// Malformed message, don't requeue
		msg.Nack(false, false)
		return
	}

	slog.Info("Received completion event",
		"event_id", event.ID,
		"vendor_number", event.VendorNumber,
		"kind", event.Kind,
		"date", event.Date,
	)

	if err := c.handler.HandleActivityCompleted(ctx, event); err != nil {
		slog.Error("failed to handle completion event",
			"event_id", event.ID,
			"vendor_number", event.VendorNumber,
			"error", err,
		)
		// Requeue the message for retry
		msg.Nack(false, true)
		return
	}

	msg.Ack(false)
	slog.Info("Completion event processed successfully", "event_id", event.ID)
}

// DefaultCompletionEventHandler resolves the partner and applies the
// increment through the ledger service.
type DefaultCompletionEventHandler struct {
	partnerRepo *repository.PartnerRepository
	ledger      *services.PartnerLedgerService
}

func NewDefaultCompletionEventHandler(partnerRepo *repository.PartnerRepository, ledger *services.PartnerLedgerService) *DefaultCompletionEventHandler {
	return &DefaultCompletionEventHandler{
		partnerRepo: partnerRepo,
		ledger:      ledger,
	}
}

func (h *DefaultCompletionEventHandler) HandleActivityCompleted(ctx context.Context, event CompletionEvent) error {
	kind, err := activityKind(event.Kind)
	if err != nil {
		// Unknown kinds are logged and dropped, not retried forever.
		slog.Error("unknown completion kind", "kind", event.Kind, "event_id", event.ID)
		return nil
	}

	partner, err := h.partnerRepo.GetByVendorNumber(event.VendorNumber)
	if err != nil {
		return err
	}

	_, err = h.ledger.IncrementCompletion(ctx, partner.ID, kind, event.Date)
	return err
}

func activityKind(kind string) (models.ActivityKind, error) {
	switch kind {
	case "programmatic_visit", string(models.KindProgrammaticVisit):
		return models.KindProgrammaticVisit, nil
	case "spot_check", string(models.KindSpotCheck):
		return models.KindSpotCheck, nil
	case string(models.KindAudit):
		return models.KindAudit, nil
	default:
		return "", models.NewErrorf(models.ErrValidation, "unknown activity kind %q", kind)
	}
}
