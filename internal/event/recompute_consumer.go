package event

import (
	"context"
	"encoding/json"
	"log/slog"

	"hact-service/internal/repository"
	"hact-service/internal/services"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RecomputeConsumer consumes snapshot rebuild requests. The financial sync
// job sends one after loading the night's vendor extracts.
type RecomputeConsumer struct {
	conn        *RabbitMQConnection
	partnerRepo *repository.PartnerRepository
	ledger      *services.PartnerLedgerService
}

func NewRecomputeConsumer(conn *RabbitMQConnection, partnerRepo *repository.PartnerRepository, ledger *services.PartnerLedgerService) *RecomputeConsumer {
	return &RecomputeConsumer{
		conn:        conn,
		partnerRepo: partnerRepo,
		ledger:      ledger,
	}
}

// Start begins consuming recompute requests
func (c *RecomputeConsumer) Start(ctx context.Context) error {
	_, err := c.conn.Channel.QueueDeclare(
		RecomputeRequestsQueue,
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
		RecomputeRequestsQueue,
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

	slog.Info("Recompute consumer started", "queue", RecomputeRequestsQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("Recompute consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("Recompute consumer channel closed")
					return
				}
				c.processMessage(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *RecomputeConsumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	var request RecomputeRequest
	if err := json.Unmarshal(msg.Body, &request); err != nil {
		slog.Error("failed to unmarshal recompute request", "error", err)
		msg.Nack(false, false)
		return
	}

	slog.Info("Received recompute request",
		"request_id", request.ID,
		"vendor_count", len(request.VendorNumbers),
	)

	if len(request.VendorNumbers) == 0 {
		if err := c.ledger.RecomputeAll(ctx); err != nil {
			slog.Error("failed to recompute all snapshots", "request_id", request.ID, "error", err)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	// Per-partner failures are logged and skipped so one bad vendor does
	// not poison the whole request.
	for _, vendorNumber := range request.VendorNumbers {
		partner, err := c.partnerRepo.GetByVendorNumber(vendorNumber)
		if err != nil {
			slog.Error("recompute skipped unknown vendor",
				"request_id", request.ID, "vendor_number", vendorNumber, "error", err)
			continue
		}
		if _, err := c.ledger.Recompute(ctx, partner.ID); err != nil {
			slog.Error("failed to recompute snapshot",
				"request_id", request.ID, "vendor_number", vendorNumber, "error", err)
		}
	}

	msg.Ack(false)
	slog.Info("Recompute request processed", "request_id", request.ID)
}
