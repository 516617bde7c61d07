package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dewbox/contribution-service/internal/domain"
	"github.com/dewbox/contribution-service/internal/store"
	"github.com/dewbox/contribution-service/pkg/rabbitmq"
)

// GatewayConfirmationConsumer applies `payment.gateway.confirmed` events from the bus.
type GatewayConfirmationConsumer struct {
	service *Service
	logger  *slog.Logger
	timeout time.Duration
}

func NewGatewayConfirmationConsumer(service *Service, logger *slog.Logger) *GatewayConfirmationConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayConfirmationConsumer{
		service: service,
		logger:  logger.With("component", "gateway_consumer"),
		timeout: 15 * time.Second,
	}
}

// HandleMessage acks malformed payloads and settled outcomes, requeues failures that may
// clear on their own, and dead-letters the rest so they wait for an operator.
func (c *GatewayConfirmationConsumer) HandleMessage(body []byte) rabbitmq.Disposition {
	var confirmation domain.GatewayConfirmation
	if err := json.Unmarshal(body, &confirmation); err != nil {
		c.logger.Error("failed to unmarshal gateway confirmation", "error", err)
		return rabbitmq.Ack
	}
	if confirmation.Reference == "" {
		c.logger.Warn("gateway confirmation without reference dropped", "status", confirmation.Status)
		return rabbitmq.Ack
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	result, err := c.service.ConfirmGatewayPayment(ctx, confirmation)
	if err != nil {
		switch {
		case IsSettledGatewayOutcome(err):
			c.logger.Info("gateway confirmation settled without credit", "reference", confirmation.Reference, "reason", err.Error())
			return rabbitmq.Ack
		case errors.Is(err, ErrContentionExhausted) || store.IsTransient(err):
			c.logger.Warn("gateway confirmation processing failed; requeueing", "reference", confirmation.Reference, "error", err)
			return rabbitmq.Requeue
		default:
			c.logger.Error("gateway confirmation cannot be applied; dead-lettering", "reference", confirmation.Reference, "error", err)
			return rabbitmq.DeadLetter
		}
	}

	c.logger.Info("gateway confirmation applied",
		"reference", confirmation.Reference,
		"contribution_id", result.ContributionID,
		"duplicate", result.Duplicate,
	)
	return rabbitmq.Ack
}
