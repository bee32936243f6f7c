package changefeed

import (
	"context"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/lodgetix/ticket-inventory/internal/recompute"
	pkgerrors "github.com/lodgetix/ticket-inventory/pkg/errors"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

// ConsumerName scopes idempotency keys for the change feed.
const ConsumerName = "inventory-change-feed"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type recomputer interface {
	TriggerIncrementalRecompute(ctx context.Context, event recompute.ChangeEvent) (recompute.Summary, error)
}

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID string) (bool, error)
	Release(ctx context.Context, consumer string, eventID string) error
}

// Consumer turns registration change deliveries into incremental recomputes.
type Consumer struct {
	subscription receiver
	recompute    recomputer
	idempotency  idempotencyGuard
	logg         *logger.Logger
}

// NewConsumer builds a change feed consumer.
func NewConsumer(subscription receiver, coordinator recomputer, manager idempotencyGuard, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("registration change subscription required")
	}
	if coordinator == nil {
		return nil, fmt.Errorf("recompute coordinator required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: subscription,
		recompute:    coordinator,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, delivery{id: msg.ID, data: msg.Data, attributes: msg.Attributes}) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type delivery struct {
	id         string
	data       []byte
	attributes map[string]string
}

// process handles one delivery and reports whether it must be nacked.
func (c *Consumer) process(ctx context.Context, d delivery) bool {
	logCtx := c.logg.WithField(ctx, "message_id", d.id)

	event, err := recompute.DecodeChangeEvent(d.data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode change event", err)
		return false
	}

	eventID := eventIDFor(event, d)
	event.EventID = eventID
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id":        eventID,
		"registration_id": event.RegistrationID,
		"operation":       string(event.Operation),
	})

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, ConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return true
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return false
	}

	summary, err := c.recompute.TriggerIncrementalRecompute(ctx, event)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			c.logg.Error(logCtx, "change event rejected", err)
			return false
		}
		c.logg.Error(logCtx, "incremental recompute failed", err)
		// Release even when the receive context is already cancelled.
		if relErr := c.idempotency.Release(context.WithoutCancel(ctx), ConsumerName, eventID); relErr != nil {
			c.logg.Error(logCtx, "failed to release idempotency mark", relErr)
		}
		return true
	}

	if summary.TicketTypesFailed > 0 {
		c.logg.Warn(c.logg.WithField(logCtx, "ticket_types_failed", summary.TicketTypesFailed),
			"incremental recompute partially failed; scheduled full recompute will converge")
	}
	return false
}

// eventIDFor prefers the producer's event id, then an attribute, then the
// Pub/Sub message id.
func eventIDFor(event recompute.ChangeEvent, d delivery) string {
	if id := strings.TrimSpace(event.EventID); id != "" {
		return id
	}
	if id := strings.TrimSpace(d.attributes["event_id"]); id != "" {
		return id
	}
	return d.id
}
