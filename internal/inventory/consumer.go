package inventory

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/0111v/projeto-faculdade/pkg/db/models"
	"github.com/0111v/projeto-faculdade/pkg/enums"
	"github.com/0111v/projeto-faculdade/pkg/logger"
	"github.com/0111v/projeto-faculdade/pkg/metrics"
	"github.com/0111v/projeto-faculdade/pkg/outbox"
	"github.com/0111v/projeto-faculdade/pkg/outbox/payloads"
	"github.com/0111v/projeto-faculdade/pkg/outbox/registry"
)

// LowStockConsumer names the dedup scope of the low stock consumer.
const LowStockConsumer = "inventory-low-stock"

const (
	levelLow = "low"
	levelOut = "out"
)

type productReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type deduper interface {
	Claim(ctx context.Context, eventID uuid.UUID) (string, bool, error)
	Release(ctx context.Context, eventID uuid.UUID, token string) error
}

// ConsumerParams bundles the low stock consumer dependencies.
type ConsumerParams struct {
	Products     productReader
	Subscription receiver
	Idempotency  deduper
	Threshold    int
	Metrics      *metrics.InventoryMetrics
	Logger       *logger.Logger
}

// Consumer watches order.completed events and flags products whose stock
// dropped to the configured threshold.
type Consumer struct {
	products     productReader
	subscription receiver
	idempotency  deduper
	decoders     *registry.Decoders
	threshold    int
	metrics      *metrics.InventoryMetrics
	logg         *logger.Logger
}

// NewConsumer builds the low stock consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Threshold < 0 {
		return nil, fmt.Errorf("low stock threshold must be non-negative")
	}

	decoders := registry.NewDecoders()
	registry.RegisterDecoder[payloads.OrderCompletedEvent](decoders, enums.EventOrderCompleted, 1)

	return &Consumer{
		products:     params.Products,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		decoders:     decoders,
		threshold:    params.Threshold,
		metrics:      params.Metrics,
		logg:         params.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack    bool
	nack   bool
	alerts int
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventOrderCompleted) {
		c.logg.Debug(logCtx, "skipping non-order event")
		return processResult{ack: true}
	}

	envelope, err := outbox.ParseEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	decoded, err := c.decoders.Decode(enums.EventOrderCompleted, envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	event := *decoded.(*payloads.OrderCompletedEvent)

	claim, fresh, err := c.idempotency.Claim(ctx, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !fresh {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	logCtx = c.logg.WithField(logCtx, "order_id", event.OrderID.String())
	alerts, err := c.checkStock(ctx, logCtx, event)
	if err != nil {
		c.logg.Error(logCtx, "low stock check failed", err)
		if releaseErr := c.idempotency.Release(ctx, eventID, claim); releaseErr != nil {
			c.logg.Error(logCtx, "release idempotency claim", releaseErr)
		}
		return processResult{nack: true}
	}
	return processResult{ack: true, alerts: alerts}
}

func (c *Consumer) checkStock(ctx, logCtx context.Context, event payloads.OrderCompletedEvent) (int, error) {
	ids := make([]uuid.UUID, 0, len(event.Items))
	seen := map[uuid.UUID]struct{}{}
	for _, item := range event.Items {
		if item.ProductID == uuid.Nil {
			continue
		}
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	rows, err := c.products.FindByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	alerts := 0
	for _, product := range rows {
		if product.Quantity > c.threshold {
			continue
		}
		level := levelLow
		if product.Quantity == 0 {
			level = levelOut
		}
		alerts++
		c.metrics.IncLowStock(level)
		c.logg.Warn(c.logg.WithFields(logCtx, map[string]any{
			"product_id": product.ID.String(),
			"name":       product.Name,
			"quantity":   product.Quantity,
			"threshold":  c.threshold,
			"level":      level,
		}), "inventory.low_stock")
	}
	return alerts, nil
}
