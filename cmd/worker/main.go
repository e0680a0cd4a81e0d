package main

import (
	"context"
	"errors"

	"github.com/0111v/projeto-faculdade/internal/bootstrap"
	"github.com/0111v/projeto-faculdade/internal/inventory"
	"github.com/0111v/projeto-faculdade/internal/products"
	"github.com/0111v/projeto-faculdade/pkg/config"
	"github.com/0111v/projeto-faculdade/pkg/metrics"
	"github.com/0111v/projeto-faculdade/pkg/outbox/idempotency"
)

func main() {
	bootstrap.Main("worker", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	dbClient, err := p.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := p.Redis(ctx)
	if err != nil {
		return err
	}
	pubsubClient, err := p.PubSub(ctx)
	if err != nil {
		return err
	}

	subscription := pubsubClient.OrdersSubscription()
	if subscription == nil {
		return errors.New(config.EnvPrefix + "_PUBSUB_ORDERS_SUBSCRIPTION is empty")
	}

	dedup, err := idempotency.NewGuard(redisClient, inventory.LowStockConsumer, p.Config.Inventory.EventDedupTTL)
	if err != nil {
		return err
	}

	consumer, err := inventory.NewConsumer(inventory.ConsumerParams{
		Products:     products.NewRepository(dbClient.DB()),
		Subscription: subscription,
		Idempotency:  dedup,
		Threshold:    p.Config.Inventory.LowStockThreshold,
		Metrics:      metrics.NewInventoryMetrics(p.Registry),
		Logger:       p.Logger,
	})
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Logger:    p.Logger,
		DB:        dbClient,
		Redis:     redisClient,
		PubSub:    pubsubClient,
		Consumers: map[string]runner{inventory.LowStockConsumer: consumer},
	})
	if err != nil {
		return err
	}

	p.ServeMetrics(ctx)
	return service.Run(ctx)
}
