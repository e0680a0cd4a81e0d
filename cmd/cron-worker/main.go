package main

import (
	"context"
	"fmt"

	"github.com/0111v/projeto-faculdade/internal/bootstrap"
	"github.com/0111v/projeto-faculdade/internal/cron"
	"github.com/0111v/projeto-faculdade/internal/products"
	"github.com/0111v/projeto-faculdade/pkg/instance"
	"github.com/0111v/projeto-faculdade/pkg/metrics"
	"github.com/0111v/projeto-faculdade/pkg/outbox"
)

func main() {
	bootstrap.Main("cron-worker", run)
}

// lockKey scopes the cycle lease per environment so staging and production
// replicas sharing a Redis do not block each other.
func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("sf:cron-worker:lock:%s", env)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	cfg := p.Config

	dbClient, err := p.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := p.Redis(ctx)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), instance.GetID(), cfg.Cron.Interval)
	if err != nil {
		return err
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     p.Logger,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return err
	}
	lowStock, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:    p.Logger,
		Products:  products.NewRepository(dbClient.DB()),
		Metrics:   metrics.NewInventoryMetrics(p.Registry),
		Threshold: cfg.Inventory.LowStockThreshold,
	})
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   p.Logger,
		Jobs:     []cron.Job{retention, lowStock},
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(p.Registry),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	p.ServeMetrics(ctx)
	return service.Run(p.Logger.WithField(ctx, "interval", cfg.Cron.Interval.String()))
}
