package main

import (
	"context"
	"fmt"

	"github.com/0111v/projeto-faculdade/internal/bootstrap"
	"github.com/0111v/projeto-faculdade/pkg/metrics"
	"github.com/0111v/projeto-faculdade/pkg/migrate"
	"github.com/0111v/projeto-faculdade/pkg/outbox"
	"github.com/0111v/projeto-faculdade/pkg/outbox/registry"
)

func main() {
	bootstrap.Main("outbox-publisher", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	if !p.Config.FeatureFlags.OutboxEnabled {
		p.Logger.Warn(ctx, "outbox feature disabled, nothing to publish")
		return nil
	}

	dbClient, err := p.Database(ctx)
	if err != nil {
		return err
	}
	if err := migrate.MaybeRunDev(ctx, p.Config, p.Logger, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	pubsubClient, err := p.PubSub(ctx)
	if err != nil {
		return err
	}
	routes, err := registry.NewRoutes(p.Config.PubSub)
	if err != nil {
		return fmt.Errorf("event routes: %w", err)
	}

	relay, err := NewRelay(RelayParams{
		Outbox:      p.Config.Outbox,
		Logger:      p.Logger,
		DB:          dbClient,
		PubSub:      pubsubClient,
		Events:      outbox.NewRepository(dbClient.DB()),
		DeadLetters: outbox.NewDLQRepository(dbClient.DB()),
		Resolver:    routes,
		Metrics:     metrics.NewOutboxMetrics(p.Registry),
	})
	if err != nil {
		return err
	}

	p.ServeMetrics(ctx)
	return relay.Run(ctx)
}
