package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/0111v/projeto-faculdade/api/routes"
	"github.com/0111v/projeto-faculdade/internal/auth"
	"github.com/0111v/projeto-faculdade/internal/bootstrap"
	"github.com/0111v/projeto-faculdade/internal/cart"
	"github.com/0111v/projeto-faculdade/internal/checkout"
	"github.com/0111v/projeto-faculdade/internal/media"
	"github.com/0111v/projeto-faculdade/internal/orders"
	"github.com/0111v/projeto-faculdade/internal/products"
	"github.com/0111v/projeto-faculdade/internal/users"
	"github.com/0111v/projeto-faculdade/pkg/auth/session"
	"github.com/0111v/projeto-faculdade/pkg/metrics"
	"github.com/0111v/projeto-faculdade/pkg/migrate"
	"github.com/0111v/projeto-faculdade/pkg/outbox"
	"github.com/0111v/projeto-faculdade/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	bootstrap.Main("api", run)
}

// listenAddr prefers the platform-assigned PORT over the configured one.
func listenAddr(configured string) string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":" + configured
}

func run(ctx context.Context, p *bootstrap.Process) error {
	cfg, logg := p.Config, p.Logger

	dbClient, err := p.Database(ctx)
	if err != nil {
		return err
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}
	redisClient, err := p.Redis(ctx)
	if err != nil {
		return err
	}

	sessions, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}
	userRepo := users.NewRepository(dbClient.DB())
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	var mediaService media.Service
	if cfg.FeatureFlags.ImageUploads {
		bucket, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			return fmt.Errorf("bootstrap gcs: %w", err)
		}
		if mediaService, err = media.NewService(bucket, cfg.Media, logg); err != nil {
			return err
		}
	} else {
		logg.Warn(ctx, "image uploads disabled")
	}

	var emitter outbox.Emitter
	if cfg.FeatureFlags.OutboxEnabled {
		emitter = outbox.NewWriter(outbox.NewRepository(dbClient.DB()), logg)
	}

	p.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	productRepo := products.NewRepository(dbClient.DB())
	productService, err := products.NewService(productRepo, dbClient, emitter, mediaService, logg)
	if err != nil {
		return err
	}
	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(cartRepo, productRepo, logg)
	if err != nil {
		return err
	}
	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(ordersRepo)
	if err != nil {
		return err
	}
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		DB:         dbClient,
		CartRepo:   cartRepo,
		OrdersRepo: ordersRepo,
		Emitter:    emitter,
		Metrics:    metrics.NewCheckoutMetrics(p.Registry),
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr: listenAddr(cfg.App.Port),
		Handler: routes.NewRouter(routes.Params{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Sessions:    sessions,
			Profiles:    userRepo,
			Auth:        authService,
			Products:    productService,
			Media:       mediaService,
			Cart:        cartService,
			Orders:      ordersService,
			Checkout:    checkoutService,
			HTTPMetrics: metrics.NewHTTPMetrics(p.Registry),
			Gatherer:    p.Registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(logg.WithField(ctx, "addr", server.Addr), server)
}

// serve runs server until ctx ends, then drains in-flight requests.
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
