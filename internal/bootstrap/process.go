// Package bootstrap holds the startup sequence shared by every binary: load
// .env and config, build the logger, open the backing clients and close them
// again in reverse order on the way out.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/0111v/projeto-faculdade/pkg/config"
	"github.com/0111v/projeto-faculdade/pkg/db"
	"github.com/0111v/projeto-faculdade/pkg/instance"
	"github.com/0111v/projeto-faculdade/pkg/logger"
	"github.com/0111v/projeto-faculdade/pkg/metrics"
	"github.com/0111v/projeto-faculdade/pkg/pubsub"
	"github.com/0111v/projeto-faculdade/pkg/redis"
)

type closer struct {
	name  string
	close func() error
}

// Process is one running binary.
type Process struct {
	Name     string
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry

	closers []closer
}

// Start reads the environment and returns a process with a logger configured
// from it. Failures are logged before being returned.
func Start(name string) (*Process, error) {
	return start(name, config.Load)
}

func start(name string, load func() (*config.Config, error)) (*Process, error) {
	logg := logger.New(logger.Options{ServiceName: name})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		return nil, err
	}

	return &Process{
		Name:   name,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: name,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			Format:      cfg.App.LogFormat,
			WarnStack:   cfg.App.LogWarnStack,
		}),
		Registry: prometheus.NewRegistry(),
	}, nil
}

// Context is cancelled on SIGINT or SIGTERM and carries the fields every log
// line of the process shares.
func (p *Process) Context() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = p.Logger.WithFields(ctx, map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Name,
		"instance":    instance.GetID(),
	})
	return ctx, stop
}

func (p *Process) track(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, close: fn})
}

// Database opens Postgres (or sqlite) and schedules it for Close.
func (p *Process) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	p.track("database", client.Close)
	return client, nil
}

func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	p.track("redis", client.Close)
	return client, nil
}

func (p *Process) PubSub(ctx context.Context) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap pubsub: %w", err)
	}
	p.track("pubsub", client.Close)
	return client, nil
}

// ServeMetrics exposes the process registry on App.MetricsAddr until ctx ends.
func (p *Process) ServeMetrics(ctx context.Context) {
	go func() {
		if err := metrics.Serve(ctx, p.Config.App.MetricsAddr, p.Registry, p.Logger); err != nil {
			p.Logger.Error(ctx, "metrics listener stopped", err)
		}
	}()
}

// Close releases every tracked client, newest first.
func (p *Process) Close() error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.close(); err != nil {
			p.Logger.Error(context.Background(), "error closing "+c.name, err)
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	p.closers = nil
	return errs
}
