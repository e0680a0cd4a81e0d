package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/0111v/projeto-faculdade/pkg/logger"
)

const heartbeatInterval = 30 * time.Second

type pinger interface {
	Ping(context.Context) error
}

type runner interface {
	Run(context.Context) error
}

// dependency is a backing service that must answer before consumers start.
type dependency struct {
	name string
	ping pinger
}

type ServiceParams struct {
	Logger    *logger.Logger
	DB        pinger
	Redis     pinger
	PubSub    pinger
	Consumers map[string]runner
	Heartbeat time.Duration
}

// Service checks the worker's dependencies once, then runs every consumer
// until one of them fails or the context ends.
type Service struct {
	logg      *logger.Logger
	deps      []dependency
	consumers map[string]runner
	heartbeat time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	deps := []dependency{
		{name: "database", ping: params.DB},
		{name: "redis", ping: params.Redis},
		{name: "pubsub", ping: params.PubSub},
	}
	for _, dep := range deps {
		if dep.ping == nil {
			return nil, fmt.Errorf("%s client is required", dep.name)
		}
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	heartbeat := params.Heartbeat
	if heartbeat <= 0 {
		heartbeat = heartbeatInterval
	}
	return &Service{logg: params.Logger, deps: deps, consumers: params.Consumers, heartbeat: heartbeat}, nil
}

func (s *Service) ready(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.ping.Ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", dep.name), "worker.dependency_unavailable", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

// Run blocks until the context is cancelled or a consumer returns.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	group, gctx := errgroup.WithContext(ctx)
	for name, consumer := range s.consumers {
		group.Go(func() error {
			err := consumer.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(s.logg.WithField(gctx, "consumer", name), "worker.consumer_stopped", err)
				return fmt.Errorf("%s consumer: %w", name, err)
			}
			if err == nil && gctx.Err() == nil {
				return fmt.Errorf("%s consumer exited", name)
			}
			return context.Canceled
		})
	}
	group.Go(func() error {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				s.logg.Debug(gctx, "worker.heartbeat")
			}
		}
	})
	return group.Wait()
}
