package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0111v/projeto-faculdade/pkg/logger"
)

type stubPinger struct {
	err   error
	calls int
}

func (s *stubPinger) Ping(context.Context) error {
	s.calls++
	return s.err
}

type runFunc func(context.Context) error

func (f runFunc) Run(ctx context.Context) error { return f(ctx) }

func newTestService(t *testing.T, redis *stubPinger, consumers map[string]runner) (*Service, *stubPinger) {
	t.Helper()
	ps := &stubPinger{}
	svc, err := NewService(ServiceParams{
		Logger:    logger.Nop(),
		DB:        &stubPinger{},
		Redis:     redis,
		PubSub:    ps,
		Consumers: consumers,
		Heartbeat: time.Millisecond,
	})
	require.NoError(t, err)
	return svc, ps
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.Nop(), DB: &stubPinger{}})
	assert.EqualError(t, err, "redis client is required")

	_, err = NewService(ServiceParams{Logger: logger.Nop(), DB: &stubPinger{}, Redis: &stubPinger{}, PubSub: &stubPinger{}})
	assert.EqualError(t, err, "at least one consumer is required")
}

func TestRunStopsWhenReadinessFails(t *testing.T) {
	ran := false
	svc, ps := newTestService(t, &stubPinger{err: errors.New("refused")}, map[string]runner{
		"inventory": runFunc(func(context.Context) error { ran = true; return nil }),
	})

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
	assert.Zero(t, ps.calls)
	assert.False(t, ran)
}

func TestRunReturnsConsumerError(t *testing.T) {
	boom := errors.New("subscription gone")
	svc, _ := newTestService(t, &stubPinger{}, map[string]runner{
		"inventory": runFunc(func(context.Context) error { return boom }),
	})

	err := svc.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "inventory consumer")
}

func TestRunTreatsEarlyCleanExitAsFailure(t *testing.T) {
	svc, _ := newTestService(t, &stubPinger{}, map[string]runner{
		"inventory": runFunc(func(context.Context) error { return nil }),
	})
	assert.EqualError(t, svc.Run(context.Background()), "inventory consumer exited")
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc, _ := newTestService(t, &stubPinger{}, map[string]runner{
		"inventory": runFunc(func(ctx context.Context) error {
			cancel()
			<-ctx.Done()
			return nil
		}),
	})
	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
}
