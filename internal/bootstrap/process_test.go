package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0111v/projeto-faculdade/pkg/config"
	"github.com/0111v/projeto-faculdade/pkg/logger"
)

func testProcess(out *bytes.Buffer) *Process {
	return &Process{
		Name:   "test",
		Config: &config.Config{},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: out}),
	}
}

func TestStartReturnsLoadError(t *testing.T) {
	boom := errors.New("missing STOREFRONT_JWT_SECRET")
	p, err := start("api", func() (*config.Config, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, p)
}

func TestStartBuildsProcess(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.LogLevel = "debug"
	p, err := start("worker", func() (*config.Config, error) { return cfg, nil })
	require.NoError(t, err)
	assert.Equal(t, "worker", p.Name)
	assert.Same(t, cfg, p.Config)
	assert.NotNil(t, p.Registry)
}

func TestCloseRunsNewestFirstAndCombinesErrors(t *testing.T) {
	var out bytes.Buffer
	p := testProcess(&out)

	var order []string
	p.track("database", func() error { order = append(order, "database"); return errors.New("db busy") })
	p.track("redis", func() error { order = append(order, "redis"); return nil })
	p.track("pubsub", func() error { order = append(order, "pubsub"); return errors.New("stream open") })

	err := p.Close()
	require.Error(t, err)
	assert.Equal(t, []string{"pubsub", "redis", "database"}, order)
	assert.Contains(t, err.Error(), "close pubsub: stream open")
	assert.Contains(t, err.Error(), "close database: db busy")
	assert.Contains(t, out.String(), "error closing pubsub")

	assert.NoError(t, p.Close(), "closers run once")
}

func TestRunExitCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"clean", nil, 0},
		{"cancelled", context.Canceled, 0},
		{"failure", errors.New("listen tcp: address in use"), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			p := testProcess(&out)
			closed := false
			p.track("redis", func() error { closed = true; return nil })

			code := p.Run(func(ctx context.Context, got *Process) error {
				assert.Same(t, p, got)
				return tc.err
			})
			assert.Equal(t, tc.want, code)
			assert.True(t, closed)
		})
	}
}
