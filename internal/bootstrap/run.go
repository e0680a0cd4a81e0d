package bootstrap

import (
	"context"
	"errors"
	"os"
)

// Main starts the named process, hands it to run and exits non-zero when run
// fails for any reason other than shutdown.
func Main(name string, run func(ctx context.Context, p *Process) error) {
	p, err := Start(name)
	if err != nil {
		os.Exit(1)
	}
	os.Exit(p.Run(run))
}

// Run executes fn under the signal context and returns the process exit code.
func (p *Process) Run(fn func(ctx context.Context, p *Process) error) int {
	ctx, stop := p.Context()
	defer stop()

	p.Logger.Info(ctx, "starting "+p.Name)
	err := fn(ctx, p)
	_ = p.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		p.Logger.Error(ctx, p.Name+" stopped unexpectedly", err)
		return 1
	}
	p.Logger.Info(ctx, p.Name+" shut down gracefully")
	return 0
}
