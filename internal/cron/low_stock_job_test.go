package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/0111v/projeto-faculdade/pkg/metrics"
)

type fakeStockCounter struct {
	low, out  int64
	err       error
	threshold int
}

func (f *fakeStockCounter) StockLevels(ctx context.Context, threshold int) (int64, int64, error) {
	f.threshold = threshold
	return f.low, f.out, f.err
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, level string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "storefront_products_stock_level" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "level" && l.GetValue() == level {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("gauge level=%s not found", level)
	return 0
}

func TestLowStockJobPublishesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := &fakeStockCounter{low: 4, out: 1}
	job, err := NewLowStockJob(LowStockJobParams{
		Logger:    testLogger(),
		Products:  counter,
		Metrics:   metrics.NewInventoryMetrics(reg),
		Threshold: 5,
	})
	if err != nil {
		t.Fatalf("NewLowStockJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if counter.threshold != 5 {
		t.Fatalf("expected threshold 5, got %d", counter.threshold)
	}
	if got := gaugeValue(t, reg, "low"); got != 4 {
		t.Fatalf("expected low=4, got %f", got)
	}
	if got := gaugeValue(t, reg, "out"); got != 1 {
		t.Fatalf("expected out=1, got %f", got)
	}
}

func TestLowStockJobPropagatesError(t *testing.T) {
	job, err := NewLowStockJob(LowStockJobParams{
		Logger:   testLogger(),
		Products: &fakeStockCounter{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("NewLowStockJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewLowStockJobValidates(t *testing.T) {
	if _, err := NewLowStockJob(LowStockJobParams{Products: &fakeStockCounter{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewLowStockJob(LowStockJobParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected products error")
	}
	if _, err := NewLowStockJob(LowStockJobParams{Logger: testLogger(), Products: &fakeStockCounter{}, Threshold: -1}); err == nil {
		t.Fatal("expected threshold error")
	}
}
