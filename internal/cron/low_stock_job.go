package cron

import (
	"context"
	"fmt"

	"github.com/0111v/projeto-faculdade/pkg/logger"
	"github.com/0111v/projeto-faculdade/pkg/metrics"
)

type stockCounter interface {
	StockLevels(ctx context.Context, threshold int) (low int64, out int64, err error)
}

type LowStockJobParams struct {
	Logger    *logger.Logger
	Products  stockCounter
	Metrics   *metrics.InventoryMetrics
	Threshold int
}

// NewLowStockJob refreshes the stock level gauges and warns while anything is sold out.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product counter required")
	}
	if params.Threshold < 0 {
		return nil, fmt.Errorf("threshold must not be negative")
	}
	return &lowStockJob{
		logg:      params.Logger,
		products:  params.Products,
		metrics:   params.Metrics,
		threshold: params.Threshold,
	}, nil
}

type lowStockJob struct {
	logg      *logger.Logger
	products  stockCounter
	metrics   *metrics.InventoryMetrics
	threshold int
}

func (j *lowStockJob) Name() string { return "low-stock-sweep" }

func (j *lowStockJob) Run(ctx context.Context) error {
	low, out, err := j.products.StockLevels(ctx, j.threshold)
	if err != nil {
		return fmt.Errorf("count stock levels: %w", err)
	}
	j.metrics.SetStockLevels(low, out)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"threshold":    j.threshold,
		"low_stock":    low,
		"out_of_stock": out,
	})
	if out > 0 {
		j.logg.Warn(logCtx, "cron.products_out_of_stock")
		return nil
	}
	j.logg.Info(logCtx, "cron.stock_sweep")
	return nil
}
