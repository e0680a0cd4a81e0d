package metrics

import "github.com/prometheus/client_golang/prometheus"

// InventoryMetrics counts low stock alerts raised by the worker.
type InventoryMetrics struct {
	lowStock   *prometheus.CounterVec
	stockLevel *prometheus.GaugeVec
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	lowStock := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "low_stock_alerts_total",
		Help:      "Products that reached the low stock threshold after a purchase.",
	}, []string{"level"})
	stockLevel := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "products_stock_level",
		Help:      "Products currently low or out of stock, refreshed by the maintenance sweep.",
	}, []string{"level"})
	reg.MustRegister(lowStock, stockLevel)
	return &InventoryMetrics{lowStock: lowStock, stockLevel: stockLevel}
}

// IncLowStock counts one alert. level is "low" or "out".
func (i *InventoryMetrics) IncLowStock(level string) {
	if i == nil || i.lowStock == nil {
		return
	}
	i.lowStock.WithLabelValues(normalizeLabel(level)).Inc()
}

// SetStockLevels publishes the latest sweep counts.
func (i *InventoryMetrics) SetStockLevels(low, out int64) {
	if i == nil || i.stockLevel == nil {
		return
	}
	i.stockLevel.WithLabelValues("low").Set(float64(low))
	i.stockLevel.WithLabelValues("out").Set(float64(out))
}
