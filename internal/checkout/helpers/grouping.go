package helpers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/0111v/projeto-faculdade/pkg/db/models"
)

// ComputeTotal sums price × quantity over the cart lines at current prices.
// Prices are rounded to cents first so the total always equals the sum of the
// order item subtotals built by BuildOrderItems.
func ComputeTotal(lines []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		if line.Product == nil {
			continue
		}
		total = total.Add(line.Product.Price.Round(2).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total.Round(2)
}

// BuildOrderItems snapshots the cart lines as order items of orderID.
func BuildOrderItems(orderID uuid.UUID, lines []models.CartItem) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		if line.Product == nil {
			continue
		}
		productID := line.ProductID
		items = append(items, models.OrderItem{
			OrderID:     orderID,
			ProductID:   &productID,
			ProductName: line.Product.Name,
			Quantity:    line.Quantity,
			PriceAtTime: line.Product.Price.Round(2),
		})
	}
	return items
}
