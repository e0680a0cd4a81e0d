package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/0111v/projeto-faculdade/internal/products"
	"github.com/0111v/projeto-faculdade/pkg/db/models"
	"github.com/0111v/projeto-faculdade/pkg/enums"
)

// OrderDTO is an order with its nested items.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	CustomerName    string            `json:"customer_name"`
	CustomerPhone   string            `json:"customer_phone"`
	CustomerAddress string            `json:"customer_address"`
	TotalPrice      json.Number       `json:"total_price"`
	Status          enums.OrderStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []OrderItemDTO    `json:"items"`
}

// OrderItemDTO snapshots one purchased line. ProductID is null once the product is deleted.
type OrderItemDTO struct {
	ID          uuid.UUID   `json:"id"`
	ProductID   *uuid.UUID  `json:"product_id"`
	ProductName string      `json:"product_name"`
	Quantity    int         `json:"quantity"`
	PriceAtTime json.Number `json:"price_at_time"`
	Subtotal    json.Number `json:"subtotal"`
}

// NewOrderDTO maps an order row and its loaded items.
func NewOrderDTO(o models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			PriceAtTime: products.Money(item.PriceAtTime),
			Subtotal:    products.Money(item.PriceAtTime.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)),
		})
	}
	return OrderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		CustomerAddress: o.CustomerAddress,
		TotalPrice:      products.Money(o.TotalPrice),
		Status:          o.Status,
		CreatedAt:       o.CreatedAt,
		Items:           items,
	}
}

func newOrderDTOs(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewOrderDTO(row))
	}
	return out
}
