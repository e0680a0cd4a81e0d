package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCompletedEvent is emitted once a checkout commits.
type OrderCompletedEvent struct {
	OrderID    uuid.UUID                `json:"order_id"`
	UserID     uuid.UUID                `json:"user_id"`
	TotalPrice decimal.Decimal          `json:"total_price"`
	Items      []OrderCompletedLineItem `json:"items"`
}

// OrderCompletedLineItem mirrors one order_items row.
type OrderCompletedLineItem struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
}

// ProductDeletedEvent is emitted when an admin removes a catalog entry.
type ProductDeletedEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	ImageURL  *string   `json:"image_url,omitempty"`
}
