package cart

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/0111v/projeto-faculdade/internal/products"
	"github.com/0111v/projeto-faculdade/pkg/db/models"
)

// AddItemInput is the merge-add payload. Quantity defaults to 1.
type AddItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  *int      `json:"quantity,omitempty" validate:"omitempty,gt=0"`
}

// UpdateItemInput overwrites a line quantity.
type UpdateItemInput struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// ItemDTO is one cart line with the current product snapshot.
type ItemDTO struct {
	ID        uuid.UUID            `json:"id"`
	ProductID uuid.UUID            `json:"product_id"`
	Quantity  int                  `json:"quantity"`
	Product   *products.ProductDTO `json:"product,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// CartDTO lists the caller's lines with an indicative total at current prices.
type CartDTO struct {
	Items    []ItemDTO   `json:"items"`
	Subtotal json.Number `json:"subtotal"`
}

// NewItemDTO maps a cart row. Product is included when it was loaded.
func NewItemDTO(item models.CartItem) ItemDTO {
	dto := ItemDTO{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
	if item.Product != nil && item.Product.ID != uuid.Nil {
		p := products.NewProductDTO(*item.Product)
		dto.Product = &p
	}
	return dto
}

func newCartDTO(rows []models.CartItem) CartDTO {
	items := make([]ItemDTO, 0, len(rows))
	subtotal := decimal.Zero
	for _, row := range rows {
		items = append(items, NewItemDTO(row))
		if row.Product != nil {
			subtotal = subtotal.Add(row.Product.Price.Mul(decimal.NewFromInt(int64(row.Quantity))))
		}
	}
	return CartDTO{
		Items:    items,
		Subtotal: products.Money(subtotal.Round(2)),
	}
}
