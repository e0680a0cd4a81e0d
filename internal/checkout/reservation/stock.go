package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/0111v/projeto-faculdade/pkg/db/models"
)

// StockDecrementRequest asks for quantity units of a product.
type StockDecrementRequest struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
}

// ErrStockRace is returned when a guarded decrement matched no row because
// another writer consumed the stock first.
var ErrStockRace = errors.New("stock changed concurrently")

// StockRaceError names the product whose guarded decrement lost the race.
type StockRaceError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int
}

func (e *StockRaceError) Error() string {
	return fmt.Sprintf("%s: %s (requested: %d)", e.ProductName, ErrStockRace, e.Requested)
}

func (e *StockRaceError) Unwrap() error {
	return ErrStockRace
}

// DecrementStock subtracts each request from products.quantity inside tx. The
// update only applies while quantity >= requested, so stock never goes negative.
func DecrementStock(ctx context.Context, tx *gorm.DB, requests []StockDecrementRequest) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	now := time.Now().UTC()
	for _, req := range requests {
		if req.Quantity <= 0 {
			return fmt.Errorf("invalid decrement of %d for product %s", req.Quantity, req.ProductID)
		}
		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND quantity >= ?", req.ProductID, req.Quantity).
			Updates(map[string]any{
				"quantity":   gorm.Expr("quantity - ?", req.Quantity),
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("decrement product %s: %w", req.ProductID, res.Error)
		}
		if res.RowsAffected == 0 {
			return &StockRaceError{
				ProductID:   req.ProductID,
				ProductName: req.ProductName,
				Requested:   req.Quantity,
			}
		}
	}
	return nil
}
