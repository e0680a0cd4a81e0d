package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/0111v/projeto-faculdade/pkg/db/models"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
	"github.com/0111v/projeto-faculdade/pkg/logger"
)

const defaultAddQuantity = 1

// Service manages the caller's cart. Every operation is scoped to userID.
type Service interface {
	Add(ctx context.Context, userID uuid.UUID, input AddItemInput) (*ItemDTO, error)
	Update(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*ItemDTO, error)
	Delete(ctx context.Context, userID, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
}

type productLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type service struct {
	repo     *Repository
	products productLookup
	logg     *logger.Logger
}

// NewService wires the cart service.
func NewService(repo *Repository, products productLookup, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	return &service{repo: repo, products: products, logg: logg}, nil
}

func (s *service) Add(ctx context.Context, userID uuid.UUID, input AddItemInput) (*ItemDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	quantity := defaultAddQuantity
	if input.Quantity != nil {
		quantity = *input.Quantity
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"product_id": "is required"})
	}

	if _, err := s.products.FindByID(ctx, input.ProductID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	item, err := s.repo.Upsert(ctx, userID, input.ProductID, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: upsert cart item")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"cart_item_id": item.ID.String(),
			"product_id":   item.ProductID.String(),
			"quantity":     item.Quantity,
		})
		s.logg.Debug(logCtx, "cart.item_added")
	}
	dto := NewItemDTO(*item)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*ItemDTO, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateQuantity(ctx, userID, itemID, quantity); err != nil {
		return nil, notFoundOr(err, "db: update cart item")
	}
	item, err := s.repo.FindForUser(ctx, userID, itemID)
	if err != nil {
		return nil, notFoundOr(err, "load cart item")
	}
	dto := NewItemDTO(*item)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, userID, itemID uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, itemID); err != nil {
		return notFoundOr(err, "db: delete cart item")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.repo.Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: clear cart")
	}
	return nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	dto := newCartDTO(rows)
	return &dto, nil
}

func validateQuantity(quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"quantity": "must be a positive integer"})
	}
	return nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
