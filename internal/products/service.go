package products

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/0111v/projeto-faculdade/pkg/db"
	"github.com/0111v/projeto-faculdade/pkg/db/models"
	"github.com/0111v/projeto-faculdade/pkg/enums"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
	"github.com/0111v/projeto-faculdade/pkg/logger"
	"github.com/0111v/projeto-faculdade/pkg/outbox"
	"github.com/0111v/projeto-faculdade/pkg/outbox/payloads"
)

// Service exposes catalog reads and admin product management.
type Service interface {
	List(ctx context.Context) ([]ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, actor *outbox.ActorRef, id uuid.UUID) error
}

// CreateProductInput holds the payload to create a product.
type CreateProductInput struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
	ImageURL *string
}

// UpdateProductInput holds optional mutation values. At least one must be set.
type UpdateProductInput struct {
	Name     *string
	Price    *decimal.Decimal
	Quantity *int
	ImageURL NullableString
}

type imageRemover interface {
	DeleteByURL(ctx context.Context, imageURL string) error
}

type service struct {
	repo     *Repository
	dbClient db.TxRunner
	emitter  outbox.Emitter
	images   imageRemover
	logg     *logger.Logger
}

// NewService constructs the catalog service. emitter and images may be nil.
func NewService(repo *Repository, dbClient db.TxRunner, emitter outbox.Emitter, images imageRemover, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{
		repo:     repo,
		dbClient: dbClient,
		emitter:  emitter,
		images:   images,
		logg:     logg,
	}, nil
}

func (s *service) List(ctx context.Context) ([]ProductDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewProductDTO(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load product")
	}
	dto := NewProductDTO(*product)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	details := map[string]string{}
	if name == "" {
		details["name"] = "is required"
	}
	if input.Price.IsNegative() {
		details["price"] = "must be non-negative"
	}
	if input.Quantity < 0 {
		details["quantity"] = "must be a non-negative integer"
	}
	imageURL, err := normalizeImageURL(input.ImageURL)
	if err != nil {
		details["image_url"] = err.Error()
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}

	product := &models.Product{
		Name:     name,
		Price:    input.Price.Round(2),
		Quantity: input.Quantity,
		ImageURL: imageURL,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
	}

	created, err := s.repo.FindByID(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	dto := NewProductDTO(*created)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	updates, err := buildUpdates(input)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, notFoundOr(err, "db: update product")
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, actor *outbox.ActorRef, id uuid.UUID) error {
	var deleted models.Product
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		product, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := txRepo.Delete(ctx, id); err != nil {
			return err
		}
		deleted = *product

		if s.emitter == nil {
			return nil
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductDeleted,
			AggregateType: enums.AggregateProduct,
			AggregateID:   product.ID,
			Actor:         actor,
			Data: payloads.ProductDeletedEvent{
				ProductID: product.ID,
				Name:      product.Name,
				ImageURL:  product.ImageURL,
			},
		})
	})
	if err != nil {
		return notFoundOr(err, "delete product")
	}

	if deleted.ImageURL != nil && s.images != nil {
		if err := s.images.DeleteByURL(ctx, *deleted.ImageURL); err != nil && s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"product_id": deleted.ID.String(),
				"image_url":  *deleted.ImageURL,
				"error":      err.Error(),
			})
			s.logg.Warn(logCtx, "product.image_delete_failed")
		}
	}
	return nil
}

func buildUpdates(input UpdateProductInput) (map[string]any, error) {
	updates := map[string]any{}
	details := map[string]string{}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			details["name"] = "is required"
		}
		updates["name"] = name
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			details["price"] = "must be non-negative"
		}
		updates["price"] = input.Price.Round(2)
	}
	if input.Quantity != nil {
		if *input.Quantity < 0 {
			details["quantity"] = "must be a non-negative integer"
		}
		updates["quantity"] = *input.Quantity
	}
	if input.ImageURL.Set {
		imageURL, err := normalizeImageURL(input.ImageURL.Value)
		if err != nil {
			details["image_url"] = err.Error()
		}
		updates["image_url"] = imageURL
	}

	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one field must be provided")
	}
	return updates, nil
}

func normalizeImageURL(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}
	u, err := url.ParseRequestURI(trimmed)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.New("must be a valid URL")
	}
	return &trimmed, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
