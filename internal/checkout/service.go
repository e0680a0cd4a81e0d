package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/0111v/projeto-faculdade/internal/cart"
	"github.com/0111v/projeto-faculdade/internal/checkout/helpers"
	"github.com/0111v/projeto-faculdade/internal/checkout/reservation"
	"github.com/0111v/projeto-faculdade/internal/orders"
	"github.com/0111v/projeto-faculdade/pkg/db"
	"github.com/0111v/projeto-faculdade/pkg/db/models"
	"github.com/0111v/projeto-faculdade/pkg/enums"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
	"github.com/0111v/projeto-faculdade/pkg/logger"
	"github.com/0111v/projeto-faculdade/pkg/metrics"
	"github.com/0111v/projeto-faculdade/pkg/outbox"
	"github.com/0111v/projeto-faculdade/pkg/outbox/payloads"
)

const itemsSavePoint = "checkout_order_items"

// CustomerInfo is the delivery snapshot copied onto the order.
type CustomerInfo struct {
	Name    string `json:"customer_name" validate:"required"`
	Phone   string `json:"customer_phone" validate:"required"`
	Address string `json:"customer_address" validate:"required"`
}

// Service converts the caller's cart into an order.
type Service interface {
	CreateOrderFromCart(ctx context.Context, userID uuid.UUID, role enums.UserRole, info CustomerInfo) (*orders.OrderDTO, error)
}

type stockDecrementer interface {
	Decrement(ctx context.Context, tx *gorm.DB, requests []reservation.StockDecrementRequest) error
}

type guardedDecrement struct{}

func (guardedDecrement) Decrement(ctx context.Context, tx *gorm.DB, requests []reservation.StockDecrementRequest) error {
	return reservation.DecrementStock(ctx, tx, requests)
}

type cartClearer interface {
	Clear(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ServiceParams bundles the checkout dependencies. Emitter, Metrics and Logger are optional.
type ServiceParams struct {
	DB         db.TxRunner
	CartRepo   *cart.Repository
	OrdersRepo orders.Repository
	Emitter    outbox.Emitter
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
}

type service struct {
	tx      db.TxRunner
	cart    *cart.Repository
	clearer cartClearer
	orders  orders.Repository
	stock   stockDecrementer
	emitter outbox.Emitter
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{
		tx:      params.DB,
		cart:    params.CartRepo,
		clearer: params.CartRepo,
		orders:  params.OrdersRepo,
		stock:   guardedDecrement{},
		emitter: params.Emitter,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// run carries one checkout through its states.
type run struct {
	userID uuid.UUID
	role   enums.UserRole
	info   CustomerInfo
	state  State
	order  *models.Order
}

func (r *run) advance() {
	r.state = r.state.Next()
}

func (s *service) CreateOrderFromCart(ctx context.Context, userID uuid.UUID, role enums.UserRole, info CustomerInfo) (*orders.OrderDTO, error) {
	started := s.now()
	if !role.IsValid() {
		role = enums.UserRoleCustomer
	}
	r := &run{userID: userID, role: role, state: StateInit}

	order, err := s.execute(ctx, r, info)
	outcome := outcomeFor(err)
	s.metrics.Observe(outcome, s.now().Sub(started))
	if err != nil {
		s.logFailure(ctx, r, outcome, err)
		return nil, err
	}
	dto := orders.NewOrderDTO(*order)
	return &dto, nil
}

func (s *service) execute(ctx context.Context, r *run, info CustomerInfo) (*models.Order, error) {
	if r.userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	name, phone, address, err := helpers.ValidateCustomerInfo(info.Name, info.Phone, info.Address)
	if err != nil {
		return nil, err
	}
	r.info = CustomerInfo{Name: name, Phone: phone, Address: address}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.persist(ctx, tx, r)
	})
	if err != nil {
		return nil, err
	}

	s.clearCart(ctx, r)
	r.state = StateDone

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":    r.order.ID.String(),
			"user_id":     r.userID.String(),
			"total_price": r.order.TotalPrice.StringFixed(2),
			"items":       len(r.order.Items),
		})
		s.logg.Info(logCtx, "checkout.completed")
	}
	return r.order, nil
}

// persist runs every write of the checkout inside tx.
func (s *service) persist(ctx context.Context, tx *gorm.DB, r *run) error {
	cartRepo := s.cart.WithTx(tx)
	ordersRepo := s.orders.WithTx(tx)

	lines, err := cartRepo.ListByUser(ctx, r.userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	r.advance()

	if violations := helpers.StockViolations(lines); len(violations) > 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, helpers.InsufficientStockSummary(violations)).
			WithDetails(map[string]any{"items": violations})
	}
	r.advance()

	order := &models.Order{
		UserID:          r.userID,
		CustomerName:    r.info.Name,
		CustomerPhone:   r.info.Phone,
		CustomerAddress: r.info.Address,
		TotalPrice:      helpers.ComputeTotal(lines),
		Status:          enums.OrderStatusCompleted,
	}
	if err := ordersRepo.CreateOrder(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
	}
	r.order = order
	r.advance()

	items := helpers.BuildOrderItems(order.ID, lines)
	if err := s.persistItems(ctx, tx, ordersRepo, order.ID, items); err != nil {
		return err
	}
	order.Items = items
	r.advance()

	requests := make([]reservation.StockDecrementRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, reservation.StockDecrementRequest{
			ProductID:   *item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
		})
	}
	if err := s.stock.Decrement(ctx, tx, requests); err != nil {
		var race *reservation.StockRaceError
		if errors.As(err, &race) {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock,
				fmt.Sprintf("%s: insufficient stock (requested: %d)", race.ProductName, race.Requested)).
				WithDetails(map[string]any{"product_id": race.ProductID.String()})
		}
		return pkgerrors.Wrap(pkgerrors.CodeStockSyncFailed, err, "stock update failed")
	}
	r.advance()

	return s.emitOrderCompleted(ctx, tx, order, r.role)
}

// persistItems inserts the order items. On failure the partial writes are
// rolled back to a savepoint and the order row is deleted explicitly.
func (s *service) persistItems(ctx context.Context, tx *gorm.DB, repo orders.Repository, orderID uuid.UUID, items []models.OrderItem) error {
	if err := tx.SavePoint(itemsSavePoint).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: savepoint")
	}
	insertErr := repo.CreateItems(ctx, items)
	if insertErr == nil {
		return nil
	}

	compensation := multierr.Combine(
		tx.RollbackTo(itemsSavePoint).Error,
		repo.DeleteItems(ctx, orderID),
		repo.DeleteOrder(ctx, orderID),
	)
	if compensation != nil && s.logg != nil {
		logCtx := s.logg.WithField(ctx, "order_id", orderID.String())
		s.logg.Error(logCtx, "checkout.compensation_failed", compensation)
	}
	return pkgerrors.Wrap(pkgerrors.CodeOrderItemsFailed, multierr.Append(insertErr, compensation), "failed to create order items")
}

func (s *service) emitOrderCompleted(ctx context.Context, tx *gorm.DB, order *models.Order, role enums.UserRole) error {
	if s.emitter == nil {
		return nil
	}
	lineItems := make([]payloads.OrderCompletedLineItem, 0, len(order.Items))
	for _, item := range order.Items {
		lineItems = append(lineItems, payloads.OrderCompletedLineItem{
			ProductID:   *item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime,
		})
	}
	err := s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Role: role.String()},
		Data: payloads.OrderCompletedEvent{
			OrderID:    order.ID,
			UserID:     order.UserID,
			TotalPrice: order.TotalPrice,
			Items:      lineItems,
		},
		Version: 1,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order event")
	}
	return nil
}

// clearCart empties the caller's cart after commit. Failure leaves the order in place.
func (s *service) clearCart(ctx context.Context, r *run) {
	if _, err := s.clearer.Clear(ctx, r.userID); err != nil {
		s.metrics.IncCartClearFailed()
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id": r.order.ID.String(),
				"user_id":  r.userID.String(),
			})
			s.logg.Error(logCtx, "checkout.cart_clear_failed", err)
		}
		return
	}
	r.advance()
}

func (s *service) logFailure(ctx context.Context, r *run, outcome string, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id": r.userID.String(),
		"state":   string(r.state),
		"outcome": outcome,
	})
	switch outcome {
	case metrics.OutcomeStockSyncFailed, metrics.OutcomeOrderItemsFailed, metrics.OutcomeError:
		s.logg.Error(logCtx, "checkout.failed", err)
	default:
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "checkout.rejected")
	}
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.OutcomeError
	}
	switch typed.Code() {
	case pkgerrors.CodeUnauthorized:
		return metrics.OutcomeUnauthenticated
	case pkgerrors.CodeValidation:
		return metrics.OutcomeValidation
	case pkgerrors.CodeEmptyCart:
		return metrics.OutcomeEmptyCart
	case pkgerrors.CodeInsufficientStock:
		return metrics.OutcomeInsufficientStock
	case pkgerrors.CodeOrderItemsFailed:
		return metrics.OutcomeOrderItemsFailed
	case pkgerrors.CodeStockSyncFailed:
		return metrics.OutcomeStockSyncFailed
	case pkgerrors.CodeDependency:
		return metrics.OutcomeOrderFailed
	default:
		return metrics.OutcomeError
	}
}
