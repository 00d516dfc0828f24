package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/isaacklow/supermart-backend/internal/cart"
	"github.com/isaacklow/supermart-backend/internal/catalog"
	"github.com/isaacklow/supermart-backend/internal/orders"
	"github.com/isaacklow/supermart-backend/internal/payments"
	"github.com/isaacklow/supermart-backend/pkg/db/models"
	"github.com/isaacklow/supermart-backend/pkg/enums"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
	"github.com/isaacklow/supermart-backend/pkg/logger"
	"github.com/isaacklow/supermart-backend/pkg/metrics"
	"github.com/isaacklow/supermart-backend/pkg/outbox"
	"github.com/isaacklow/supermart-backend/pkg/outbox/payloads"
)

var allowedBNPLMonths = map[int]struct{}{3: {}, 6: {}, 12: {}}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gatewayResolver interface {
	Resolve(method enums.PaymentMethod) (payments.Gateway, error)
}

type sessionStore interface {
	Save(ctx context.Context, session *PaymentSession) error
	Consume(ctx context.Context, token string) (*PaymentSession, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service orchestrates the two-phase checkout: Initiate opens a payment with
// a gateway and parks the cart snapshot in Redis; Finalize confirms the
// payment and writes the order in one transaction.
type Service interface {
	Initiate(ctx context.Context, userID uuid.UUID, input InitiateInput) (*InitiateResult, error)
	Finalize(ctx context.Context, userID uuid.UUID, token string) (*FinalizeResult, error)
}

type service struct {
	tx          txRunner
	cartRepo    *cart.Repository
	catalogRepo *catalog.Repository
	ordersRepo  *orders.Repository
	gateways    gatewayResolver
	sessions    sessionStore
	locker      distributedLocker
	outbox      outboxPublisher
	metrics     *metrics.CheckoutMetrics
	logg        *logger.Logger
	lockTTL     time.Duration

	owners *ownerLocks
}

// ServiceParams bundles the checkout service dependencies.
type ServiceParams struct {
	Tx          txRunner
	CartRepo    *cart.Repository
	CatalogRepo *catalog.Repository
	OrdersRepo  *orders.Repository
	Gateways    gatewayResolver
	Sessions    sessionStore
	Locker      distributedLocker
	Outbox      outboxPublisher
	Metrics     *metrics.CheckoutMetrics
	Logger      *logger.Logger
	LockTTL     time.Duration
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.CatalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateways == nil {
		return nil, fmt.Errorf("gateway resolver required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	lockTTL := params.LockTTL
	if lockTTL <= 0 {
		lockTTL = 15 * time.Second
	}
	return &service{
		tx:          params.Tx,
		cartRepo:    params.CartRepo,
		catalogRepo: params.CatalogRepo,
		ordersRepo:  params.OrdersRepo,
		gateways:    params.Gateways,
		sessions:    params.Sessions,
		locker:      params.Locker,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		logg:        params.Logger,
		lockTTL:     lockTTL,
		owners:      newOwnerLocks(),
	}, nil
}

// Initiate snapshots the selected cart lines, opens the payment with the
// chosen gateway, and parks the session in Redis under a fresh token. The
// cart itself is not touched; nothing is reserved until payment confirms.
func (s *service) Initiate(ctx context.Context, userID uuid.UUID, input InitiateInput) (*InitiateResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Currency.IsValid() {
		input.Currency = enums.CurrencySGD
	}
	if input.BNPLMonths != nil {
		if _, ok := allowedBNPLMonths[*input.BNPLMonths]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "bnpl term must be 3, 6, or 12 months")
		}
	}

	gateway, err := s.gateways.Resolve(input.Method)
	if err != nil {
		return nil, err
	}

	lines, err := s.selectedLines(ctx, userID, input.ItemIDs)
	if err != nil {
		return nil, err
	}

	sessionLines, total, err := s.snapshot(ctx, lines)
	if err != nil {
		return nil, err
	}
	if total.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}

	token := uuid.NewString()
	begin, err := gateway.Begin(ctx, payments.BeginRequest{
		Token:       token,
		Amount:      total,
		Currency:    input.Currency,
		Description: fmt.Sprintf("Supermart order (%d items)", len(sessionLines)),
	})
	if err != nil {
		return nil, err
	}

	session := &PaymentSession{
		Token:       token,
		UserID:      userID,
		Method:      input.Method,
		Currency:    input.Currency,
		BNPLMonths:  input.BNPLMonths,
		Lines:       sessionLines,
		Total:       total,
		ProviderRef: begin.ProviderRef,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}

	s.metrics.IncInitiated(string(input.Method))
	if s.logg != nil {
		logCtx := s.logg.WithCheckoutToken(s.logg.WithUserID(ctx, userID.String()), token)
		s.logg.Info(logCtx, "checkout session opened")
	}

	return &InitiateResult{
		Token:       token,
		Total:       total,
		Currency:    input.Currency,
		RedirectURL: begin.RedirectURL,
		QRCode:      begin.QRCode,
		ProviderRef: begin.ProviderRef,
	}, nil
}

// Finalize redeems the session token, asks the gateway whether the payment
// settled, and writes the order, its lines, the stock decrements, and the
// cart-row deletions in one transaction. Per-shopper locks make concurrent
// finalize calls produce exactly one order.
func (s *service) Finalize(ctx context.Context, userID uuid.UUID, token string) (*FinalizeResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout token is required")
	}

	release := s.owners.Acquire(userID)
	defer release()

	acquired, releaseRedis := acquireRedisLock(ctx, s.locker, userID, s.lockTTL)
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
	}
	defer releaseRedis()

	session, err := s.sessions.Consume(ctx, token)
	if err != nil {
		if err == ErrSessionNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session expired or already completed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	if session.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "checkout session belongs to another user")
	}

	gateway, err := s.gateways.Resolve(session.Method)
	if err != nil {
		return nil, err
	}

	confirm, err := gateway.Confirm(ctx, session.ProviderRef)
	if err != nil {
		// The session was consumed but the outcome is unknown; put it back
		// so the shopper can retry.
		_ = s.sessions.Save(ctx, session)
		return nil, err
	}
	if !confirm.Paid {
		_ = s.sessions.Save(ctx, session)
		s.metrics.IncFinalized(string(session.Method), "not_paid")
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotCompleted, "payment has not completed").
			WithDetails(map[string]any{"provider_ref": session.ProviderRef})
	}

	started := time.Now()
	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		catalogRepo := s.catalogRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		order := &models.Order{
			UserID:          session.UserID,
			TotalAmount:     session.Total,
			PaymentMethod:   session.Method,
			Status:          enums.OrderStatusPending,
			DisplayCurrency: session.Currency,
			BNPLMonths:      session.BNPLMonths,
		}
		order, err := ordersRepo.Create(ctx, order)
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(session.Lines))
		cartRowIDs := make([]uuid.UUID, 0, len(session.Lines))
		for _, line := range session.Lines {
			affected, err := catalogRepo.AdjustQuantity(ctx, line.ProductID, -line.Quantity)
			if err != nil {
				return err
			}
			if affected == 0 {
				return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")
			}
			items = append(items, models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     line.UnitPrice,
			})
			cartRowIDs = append(cartRowIDs, line.CartItemID)
		}
		if err := ordersRepo.CreateItems(ctx, items); err != nil {
			return err
		}

		// Delete only the snapshotted rows; lines added mid-checkout stay.
		if err := cartRepo.DeleteByIDs(ctx, session.UserID, cartRowIDs); err != nil {
			return err
		}

		if err := s.emitOrderCreated(ctx, tx, order, len(items)); err != nil {
			return err
		}
		if err := s.emitLowStock(ctx, tx, catalogRepo, session.Lines); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		s.metrics.IncFinalized(string(session.Method), "error")
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize checkout")
	}

	s.metrics.IncFinalized(string(session.Method), "success")
	s.metrics.ObserveFinalizeDuration(string(session.Method), time.Since(started))
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), created.ID.String())
		s.logg.Info(logCtx, "checkout finalized")
	}

	return &FinalizeResult{
		OrderID: created.ID,
		Total:   created.TotalAmount,
		Status:  string(created.Status),
	}, nil
}

// selectedLines loads the owner's cart rows named by the selection. An empty
// selection, or one that matches no owned rows, is rejected before any
// provider call is made.
func (s *service) selectedLines(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) ([]models.CartItem, error) {
	lines, err := s.cartRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart")
	}
	if len(itemIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no cart items selected")
	}

	selected := make(map[uuid.UUID]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		selected[id] = struct{}{}
	}
	out := make([]models.CartItem, 0, len(itemIDs))
	for i := range lines {
		if _, ok := selected[lines[i].ID]; ok {
			out = append(out, lines[i])
		}
	}
	if len(out) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no cart items selected")
	}
	return out, nil
}

// snapshot validates stock for every cart line and freezes quantities and
// unit prices. The total is the sum of line totals rounded to 2dp.
func (s *service) snapshot(ctx context.Context, lines []models.CartItem) ([]SessionLine, decimal.Decimal, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for i := range lines {
		ids = append(ids, lines[i].ItemID)
	}
	products, err := s.catalogRepo.FindProducts(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	stock := make(map[uuid.UUID]int, len(products))
	for i := range products {
		stock[products[i].ID] = products[i].Quantity
	}

	total := decimal.Zero
	out := make([]SessionLine, 0, len(lines))
	for i := range lines {
		line := &lines[i]
		available, ok := stock[line.ItemID]
		if !ok {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeConflict, "product no longer available")
		}
		if available < line.Quantity {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")
		}
		out = append(out, SessionLine{
			CartItemID: line.ID,
			ProductID:  line.ItemID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
		})
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return out, total.Round(2), nil
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *models.Order, itemCount int) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID},
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			TotalAmount:   order.TotalAmount,
			PaymentMethod: order.PaymentMethod,
			ItemCount:     itemCount,
			PlacedAt:      order.CreatedAt,
		},
		Version: 1,
	})
}

// emitLowStock flags products the purchase drained to the restock threshold.
func (s *service) emitLowStock(ctx context.Context, tx *gorm.DB, catalogRepo *catalog.Repository, lines []SessionLine) error {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := catalogRepo.FindProducts(ctx, ids)
	if err != nil {
		return err
	}
	for i := range products {
		p := &products[i]
		if p.Quantity > catalog.LowStockThreshold {
			continue
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventProductLowStock,
			AggregateType: enums.AggregateProduct,
			AggregateID:   p.ID,
			Data: payloads.LowStockEvent{
				ProductID:   p.ID,
				ProductName: p.ProductName,
				Quantity:    p.Quantity,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
	}
	return nil
}
