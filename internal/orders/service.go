package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/isaacklow/supermart-backend/pkg/db/models"
	"github.com/isaacklow/supermart-backend/pkg/enums"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
	"github.com/isaacklow/supermart-backend/pkg/outbox"
	"github.com/isaacklow/supermart-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productNamer interface {
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type userNamer interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes order history reads and back-office status transitions.
type Service interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
	GetInvoice(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ListAllForAdmin(ctx context.Context) ([]AdminOrderDTO, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
}

type service struct {
	repo     *Repository
	tx       txRunner
	products productNamer
	users    userNamer
	box      outboxEmitter
}

// NewService builds an order service backed by the provided stack.
func NewService(repo *Repository, tx txRunner, products productNamer, users userNamer, box outboxEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	return &service{repo: repo, tx: tx, products: products, users: users, box: box}, nil
}

// ListForUser returns the shopper's order history newest-first. Numbers are
// assigned in creation order before the list is reversed, so they stay stable
// as new orders arrive.
func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	names, err := s.productNames(ctx, rows)
	if err != nil {
		return nil, err
	}

	out := make([]OrderDTO, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		dto := toOrderDTO(&rows[i], i+1, names)
		out = append(out, *dto)
	}
	return out, nil
}

// GetInvoice returns one owned order with its per-user number.
func (s *service) GetInvoice(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	for i := range rows {
		if rows[i].ID != orderID {
			continue
		}
		names, err := s.productNames(ctx, rows[i:i+1])
		if err != nil {
			return nil, err
		}
		return toOrderDTO(&rows[i], i+1, names), nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

// ListAllForAdmin returns every order newest-first with buyer identity and a
// compact "Name (xQty)" line summary for back-office notifications.
func (s *service) ListAllForAdmin(ctx context.Context) ([]AdminOrderDTO, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	names, err := s.productNames(ctx, rows)
	if err != nil {
		return nil, err
	}

	accounts, err := s.users.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	usernames := make(map[uuid.UUID]string, len(accounts))
	for i := range accounts {
		usernames[accounts[i].ID] = accounts[i].Username
	}

	// Per-user numbering needs each user's position in creation order.
	sequence := perUserSequence(rows)

	out := make([]AdminOrderDTO, 0, len(rows))
	for i := range rows {
		order := &rows[i]
		dto := AdminOrderDTO{
			OrderDTO: *toOrderDTO(order, sequence[order.ID], names),
			UserID:   order.UserID,
			Username: usernames[order.UserID],
			Summary:  summarize(order, names),
		}
		out = append(out, dto)
	}
	return out, nil
}

// UpdateStatus moves an order through the fulfillment pipeline and queues a
// status-changed event in the same transaction.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status == status {
		return nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).UpdateStatus(ctx, orderID, status)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if s.box == nil {
			return nil
		}
		return s.box.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   orderID,
				UserID:    order.UserID,
				OldStatus: order.Status,
				NewStatus: status,
			},
			Version: 1,
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	return nil
}

func (s *service) productNames(ctx context.Context, rows []models.Order) (map[uuid.UUID]string, error) {
	idSet := map[uuid.UUID]struct{}{}
	for i := range rows {
		for j := range rows[i].Items {
			idSet[rows[i].Items[j].ProductID] = struct{}{}
		}
	}
	ids := make([]uuid.UUID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	products, err := s.products.FindProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	names := make(map[uuid.UUID]string, len(products))
	for i := range products {
		names[products[i].ID] = products[i].ProductName
	}
	return names, nil
}

// perUserSequence assigns each order its position within its owner's history,
// counting from the oldest order.
func perUserSequence(rows []models.Order) map[uuid.UUID]int {
	byUser := map[uuid.UUID][]*models.Order{}
	for i := range rows {
		byUser[rows[i].UserID] = append(byUser[rows[i].UserID], &rows[i])
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, orders := range byUser {
		// rows arrive newest-first; walk backwards for creation order.
		n := 1
		for i := len(orders) - 1; i >= 0; i-- {
			out[orders[i].ID] = n
			n++
		}
	}
	return out
}

func summarize(order *models.Order, names map[uuid.UUID]string) string {
	parts := make([]string, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		name := names[item.ProductID]
		if name == "" {
			name = item.ProductID.String()
		}
		parts = append(parts, fmt.Sprintf("%s (x%d)", name, item.Quantity))
	}
	return strings.Join(parts, ", ")
}

func toOrderDTO(order *models.Order, number int, names map[uuid.UUID]string) *OrderDTO {
	items := make([]ItemDTO, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		items = append(items, ItemDTO{
			ProductID:   item.ProductID,
			ProductName: names[item.ProductID],
			Quantity:    item.Quantity,
			Price:       item.Price,
			LineTotal:   item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2),
		})
	}
	return &OrderDTO{
		ID:              order.ID,
		Number:          number,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		TotalAmount:     order.TotalAmount,
		DisplayCurrency: order.DisplayCurrency,
		BNPLMonths:      order.BNPLMonths,
		Items:           items,
		CreatedAt:       order.CreatedAt,
	}
}
