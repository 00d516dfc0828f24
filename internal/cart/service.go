package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/isaacklow/supermart-backend/pkg/db"
	"github.com/isaacklow/supermart-backend/pkg/db/models"
	"github.com/isaacklow/supermart-backend/pkg/enums"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
)

type productLoader interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Service exposes cart operations for the authenticated shopper.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error)
	UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, lineID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo     *Repository
	products productLoader
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo *Repository, products productLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{repo: repo, products: products}, nil
}

// Get returns the owner's cart with display fields and the running total.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	lines, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart")
	}
	return s.buildCart(ctx, lines)
}

// AddItem inserts a cart line, or increments the quantity when the shopper
// already carries the item. The unit price is snapshotted on first insert.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.FindProduct(ctx, input.ItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.Quantity < input.Quantity {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")
	}

	existing, err := s.repo.FindLine(ctx, userID, enums.CartItemTypeProduct, input.ItemID)
	switch {
	case err == nil:
		if product.Quantity < existing.Quantity+input.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")
		}
		if err := s.repo.IncrementQuantity(ctx, existing.ID, input.Quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment cart line")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		line := &models.CartItem{
			UserID:    userID,
			ItemType:  enums.CartItemTypeProduct,
			ItemID:    input.ItemID,
			Quantity:  input.Quantity,
			UnitPrice: product.Price,
		}
		if _, err := s.repo.Create(ctx, line); err != nil {
			// Lost the insert race to a concurrent add; retry as an increment.
			if db.IsUniqueViolation(err, "ux_cart_items_owner_item") {
				return s.AddItem(ctx, userID, input)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}

	return s.Get(ctx, userID)
}

// UpdateQuantity replaces the quantity on an owned line.
func (s *service) UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	line, err := s.repo.FindByIDAndUser(ctx, lineID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}

	product, err := s.products.FindProduct(ctx, line.ItemID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product != nil && product.Quantity < quantity {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")
	}

	affected, err := s.repo.UpdateQuantity(ctx, lineID, userID, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	return s.Get(ctx, userID)
}

// RemoveItem drops an owned line from the cart.
func (s *service) RemoveItem(ctx context.Context, userID, lineID uuid.UUID) (*CartDTO, error) {
	affected, err := s.repo.Delete(ctx, lineID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	return s.Get(ctx, userID)
}

// Clear removes every line in the owner's cart.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) buildCart(ctx context.Context, lines []models.CartItem) (*CartDTO, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for i := range lines {
		ids = append(ids, lines[i].ItemID)
	}
	products, err := s.products.FindProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	total := decimal.Zero
	items := make([]LineDTO, 0, len(lines))
	for i := range lines {
		line := &lines[i]
		dto := LineDTO{
			ID:        line.ID,
			ItemType:  line.ItemType,
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: lineTotal(line),
		}
		if product, ok := byID[line.ItemID]; ok {
			dto.ProductName = product.ProductName
			dto.Image = product.Image
		}
		total = total.Add(dto.LineTotal)
		items = append(items, dto)
	}

	return &CartDTO{Items: items, Total: total.Round(2)}, nil
}
