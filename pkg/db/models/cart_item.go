package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/isaacklow/supermart-backend/pkg/enums"
)

// CartItem is one line of a user's cart. The unit price is snapshotted when
// the line is created so later catalog edits do not reprice an open cart.
// Lines are unique per (user, item type, item id); repeated adds increment
// the quantity instead of inserting a second row.
type CartItem struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_cart_items_owner_item,priority:1"`
	ItemType  enums.CartItemType `gorm:"column:item_type;not null;default:'product';uniqueIndex:ux_cart_items_owner_item,priority:2"`
	ItemID    uuid.UUID          `gorm:"column:item_id;type:uuid;not null;uniqueIndex:ux_cart_items_owner_item,priority:3"`
	Quantity  int                `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal    `gorm:"column:unit_price;type:numeric(10,2);not null"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
