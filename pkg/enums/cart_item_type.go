package enums

import "fmt"

// CartItemType distinguishes what a cart line refers to. Products are the only
// kind sold today; the column exists so other sellable types can be added
// without a schema change.
type CartItemType string

const (
	CartItemTypeProduct CartItemType = "product"
)

var validCartItemTypes = []CartItemType{
	CartItemTypeProduct,
}

// String implements fmt.Stringer.
func (c CartItemType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartItemType.
func (c CartItemType) IsValid() bool {
	for _, candidate := range validCartItemTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartItemType converts raw input into a CartItemType.
func ParseCartItemType(value string) (CartItemType, error) {
	for _, candidate := range validCartItemTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart item type %q", value)
}
