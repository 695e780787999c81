package domain

import "fmt"

// SnapshotVersion is the schema version written by the persistence layer.
const SnapshotVersion = 2

// Snapshot is the durable representation of a cart engine's state.
type Snapshot struct {
	Version       int        `json:"version"`
	Items         []CartItem `json:"items"`
	SelectedItems []int64    `json:"selectedItems"`
}

// EmptySnapshot is the state of a shopper with no cart history.
func EmptySnapshot() Snapshot {
	return Snapshot{Version: SnapshotVersion, Items: []CartItem{}, SelectedItems: []int64{}}
}

// NormalizeItem validates a line read from storage and fills the structural holes
// downstream code must never see. A missing product becomes EmptyProduct, a missing
// kind is derived from the id sign, and FinalPrice is recomputed.
func NormalizeItem(in CartItem) (CartItem, error) {
	item := in.Clone()
	if item.ID == 0 {
		return CartItem{}, invalid("id", "must be non-zero")
	}
	switch item.Kind {
	case "":
		if item.ID < 0 {
			item.Kind = KindPending
		} else {
			item.Kind = KindConfirmed
		}
	case KindPending:
		if item.ID > 0 {
			return CartItem{}, invalid("id", fmt.Sprintf("pending line has server id %d", item.ID))
		}
	case KindConfirmed:
		if item.ID < 0 {
			return CartItem{}, invalid("id", fmt.Sprintf("confirmed line has temporary id %d", item.ID))
		}
	default:
		return CartItem{}, invalid("kind", fmt.Sprintf("unknown kind %q", item.Kind))
	}
	if item.ProductVariantID <= 0 {
		return CartItem{}, invalid("productVariantId", "must be positive")
	}
	if item.Quantity <= 0 {
		return CartItem{}, invalid("quantity", "must be positive")
	}
	if item.PriceAtAdd < 0 {
		return CartItem{}, invalid("priceAtAdd", "must not be negative")
	}
	if item.CartID < 0 {
		return CartItem{}, invalid("cartId", "must not be negative")
	}
	if item.Variant.Product == nil {
		item.Variant.Product = EmptyProduct()
	}
	if item.Variant.ID == 0 {
		item.Variant.ID = item.ProductVariantID
	}
	item.Reprice()
	return item, nil
}

// NormalizeServerItem validates a line received from the cart service. Server lines
// are always confirmed and must carry a positive id.
func NormalizeServerItem(in CartItem) (CartItem, error) {
	if in.ID <= 0 {
		return CartItem{}, invalid("id", "server line must have a positive id")
	}
	in.Kind = KindConfirmed
	return NormalizeItem(in)
}
