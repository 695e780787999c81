package domain

import "time"

// ItemKind tags whether a cart line has been acknowledged by the cart service.
type ItemKind string

const (
	// KindPending marks a line created locally whose id is a temporary placeholder.
	KindPending ItemKind = "pending"
	// KindConfirmed marks a line whose id was assigned by the cart service.
	KindConfirmed ItemKind = "confirmed"
)

// CartItem is one line of a cart as held by the sync engine and returned by the cart service.
// FinalPrice is the discounted unit price; the line amount (150000 for three units of
// a 50000 final price) is LineTotal, not FinalPrice.
type CartItem struct {
	ID               int64           `json:"id"`
	Kind             ItemKind        `json:"kind"`
	CartID           int64           `json:"cartId"`
	ProductVariantID int64           `json:"productVariantId"`
	Quantity         int             `json:"quantity"`
	PriceAtAdd       int64           `json:"priceAtAdd"`
	FinalPrice       int64           `json:"finalPrice"`
	Variant          VariantSnapshot `json:"variant"`
}

// VariantSnapshot is the denormalized copy of a purchasable variant stored on the line.
type VariantSnapshot struct {
	ID         int64            `json:"id"`
	SKU        string           `json:"sku,omitempty"`
	Price      int64            `json:"price"`
	Attributes []AttributeValue `json:"attributes,omitempty"`
	Product    *ProductSnapshot `json:"product"`
}

// AttributeValue is a single variant option such as color=red.
type AttributeValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProductSnapshot is the parent product data rendered next to a line.
type ProductSnapshot struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Thumbnail string     `json:"thumbnail,omitempty"`
	Promotion *Promotion `json:"promotion,omitempty"`
}

// Cart is the authoritative cart owned by one shopper on the cart service.
type Cart struct {
	ID        int64      `json:"id"`
	OwnerID   string     `json:"-"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
	Items     []CartItem `json:"items"`
}

// LoadingProductName is shown for a line whose product data has not arrived yet.
const LoadingProductName = "Loading…"

// EmptyProduct returns the canonical placeholder for a missing product snapshot.
func EmptyProduct() *ProductSnapshot {
	return &ProductSnapshot{}
}

// LoadingProduct returns the placeholder used by optimistic lines.
func LoadingProduct() *ProductSnapshot {
	return &ProductSnapshot{Name: LoadingProductName}
}

// IsTemporary reports whether the line still carries a locally fabricated id.
func (i CartItem) IsTemporary() bool {
	return i.Kind == KindPending
}

// Promotion returns the promotion attached to the line's product, if any.
func (i CartItem) Promotion() *Promotion {
	if i.Variant.Product == nil {
		return nil
	}
	return i.Variant.Product.Promotion
}

// Reprice recomputes FinalPrice from PriceAtAdd and the product promotion.
func (i *CartItem) Reprice() {
	i.FinalPrice = DiscountedPrice(i.PriceAtAdd, i.Promotion())
}

// LineTotal is the discounted unit price times quantity.
func (i CartItem) LineTotal() int64 {
	return i.FinalPrice * int64(i.Quantity)
}

// Clone returns a deep copy so callers cannot alias store-owned slices or pointers.
func (i CartItem) Clone() CartItem {
	out := i
	if i.Variant.Attributes != nil {
		out.Variant.Attributes = append([]AttributeValue(nil), i.Variant.Attributes...)
	}
	if i.Variant.Product != nil {
		p := *i.Variant.Product
		if p.Promotion != nil {
			promo := *p.Promotion
			p.Promotion = &promo
		}
		out.Variant.Product = &p
	}
	return out
}

// CloneItems deep-copies a slice of lines.
func CloneItems(items []CartItem) []CartItem {
	if items == nil {
		return nil
	}
	out := make([]CartItem, len(items))
	for idx, item := range items {
		out[idx] = item.Clone()
	}
	return out
}
