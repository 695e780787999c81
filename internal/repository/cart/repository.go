package cart

import (
	"context"

	"storefront-cart/internal/domain"
)

type Repository interface {
	GetOrCreateActive(ctx context.Context, ownerID string) (*domain.Cart, error)
	AddItem(ctx context.Context, cartID int64, variant domain.VariantSnapshot, quantity int) (*domain.CartItem, error)
	ChangeQuantity(ctx context.Context, cartID, itemID int64, quantity int) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, cartID, itemID int64) error
}
