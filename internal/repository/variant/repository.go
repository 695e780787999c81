package variant

import (
	"context"

	"storefront-cart/internal/domain"
)

type CreateProductInput struct {
	Name           string
	Thumbnail      string
	PromotionType  domain.PromotionType
	PromotionValue int64
}

type CreateVariantInput struct {
	ProductID  int64
	SKU        string
	Price      int64
	Attributes []domain.AttributeValue
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.VariantSnapshot, error)
	CreateProduct(ctx context.Context, in CreateProductInput) (int64, error)
	CreateVariant(ctx context.Context, in CreateVariantInput) (int64, error)
}
