package variant

import (
	"context"
	"encoding/json"
	"errors"

	"storefront-cart/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.VariantSnapshot, error) {
	const q = `
SELECT v.id, v.sku, v.price, v.attributes::text,
       p.id, p.name, p.thumbnail, COALESCE(p.promotion_type, ''), p.promotion_value
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1
`
	var (
		out       domain.VariantSnapshot
		product   domain.ProductSnapshot
		attrs     string
		promoType string
		promoVal  int64
	)
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&out.ID,
		&out.SKU,
		&out.Price,
		&attrs,
		&product.ID,
		&product.Name,
		&product.Thumbnail,
		&promoType,
		&promoVal,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(attrs), &out.Attributes); err != nil {
		return nil, err
	}
	if promoType != "" {
		product.Promotion = &domain.Promotion{Type: domain.PromotionType(promoType), Value: promoVal}
	}
	out.Product = &product
	return &out, nil
}

func (r *postgresRepo) CreateProduct(ctx context.Context, in CreateProductInput) (int64, error) {
	const q = `
INSERT INTO products (name, thumbnail, promotion_type, promotion_value)
VALUES ($1, $2, NULLIF($3, ''), $4)
RETURNING id
`
	var id int64
	if err := r.pool.QueryRow(ctx, q, in.Name, in.Thumbnail, string(in.PromotionType), in.PromotionValue).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *postgresRepo) CreateVariant(ctx context.Context, in CreateVariantInput) (int64, error) {
	attrs := in.Attributes
	if attrs == nil {
		attrs = []domain.AttributeValue{}
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return 0, err
	}
	const q = `
INSERT INTO product_variants (product_id, sku, price, attributes)
VALUES ($1, $2, $3, $4::jsonb)
ON CONFLICT (sku) DO UPDATE SET price = EXCLUDED.price, attributes = EXCLUDED.attributes
RETURNING id
`
	var id int64
	if err := r.pool.QueryRow(ctx, q, in.ProductID, in.SKU, in.Price, string(raw)).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
