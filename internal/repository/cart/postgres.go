package cart

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

const itemColumns = `id, cart_id, product_variant_id, quantity, price_at_add, snapshot::text`

func (r *postgresRepo) GetOrCreateActive(ctx context.Context, ownerID string) (*domain.Cart, error) {
	if _, err := r.pool.Exec(ctx, `
INSERT INTO carts (owner_id, state)
VALUES ($1, 'active')
ON CONFLICT (owner_id) WHERE state = 'active' DO NOTHING
`, ownerID); err != nil {
		return nil, err
	}

	var cart domain.Cart
	err := r.pool.QueryRow(ctx, `
SELECT id, owner_id, state, created_at
FROM carts
WHERE owner_id = $1 AND state = 'active'
`, ownerID).Scan(&cart.ID, &cart.OwnerID, &cart.State, &cart.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+itemColumns+`
FROM cart_items
WHERE cart_id = $1
ORDER BY created_at ASC, id ASC
`, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cart.Items = []domain.CartItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddItem creates the line for the variant or increments the existing one. The price
// captured on the first add is kept; the snapshot is refreshed every time.
func (r *postgresRepo) AddItem(ctx context.Context, cartID int64, variant domain.VariantSnapshot, quantity int) (*domain.CartItem, error) {
	snapshot, err := json.Marshal(variant)
	if err != nil {
		return nil, err
	}

	// Concurrent first adds of one variant land on the unique (cart_id, product_variant_id)
	// index; the loser increments instead of failing.
	row := r.pool.QueryRow(ctx, `
INSERT INTO cart_items (cart_id, product_variant_id, quantity, price_at_add, snapshot)
VALUES ($1, $2, $3, $4, $5::jsonb)
ON CONFLICT (cart_id, product_variant_id) DO UPDATE
SET quantity = cart_items.quantity + EXCLUDED.quantity,
    snapshot = EXCLUDED.snapshot
RETURNING `+itemColumns, cartID, variant.ID, quantity, variant.Price, string(snapshot))
	item, err := scanItem(row)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *postgresRepo) ChangeQuantity(ctx context.Context, cartID, itemID int64, quantity int) (*domain.CartItem, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE cart_items
SET quantity = $1
WHERE id = $2 AND cart_id = $3
RETURNING `+itemColumns, quantity, itemID, cartID)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *postgresRepo) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	cmd, err := r.pool.Exec(ctx, `
DELETE FROM cart_items
WHERE id = $1 AND cart_id = $2
`, itemID, cartID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (domain.CartItem, error) {
	var (
		item     domain.CartItem
		snapshot string
	)
	if err := row.Scan(
		&item.ID,
		&item.CartID,
		&item.ProductVariantID,
		&item.Quantity,
		&item.PriceAtAdd,
		&snapshot,
	); err != nil {
		return domain.CartItem{}, err
	}
	if err := json.Unmarshal([]byte(snapshot), &item.Variant); err != nil {
		return domain.CartItem{}, err
	}
	if item.Variant.ID == 0 {
		item.Variant.ID = item.ProductVariantID
	}
	if item.Variant.Product == nil {
		item.Variant.Product = domain.EmptyProduct()
	}
	item.Kind = domain.KindConfirmed
	item.Reprice()
	return item, nil
}
