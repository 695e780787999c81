package persist

import (
	"context"
	"errors"
	"fmt"

	"storefront-cart/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend stores snapshots in the cart_snapshots table.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgres expects the schema from internal/migrate to be applied.
func NewPostgres(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (p *PostgresBackend) Read(ctx context.Context, key string) ([]byte, error) {
	const q = `
SELECT payload::text
FROM cart_snapshots
WHERE key = $1
`
	var payload string
	if err := p.pool.QueryRow(ctx, q, key).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	return []byte(payload), nil
}

func (p *PostgresBackend) Write(ctx context.Context, key string, data []byte) error {
	const q = `
INSERT INTO cart_snapshots (key, version, payload, updated_at)
VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (key) DO UPDATE
SET version = EXCLUDED.version,
    payload = EXCLUDED.payload,
    updated_at = EXCLUDED.updated_at
`
	if _, err := p.pool.Exec(ctx, q, key, domain.SnapshotVersion, string(data)); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM cart_snapshots WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Name() string { return "postgres" }
