package seed

import (
	"context"
	"errors"
	"testing"

	"storefront-cart/internal/domain"
	variantrepo "storefront-cart/internal/repository/variant"
)

type recordingRepo struct {
	products []variantrepo.CreateProductInput
	variants []variantrepo.CreateVariantInput
	failSKU  string
}

func (r *recordingRepo) GetByID(context.Context, int64) (*domain.VariantSnapshot, error) {
	return nil, domain.ErrNotFound
}

func (r *recordingRepo) CreateProduct(_ context.Context, in variantrepo.CreateProductInput) (int64, error) {
	r.products = append(r.products, in)
	return int64(len(r.products)), nil
}

func (r *recordingRepo) CreateVariant(_ context.Context, in variantrepo.CreateVariantInput) (int64, error) {
	if in.SKU == r.failSKU {
		return 0, errors.New("duplicate")
	}
	r.variants = append(r.variants, in)
	return int64(100 + len(r.variants)), nil
}

func TestApplyCreatesCatalog(t *testing.T) {
	repo := &recordingRepo{}
	ids, err := Apply(context.Background(), repo)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(repo.products) != len(demoCatalog) {
		t.Fatalf("expected %d products, got %d", len(demoCatalog), len(repo.products))
	}
	if len(ids) != len(repo.variants) || len(ids) == 0 {
		t.Fatalf("expected one id per variant, got %v", ids)
	}
	if repo.variants[0].ProductID != 1 {
		t.Fatalf("variant should reference its product, got %d", repo.variants[0].ProductID)
	}
}

func TestApplyStopsOnError(t *testing.T) {
	repo := &recordingRepo{failSKU: "SKU-DEMO-MUG"}
	if _, err := Apply(context.Background(), repo); err == nil {
		t.Fatalf("expected error")
	}
}
