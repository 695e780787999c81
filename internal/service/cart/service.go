package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront-cart/internal/domain"
	cartrepo "storefront-cart/internal/repository/cart"
)

// MaxLineQuantity bounds a single line.
const MaxLineQuantity = 999

type Service struct {
	repo     cartRepo
	variants variantRepo
}

type cartRepo interface {
	GetOrCreateActive(ctx context.Context, ownerID string) (*domain.Cart, error)
	AddItem(ctx context.Context, cartID int64, variant domain.VariantSnapshot, quantity int) (*domain.CartItem, error)
	ChangeQuantity(ctx context.Context, cartID, itemID int64, quantity int) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, cartID, itemID int64) error
}

type variantRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.VariantSnapshot, error)
}

func New(repo cartrepo.Repository, variants variantRepo) *Service {
	return &Service{repo: repo, variants: variants}
}

type AddItemInput struct {
	ProductVariantID int64 `json:"productVariantId"`
	Quantity         int   `json:"quantity"`
}

type UpdateItemInput struct {
	Quantity int `json:"quantity"`
}

// Get returns the owner's active cart, creating an empty one on first use.
func (s *Service) Get(ctx context.Context, ownerID string) (*domain.Cart, error) {
	ownerID, err := validOwner(ownerID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetOrCreateActive(ctx, ownerID)
}

// AddItem adds quantity of a variant; an existing line for the variant is incremented.
func (s *Service) AddItem(ctx context.Context, ownerID string, in AddItemInput) (*domain.CartItem, error) {
	if in.ProductVariantID <= 0 {
		return nil, &domain.ValidationError{Field: "productVariantId", Reason: "must be positive"}
	}
	if err := validQuantity(in.Quantity); err != nil {
		return nil, err
	}
	cart, err := s.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if s.variants == nil {
		return nil, errors.New("variant repository unavailable")
	}
	variant, err := s.variants.GetByID(ctx, in.ProductVariantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("product variant %d: %w", in.ProductVariantID, domain.ErrNotFound)
		}
		return nil, err
	}
	for _, item := range cart.Items {
		if item.ProductVariantID == variant.ID && item.Quantity+in.Quantity > MaxLineQuantity {
			return nil, &domain.ValidationError{Field: "quantity", Reason: fmt.Sprintf("line would exceed %d", MaxLineQuantity)}
		}
	}
	return s.repo.AddItem(ctx, cart.ID, *variant, in.Quantity)
}

// UpdateItem sets the quantity of one of the owner's lines.
func (s *Service) UpdateItem(ctx context.Context, ownerID string, itemID int64, in UpdateItemInput) (*domain.CartItem, error) {
	if err := validQuantity(in.Quantity); err != nil {
		return nil, err
	}
	cart, err := s.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.repo.ChangeQuantity(ctx, cart.ID, itemID, in.Quantity)
}

// RemoveItem deletes one of the owner's lines.
func (s *Service) RemoveItem(ctx context.Context, ownerID string, itemID int64) error {
	cart, err := s.Get(ctx, ownerID)
	if err != nil {
		return err
	}
	return s.repo.RemoveItem(ctx, cart.ID, itemID)
}

func validOwner(ownerID string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", &domain.ValidationError{Field: "customer", Reason: "required"}
	}
	return ownerID, nil
}

func validQuantity(q int) error {
	if q <= 0 {
		return &domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if q > MaxLineQuantity {
		return &domain.ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be at most %d", MaxLineQuantity)}
	}
	return nil
}
