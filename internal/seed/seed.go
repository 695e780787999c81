package seed

import (
	"context"
	"fmt"

	"storefront-cart/internal/domain"
	variantrepo "storefront-cart/internal/repository/variant"
)

type variantSeed struct {
	SKU        string
	Price      int64
	Attributes []domain.AttributeValue
}

type productSeed struct {
	Name           string
	Thumbnail      string
	PromotionType  domain.PromotionType
	PromotionValue int64
	Variants       []variantSeed
}

var demoCatalog = []productSeed{
	{
		Name:           "Demo Jacket",
		Thumbnail:      "https://cdn.example.com/jacket.jpg",
		PromotionType:  domain.PromotionPercent,
		PromotionValue: 50,
		Variants: []variantSeed{
			{SKU: "SKU-DEMO-JACKET-M", Price: 100000, Attributes: []domain.AttributeValue{{Name: "size", Value: "M"}}},
			{SKU: "SKU-DEMO-JACKET-L", Price: 100000, Attributes: []domain.AttributeValue{{Name: "size", Value: "L"}}},
		},
	},
	{
		Name:      "Demo Mug",
		Thumbnail: "https://cdn.example.com/mug.jpg",
		Variants: []variantSeed{
			{SKU: "SKU-DEMO-MUG", Price: 25000},
		},
	},
	{
		Name:           "Demo Socks",
		PromotionType:  domain.PromotionFixed,
		PromotionValue: 5000,
		Variants: []variantSeed{
			{SKU: "SKU-DEMO-SOCKS-RED", Price: 15000, Attributes: []domain.AttributeValue{{Name: "color", Value: "red"}}},
		},
	},
}

// Apply inserts a small catalog for manual testing. Variants upsert on SKU, so
// rerunning it only refreshes prices.
func Apply(ctx context.Context, repo variantrepo.Repository) ([]int64, error) {
	var ids []int64
	for _, p := range demoCatalog {
		productID, err := repo.CreateProduct(ctx, variantrepo.CreateProductInput{
			Name:           p.Name,
			Thumbnail:      p.Thumbnail,
			PromotionType:  p.PromotionType,
			PromotionValue: p.PromotionValue,
		})
		if err != nil {
			return nil, fmt.Errorf("create product %s: %w", p.Name, err)
		}
		for _, v := range p.Variants {
			id, err := repo.CreateVariant(ctx, variantrepo.CreateVariantInput{
				ProductID:  productID,
				SKU:        v.SKU,
				Price:      v.Price,
				Attributes: v.Attributes,
			})
			if err != nil {
				return nil, fmt.Errorf("create variant %s: %w", v.SKU, err)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
