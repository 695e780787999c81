package domain

import "github.com/shopspring/decimal"

// PromotionType selects how a promotion value is applied to a unit price.
type PromotionType string

const (
	PromotionPercent PromotionType = "percent"
	PromotionFixed   PromotionType = "fixed"
)

// Promotion is a discount computed by the catalog and mirrored on the product snapshot.
// Value is a whole percentage for PromotionPercent and minor currency units for PromotionFixed.
type Promotion struct {
	Type  PromotionType `json:"type"`
	Value int64         `json:"value"`
}

var hundred = decimal.NewFromInt(100)

// DiscountedPrice applies promo to a unit price. The result never drops below zero.
func DiscountedPrice(price int64, promo *Promotion) int64 {
	if promo == nil || promo.Value <= 0 {
		return price
	}
	base := decimal.NewFromInt(price)
	var discounted decimal.Decimal
	switch promo.Type {
	case PromotionPercent:
		off := base.Mul(decimal.NewFromInt(promo.Value)).Div(hundred).Round(0)
		discounted = base.Sub(off)
	case PromotionFixed:
		discounted = base.Sub(decimal.NewFromInt(promo.Value))
	default:
		return price
	}
	if discounted.IsNegative() {
		return 0
	}
	return discounted.IntPart()
}
