// Package checkout applies the checkout-entry policy to a cart selection.
package checkout

import (
	"fmt"

	"storefront-cart/internal/domain"
)

// DefaultSelectionCap is how many lines one order may contain.
const DefaultSelectionCap = 10

// Cart is the part of the local cart checkout reads and selects on.
type Cart interface {
	Items() []domain.CartItem
	ItemIDs() []int64
	IsSelected(id int64) bool
	SelectedIDs() []int64
	SelectAll(checked bool, ids []int64)
	ToggleSelectItem(id int64)
}

// Summary is what the shopper confirms before placing the order.
type Summary struct {
	Items    []domain.CartItem `json:"items"`
	Total    int64             `json:"total"`
	Count    int               `json:"count"`
	Quantity int               `json:"quantity"`
}

func capOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultSelectionCap
	}
	return limit
}

func capError(limit int) error {
	return fmt.Errorf("%w: at most %d items can be checked out at once", domain.ErrSelectionCapExceeded, limit)
}

// SelectAll selects every line, or rejects the request when that would exceed the cap.
// The selection is left untouched on rejection.
func SelectAll(cart Cart, limit int) error {
	limit = capOrDefault(limit)
	ids := cart.ItemIDs()
	if len(ids) > limit {
		return capError(limit)
	}
	cart.SelectAll(true, ids)
	return nil
}

// Toggle flips one line, refusing to select it when the cap is already reached.
func Toggle(cart Cart, id int64, limit int) error {
	limit = capOrDefault(limit)
	if !cart.IsSelected(id) {
		if !contains(cart.ItemIDs(), id) {
			return fmt.Errorf("cart item %d: %w", id, domain.ErrNotFound)
		}
		if len(cart.SelectedIDs()) >= limit {
			return capError(limit)
		}
	}
	cart.ToggleSelectItem(id)
	return nil
}

// Begin validates the selection and returns the lines that go into the order.
func Begin(cart Cart, limit int) (Summary, error) {
	limit = capOrDefault(limit)
	selected := cart.SelectedIDs()
	if len(selected) == 0 {
		return Summary{}, domain.ErrEmptySelection
	}
	if len(selected) > limit {
		return Summary{}, capError(limit)
	}

	var sum Summary
	for _, item := range cart.Items() {
		if !cart.IsSelected(item.ID) {
			continue
		}
		sum.Items = append(sum.Items, item)
		sum.Total += item.LineTotal()
		sum.Quantity += item.Quantity
	}
	sum.Count = len(sum.Items)
	return sum, nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
