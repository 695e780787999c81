// Package reconcile folds an authoritative server cart into locally held lines.
//
// Lines are matched by id only. For a matched line the local quantity wins because
// the shopper may have edited it while the fetch was in flight; every other field
// comes from the server. Local lines the server does not know about are kept as
// not-yet-synced, so a stale response can never remove something just added.
package reconcile

import "storefront-cart/internal/domain"

// Merge returns the reconciled lines: server lines first in server order, then
// local-only lines in their local order. Neither input is modified.
//
// Merge is idempotent: Merge(Merge(l, s), s) equals Merge(l, s).
func Merge(local, server []domain.CartItem) []domain.CartItem {
	localByID := make(map[int64]domain.CartItem, len(local))
	for _, item := range local {
		localByID[item.ID] = item
	}

	out := make([]domain.CartItem, 0, len(local)+len(server))
	seen := make(map[int64]struct{}, len(server))
	for _, s := range server {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}

		if l, ok := localByID[s.ID]; ok {
			out = append(out, Adopt(l, s))
			continue
		}
		merged := s.Clone()
		merged.Kind = domain.KindConfirmed
		merged.Reprice()
		out = append(out, merged)
	}

	for _, l := range local {
		if _, ok := seen[l.ID]; ok {
			continue
		}
		out = append(out, l.Clone())
	}
	return out
}

// Adopt returns server with the local quantity kept.
func Adopt(local, server domain.CartItem) domain.CartItem {
	merged := server.Clone()
	merged.Kind = domain.KindConfirmed
	merged.Quantity = local.Quantity
	merged.Reprice()
	return merged
}

// Filter drops server lines for which skip reports true. The engine uses it to hide
// lines whose removal is still in flight.
func Filter(server []domain.CartItem, skip func(id int64) bool) []domain.CartItem {
	if skip == nil {
		return server
	}
	out := make([]domain.CartItem, 0, len(server))
	for _, item := range server {
		if skip(item.ID) {
			continue
		}
		out = append(out, item)
	}
	return out
}
