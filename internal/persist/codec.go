// Package persist stores cart engine snapshots durably and reads them back defensively.
package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"storefront-cart/internal/domain"
)

// legacySnapshot is the version 1 layout, which kept the selection as an id->bool object.
type legacySnapshot struct {
	Items    []domain.CartItem `json:"items"`
	Selected map[string]bool   `json:"selected"`
}

type envelope struct {
	Version int `json:"version"`
}

// Report lists what Decode had to repair or drop.
type Report struct {
	Migrated        bool
	Discarded       bool
	RepairedItems   []int64
	DroppedItems    int
	DroppedSelected int
}

// Encode serializes snap at the current schema version. Lines without a product
// snapshot get the empty placeholder so a reader never finds a hole.
func Encode(snap domain.Snapshot) ([]byte, error) {
	out := domain.Snapshot{
		Version:       domain.SnapshotVersion,
		Items:         make([]domain.CartItem, 0, len(snap.Items)),
		SelectedItems: make([]int64, 0, len(snap.SelectedItems)),
	}
	for _, item := range snap.Items {
		item = item.Clone()
		if item.Variant.Product == nil {
			item.Variant.Product = domain.EmptyProduct()
		}
		out.Items = append(out.Items, item)
	}
	out.SelectedItems = append(out.SelectedItems, snap.SelectedItems...)
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode rebuilds a snapshot from stored bytes. Empty input is an empty cart.
// Unknown versions return ErrIncompatibleSnapshot; malformed JSON returns a wrapped
// decode error. Invalid lines are dropped and missing products are replaced, both
// recorded in the Report.
func Decode(data []byte) (domain.Snapshot, Report, error) {
	var report Report
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.EmptySnapshot(), report, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.EmptySnapshot(), report, fmt.Errorf("decode snapshot: %w", err)
	}

	var (
		items    []domain.CartItem
		selected []int64
	)
	switch env.Version {
	case domain.SnapshotVersion:
		var snap domain.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return domain.EmptySnapshot(), report, fmt.Errorf("decode snapshot: %w", err)
		}
		items, selected = snap.Items, snap.SelectedItems
	case 1:
		var legacy legacySnapshot
		if err := json.Unmarshal(data, &legacy); err != nil {
			return domain.EmptySnapshot(), report, fmt.Errorf("decode v1 snapshot: %w", err)
		}
		items = legacy.Items
		for key, on := range legacy.Selected {
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil || !on {
				continue
			}
			selected = append(selected, id)
		}
		report.Migrated = true
	default:
		report.Discarded = true
		return domain.EmptySnapshot(), report, fmt.Errorf("%w: %d", domain.ErrIncompatibleSnapshot, env.Version)
	}

	out := domain.EmptySnapshot()
	present := make(map[int64]struct{}, len(items))
	for _, raw := range items {
		if raw.Variant.Product == nil {
			report.RepairedItems = append(report.RepairedItems, raw.ID)
		}
		item, err := domain.NormalizeItem(raw)
		if err != nil {
			report.DroppedItems++
			continue
		}
		if _, dup := present[item.ID]; dup {
			report.DroppedItems++
			continue
		}
		present[item.ID] = struct{}{}
		out.Items = append(out.Items, item)
	}
	for _, id := range selected {
		if _, ok := present[id]; !ok {
			report.DroppedSelected++
			continue
		}
		out.SelectedItems = append(out.SelectedItems, id)
	}
	return out, report, nil
}
