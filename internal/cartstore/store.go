// Package cartstore holds the best-known cart lines and the checkout selection.
//
// A Store owns both collections exclusively. Every mutation runs under one lock,
// keeps the selection a subset of the current line ids, and hands the resulting
// snapshot to the configured Persister before returning.
package cartstore

import (
	"sort"
	"sync"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/reconcile"

	"go.uber.org/zap"
)

// Persister receives a snapshot after every state transition.
type Persister interface {
	Save(snap domain.Snapshot) error
}

// Store is the item snapshot model plus selection manager for one shopper.
type Store struct {
	mu        sync.RWMutex
	items     []domain.CartItem
	selected  map[int64]struct{}
	persister Persister
	logger    *zap.Logger
	closed    bool
}

// Option configures a Store.
type Option func(*Store)

// WithPersister writes every new state through p.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		items:    []domain.CartItem{},
		selected: map[int64]struct{}{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close detaches the persister. Later mutations still update memory but are not written.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Load replaces the whole state with snap. Selected ids without a matching line are dropped.
func (s *Store) Load(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = domain.CloneItems(snap.Items)
	if s.items == nil {
		s.items = []domain.CartItem{}
	}
	s.selected = make(map[int64]struct{}, len(snap.SelectedItems))
	for _, id := range snap.SelectedItems {
		if s.indexLocked(id) >= 0 {
			s.selected[id] = struct{}{}
		}
	}
	s.persistLocked()
}

// AddResult describes what AddItemOptimistic did.
type AddResult struct {
	// ID of the line that now carries the quantity.
	ID int64
	// Created is false when the quantity was folded into an existing line for the same variant.
	Created bool
}

// AddItemOptimistic folds item into the line with the same variant, or appends it and selects it.
func (s *Store) AddItemOptimistic(item domain.CartItem) AddResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.variantIndexLocked(item.ProductVariantID); idx >= 0 {
		existing := &s.items[idx]
		existing.Quantity += item.Quantity
		existing.Reprice()
		s.persistLocked()
		return AddResult{ID: existing.ID}
	}

	added := item.Clone()
	added.Reprice()
	s.items = append(s.items, added)
	s.selected[added.ID] = struct{}{}
	s.persistLocked()
	return AddResult{ID: added.ID, Created: true}
}

// UpdateQuantityOptimistic sets the quantity of line id. It returns the previous
// quantity and whether anything changed; non-positive or unchanged quantities and
// unknown ids are no-ops.
func (s *Store) UpdateQuantityOptimistic(id int64, quantity int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 || quantity <= 0 {
		return 0, false
	}
	item := &s.items[idx]
	prev := item.Quantity
	if prev == quantity {
		return prev, false
	}
	item.Quantity = quantity
	item.Reprice()
	s.persistLocked()
	return prev, true
}

// Removal captures a removed line so it can be restored.
type Removal struct {
	Item     domain.CartItem
	Index    int
	Selected bool
}

// RemoveItemOptimistic removes line id and evicts it from the selection.
// It is idempotent: an unknown id reports false.
func (s *Store) RemoveItemOptimistic(id int64) (Removal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return Removal{}, false
	}
	_, wasSelected := s.selected[id]
	removed := Removal{Item: s.items[idx].Clone(), Index: idx, Selected: wasSelected}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	delete(s.selected, id)
	s.persistLocked()
	return removed, true
}

// Restore puts a removed line back at its old position. It refuses when the id or
// the variant is already present again.
func (s *Store) Restore(r Removal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(r.Item.ID) >= 0 || s.variantIndexLocked(r.Item.ProductVariantID) >= 0 {
		return false
	}
	idx := r.Index
	if idx < 0 || idx > len(s.items) {
		idx = len(s.items)
	}
	s.items = append(s.items, domain.CartItem{})
	copy(s.items[idx+1:], s.items[idx:])
	s.items[idx] = r.Item.Clone()
	if r.Selected {
		s.selected[r.Item.ID] = struct{}{}
	}
	s.persistLocked()
	return true
}

// RevertAdd subtracts quantity from the line for variantID, removing the line when
// nothing is left. It undoes one AddItemOptimistic contribution.
func (s *Store) RevertAdd(variantID int64, quantity int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.variantIndexLocked(variantID)
	if idx < 0 {
		return false
	}
	item := &s.items[idx]
	if item.Quantity > quantity {
		item.Quantity -= quantity
		item.Reprice()
	} else {
		delete(s.selected, item.ID)
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
	s.persistLocked()
	return true
}

// ConfirmID substitutes the server id for a temporary one throughout the lines and
// the selection. When serverID is already present locally the temporary line is
// folded away and its selection membership carried over. It returns false when
// tempID no longer exists.
func (s *Store) ConfirmID(tempID, serverID, cartID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(tempID)
	if idx < 0 {
		return false
	}
	_, wasSelected := s.selected[tempID]
	delete(s.selected, tempID)

	if existing := s.indexLocked(serverID); existing >= 0 && existing != idx {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	} else {
		item := &s.items[idx]
		item.ID = serverID
		item.Kind = domain.KindConfirmed
		item.CartID = cartID
	}
	if wasSelected {
		s.selected[serverID] = struct{}{}
	}
	s.persistLocked()
	return true
}

// ApplyServer merges authoritative lines into the store and drops selected ids that
// no longer match a line.
func (s *Store) ApplyServer(server []domain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = reconcile.Merge(s.items, server)
	for id := range s.selected {
		if s.indexLocked(id) < 0 {
			delete(s.selected, id)
		}
	}
	s.persistLocked()
}

// AdoptServerItem refreshes line item.ID in place from a single server line, keeping
// the local quantity. It reports false when the line is not held locally.
func (s *Store) AdoptServerItem(item domain.CartItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(item.ID)
	if idx < 0 {
		return false
	}
	s.items[idx] = reconcile.Adopt(s.items[idx], item)
	s.persistLocked()
	return true
}

// Items returns a copy of the current lines.
func (s *Store) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneItems(s.items)
}

// Item returns a copy of line id.
func (s *Store) Item(id int64) (domain.CartItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.CartItem{}, false
	}
	return s.items[idx].Clone(), true
}

// ItemByVariant returns a copy of the line holding variantID.
func (s *Store) ItemByVariant(variantID int64) (domain.CartItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.variantIndexLocked(variantID)
	if idx < 0 {
		return domain.CartItem{}, false
	}
	return s.items[idx].Clone(), true
}

// Has reports whether a line with id exists.
func (s *Store) Has(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(id) >= 0
}

// TotalPrice sums FinalPrice*Quantity over all lines.
func (s *Store) TotalPrice() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, item := range s.items {
		total += item.LineTotal()
	}
	return total
}

// ItemCount sums quantities, which is what the cart badge shows.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// Snapshot returns the persistable state.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() domain.Snapshot {
	return domain.Snapshot{
		Version:       domain.SnapshotVersion,
		Items:         domain.CloneItems(s.items),
		SelectedItems: s.selectedIDsLocked(),
	}
}

func (s *Store) selectedIDsLocked() []int64 {
	ids := make([]int64, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Store) indexLocked(id int64) int {
	for idx := range s.items {
		if s.items[idx].ID == id {
			return idx
		}
	}
	return -1
}

func (s *Store) variantIndexLocked(variantID int64) int {
	for idx := range s.items {
		if s.items[idx].ProductVariantID == variantID {
			return idx
		}
	}
	return -1
}

func (s *Store) persistLocked() {
	if s.persister == nil || s.closed {
		return
	}
	if err := s.persister.Save(s.snapshotLocked()); err != nil {
		s.logger.Warn("persist cart snapshot", zap.Error(err))
	}
}
