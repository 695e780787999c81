// Package cartsync keeps a local cart responsive while syncing it with the remote
// cart service.
//
// Every mutation is applied to the local store first and returned to the caller as an
// Op; the remote call runs in the background. Remote calls for the same product
// variant run one at a time in dispatch order, so an edit issued while an add is
// still in flight waits for the add and then targets the server id. Calls for
// different variants run concurrently.
package cartsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront-cart/internal/cartstore"
	"storefront-cart/internal/clock"
	"storefront-cart/internal/domain"
	"storefront-cart/internal/monitoring"
	"storefront-cart/internal/reconcile"
	"storefront-cart/internal/remote"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	opAdd     = "add"
	opUpdate  = "update"
	opRemove  = "remove"
	opRefresh = "refresh"

	defaultRemoteTimeout = 10 * time.Second
)

// RemoteCart is the authoritative cart service.
type RemoteCart interface {
	FetchCart(ctx context.Context) ([]domain.CartItem, error)
	AddItem(ctx context.Context, variantID int64, quantity int) (domain.CartItem, error)
	UpdateItem(ctx context.Context, id int64, quantity int) (domain.CartItem, error)
	RemoveItem(ctx context.Context, id int64) error
}

// SnapshotStore loads the state persisted by an earlier engine and saves every new one.
type SnapshotStore interface {
	Load(ctx context.Context) (domain.Snapshot, error)
	Save(snap domain.Snapshot) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithSnapshotStore persists every state transition and enables Hydrate.
func WithSnapshotStore(s SnapshotStore) Option {
	return func(e *Engine) { e.snapshots = s }
}

// WithClock replaces the clock used for temporary ids.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNotifier sets where user-facing notices go.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithRemoteTimeout bounds every remote call.
func WithRemoteTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithRollbackFailedEdits restores the previous state of a line when a quantity
// change or removal is rejected, as long as nothing newer has touched the line.
// Without it the local state stays as the shopper left it until the next refresh.
func WithRollbackFailedEdits(enabled bool) Option {
	return func(e *Engine) { e.rollbackEdits = enabled }
}

// Engine is the optimistic sync engine for one shopper's cart.
type Engine struct {
	store     *cartstore.Store
	remote    RemoteCart
	snapshots SnapshotStore
	clock     clock.Clock
	logger    *zap.Logger
	notifier  Notifier
	timeout   time.Duration

	rollbackEdits bool

	mu       sync.Mutex
	lastTemp int64
	lanes    map[int64]*lane
	// aliases maps a confirmed temporary id to its server id.
	aliases map[int64]int64
	// tombstones hides lines from refreshes while their removal is in flight.
	tombstones map[int64]struct{}
	// orphans are pending lines restored by Hydrate with no add in flight.
	orphans map[int64]struct{}
	closed  bool

	wg        sync.WaitGroup
	refreshes singleflight.Group
}

// New creates an engine with an empty cart. Call Hydrate to restore persisted state.
func New(rc RemoteCart, opts ...Option) *Engine {
	e := &Engine{
		remote:     rc,
		clock:      clock.NewRealClock(),
		logger:     zap.NewNop(),
		notifier:   nopNotifier{},
		timeout:    defaultRemoteTimeout,
		lanes:      map[int64]*lane{},
		aliases:    map[int64]int64{},
		tombstones: map[int64]struct{}{},
		orphans:    map[int64]struct{}{},
	}
	for _, opt := range opts {
		opt(e)
	}
	storeOpts := []cartstore.Option{cartstore.WithLogger(e.logger)}
	if e.snapshots != nil {
		storeOpts = append(storeOpts, cartstore.WithPersister(e.snapshots))
	}
	e.store = cartstore.New(storeOpts...)
	return e
}

// Store exposes the local cart for display and selection.
func (e *Engine) Store() *cartstore.Store {
	return e.store
}

// Hydrate replaces the local state with the persisted snapshot. Without a snapshot
// store it is a no-op.
func (e *Engine) Hydrate(ctx context.Context) error {
	if e.snapshots == nil {
		return nil
	}
	snap, err := e.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("hydrate cart: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.ErrClosed
	}
	e.store.Load(snap)
	e.orphans = map[int64]struct{}{}
	for _, item := range e.store.Items() {
		if item.IsTemporary() {
			e.orphans[item.ID] = struct{}{}
		}
	}
	pending := len(e.orphans)
	e.logger.Info("cart hydrated",
		zap.Int("items", len(snap.Items)),
		zap.Int("pending", pending),
		zap.Int("selected", len(snap.SelectedItems)),
	)
	return nil
}

// AddItem shows the line immediately under a temporary id, or folds the quantity into
// the existing line for the variant, and then adds it on the service.
func (e *Engine) AddItem(ctx context.Context, variantID int64, quantity int) (*Op, error) {
	if variantID <= 0 {
		return nil, &domain.ValidationError{Field: "productVariantId", Reason: "must be positive"}
	}
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, domain.ErrClosed
	}

	tempID := e.nextTempIDLocked()
	res := e.store.AddItemOptimistic(domain.CartItem{
		ID:               tempID,
		Kind:             domain.KindPending,
		ProductVariantID: variantID,
		Quantity:         quantity,
		Variant:          domain.VariantSnapshot{ID: variantID, Product: domain.LoadingProduct()},
	})
	// The line now has an add in flight that will confirm it.
	delete(e.orphans, res.ID)
	op := newOp(res.ID)
	e.notifier.Notify(Notice{Level: LevelInfo, Op: opAdd, ItemID: res.ID, Message: "added to cart"})

	rctx := context.WithoutCancel(ctx)
	e.enqueueLocked(variantID, func() { e.runAdd(rctx, op, variantID, quantity, res) })
	return op, nil
}

func (e *Engine) runAdd(ctx context.Context, op *Op, variantID int64, quantity int, res cartstore.AddResult) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	server, err := e.remote.AddItem(callCtx, variantID, quantity)
	if err != nil {
		e.revertAdd(variantID, quantity)
		monitoring.RecordMutation(opAdd, "failure")
		monitoring.RecordRollback(opAdd)
		e.logger.Warn("add item failed", zap.Int64("variant_id", variantID), zap.Error(err))
		e.notifier.Notify(Notice{Level: LevelError, Op: opAdd, ItemID: res.ID, Message: "could not add item to cart", Err: err})
		op.finish(err)
		return
	}
	monitoring.RecordMutation(opAdd, "success")
	monitoring.RecordItemAdded()

	e.mu.Lock()
	if tempID, ok := e.pendingLineLocked(variantID, res); ok {
		e.aliases[tempID] = server.ID
		if _, removed := e.tombstones[tempID]; removed {
			e.tombstones[server.ID] = struct{}{}
		}
		delete(e.orphans, tempID)
		e.store.ConfirmID(tempID, server.ID, server.CartID)
	}
	e.mu.Unlock()
	op.confirmedID = server.ID

	refreshCtx, cancelRefresh := context.WithTimeout(ctx, e.timeout)
	defer cancelRefresh()
	if err := e.refresh(refreshCtx); err != nil {
		// The add went through; the response line is still better than the placeholder.
		e.store.AdoptServerItem(server)
		e.logger.Warn("refresh after add failed", zap.Int64("item_id", server.ID), zap.Error(err))
		e.notifier.Notify(Notice{Level: LevelWarning, Op: opAdd, ItemID: server.ID, Message: "item added, but the cart could not be refreshed", Err: err})
		op.warn = err
	}
	op.finish(nil)
}

// pendingLineLocked finds the temporary line a successful add confirms: the line this
// add created if it was removed while the call was in flight, otherwise the line now
// holding variantID if it is still pending.
func (e *Engine) pendingLineLocked(variantID int64, res cartstore.AddResult) (int64, bool) {
	if res.Created {
		_, removed := e.tombstones[res.ID]
		_, confirmed := e.aliases[res.ID]
		if removed && !confirmed {
			return res.ID, true
		}
	}
	if item, ok := e.store.ItemByVariant(variantID); ok && item.IsTemporary() {
		return item.ID, true
	}
	return 0, false
}

// revertAdd takes back only this add's quantity; later adds folded into the same
// line keep theirs.
func (e *Engine) revertAdd(variantID int64, quantity int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.RevertAdd(variantID, quantity)
}

// UpdateQuantity sets the quantity of line id locally and on the service. Unknown ids
// and unchanged quantities complete immediately without a remote call.
func (e *Engine) UpdateQuantity(ctx context.Context, id int64, quantity int) (*Op, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, domain.ErrClosed
	}

	item, ok := e.store.Item(id)
	if !ok {
		return completedOp(id), nil
	}
	prev, changed := e.store.UpdateQuantityOptimistic(id, quantity)
	if !changed {
		return completedOp(id), nil
	}
	op := newOp(id)
	rctx := context.WithoutCancel(ctx)
	e.enqueueLocked(item.ProductVariantID, func() { e.runUpdate(rctx, op, id, quantity, prev) })
	return op, nil
}

func (e *Engine) runUpdate(ctx context.Context, op *Op, id int64, quantity, prev int) {
	target, ok := e.resolve(id)
	if !ok || !e.store.Has(target) {
		monitoring.RecordMutation(opUpdate, "skipped")
		e.warnUnsynced(opUpdate, id)
		op.finish(nil)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	server, err := e.remote.UpdateItem(callCtx, target, quantity)
	if err != nil {
		monitoring.RecordMutation(opUpdate, "failure")
		if e.rollbackEdits {
			e.rollbackUpdate(target, quantity, prev)
		}
		e.logger.Warn("update quantity failed", zap.Int64("item_id", target), zap.Error(err))
		e.notifier.Notify(Notice{Level: LevelError, Op: opUpdate, ItemID: target, Message: "could not change quantity", Err: err})
		op.finish(err)
		return
	}
	monitoring.RecordMutation(opUpdate, "success")
	e.store.AdoptServerItem(server)
	op.confirmedID = target
	op.finish(nil)
}

func (e *Engine) rollbackUpdate(id int64, quantity, prev int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	current, ok := e.store.Item(id)
	if !ok || current.Quantity != quantity {
		return
	}
	if _, changed := e.store.UpdateQuantityOptimistic(id, prev); changed {
		monitoring.RecordRollback(opUpdate)
	}
}

// RemoveItem drops line id locally, evicting it from the selection, and deletes it on
// the service. Removing an unknown id completes immediately.
func (e *Engine) RemoveItem(ctx context.Context, id int64) (*Op, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, domain.ErrClosed
	}

	removal, ok := e.store.RemoveItemOptimistic(id)
	if !ok {
		return completedOp(id), nil
	}
	e.tombstones[id] = struct{}{}
	if serverID, ok := e.aliases[id]; ok {
		e.tombstones[serverID] = struct{}{}
	}

	op := newOp(id)
	rctx := context.WithoutCancel(ctx)
	e.enqueueLocked(removal.Item.ProductVariantID, func() { e.runRemove(rctx, op, removal) })
	return op, nil
}

func (e *Engine) runRemove(ctx context.Context, op *Op, removal cartstore.Removal) {
	id := removal.Item.ID
	target, ok := e.resolve(id)
	defer e.clearTombstones(id, target)
	if !ok {
		monitoring.RecordMutation(opRemove, "skipped")
		e.warnUnsynced(opRemove, id)
		op.finish(nil)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	err := e.remote.RemoveItem(callCtx, target)
	if err != nil && !remote.IsNotFound(err) {
		monitoring.RecordMutation(opRemove, "failure")
		if e.rollbackEdits {
			restored := removal
			restored.Item.ID = target
			restored.Item.Kind = domain.KindConfirmed
			e.mu.Lock()
			if e.store.Restore(restored) {
				monitoring.RecordRollback(opRemove)
			}
			e.mu.Unlock()
		}
		e.logger.Warn("remove item failed", zap.Int64("item_id", target), zap.Error(err))
		e.notifier.Notify(Notice{Level: LevelError, Op: opRemove, ItemID: target, Message: "could not remove item", Err: err})
		op.finish(err)
		return
	}
	monitoring.RecordMutation(opRemove, "success")
	op.confirmedID = target
	op.finish(nil)
}

// warnUnsynced tells the shopper that an edit to a restored, never-confirmed line
// stayed local. Edits to lines whose add is still in flight or failed stay silent.
func (e *Engine) warnUnsynced(op string, id int64) {
	e.mu.Lock()
	_, orphan := e.orphans[id]
	if orphan && !e.store.Has(id) {
		delete(e.orphans, id)
	}
	e.mu.Unlock()
	if !orphan {
		return
	}
	e.logger.Warn("edit on unsynced line kept local", zap.String("op", op), zap.Int64("item_id", id))
	msg := "quantity changed on this device only; the item was never saved to your cart"
	if op == opRemove {
		msg = "item removed on this device only; it was never saved to your cart"
	}
	e.notifier.Notify(Notice{Level: LevelWarning, Op: op, ItemID: id, Message: msg})
}

func (e *Engine) clearTombstones(ids ...int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		delete(e.tombstones, id)
	}
}

// Refresh fetches the authoritative cart and merges it into the local state.
// Concurrent refreshes share one request.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return domain.ErrClosed
	}
	err := e.refresh(ctx)
	if err != nil {
		monitoring.RecordMutation(opRefresh, "failure")
		return err
	}
	monitoring.RecordMutation(opRefresh, "success")
	return nil
}

func (e *Engine) refresh(ctx context.Context) error {
	ch := e.refreshes.DoChan("cart", func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
		server, err := e.remote.FetchCart(callCtx)
		if err != nil {
			return nil, fmt.Errorf("fetch cart: %w", err)
		}

		start := time.Now()
		e.mu.Lock()
		e.store.ApplyServer(reconcile.Filter(server, e.tombstonedLocked))
		e.foldOrphansLocked()
		e.mu.Unlock()
		monitoring.ObserveReconcile(time.Since(start))
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// foldOrphansLocked merges each restored pending line into the server line for the
// same variant, which already accounts for it. Orphans without one stay local-only.
func (e *Engine) foldOrphansLocked() {
	for id := range e.orphans {
		item, ok := e.store.Item(id)
		if !ok {
			delete(e.orphans, id)
			continue
		}
		for _, line := range e.store.Items() {
			if line.ProductVariantID != item.ProductVariantID || line.IsTemporary() {
				continue
			}
			e.aliases[id] = line.ID
			e.store.ConfirmID(id, line.ID, line.CartID)
			delete(e.orphans, id)
			e.logger.Debug("restored pending line folded into server line",
				zap.Int64("temp_id", id), zap.Int64("item_id", line.ID))
			break
		}
	}
}

func (e *Engine) tombstonedLocked(id int64) bool {
	_, ok := e.tombstones[id]
	return ok
}

// resolve maps a temporary id to its server id. It reports false for a temporary id
// whose add never succeeded.
func (e *Engine) resolve(id int64) (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if serverID, ok := e.aliases[id]; ok {
		return serverID, true
	}
	if item, ok := e.store.Item(id); ok && item.IsTemporary() {
		return 0, false
	}
	return id, id > 0
}

// nextTempIDLocked derives a negative id from the clock that is strictly below every
// id handed out before and unused in the store.
func (e *Engine) nextTempIDLocked() int64 {
	id := -e.clock.Now().UnixMilli()
	if id >= e.lastTemp {
		id = e.lastTemp - 1
	}
	for e.store.Has(id) {
		id--
	}
	e.lastTemp = id
	return id
}

// Close waits for in-flight remote calls, then stops persisting. Later mutations
// fail with domain.ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.wg.Wait()
	e.store.Close()
	return nil
}
