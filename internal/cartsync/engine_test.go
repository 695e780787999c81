package cartsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"storefront-cart/internal/clock"
	"storefront-cart/internal/domain"
	"storefront-cart/internal/persist"
	"storefront-cart/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory cart service.
type fakeRemote struct {
	mu     sync.Mutex
	nextID int64
	cartID int64
	prices map[int64]int64
	lines  []domain.CartItem
	calls  []string

	addErr     error
	updateErr  error
	removeErr  error
	fetchErr   error
	failAdds   int
	addGate    chan struct{}
	removeGate chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{nextID: 55, cartID: 3, prices: map[int64]int64{1: 100000, 2: 25000}}
}

func (f *fakeRemote) line(id, variant int64, qty int, price int64) domain.CartItem {
	item := domain.CartItem{
		ID:               id,
		Kind:             domain.KindConfirmed,
		CartID:           f.cartID,
		ProductVariantID: variant,
		Quantity:         qty,
		PriceAtAdd:       price,
		Variant: domain.VariantSnapshot{
			ID:      variant,
			Price:   price,
			Product: &domain.ProductSnapshot{ID: variant, Name: fmt.Sprintf("product %d", variant)},
		},
	}
	item.Reprice()
	return item
}

func (f *fakeRemote) seed(items ...domain.CartItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, items...)
}

func (f *fakeRemote) indexLocked(id int64) int {
	for idx := range f.lines {
		if f.lines[idx].ID == id {
			return idx
		}
	}
	return -1
}

func (f *fakeRemote) FetchCart(ctx context.Context) ([]domain.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return domain.CloneItems(f.lines), nil
}

func (f *fakeRemote) AddItem(ctx context.Context, variantID int64, quantity int) (domain.CartItem, error) {
	if f.addGate != nil {
		select {
		case <-f.addGate:
		case <-ctx.Done():
			return domain.CartItem{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("add:%d:%d", variantID, quantity))
	if f.addErr != nil {
		return domain.CartItem{}, f.addErr
	}
	if f.failAdds > 0 {
		f.failAdds--
		return domain.CartItem{}, errors.New("connection reset")
	}
	for idx := range f.lines {
		if f.lines[idx].ProductVariantID == variantID {
			f.lines[idx].Quantity += quantity
			return f.lines[idx].Clone(), nil
		}
	}
	item := f.line(f.nextID, variantID, quantity, f.prices[variantID])
	f.nextID++
	f.lines = append(f.lines, item)
	return item.Clone(), nil
}

func (f *fakeRemote) UpdateItem(ctx context.Context, id int64, quantity int) (domain.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("update:%d:%d", id, quantity))
	if f.updateErr != nil {
		return domain.CartItem{}, f.updateErr
	}
	idx := f.indexLocked(id)
	if idx < 0 {
		return domain.CartItem{}, &remote.StatusError{StatusCode: http.StatusNotFound, Message: "cart item not found"}
	}
	f.lines[idx].Quantity = quantity
	return f.lines[idx].Clone(), nil
}

func (f *fakeRemote) RemoveItem(ctx context.Context, id int64) error {
	if f.removeGate != nil {
		select {
		case <-f.removeGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("remove:%d", id))
	if f.removeErr != nil {
		return f.removeErr
	}
	idx := f.indexLocked(id)
	if idx < 0 {
		return &remote.StatusError{StatusCode: http.StatusNotFound, Message: "cart item not found"}
	}
	f.lines = append(f.lines[:idx], f.lines[idx+1:]...)
	return nil
}

func (f *fakeRemote) setErr(target *error, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*target = err
}

func (f *fakeRemote) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) byLevel(level Level) []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notice
	for _, n := range r.notices {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

func newTestEngine(t *testing.T, rc *fakeRemote, opts ...Option) (*Engine, *noticeRecorder) {
	t.Helper()
	notices := &noticeRecorder{}
	base := []Option{
		WithClock(clock.NewMockClock(time.UnixMilli(1000))),
		WithNotifier(notices),
		WithRemoteTimeout(time.Second),
	}
	e := New(rc, append(base, opts...)...)
	t.Cleanup(func() { _ = e.Close() })
	return e, notices
}

func waitOp(t *testing.T, op *Op) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := op.Wait(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "op did not finish")
	return err
}

func TestAddThenConfirmScenario(t *testing.T) {
	rc := newFakeRemote()
	rc.addGate = make(chan struct{})
	e, notices := newTestEngine(t, rc)
	ctx := context.Background()

	op, err := e.AddItem(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(-1000), op.ItemID)

	s := e.Store()
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, domain.KindPending, items[0].Kind)
	assert.Equal(t, domain.LoadingProductName, items[0].Variant.Product.Name)
	assert.Equal(t, 1, s.ItemCount())
	assert.Equal(t, []int64{-1000}, s.SelectedIDs())
	assert.Equal(t, int64(0), s.TotalPrice())
	assert.Len(t, notices.byLevel(LevelInfo), 1)

	close(rc.addGate)
	require.NoError(t, waitOp(t, op))
	assert.Equal(t, int64(55), op.ConfirmedID())
	assert.NoError(t, op.Warning())

	items = s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(55), items[0].ID)
	assert.Equal(t, domain.KindConfirmed, items[0].Kind)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, int64(100000), items[0].PriceAtAdd)
	assert.Equal(t, int64(100000), items[0].FinalPrice)
	assert.Equal(t, []int64{55}, s.SelectedIDs())
	assert.Empty(t, notices.byLevel(LevelError))
}

func TestTemporaryIDsAreUniqueWithinOneMillisecond(t *testing.T) {
	rc := newFakeRemote()
	rc.addGate = make(chan struct{})
	e, _ := newTestEngine(t, rc)

	first, err := e.AddItem(context.Background(), 1, 1)
	require.NoError(t, err)
	second, err := e.AddItem(context.Background(), 2, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(-1000), first.ItemID)
	assert.Equal(t, int64(-1001), second.ItemID)
	close(rc.addGate)
	require.NoError(t, waitOp(t, first))
	require.NoError(t, waitOp(t, second))
}

func TestAddFailureRemovesOptimisticLine(t *testing.T) {
	rc := newFakeRemote()
	rc.addErr = &remote.StatusError{StatusCode: http.StatusConflict, Message: "out of stock"}
	e, notices := newTestEngine(t, rc)

	op, err := e.AddItem(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Error(t, waitOp(t, op))

	assert.Empty(t, e.Store().Items())
	assert.Empty(t, e.Store().SelectedIDs())
	errs := notices.byLevel(LevelError)
	require.Len(t, errs, 1)
	assert.Equal(t, opAdd, errs[0].Op)
}

func TestAddFailureOnExistingLineRevertsOnlyItsQuantity(t *testing.T) {
	rc := newFakeRemote()
	rc.seed(rc.line(10, 1, 2, 100000))
	e, _ := newTestEngine(t, rc)
	require.NoError(t, e.Refresh(context.Background()))

	rc.setErr(&rc.addErr, errors.New("connection reset"))
	rc.addGate = make(chan struct{})
	op, err := e.AddItem(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), op.ItemID)

	item, ok := e.Store().Item(10)
	require.True(t, ok)
	assert.Equal(t, 3, item.Quantity)

	close(rc.addGate)
	assert.Error(t, waitOp(t, op))
	item, ok = e.Store().Item(10)
	require.True(t, ok)
	assert.Equal(t, 2, item.Quantity)
}

func TestFailedAddKeepsQuantityOfLaterAddOnSameLine(t *testing.T) {
	rc := newFakeRemote()
	rc.addGate = make(chan struct{})
	rc.failAdds = 1
	rc.fetchErr = errors.New("gateway timeout")
	e, notices := newTestEngine(t, rc)
	ctx := context.Background()

	first, err := e.AddItem(ctx, 1, 1)
	require.NoError(t, err)
	second, err := e.AddItem(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, first.ItemID, second.ItemID)

	close(rc.addGate)
	assert.Error(t, waitOp(t, first))
	require.NoError(t, waitOp(t, second))
	assert.Error(t, second.Warning())
	assert.Equal(t, int64(55), second.ConfirmedID())

	items := e.Store().Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(55), items[0].ID)
	assert.Equal(t, domain.KindConfirmed, items[0].Kind)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, []int64{55}, e.Store().SelectedIDs())
	assert.Len(t, notices.byLevel(LevelError), 1)
}

func TestFailedAddThenLaterAddConfirmsAfterRefresh(t *testing.T) {
	rc := newFakeRemote()
	rc.addGate = make(chan struct{})
	rc.failAdds = 1
	e, _ := newTestEngine(t, rc)
	ctx := context.Background()

	first, err := e.AddItem(ctx, 1, 1)
	require.NoError(t, err)
	second, err := e.AddItem(ctx, 1, 2)
	require.NoError(t, err)

	close(rc.addGate)
	assert.Error(t, waitOp(t, first))
	require.NoError(t, waitOp(t, second))
	assert.NoError(t, second.Warning())

	items := e.Store().Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(55), items[0].ID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, []int64{55}, e.Store().SelectedIDs())
}

func pendingLine(id, variant int64, qty int) domain.CartItem {
	return domain.CartItem{
		ID:               id,
		Kind:             domain.KindPending,
		ProductVariantID: variant,
		Quantity:         qty,
		Variant:          domain.VariantSnapshot{ID: variant, Product: domain.LoadingProduct()},
	}
}

func hydratedEngine(t *testing.T, rc *fakeRemote, items []domain.CartItem, selected []int64) (*Engine, *noticeRecorder) {
	t.Helper()
	p := persist.NewPersister(persist.NewMemory(), "shopper", nil)
	require.NoError(t, p.Save(domain.Snapshot{Version: domain.SnapshotVersion, Items: items, SelectedItems: selected}))
	e, notices := newTestEngine(t, rc, WithSnapshotStore(p))
	require.NoError(t, e.Hydrate(context.Background()))
	return e, notices
}

func TestRefreshFoldsRestoredPendingLineIntoServerLine(t *testing.T) {
	rc := newFakeRemote()
	rc.seed(rc.line(10, 1, 1, 100000))
	e, _ := hydratedEngine(t, rc, []domain.CartItem{pendingLine(-500, 1, 1)}, []int64{-500})

	require.NoError(t, e.Refresh(context.Background()))

	items := e.Store().Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(10), items[0].ID)
	assert.Equal(t, 1, e.Store().ItemCount())
	assert.Equal(t, []int64{10}, e.Store().SelectedIDs())

	op, err := e.UpdateQuantity(context.Background(), -500, 3)
	require.NoError(t, err)
	require.NoError(t, waitOp(t, op))
	assert.Empty(t, rc.recorded())
}

func TestEditOnRestoredPendingLineWarns(t *testing.T) {
	rc := newFakeRemote()
	e, notices := hydratedEngine(t, rc, []domain.CartItem{pendingLine(-500, 2, 1)}, []int64{-500})
	ctx := context.Background()

	update, err := e.UpdateQuantity(ctx, -500, 3)
	require.NoError(t, err)
	require.NoError(t, waitOp(t, update))

	remove, err := e.RemoveItem(ctx, -500)
	require.NoError(t, err)
	require.NoError(t, waitOp(t, remove))

	warnings := notices.byLevel(LevelWarning)
	require.Len(t, warnings, 2)
	assert.Equal(t, opUpdate, warnings[0].Op)
	assert.Equal(t, opRemove, warnings[1].Op)
	assert.Empty(t, rc.recorded())
	assert.Empty(t, e.Store().Items())
}

func TestAddOnRestoredPendingLineConfirmsIt(t *testing.T) {
	rc := newFakeRemote()
	e, notices := hydratedEngine(t, rc, []domain.CartItem{pendingLine(-500, 2, 1)}, []int64{-500})

	op, err := e.AddItem(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(-500), op.ItemID)
	require.NoError(t, waitOp(t, op))

	items := e.Store().Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(55), items[0].ID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, []int64{55}, e.Store().SelectedIDs())
	assert.Empty(t, notices.byLevel(LevelWarning))
}

func TestRefreshFailureAfterAddIsAWarning(t *testing.T) {
	rc := newFakeRemote()
	rc.fetchErr = errors.New("gateway timeout")
	e, notices := newTestEngine(t, rc)

	op, err := e.AddItem(context.Background(), 1, 1)
	require.NoError(t, err)
	require.NoError(t, waitOp(t, op))
	assert.Error(t, op.Warning())

	items := e.Store().Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(55), items[0].ID)
	assert.Equal(t, int64(100000), items[0].FinalPrice)
	assert.Equal(t, []int64{55}, e.Store().SelectedIDs())
	assert.Len(t, notices.byLevel(LevelWarning), 1)
	assert.Empty(t, notices.byLevel(LevelError))
}

func TestUpdateDuringInFlightAddTargetsServerID(t *testing.T) {
	rc := newFakeRemote()
	rc.addGate = make(chan struct{})
	e, _ := newTestEngine(t, rc)
	ctx := context.Background()

	add, err := e.AddItem(ctx, 1, 1)
	require.NoError(t, err)
	update, err := e.UpdateQuantity(ctx, add.ItemID, 4)
	require.NoError(t, err)

	item, ok := e.Store().Item(add.ItemID)
	require.True(t, ok)
	assert.Equal(t, 4, item.Quantity)

	close(rc.addGate)
	require.NoError(t, waitOp(t, add))
	require.NoError(t, waitOp(t, update))

	assert.Equal(t, []string{"add:1:1", "update:55:4"}, rc.recorded())
	item, ok = e.Store().Item(55)
	require.True(t, ok)
	assert.Equal(t, 4, item.Quantity)
	assert.Equal(t, int64(400000), item.LineTotal())
}

func TestRemoveDuringInFlightAddDeletesServerLine(t *testing.T) {
	rc := newFakeRemote()
	rc.addGate = make(chan struct{})
	e, _ := newTestEngine(t, rc)
	ctx := context.Background()

	add, err := e.AddItem(ctx, 1, 1)
	require.NoError(t, err)
	rm, err := e.RemoveItem(ctx, add.ItemID)
	require.NoError(t, err)
	assert.Empty(t, e.Store().Items())
	assert.Empty(t, e.Store().SelectedIDs())

	close(rc.addGate)
	require.NoError(t, waitOp(t, add))
	require.NoError(t, waitOp(t, rm))

	assert.Equal(t, []string{"add:1:1", "remove:55"}, rc.recorded())
	assert.Empty(t, e.Store().Items())

	require.NoError(t, e.Refresh(ctx))
	assert.Empty(t, e.Store().Items())
}

func TestUpdatesOnOneLineReachServiceInOrder(t *testing.T) {
	rc := newFakeRemote()
	rc.seed(rc.line(10, 1, 1, 100))
	e, _ := newTestEngine(t, rc)
	ctx := context.Background()
	require.NoError(t, e.Refresh(ctx))

	var ops []*Op
	var want []string
	for qty := 2; qty <= 20; qty++ {
		op, err := e.UpdateQuantity(ctx, 10, qty)
		require.NoError(t, err)
		ops = append(ops, op)
		want = append(want, fmt.Sprintf("update:10:%d", qty))
	}
	for _, op := range ops {
		require.NoError(t, waitOp(t, op))
	}
	assert.Equal(t, want, rc.recorded())
	item, _ := e.Store().Item(10)
	assert.Equal(t, 20, item.Quantity)
}

func TestUpdateQuantityNoops(t *testing.T) {
	rc := newFakeRemote()
	rc.seed(rc.line(10, 1, 2, 100))
	e, _ := newTestEngine(t, rc)
	ctx := context.Background()
	require.NoError(t, e.Refresh(ctx))
	before := e.Store().Snapshot()

	_, err := e.UpdateQuantity(ctx, 10, 0)
	assert.True(t, errors.Is(err, domain.ErrInvalidQuantity))

	op, err := e.UpdateQuantity(ctx, 10, 2)
	require.NoError(t, err)
	require.NoError(t, waitOp(t, op))

	op, err = e.UpdateQuantity(ctx, 999, 3)
	require.NoError(t, err)
	require.NoError(t, waitOp(t, op))

	assert.Equal(t, before, e.Store().Snapshot())
	assert.Empty(t, rc.recorded())
}

func TestRemoveUnknownIDIsIdempotent(t *testing.T) {
	rc := newFakeRemote()
	e, _ := newTestEngine(t, rc)

	op, err := e.RemoveItem(context.Background(), 42)
	require.NoError(t, err)
	require.NoError(t, waitOp(t, op))
	assert.Empty(t, rc.recorded())
}

func TestFailedUpdateKeepsLocalQuantityByDefault(t *testing.T) {
	rc := newFakeRemote()
	rc.seed(rc.line(10, 1, 1, 100))
	e, notices := newTestEngine(t, rc)
	ctx := context.Background()
	require.NoError(t, e.Refresh(ctx))

	rc.setErr(&rc.updateErr, errors.New("boom"))
	op, err := e.UpdateQuantity(ctx, 10, 5)
	require.NoError(t, err)
	assert.Error(t, waitOp(t, op))

	item, _ := e.Store().Item(10)
	assert.Equal(t, 5, item.Quantity)
	assert.Len(t, notices.byLevel(LevelError), 1)
}

func TestFailedUpdateRollsBackWhenEnabled(t *testing.T) {
	rc := newFakeRemote()
	rc.seed(rc.line(10, 1, 1, 100))
	e, _ := newTestEngine(t, rc, WithRollbackFailedEdits(true))
	ctx := context.Background()
	require.NoError(t, e.Refresh(ctx))

	rc.setErr(&rc.updateErr, errors.New("boom"))
	op, err := e.UpdateQuantity(ctx, 10, 5)
	require.NoError(t, err)
	assert.Error(t, waitOp(t, op))

	item, _ := e.Store().Item(10)
	assert.Equal(t, 1, item.Quantity)
}

func TestFailedRemoveStaysRemovedUntilRefreshByDefault(t *testing.T) {
	rc := newFakeRemote()
	rc.seed(rc.line(10, 1, 1, 100))
	e, _ := newTestEngine(t, rc)
	ctx := context.Background()
	require.NoError(t, e.Refresh(ctx))

	rc.setErr(&rc.removeErr, errors.New("boom"))
	op, err := e.RemoveItem(ctx, 10)
	require.NoError(t, err)
	assert.Error(t, waitOp(t, op))
	assert.False(t, e.Store().Has(10))

	require.NoError(t, e.Refresh(ctx))
	assert.True(t, e.Store().Has(10))
}

func TestFailedRemoveRestoresLineAndSelectionWhenEnabled(t *testing.T) {
	rc := newFakeRemote()
	rc.seed(rc.line(10, 1, 1, 100), rc.line(11, 2, 1, 100))
	e, _ := newTestEngine(t, rc, WithRollbackFailedEdits(true))
	ctx := context.Background()
	require.NoError(t, e.Refresh(ctx))
	e.Store().SelectAll(true, []int64{10, 11})

	rc.setErr(&rc.removeErr, errors.New("boom"))
	rc.removeGate = make(chan struct{})
	op, err := e.RemoveItem(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, e.Store().SelectedIDs())
	close(rc.removeGate)
	assert.Error(t, waitOp(t, op))

	assert.Equal(t, []int64{10, 11}, e.Store().ItemIDs())
	assert.Equal(t, []int64{10, 11}, e.Store().SelectedIDs())
}

func TestRemoveOfLineAlreadyGoneOnServerSucceeds(t *testing.T) {
	rc := newFakeRemote()
	rc.seed(rc.line(10, 1, 1, 100))
	e, notices := newTestEngine(t, rc)
	ctx := context.Background()
	require.NoError(t, e.Refresh(ctx))

	// another device removed it first
	require.NoError(t, rc.RemoveItem(ctx, 10))

	op, err := e.RemoveItem(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, waitOp(t, op))
	assert.Empty(t, notices.byLevel(LevelError))
}

func TestRefreshKeepsLocalQuantity(t *testing.T) {
	backend := persist.NewMemory()
	store := persist.NewPersister(backend, "shopper", nil)
	local := domain.CartItem{ID: 7, Kind: domain.KindConfirmed, ProductVariantID: 1, Quantity: 3, PriceAtAdd: 50000,
		Variant: domain.VariantSnapshot{ID: 1, Product: &domain.ProductSnapshot{ID: 1, Name: "old"}}}
	require.NoError(t, store.Save(domain.Snapshot{Version: domain.SnapshotVersion, Items: []domain.CartItem{local}, SelectedItems: []int64{7, 8}}))

	rc := newFakeRemote()
	rc.seed(rc.line(7, 1, 1, 50000))
	e, _ := newTestEngine(t, rc, WithSnapshotStore(store))
	ctx := context.Background()
	require.NoError(t, e.Hydrate(ctx))
	assert.Equal(t, []int64{7}, e.Store().SelectedIDs())

	require.NoError(t, e.Refresh(ctx))
	item, ok := e.Store().Item(7)
	require.True(t, ok)
	assert.Equal(t, 3, item.Quantity)
	assert.Equal(t, int64(50000), item.FinalPrice)
	assert.Equal(t, int64(150000), item.LineTotal())
	assert.Equal(t, "product 1", item.Variant.Product.Name)
}

func TestRefreshErrorLeavesStateAlone(t *testing.T) {
	rc := newFakeRemote()
	rc.seed(rc.line(10, 1, 1, 100))
	e, _ := newTestEngine(t, rc)
	ctx := context.Background()
	require.NoError(t, e.Refresh(ctx))
	before := e.Store().Snapshot()

	rc.setErr(&rc.fetchErr, errors.New("down"))
	assert.Error(t, e.Refresh(ctx))
	assert.Equal(t, before, e.Store().Snapshot())
}

func TestStatePersistsAcrossEngines(t *testing.T) {
	backend := persist.NewMemory()
	rc := newFakeRemote()
	ctx := context.Background()

	first, _ := newTestEngine(t, rc, WithSnapshotStore(persist.NewPersister(backend, "shopper", nil)))
	op, err := first.AddItem(ctx, 2, 3)
	require.NoError(t, err)
	require.NoError(t, waitOp(t, op))
	require.NoError(t, first.Close())

	second, _ := newTestEngine(t, rc, WithSnapshotStore(persist.NewPersister(backend, "shopper", nil)))
	require.NoError(t, second.Hydrate(ctx))
	assert.Equal(t, first.Store().Items(), second.Store().Items())
	assert.Equal(t, []int64{55}, second.Store().SelectedIDs())
}

func TestCloseWaitsForInFlightAndRejectsNewWork(t *testing.T) {
	rc := newFakeRemote()
	rc.addGate = make(chan struct{})
	e, _ := newTestEngine(t, rc)
	ctx := context.Background()

	op, err := e.AddItem(ctx, 1, 1)
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		_ = e.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close returned while an add was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(rc.addGate)
	<-closed

	select {
	case <-op.Done():
	default:
		t.Fatal("op not finished after Close")
	}
	_, err = e.AddItem(ctx, 1, 1)
	assert.True(t, errors.Is(err, domain.ErrClosed))
	_, err = e.UpdateQuantity(ctx, 55, 2)
	assert.True(t, errors.Is(err, domain.ErrClosed))
	_, err = e.RemoveItem(ctx, 55)
	assert.True(t, errors.Is(err, domain.ErrClosed))
	assert.True(t, errors.Is(e.Refresh(ctx), domain.ErrClosed))
}

func TestAddValidatesInput(t *testing.T) {
	e, _ := newTestEngine(t, newFakeRemote())
	_, err := e.AddItem(context.Background(), 0, 1)
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
	_, err = e.AddItem(context.Background(), 1, 0)
	assert.True(t, errors.Is(err, domain.ErrInvalidQuantity))
}
