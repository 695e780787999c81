package cartsync

import (
	"context"
	"sync"
)

// Op tracks the remote half of one optimistic mutation. The local half has already
// been applied when the Op is returned.
type Op struct {
	// ItemID is the line the mutation was applied to locally. For a new line it is
	// the temporary id.
	ItemID int64

	done chan struct{}
	once sync.Once

	confirmedID int64
	err         error
	warn        error
}

func newOp(itemID int64) *Op {
	return &Op{ItemID: itemID, done: make(chan struct{})}
}

func completedOp(itemID int64) *Op {
	op := newOp(itemID)
	op.finish(nil)
	return op
}

func (o *Op) finish(err error) {
	o.once.Do(func() {
		o.err = err
		close(o.done)
	})
}

// Done is closed when the remote call and its follow-up have finished.
func (o *Op) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the op finishes or ctx ends and returns the op's error.
func (o *Op) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err is the remote failure, if any. Only meaningful after Done.
func (o *Op) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Warning is a non-fatal problem such as a failed refresh after a successful add.
func (o *Op) Warning() error {
	select {
	case <-o.done:
		return o.warn
	default:
		return nil
	}
}

// ConfirmedID is the server id of the line once the op succeeded, or 0.
func (o *Op) ConfirmedID() int64 {
	select {
	case <-o.done:
		return o.confirmedID
	default:
		return 0
	}
}
