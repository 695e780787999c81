package cartsync

// lane serializes the remote calls for one product variant in dispatch order.
type lane struct {
	tail    chan struct{}
	pending int
}

// enqueueLocked schedules run after every earlier call on the same variant.
// e.mu must be held.
func (e *Engine) enqueueLocked(variantID int64, run func()) {
	l, ok := e.lanes[variantID]
	if !ok {
		l = &lane{}
		e.lanes[variantID] = l
	}
	prev := l.tail
	done := make(chan struct{})
	l.tail = done
	l.pending++

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if prev != nil {
			<-prev
		}
		run()
		close(done)

		e.mu.Lock()
		l.pending--
		if l.pending == 0 && e.lanes[variantID] == l {
			delete(e.lanes, variantID)
		}
		e.mu.Unlock()
	}()
}
