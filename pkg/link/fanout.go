// ABOUTME: Ordered timeline fan-out shared by every session implementation
// ABOUTME: Subscribers see the initial value and each update in the order they were made
package link

import "sync"

// Fanout delivers timeline changes to subscribers. Updates and initial
// deliveries are serialized, so a subscriber never receives a timeline
// older than one it already has.
//
// Subscriber funcs run with the fan-out's ordering lock held and must not
// call Apply or Subscribe on the same Fanout.
type Fanout struct {
	order sync.Mutex // serializes Apply and initial deliveries

	mu     sync.Mutex // guards fns
	nextID int
	fns    map[int]func(Timeline)
}

// Apply runs next and, if it reports a change, delivers the returned
// timeline to every subscriber before any later Apply or Subscribe.
// Sessions make every timeline write inside next.
func (f *Fanout) Apply(next func() (Timeline, bool)) {
	f.order.Lock()
	defer f.order.Unlock()

	tl, changed := next()
	if !changed {
		return
	}

	f.mu.Lock()
	fns := make([]func(Timeline), 0, len(f.fns))
	for _, fn := range f.fns {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(tl)
	}
}

// Subscribe registers fn and delivers current() to it. The returned
// cancel func is idempotent.
func (f *Fanout) Subscribe(current func() Timeline, fn func(Timeline)) (cancel func()) {
	f.order.Lock()
	defer f.order.Unlock()

	f.mu.Lock()
	if f.fns == nil {
		f.fns = make(map[int]func(Timeline))
	}
	f.nextID++
	id := f.nextID
	f.fns[id] = fn
	f.mu.Unlock()

	fn(current())

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.fns, id)
			f.mu.Unlock()
		})
	}
}

// Count returns the number of subscribers
func (f *Fanout) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fns)
}
