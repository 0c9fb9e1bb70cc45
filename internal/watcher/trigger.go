package watcher

import (
	"sync"
)

// Trigger is a coalescing rebuild signal. Its channel has capacity one, so
// any number of Notify calls before the consumer wakes up collapse into a
// single pending rebuild carrying the union of their paths.
type Trigger struct {
	ch      chan struct{}
	mutex   sync.Mutex
	pending map[string]bool
}

// NewTrigger creates an idle trigger.
func NewTrigger() *Trigger {
	return &Trigger{
		ch:      make(chan struct{}, 1),
		pending: make(map[string]bool),
	}
}

// Notify records paths and requests a rebuild. It never blocks.
func (t *Trigger) Notify(paths ...string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for _, path := range paths {
		t.pending[path] = true
	}

	select {
	case t.ch <- struct{}{}:
	default:
	}
}

// C is signalled when a rebuild is pending.
func (t *Trigger) C() <-chan struct{} {
	return t.ch
}

// Drain returns and clears the paths gathered since the last Drain. A
// signal raised by a Notify whose paths are returned here is cleared too.
func (t *Trigger) Drain() []string {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	select {
	case <-t.ch:
	default:
	}

	paths := sortedKeys(t.pending)
	t.pending = make(map[string]bool)
	return paths
}
