package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Broadcaster forwards local writes to other instances sharing the same backend.
type Broadcaster interface {
	Publish(collection string)
}

// Hub fans change signals out to subscribed queries. Every watcher owns a
// goroutine and a one slot signal, so bursts of writes collapse into a single
// refetch and a slow watcher never blocks a writer.
type Hub struct {
	mu          sync.Mutex
	watchers    map[string]map[*watcher]struct{}
	broadcaster Broadcaster
}

type watcher struct {
	signal chan struct{}
	done   chan struct{}
	once   sync.Once

	// mu is held for the whole of a delivery, so stop waits for one in flight.
	mu     sync.Mutex
	closed bool
}

func (w *watcher) stop() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.once.Do(func() { close(w.done) })
}

func (w *watcher) deliver(ctx context.Context, fn ChangeFunc, snapshot Snapshot, err error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || ctx.Err() != nil {
		return false
	}
	fn(snapshot, err)
	return true
}

func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[*watcher]struct{})}
}

func (h *Hub) SetBroadcaster(b Broadcaster) {
	h.mu.Lock()
	h.broadcaster = b
	h.mu.Unlock()
}

// Watch starts delivering fetch results to fn until the returned handle is
// called or ctx is done. The handle waits for a delivery in progress, so no
// call to fn happens after it returns. It must not be called from inside fn.
func (h *Hub) Watch(ctx context.Context, collection string, fetch func(ctx context.Context) (Snapshot, error), fn ChangeFunc) Unsubscribe {
	w := &watcher{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.watchers[collection] == nil {
		h.watchers[collection] = make(map[*watcher]struct{})
	}
	h.watchers[collection][w] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer h.remove(collection, w)
		for {
			snapshot, err := fetch(ctx)
			if !w.deliver(ctx, fn, snapshot, err) {
				return
			}

			select {
			case <-w.signal:
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return w.stop
}

func (h *Hub) remove(collection string, w *watcher) {
	w.stop()
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.watchers[collection]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(h.watchers, collection)
		}
	}
}

// Notify signals local watchers and forwards the change to other instances.
func (h *Hub) Notify(collection string) {
	h.Deliver(collection)

	h.mu.Lock()
	b := h.broadcaster
	h.mu.Unlock()
	if b != nil {
		b.Publish(collection)
	}
}

// Deliver signals local watchers only. It is used for changes made elsewhere.
func (h *Hub) Deliver(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers[collection] {
		select {
		case w.signal <- struct{}{}:
		default:
		}
	}
	log.Trace().Str("collection", collection).Int("watchers", len(h.watchers[collection])).Msg("Delivered change signal.")
}

// Count reports how many watchers are attached to a collection.
func (h *Hub) Count(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[collection])
}

// Close stops every watcher.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*watcher
	for _, set := range h.watchers {
		for w := range set {
			all = append(all, w)
		}
	}
	h.mu.Unlock()
	for _, w := range all {
		w.stop()
	}
}
