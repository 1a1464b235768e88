// Package query keeps the state of a cached remote read for a single
// consumer: it serves fresh cache entries without touching the network,
// fetches on a miss or a forced refresh, and writes results back to the cache.
package query

import (
	"context"
	"sync"

	"github.com/chrisvdg/moviecache/cache"
	log "github.com/sirupsen/logrus"
)

const unknownError = "Unknown error"

// FetchFn loads the data for a query from its source
type FetchFn[T any] func(ctx context.Context) (T, error)

// State is a snapshot of a query.
// A single run never sets both IsLoading and IsRefetching. Overlapping runs
// may, and the first of them to finish clears both.
type State[T any] struct {
	// Data is the last known value, valid when HasData is set
	Data    T
	HasData bool
	// Error is the message of the last failed run, empty otherwise
	Error string
	// IsLoading is set while fetching with nothing cached to show
	IsLoading bool
	// IsRefetching is set while a forced refresh is in flight
	IsRefetching bool
}

// Query tracks one cached read.
// Runs are not deduplicated: concurrent runs all fetch and the last one to
// finish wins. Results of runs started before a key change or Unmount are
// dropped.
type Query[T any] struct {
	cache *cache.Cache
	fetch FetchFn[T]
	opts  options[T]

	m            sync.Mutex
	key          string
	state        State[T]
	gen          uint64
	mounted      bool
	closed       bool
	nextRun      uint64
	inflight     map[uint64]context.CancelFunc
	nextListener int
	listeners    map[int]func(State[T])
}

// New creates a query for the cache key built from key.
// Data already cached for that key is available right away; nothing is fetched
// until Mount or Refetch.
func New[T any](c *cache.Cache, key []any, fetch FetchFn[T], opts ...Option[T]) *Query[T] {
	o := defaultOptions[T]()
	for _, opt := range opts {
		opt(&o)
	}

	q := &Query[T]{
		cache:     c,
		fetch:     fetch,
		opts:      o,
		key:       cache.BuildKey(key...),
		inflight:  make(map[uint64]context.CancelFunc),
		listeners: make(map[int]func(State[T])),
	}
	if data, ok := cache.Get(c, q.key, o.codec); ok {
		q.state.Data = data
		q.state.HasData = true
	}

	return q
}

// Key returns the current cache key
func (q *Query[T]) Key() string {
	q.m.Lock()
	defer q.m.Unlock()
	return q.key
}

// State returns the current state
func (q *Query[T]) State() State[T] {
	q.m.Lock()
	defer q.m.Unlock()
	return q.state
}

// Subscribe registers fn to be called with every state change.
// The returned function removes the subscription.
func (q *Query[T]) Subscribe(fn func(State[T])) func() {
	q.m.Lock()
	id := q.nextListener
	q.nextListener++
	q.listeners[id] = fn
	q.m.Unlock()

	return func() {
		q.m.Lock()
		delete(q.listeners, id)
		q.m.Unlock()
	}
}

// Mount starts the query. When enabled it runs right away, bypassing the
// cache if refetch on mount is set. It returns once the run settled.
func (q *Query[T]) Mount(ctx context.Context) {
	q.m.Lock()
	q.mounted = true
	q.closed = false
	q.m.Unlock()

	if q.opts.enabled {
		q.run(ctx, q.opts.refetchOnMount)
	}
}

// SetKey switches the query to the key built from parts.
// A mounted, enabled query runs again for the new key.
func (q *Query[T]) SetKey(ctx context.Context, parts ...any) {
	key := cache.BuildKey(parts...)

	q.m.Lock()
	if key == q.key {
		q.m.Unlock()
		return
	}
	q.key = key
	q.gen++
	// runs for the old key no longer own the flags
	q.state.IsLoading = false
	q.state.IsRefetching = false
	mounted := q.mounted
	snapshot, listeners := q.state, q.listenerList()
	q.m.Unlock()

	notify(listeners, snapshot)
	if mounted && q.opts.enabled {
		q.run(ctx, q.opts.refetchOnMount)
	}
}

// Refetch drops the cache entry and fetches again, whatever the cache held
// An unmounted query keeps its cache entry and does nothing.
func (q *Query[T]) Refetch(ctx context.Context) {
	q.m.Lock()
	closed, key := q.closed, q.key
	q.m.Unlock()
	if closed {
		return
	}

	q.cache.Invalidate(key)
	q.run(ctx, true)
}

// Unmount cancels in-flight fetches and stops state updates
func (q *Query[T]) Unmount() {
	q.m.Lock()
	q.mounted = false
	q.closed = true
	q.gen++
	for id, cancel := range q.inflight {
		cancel()
		delete(q.inflight, id)
	}
	q.m.Unlock()
}

func (q *Query[T]) run(ctx context.Context, force bool) {
	q.m.Lock()
	if q.closed {
		q.m.Unlock()
		return
	}
	key, gen := q.key, q.gen
	ctx, cancel := context.WithCancel(ctx)
	id := q.nextRun
	q.nextRun++
	q.inflight[id] = cancel
	q.m.Unlock()

	defer func() {
		q.m.Lock()
		delete(q.inflight, id)
		q.m.Unlock()
		cancel()
	}()

	q.commit(gen, func(s *State[T]) {
		if force {
			s.IsRefetching = true
		}
		s.Error = ""
	})

	cached, ok := cache.Get(q.cache, key, q.opts.codec)
	switch {
	case ok && !force:
		if q.commit(gen, func(s *State[T]) {
			s.Data = cached
			s.HasData = true
			s.IsLoading = false
			s.IsRefetching = false
		}) {
			q.succeeded(cached)
		}
		return
	case ok:
		// keep showing the stale value while revalidating
		q.commit(gen, func(s *State[T]) {
			s.Data = cached
			s.HasData = true
		})
	case !force:
		q.commit(gen, func(s *State[T]) { s.IsLoading = true })
	}

	data, err := q.fetch(ctx)
	if err != nil {
		msg := errorMessage(err)
		log.Debugf("query %s failed: %s", key, msg)
		if q.commit(gen, func(s *State[T]) {
			s.Error = msg
			s.IsLoading = false
			s.IsRefetching = false
		}) {
			q.failed(msg)
		}
		return
	}

	cache.Set(q.cache, key, data, q.opts.codec, q.opts.ttl)
	if q.commit(gen, func(s *State[T]) {
		s.Data = data
		s.HasData = true
		s.IsLoading = false
		s.IsRefetching = false
	}) {
		q.succeeded(data)
	}
}

// commit applies fn when the run that started at gen is still current
func (q *Query[T]) commit(gen uint64, fn func(*State[T])) bool {
	q.m.Lock()
	if gen != q.gen || q.closed {
		q.m.Unlock()
		return false
	}
	fn(&q.state)
	snapshot, listeners := q.state, q.listenerList()
	q.m.Unlock()

	notify(listeners, snapshot)
	return true
}

func (q *Query[T]) succeeded(data T) {
	if q.opts.onSuccess != nil {
		q.opts.onSuccess(data)
	}
	if q.opts.onSettled != nil {
		q.opts.onSettled(&data, "")
	}
}

func (q *Query[T]) failed(msg string) {
	if q.opts.onError != nil {
		q.opts.onError(msg)
	}
	if q.opts.onSettled != nil {
		q.opts.onSettled(nil, msg)
	}
}

// listenerList must be called with the lock held
func (q *Query[T]) listenerList() []func(State[T]) {
	out := make([]func(State[T]), 0, len(q.listeners))
	for _, fn := range q.listeners {
		out = append(out, fn)
	}
	return out
}

func notify[T any](listeners []func(State[T]), s State[T]) {
	for _, fn := range listeners {
		fn(s)
	}
}

func errorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return unknownError
	}
	return err.Error()
}
