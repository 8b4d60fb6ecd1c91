package attendance

import (
	"context"
	"sync"
)

// ResultState tags the active variant of a Result.
type ResultState int

const (
	// StateLoading means the query is resolving. No payload.
	StateLoading ResultState = iota
	// StateSuccess carries a value, possibly stale when served from the
	// cache because the remote was unreachable.
	StateSuccess
	// StateError carries a classified failure.
	StateError
)

// Result is a tagged value with exactly one active variant at a time:
// Loading, Success(value, stale) or Error(err).
type Result[T any] struct {
	State ResultState
	Value T
	Stale bool
	Err   error
}

// Loading returns the loading variant.
func Loading[T any]() Result[T] {
	return Result[T]{State: StateLoading}
}

// Success returns the success variant. stale marks a value served from
// the cache while the remote was unreachable.
func Success[T any](value T, stale bool) Result[T] {
	return Result[T]{State: StateSuccess, Value: value, Stale: stale}
}

// Failure returns the error variant.
func Failure[T any](err error) Result[T] {
	return Result[T]{State: StateError, Err: err}
}

// Stream is an observable Result. It starts at Loading, resolves to
// exactly one terminal state per invocation, and stays there until
// Reload re-invokes the resolver. Multiple consumers may subscribe to
// the same stream; each sees the current state on subscription and every
// transition after it.
type Stream[T any] struct {
	mu      sync.Mutex
	cur     Result[T]
	subs    map[int]chan Result[T]
	nextSub int
	gen     int // invocation generation; late resolutions are discarded

	resolve func(context.Context) Result[T]
	runCtx  context.Context
}

// NewStream creates a stream and starts resolving immediately.
// runCtx bounds the resolver's I/O: it is the owning engine's lifetime,
// not any single subscriber's, so an abandoned subscription does not
// cancel in-flight work or its cache side effects.
func NewStream[T any](runCtx context.Context, resolve func(context.Context) Result[T]) *Stream[T] {
	s := &Stream[T]{
		cur:     Loading[T](),
		subs:    make(map[int]chan Result[T]),
		resolve: resolve,
		runCtx:  runCtx,
	}
	go s.run(s.gen)
	return s
}

// Current returns the stream's state at this instant.
func (s *Stream[T]) Current() Result[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Subscribe registers a consumer. The channel immediately yields the
// current state, then every subsequent transition. It is closed when ctx
// is done. Slow consumers are conflated to the latest state, never
// blocked on.
func (s *Stream[T]) Subscribe(ctx context.Context) <-chan Result[T] {
	ch := make(chan Result[T], 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.cur
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	}()

	return ch
}

// Reload resets the stream to Loading and re-invokes the resolver. Any
// still-running previous invocation is discarded when it completes.
func (s *Stream[T]) Reload() {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.set(Loading[T]())
	s.mu.Unlock()

	go s.run(gen)
}

// run resolves one invocation and publishes its terminal state, unless a
// newer invocation has superseded it in the meantime.
func (s *Stream[T]) run(gen int) {
	res := s.resolve(s.runCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.set(res)
}

// refresh replaces the payload of a terminal Success state, used when a
// cache write makes a newer confirmed value visible to live observers.
// Loading and Error states are left alone.
func (s *Stream[T]) refresh(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur.State != StateSuccess {
		return
	}
	s.set(Success(value, false))
}

// set updates the current state and fans it out. Callers hold s.mu.
func (s *Stream[T]) set(res Result[T]) {
	s.cur = res
	for _, ch := range s.subs {
		// Conflate: drop the undelivered previous state if the consumer
		// hasn't read it yet.
		select {
		case <-ch:
		default:
		}
		ch <- res
	}
}
