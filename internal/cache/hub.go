package cache

import (
	"context"
	"sync"

	"attrack/internal/attendance"
)

// watchHub fans cache writes out to watchers. Publishing never blocks:
// a watcher that falls behind loses the oldest undelivered event.
type watchHub struct {
	mu   sync.Mutex
	subs map[int]chan *attendance.Record
	next int
}

func newWatchHub() *watchHub {
	return &watchHub{subs: make(map[int]chan *attendance.Record)}
}

func (h *watchHub) subscribe(ctx context.Context) <-chan *attendance.Record {
	ch := make(chan *attendance.Record, 16)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
		h.mu.Unlock()
	}()

	return ch
}

func (h *watchHub) publish(rec *attendance.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- rec.Clone():
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- rec.Clone():
			default:
			}
		}
	}
}
