// Package render pairs asynchronously-produced renders with the requests
// that asked for them, and provides a headless-Chrome rasterizer as the
// offline fallback when no interactive surface is attached.
package render

import (
	"context"
	"sync"
	"time"
)

// DefaultTimeout is how long a render request stays pending before it is
// resolved with an empty result.
const DefaultTimeout = 5 * time.Second

// Surface is anything capable of producing a render. PostRenderRequest asks
// the surface for a screenshot; the reply arrives later via Queue.Resolve.
type Surface interface {
	PostRenderRequest() error
}

type pending struct {
	surface  Surface
	ch       chan string
	enqueued time.Time
	timer    *time.Timer
}

// Queue is a FIFO request/response correlator. Responses carry no request
// identity, so the oldest pending resolver wins; in practice at most one
// request per surface is outstanding, and when that is violated
// earliest-requested-first is the documented ordering.
type Queue struct {
	mu      sync.Mutex
	timeout time.Duration
	waiting []*pending
}

// NewQueue creates a Queue. A non-positive timeout means DefaultTimeout.
func NewQueue(timeout time.Duration) *Queue {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Queue{timeout: timeout}
}

// Request posts a render request to the surface and blocks until a response,
// the timeout, surface disposal, or context cancellation. Timeout and
// disposal yield "", nil: an empty result means "no render available", never
// an error.
func (q *Queue) Request(ctx context.Context, s Surface) (string, error) {
	p := &pending{surface: s, ch: make(chan string, 1), enqueued: time.Now()}

	q.mu.Lock()
	q.waiting = append(q.waiting, p)
	p.timer = time.AfterFunc(q.timeout, func() { q.cancel(p) })
	q.mu.Unlock()

	if err := s.PostRenderRequest(); err != nil {
		q.cancel(p)
		return "", err
	}

	select {
	case data := <-p.ch:
		return data, nil
	case <-ctx.Done():
		q.cancel(p)
		return "", ctx.Err()
	}
}

// Resolve fulfills the oldest pending request with data.
func (q *Queue) Resolve(data string) {
	q.mu.Lock()
	var p *pending
	if len(q.waiting) > 0 {
		p = q.waiting[0]
		q.waiting = q.waiting[1:]
	}
	q.mu.Unlock()

	if p != nil {
		p.timer.Stop()
		p.ch <- data
	}
}

// DisposeSurface resolves every request still associated with the surface
// with an empty result. Requests must never be left pending after their
// surface is gone.
func (q *Queue) DisposeSurface(s Surface) {
	q.mu.Lock()
	var kept, dropped []*pending
	for _, p := range q.waiting {
		if p.surface == s {
			dropped = append(dropped, p)
		} else {
			kept = append(kept, p)
		}
	}
	q.waiting = kept
	q.mu.Unlock()

	for _, p := range dropped {
		p.timer.Stop()
		p.ch <- ""
	}
}

// Len returns the number of pending requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// cancel removes p from the queue if still pending and resolves it empty.
func (q *Queue) cancel(p *pending) {
	q.mu.Lock()
	found := false
	for i, w := range q.waiting {
		if w == p {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			found = true
			break
		}
	}
	q.mu.Unlock()

	if found {
		p.timer.Stop()
		p.ch <- ""
	}
}
