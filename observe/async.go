package observe

import (
	"context"
	"sync"
	"time"

	"github.com/krisalay/memocache/types"
)

// This file implements a "write-back" style sink: events are queued and
// delivered by a background worker, so a slow sink never slows a lookup down.

type eventKind int

const (
	eventHit eventKind = iota
	eventMiss
	eventStored
	eventFailed
)

// event represents one pending notification for the wrapped sink.
type event struct {
	ctx       context.Context
	kind      eventKind
	remaining time.Duration
	err       error
}

/*
Async delivers events to another sink from a background goroutine.
*/
type Async struct {

	// next is the sink that actually handles the events.
	next types.Metrics

	// ch is a buffered channel that holds pending events.
	// Buffering allows bursts of lookups without blocking.
	ch chan event

	// mu guards dropped and closed. Sends happen under it so that Close
	// never races with an enqueue.
	mu      sync.Mutex
	dropped uint64
	closed  bool

	wg sync.WaitGroup
}

var _ types.Metrics = (*Async)(nil)

// NewAsync starts one background worker delivering to next.
func NewAsync(next types.Metrics, buffer int) *Async {
	if buffer <= 0 {
		buffer = 1
	}

	a := &Async{
		next: next,
		ch:   make(chan event, buffer),
	}

	a.wg.Add(1)
	go a.worker()

	return a
}

func (a *Async) Hit(ctx context.Context, remaining time.Duration) {
	a.enqueue(event{ctx: ctx, kind: eventHit, remaining: remaining})
}

func (a *Async) Miss(ctx context.Context) {
	a.enqueue(event{ctx: ctx, kind: eventMiss})
}

func (a *Async) Stored(ctx context.Context) {
	a.enqueue(event{ctx: ctx, kind: eventStored})
}

func (a *Async) Failed(ctx context.Context, err error) {
	a.enqueue(event{ctx: ctx, kind: eventFailed, err: err})
}

// enqueue never blocks. If the queue is full or closed, the event is DROPPED:
// the signals are advisory and the lookup path must stay fast.
func (a *Async) enqueue(ev event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		a.dropped++
		return
	}

	select {
	case a.ch <- ev:
	default:
		a.dropped++
	}
}

// Dropped returns how many events were discarded under pressure.
func (a *Async) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

func (a *Async) worker() {
	defer a.wg.Done()

	for ev := range a.ch {
		switch ev.kind {
		case eventHit:
			a.next.Hit(ev.ctx, ev.remaining)
		case eventMiss:
			a.next.Miss(ev.ctx)
		case eventStored:
			a.next.Stored(ev.ctx)
		case eventFailed:
			a.next.Failed(ev.ctx, ev.err)
		}
	}
}

/*
Close stops accepting events and waits until the queued ones are delivered.
Events reported after Close are counted as dropped.
*/
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()

	a.wg.Wait()
}
