//nolint:forcetypeassert
package scheduler

import (
	"container/heap"
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/imtaco/rtms-bridge/internal/log"
)

// KeyedScheduler runs delayed callbacks identified by unique string keys.
// A min-heap keeps the next due item on top and a single timer goroutine
// fires it. Schedule, Cancel and Clear are applied asynchronously, in call
// order. A Schedule that is applied while the key is still pending keeps the
// earlier deadline; once the key has fired, the same key schedules afresh.
// Cancel drops a pending key so its callback never runs.
//
// Example usage:
//
//	ks := NewKeyedScheduler(logger)
//	defer ks.Shutdown()
//
//	ks.Schedule("m1/signaling", 5*time.Second, reconnect)
//	ks.Cancel("m1/signaling") // session torn down, reconnect never fires
//
// Callbacks run on their own goroutine and may schedule again.
type KeyedScheduler struct {
	items   map[string]*item
	heap    priorityQueue
	actions chan func()
	timer   clockwork.Timer
	timerTS time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	clock   clockwork.Clock
	logger  *log.Logger
}

func NewKeyedScheduler(logger *log.Logger) *KeyedScheduler {
	return NewKeyedSchedulerWithClock(logger, clockwork.NewRealClock())
}

func NewKeyedSchedulerWithClock(logger *log.Logger, clock clockwork.Clock) *KeyedScheduler {
	if logger == nil {
		panic("logger is required")
	}
	if clock == nil {
		panic("clock is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	timer := clock.NewTimer(time.Hour)
	timer.Stop()

	ks := &KeyedScheduler{
		items:   make(map[string]*item),
		heap:    make(priorityQueue, 0),
		actions: make(chan func(), 100),
		timer:   timer,
		ctx:     ctx,
		cancel:  cancel,
		clock:   clock,
		logger:  logger,
	}
	heap.Init(&ks.heap)

	go ks.loop()
	return ks
}

// Schedule runs fn after delay unless the key is cancelled first.
// The deadline is taken at call time.
func (ks *KeyedScheduler) Schedule(key string, delay time.Duration, fn func()) {
	ts := ks.clock.Now().Add(delay)
	ks.submit(func() {
		ks.doSchedule(&item{key: key, ts: ts, fn: fn})
	})
}

func (ks *KeyedScheduler) Cancel(key string) {
	ks.submit(func() {
		ks.doCancel(key)
	})
}

func (ks *KeyedScheduler) Clear() {
	ks.submit(ks.doClear)
}

// Pending reports whether key is waiting to fire.
func (ks *KeyedScheduler) Pending(key string) bool {
	res := make(chan bool, 1)
	ks.submit(func() {
		_, ok := ks.items[key]
		res <- ok
	})
	select {
	case ok := <-res:
		return ok
	case <-ks.ctx.Done():
		return false
	}
}

func (ks *KeyedScheduler) Shutdown() {
	ks.cancel()
}

func (ks *KeyedScheduler) submit(action func()) {
	select {
	case <-ks.ctx.Done():
	case ks.actions <- action:
	}
}

func (ks *KeyedScheduler) doSchedule(it *item) {
	cur, ok := ks.items[it.key]
	if ok {
		// keep the earlier deadline
		if !it.ts.Before(cur.ts) {
			return
		}
		heap.Remove(&ks.heap, cur.index)
	}

	ks.items[it.key] = it
	heap.Push(&ks.heap, it)
	ks.scheduleNextTimer()
}

func (ks *KeyedScheduler) doCancel(key string) {
	if it, exists := ks.items[key]; exists {
		delete(ks.items, key)
		heap.Remove(&ks.heap, it.index)
		ks.scheduleNextTimer()
	}
}

func (ks *KeyedScheduler) doClear() {
	ks.items = make(map[string]*item)
	ks.heap = make(priorityQueue, 0)
	heap.Init(&ks.heap)
	ks.clearTimer()
}

func (ks *KeyedScheduler) clearTimer() {
	ks.timer.Stop()
	ks.timerTS = time.Time{}
}

func (ks *KeyedScheduler) scheduleNextTimer() {
	if len(ks.items) == 0 {
		ks.clearTimer()
		return
	}

	top := ks.heap[0]
	if ks.timerTS.Equal(top.ts) {
		return
	}

	delay := top.ts.Sub(ks.clock.Now())
	if delay < 0 {
		delay = 0
	}

	ks.timerTS = top.ts
	ks.timer.Stop()
	ks.timer.Reset(delay)
}

func (ks *KeyedScheduler) loop() {
	for {
		select {
		case <-ks.ctx.Done():
			ks.clearTimer()
			return
		case action := <-ks.actions:
			action()
		case <-ks.timer.Chan():
			ks.timerTS = time.Time{}
			ks.fireDue()
		}
	}
}

func (ks *KeyedScheduler) fireDue() {
	now := ks.clock.Now()

	for len(ks.items) > 0 && !ks.heap[0].ts.After(now) {
		it := heap.Pop(&ks.heap).(*item)
		delete(ks.items, it.key)
		go ks.run(it)
	}

	ks.scheduleNextTimer()
}

func (ks *KeyedScheduler) run(it *item) {
	defer func() {
		if r := recover(); r != nil {
			ks.logger.Error("scheduled callback panicked",
				log.String("key", it.key),
				log.Any("panic", r))
		}
	}()
	it.fn()
}
