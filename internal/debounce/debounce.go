// Package debounce coalesces bursts of calls per key into one delayed
// callback.
package debounce

import (
	"sync"
	"sync/atomic"
	"time"

	"artnetnode/internal/logger"
)

type touch[K comparable] struct {
	key K
	at  time.Time
}

type options struct {
	log logger.Logger
}

// Option configures a Debouncer.
type Option func(*options)

// WithLogger logs a Terminate that had to give up waiting.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// Debouncer calls its callback for a key once the key has not been called
// for the interval. A single worker goroutine owns the pending keys and runs
// the callbacks, so callbacks never run concurrently.
type Debouncer[K comparable] struct {
	interval time.Duration
	callback func(K)
	log      *logger.Log

	touches  chan touch[K]
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
	deadline time.Time // set by Terminate before quit is closed
	pending  atomic.Int64

	mu      sync.Mutex
	aborted bool
}

// New starts a debouncer. Terminate must be called to release the worker.
func New[K comparable](interval time.Duration, callback func(K), opts ...Option) *Debouncer[K] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Debouncer[K]{
		interval: interval,
		callback: callback,
		touches:  make(chan touch[K], 16),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if o.log != nil {
		d.log = o.log.With(logger.Fields{"module": "debounce"})
	}
	go d.run()
	return d
}

// Call schedules the callback for key one interval from now, or pushes an
// already pending one back. Calls after Terminate are dropped.
func (d *Debouncer[K]) Call(key K) {
	t := touch[K]{key: key, at: time.Now()}
	select {
	case <-d.quit:
		return
	default:
	}
	select {
	case d.touches <- t:
	case <-d.quit:
	}
}

// Pending returns the number of keys waiting to fire.
func (d *Debouncer[K]) Pending() int {
	return int(d.pending.Load())
}

// Terminate stops accepting calls and waits up to twice the interval for
// pending keys to fire and a running callback to return. Keys not due
// within that window are dropped. No callback starts after Terminate
// returns.
func (d *Debouncer[K]) Terminate() {
	d.once.Do(func() {
		d.deadline = time.Now().Add(2 * d.interval)
		close(d.quit)
	})

	select {
	case <-d.done:
		return
	default:
	}

	wait := time.NewTimer(time.Until(d.deadline))
	defer wait.Stop()
	select {
	case <-d.done:
	case <-wait.C:
		d.mu.Lock()
		d.aborted = true
		d.mu.Unlock()
		if d.log != nil {
			d.log.Warnf("debouncer did not settle within %s after terminate", 2*d.interval)
		}
	}
}

func (d *Debouncer[K]) run() {
	defer close(d.done)

	due := make(map[K]time.Time)
	quit := d.quit
	draining := false
	var timer *time.Timer
	var fire <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		d.pending.Store(0)
	}()

	for {
		select {
		case <-quit:
			quit = nil
			draining = true
			d.drain(due)
			for key, at := range due {
				if at.After(d.deadline) {
					delete(due, key)
				}
			}

		case t := <-d.touches:
			if !draining {
				d.touch(due, t)
			}

		case now := <-fire:
			fire = nil
			for key, at := range due {
				if at.After(now) {
					continue
				}
				delete(due, key)
				d.pending.Store(int64(len(due)))
				if !d.start() {
					return
				}
				d.callback(key)
			}
		}

		d.pending.Store(int64(len(due)))
		if draining && len(due) == 0 {
			return
		}
		if timer != nil {
			timer.Stop()
			timer, fire = nil, nil
		}
		if next, ok := earliest(due); ok {
			timer = time.NewTimer(time.Until(next))
			fire = timer.C
		}
	}
}

func (d *Debouncer[K]) touch(due map[K]time.Time, t touch[K]) {
	next := t.at.Add(d.interval)
	if cur, ok := due[t.key]; !ok || next.After(cur) {
		due[t.key] = next
	}
}

// drain takes the calls accepted before Terminate.
func (d *Debouncer[K]) drain(due map[K]time.Time) {
	for {
		select {
		case t := <-d.touches:
			d.touch(due, t)
		default:
			return
		}
	}
}

// start reports whether a callback may still begin.
func (d *Debouncer[K]) start() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.aborted
}

func earliest[K comparable](due map[K]time.Time) (time.Time, bool) {
	var first time.Time
	found := false
	for _, at := range due {
		if !found || at.Before(first) {
			first, found = at, true
		}
	}
	return first, found
}
