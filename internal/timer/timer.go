// Package timer provides one-shot and periodic timers whose callbacks run on
// the agent's event loop instead of on their own goroutines.
package timer

import (
	"sync/atomic"
	"time"
)

// Handle cancels a timer. Stop is safe to call more than once.
type Handle interface {
	Stop()
}

// Scheduler creates timers. Callbacks never run concurrently with the code
// that created them, and a stopped timer never runs its callback, even when a
// fire was already queued.
type Scheduler interface {
	After(d time.Duration, fn func()) Handle
	Every(d time.Duration, fn func()) Handle
}

// Post hands fn to the event loop for execution.
type Post func(fn func())

// Loop is a Scheduler backed by the runtime timers. Fires are delivered
// through Post.
type Loop struct {
	post Post
}

// NewLoop creates a Loop that delivers every fire through post.
func NewLoop(post Post) *Loop {
	return &Loop{post: post}
}

type loopTimer struct {
	stopped atomic.Bool
	timer   *time.Timer
	ticker  *time.Ticker
	done    chan struct{}
}

func (t *loopTimer) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.ticker != nil {
		t.ticker.Stop()
		close(t.done)
	}
}

// After runs fn once on the loop after d.
func (l *Loop) After(d time.Duration, fn func()) Handle {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.post(func() {
			if t.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	return t
}

// Every runs fn on the loop each d until stopped.
func (l *Loop) Every(d time.Duration, fn func()) Handle {
	t := &loopTimer{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-t.done:
				return
			case <-t.ticker.C:
				l.post(func() {
					if t.stopped.Load() {
						return
					}
					fn()
				})
			}
		}
	}()
	return t
}
