package timer

import "time"

// Fake is a virtual-clock Scheduler for tests. Time only moves through
// Advance, and callbacks run synchronously inside it in due order.
type Fake struct {
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	id      int
	due     time.Duration
	period  time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() { t.stopped = true }

// NewFake returns a Fake positioned at time zero.
func NewFake() *Fake {
	return &Fake{}
}

// After implements Scheduler.
func (f *Fake) After(d time.Duration, fn func()) Handle {
	return f.add(d, 0, fn)
}

// Every implements Scheduler. It panics on a non-positive interval, like
// time.NewTicker.
func (f *Fake) Every(d time.Duration, fn func()) Handle {
	if d <= 0 {
		panic("timer: non-positive interval for Every")
	}
	return f.add(d, d, fn)
}

func (f *Fake) add(d, period time.Duration, fn func()) *fakeTimer {
	f.seq++
	t := &fakeTimer{id: f.seq, due: f.now + d, period: period, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Now returns the virtual time elapsed since the Fake was created.
func (f *Fake) Now() time.Duration {
	return f.now
}

// Advance moves the clock forward by d, firing every timer that falls due.
func (f *Fake) Advance(d time.Duration) {
	target := f.now + d
	for {
		next := f.next(target)
		if next == nil {
			break
		}
		f.now = next.due
		if next.period > 0 {
			next.due += next.period
		} else {
			next.stopped = true
		}
		next.fn()
	}
	f.now = target
	f.compact()
}

// Pending reports how many timers are still armed.
func (f *Fake) Pending() int {
	n := 0
	for _, t := range f.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (f *Fake) next(limit time.Duration) *fakeTimer {
	var best *fakeTimer
	for _, t := range f.timers {
		if t.stopped || t.due > limit {
			continue
		}
		if best == nil || t.due < best.due || (t.due == best.due && t.id < best.id) {
			best = t
		}
	}
	return best
}

func (f *Fake) compact() {
	live := f.timers[:0]
	for _, t := range f.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	f.timers = live
}
