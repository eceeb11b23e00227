// Package sched owns the timers of a single state machine.
//
// A Tasks value is not safe for concurrent use on its own. Every method must be
// called while holding the owner's lock, and timer callbacks are handed to the
// owner's exec function, which is expected to take that same lock before
// running them. A callback whose generation was cancelled is dropped, so a
// timer that was already firing while Cancel ran can never reach a new phase.
package sched

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the subset of clockwork.Clock the scheduler needs.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) clockwork.Timer
}

// RealClock returns the wall clock.
func RealClock() Clock {
	return clockwork.NewRealClock()
}

// Inline runs fn on the calling goroutine. Useful for owners that are
// driven from a single goroutine, such as tests with a manual clock.
func Inline(fn func()) { fn() }

type Tasks struct {
	clock    Clock
	exec     func(func())
	gen      uint64
	nextID   uint64
	timers   map[uint64]clockwork.Timer
	children []*Tasks
	dead     bool
}

func NewTasks(clock Clock, exec func(func())) *Tasks {
	if exec == nil {
		exec = Inline
	}
	return &Tasks{
		clock:  clock,
		exec:   exec,
		timers: make(map[uint64]clockwork.Timer),
	}
}

// Clock returns the clock the tasks are scheduled on.
func (t *Tasks) Clock() Clock { return t.clock }

// After runs fn once after d, unless the current generation is cancelled first.
func (t *Tasks) After(d time.Duration, fn func()) {
	t.schedule(t.gen, d, fn)
}

// Every runs fn every d until the current generation is cancelled.
func (t *Tasks) Every(d time.Duration, fn func()) {
	gen := t.gen
	var tick func()
	tick = func() {
		fn()
		if t.gen == gen && !t.dead {
			t.schedule(gen, d, tick)
		}
	}
	t.schedule(gen, d, tick)
}

func (t *Tasks) schedule(gen uint64, d time.Duration, fn func()) {
	if t.dead {
		return
	}
	t.nextID++
	id := t.nextID
	t.timers[id] = t.clock.AfterFunc(d, func() {
		t.exec(func() {
			if t.gen != gen || t.dead {
				return
			}
			delete(t.timers, id)
			fn()
		})
	})
}

// Child returns a group whose timers are also cancelled by t.Cancel.
// A child cancelled through its parent stays dead.
func (t *Tasks) Child() *Tasks {
	live := t.children[:0]
	for _, c := range t.children {
		if !c.dead {
			live = append(live, c)
		}
	}
	t.children = live

	c := NewTasks(t.clock, t.exec)
	c.dead = t.dead
	t.children = append(t.children, c)
	return c
}

// Cancel stops every outstanding timer of this group and its children and
// starts a new generation.
func (t *Tasks) Cancel() {
	t.gen++
	for id, tm := range t.timers {
		tm.Stop()
		delete(t.timers, id)
	}
	for _, c := range t.children {
		c.Cancel()
		c.dead = true
	}
	t.children = nil
}

// Close cancels the group and refuses any further scheduling.
func (t *Tasks) Close() {
	t.Cancel()
	t.dead = true
}

// Pending reports how many timers are outstanding, children included.
func (t *Tasks) Pending() int {
	n := len(t.timers)
	for _, c := range t.children {
		n += c.Pending()
	}
	return n
}
