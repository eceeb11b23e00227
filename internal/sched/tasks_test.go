package sched_test

import (
	"testing"
	"time"

	"affection_pvp/internal/sched"
	"affection_pvp/internal/sched/schedtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfterFiresOnce(t *testing.T) {
	clock := schedtest.NewManualClock()
	tasks := sched.NewTasks(clock, nil)

	calls := 0
	tasks.After(time.Second, func() { calls++ })

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, calls)

	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, calls)

	clock.Advance(10 * time.Second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, tasks.Pending())
}

func TestEveryRepeatsUntilCancel(t *testing.T) {
	clock := schedtest.NewManualClock()
	tasks := sched.NewTasks(clock, nil)

	ticks := 0
	tasks.Every(time.Second, func() {
		ticks++
		if ticks == 3 {
			tasks.Cancel()
		}
	})

	clock.Advance(10 * time.Second)
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 0, clock.Pending())
}

func TestCancelDropsCallbackAlreadyInFlight(t *testing.T) {
	clock := schedtest.NewManualClock()

	// exec defers the callback, simulating a timer that fired while the
	// owner was busy running Cancel.
	var queued []func()
	tasks := sched.NewTasks(clock, func(fn func()) { queued = append(queued, fn) })

	fired := false
	tasks.After(time.Second, func() { fired = true })
	clock.Advance(time.Second)
	require.Len(t, queued, 1)

	tasks.Cancel()
	queued[0]()
	assert.False(t, fired)
}

func TestChildCancelledWithParent(t *testing.T) {
	clock := schedtest.NewManualClock()
	parent := sched.NewTasks(clock, nil)
	child := parent.Child()

	childTicks := 0
	child.Every(100*time.Millisecond, func() { childTicks++ })
	clock.Advance(350 * time.Millisecond)
	assert.Equal(t, 3, childTicks)
	assert.Equal(t, 1, parent.Pending())

	parent.Cancel()
	clock.Advance(time.Second)
	assert.Equal(t, 3, childTicks)

	// a dead child refuses new work
	child.After(time.Millisecond, func() { childTicks++ })
	clock.Advance(time.Second)
	assert.Equal(t, 3, childTicks)
	assert.Equal(t, 0, clock.Pending())
}

func TestChildCancelLeavesParentRunning(t *testing.T) {
	clock := schedtest.NewManualClock()
	parent := sched.NewTasks(clock, nil)
	child := parent.Child()

	parentFired, childFired := false, false
	parent.After(time.Second, func() { parentFired = true })
	child.After(time.Second, func() { childFired = true })

	child.Cancel()
	clock.Advance(time.Second)

	assert.True(t, parentFired)
	assert.False(t, childFired)
}
