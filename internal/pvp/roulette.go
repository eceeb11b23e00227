package pvp

import (
	"time"

	"affection_pvp/internal/protocol"
	"affection_pvp/internal/sched"
)

// MinRouletteSpins is the floor on MinSpins: five full cycles.
const MinRouletteSpins = 15

type RouletteTimings struct {
	BaseDelay    time.Duration
	SlowdownStep time.Duration
	SlowAfter    int
	MinSpins     int
	Hold         time.Duration
	Announce     time.Duration
}

func DefaultRouletteTimings() RouletteTimings {
	return RouletteTimings{
		BaseDelay:    80 * time.Millisecond,
		SlowdownStep: 40 * time.Millisecond,
		SlowAfter:    10,
		MinSpins:     15,
		Hold:         500 * time.Millisecond,
		Announce:     1500 * time.Millisecond,
	}
}

// Roulette reveals a variant that was already chosen by the pairing server.
// It spins through protocol.GameTypes at an easing-out rate for
// MinSpins+targetIndex ticks, which always covers a full cycle and always
// ends on the target, so both peers land on the same variant locally.
type Roulette struct {
	tasks   *sched.Tasks
	timings RouletteTimings
	target  protocol.GameType
	goal    int

	index  int
	ticks  int
	landed bool
	fired  bool

	onTick func(index int)
	onDone func(protocol.GameType)
}

func NewRoulette(tasks *sched.Tasks, timings RouletteTimings, target protocol.GameType, onTick func(int), onDone func(protocol.GameType)) *Roulette {
	if !target.Valid() {
		target = protocol.GameTypes[0]
	}
	timings.MinSpins = max(MinRouletteSpins, timings.MinSpins)
	return &Roulette{
		tasks:   tasks.Child(),
		timings: timings,
		target:  target,
		goal:    protocol.IndexOf(target),
		onTick:  onTick,
		onDone:  onDone,
	}
}

func (r *Roulette) Index() int   { return r.index }
func (r *Roulette) Ticks() int   { return r.ticks }
func (r *Roulette) Landed() bool { return r.landed }

// TotalSpins is the visible tick count before landing.
func (r *Roulette) TotalSpins() int { return r.timings.MinSpins + r.goal }

func (r *Roulette) Start() {
	r.tasks.After(r.timings.BaseDelay, r.spin)
}

func (r *Roulette) Stop() { r.tasks.Close() }

func (r *Roulette) spin() {
	r.index = (r.index + 1) % len(protocol.GameTypes)
	r.ticks++

	if r.ticks >= r.TotalSpins() {
		r.landed = true
		r.index = r.goal
		if r.onTick != nil {
			r.onTick(r.index)
		}
		r.tasks.After(r.timings.Hold, func() {
			r.tasks.After(r.timings.Announce, r.fire)
		})
		return
	}
	if r.onTick != nil {
		r.onTick(r.index)
	}

	delay := r.timings.BaseDelay
	if r.ticks > r.timings.SlowAfter {
		delay += time.Duration(r.ticks-r.timings.SlowAfter) * r.timings.SlowdownStep
	}
	r.tasks.After(delay, r.spin)
}

func (r *Roulette) fire() {
	if r.fired {
		return
	}
	r.fired = true
	r.tasks.Close()
	if r.onDone != nil {
		r.onDone(r.target)
	}
}
