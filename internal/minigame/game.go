// Package minigame runs the local half of each PvP variant.
//
// Every peer simulates its own game and pushes only summary state outward
// through Env.Relay. The opponent's mirrored summary arrives through Observe
// and is advisory: it is read to render the opponent and, where the rule is
// symmetric, to decide this peer's own verdict. Nothing here locks; the
// owning session serializes inputs, mirror updates and timer callbacks.
package minigame

import (
	"errors"

	"affection_pvp/internal/protocol"
	"affection_pvp/internal/sched"
)

var (
	ErrWrongPhase    = errors.New("input not accepted in this phase")
	ErrAlreadyLocked = errors.New("selection already locked")
	ErrInvalidCup    = errors.New("cup index out of range")
	ErrCupTaken      = errors.New("opponent already locked this cup")
	ErrFinished      = errors.New("game already finished")
)

// Rand is satisfied by *math/rand/v2.Rand.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Env wires a variant to its session.
type Env struct {
	Tasks  *sched.Tasks
	Rand   Rand
	IsHost bool
	// Relay pushes a summary action to the opponent.
	Relay func(action string, payload any)
	// Finish receives this peer's local verdict, at most once.
	Finish func(won bool)
}

// Mirror is the opponent state reported through game_update frames.
type Mirror struct {
	Hover    *int
	Selected *int
	Position int
	Hits     int
	Score    int
}

// NewMirror returns the mirror a match starts with.
func NewMirror() Mirror {
	return Mirror{Position: 1}
}

// Game is one running variant.
type Game interface {
	Type() protocol.GameType
	Start()
	Observe(m Mirror)
	Stop()
	// Result reports the local verdict once the game has finished.
	Result() (won bool, finished bool)
}

type base struct {
	env      Env
	tasks    *sched.Tasks
	phase    *sched.Tasks
	finished bool
	won      bool
}

func newBase(env Env) base {
	tasks := env.Tasks.Child()
	return base{env: env, tasks: tasks, phase: tasks.Child()}
}

// nextPhase drops every timer of the phase being left.
func (b *base) nextPhase() {
	b.phase.Close()
	b.phase = b.tasks.Child()
}

func (b *base) relay(action string, payload any) {
	if b.env.Relay != nil {
		b.env.Relay(action, payload)
	}
}

func (b *base) finish(won bool) {
	if b.finished {
		return
	}
	b.finished = true
	b.won = won
	b.tasks.Cancel()
	if b.env.Finish != nil {
		b.env.Finish(won)
	}
}

func (b *base) Stop() {
	b.tasks.Close()
}

func (b *base) Result() (bool, bool) {
	return b.won, b.finished
}
