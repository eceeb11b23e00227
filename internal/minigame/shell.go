package minigame

import (
	"time"

	"affection_pvp/internal/protocol"
	"affection_pvp/internal/sched"
)

type ShellPhase string

const (
	ShellIntro   ShellPhase = "intro"
	ShellShuffle ShellPhase = "shuffle"
	ShellSelect  ShellPhase = "select"
	ShellReveal  ShellPhase = "reveal"
	ShellResult  ShellPhase = "result"
)

type ShellTimings struct {
	Intro         time.Duration
	ShuffleStep   time.Duration
	Shuffles      int
	ShuffleSettle time.Duration
	SelectSeconds int
	RevealDelay   time.Duration
	ResultDelay   time.Duration
}

func DefaultShellTimings() ShellTimings {
	return ShellTimings{
		Intro:         2 * time.Second,
		ShuffleStep:   400 * time.Millisecond,
		Shuffles:      8,
		ShuffleSettle: 500 * time.Millisecond,
		SelectSeconds: 10,
		RevealDelay:   time.Second,
		ResultDelay:   2 * time.Second,
	}
}

// Shell is the cup-finding variant. The correct cup is assigned by the
// pairing server and identical on both peers; shuffling is cosmetic.
type Shell struct {
	base
	timings ShellTimings
	policy  BothWrongPolicy
	correct int

	state     ShellPhase
	positions [CupCount]int
	shuffles  int
	timeLeft  int
	countdown *sched.Tasks
	revealing bool

	hover    *int
	locked   *int
	opponent Mirror
}

func NewShell(env Env, correctCup int, policy BothWrongPolicy, timings ShellTimings) *Shell {
	return &Shell{
		base:      newBase(env),
		timings:   timings,
		policy:    policy,
		correct:   correctCup,
		state:     ShellIntro,
		positions: [CupCount]int{0, 1, 2},
		timeLeft:  timings.SelectSeconds,
		opponent:  NewMirror(),
	}
}

func (g *Shell) Type() protocol.GameType { return protocol.GameShell }

func (g *Shell) Phase() ShellPhase { return g.state }

func (g *Shell) TimeLeft() int { return g.timeLeft }

func (g *Shell) Positions() [CupCount]int { return g.positions }

func (g *Shell) Locked() *int { return g.locked }

func (g *Shell) Start() {
	g.phase.After(g.timings.Intro, g.startShuffle)
}

func (g *Shell) startShuffle() {
	g.nextPhase()
	g.state = ShellShuffle
	if g.timings.Shuffles <= 0 {
		g.phase.After(g.timings.ShuffleSettle, g.startSelect)
		return
	}
	g.phase.Every(g.timings.ShuffleStep, func() {
		i := g.env.Rand.IntN(CupCount)
		j := (i + 1 + g.env.Rand.IntN(CupCount-1)) % CupCount
		g.positions[i], g.positions[j] = g.positions[j], g.positions[i]
		g.shuffles++
		if g.shuffles >= g.timings.Shuffles {
			g.nextPhase()
			g.phase.After(g.timings.ShuffleSettle, g.startSelect)
		}
	})
}

func (g *Shell) startSelect() {
	g.nextPhase()
	g.state = ShellSelect
	g.timeLeft = g.timings.SelectSeconds
	g.countdown = g.phase.Child()
	g.countdown.Every(time.Second, g.tick)
	g.maybeReveal()
}

func (g *Shell) tick() {
	if g.timeLeft <= 1 {
		g.timeLeft = 0
		g.countdown.Close()
		if g.locked == nil {
			g.lock(g.randomFreeCup())
		}
		return
	}
	g.timeLeft--
}

// randomFreeCup draws among the cups the opponent has not locked.
func (g *Shell) randomFreeCup() int {
	free := make([]int, 0, CupCount)
	for cup := range CupCount {
		if g.opponent.Selected == nil || *g.opponent.Selected != cup {
			free = append(free, cup)
		}
	}
	return free[g.env.Rand.IntN(len(free))]
}

// Hover moves the local cursor; nil clears it. The change is relayed.
func (g *Shell) Hover(cup *int) error {
	if g.finished {
		return ErrFinished
	}
	if g.state != ShellSelect {
		return ErrWrongPhase
	}
	if g.locked != nil {
		return ErrAlreadyLocked
	}
	if cup != nil && (*cup < 0 || *cup >= CupCount) {
		return ErrInvalidCup
	}
	if sameCup(g.hover, cup) {
		return nil
	}
	if cup == nil {
		g.hover = nil
	} else {
		v := *cup
		g.hover = &v
	}
	g.relay(protocol.GameHover, protocol.HoverPayload{CupIndex: g.hover})
	return nil
}

// Select locks a cup. A cup the opponent already locked cannot be taken.
func (g *Shell) Select(cup int) error {
	if g.finished {
		return ErrFinished
	}
	if g.state != ShellSelect {
		return ErrWrongPhase
	}
	if g.locked != nil {
		return ErrAlreadyLocked
	}
	if cup < 0 || cup >= CupCount {
		return ErrInvalidCup
	}
	if g.opponent.Selected != nil && *g.opponent.Selected == cup {
		return ErrCupTaken
	}
	g.lock(cup)
	return nil
}

func (g *Shell) lock(cup int) {
	g.locked = &cup
	if g.countdown != nil {
		g.countdown.Close()
	}
	g.relay(protocol.GameSelect, protocol.SelectPayload{CupIndex: cup})
	g.maybeReveal()
}

func (g *Shell) Observe(m Mirror) {
	g.opponent = m
	g.maybeReveal()
}

// maybeReveal proceeds only once both selections are known, whichever
// arrived first.
func (g *Shell) maybeReveal() {
	if g.finished || g.revealing || g.state != ShellSelect {
		return
	}
	if g.locked == nil || g.opponent.Selected == nil {
		return
	}
	g.revealing = true
	g.phase.After(g.timings.RevealDelay, g.reveal)
}

func (g *Shell) reveal() {
	g.nextPhase()
	g.state = ShellReveal
	g.phase.After(g.timings.ResultDelay, g.judge)
}

func (g *Shell) judge() {
	g.state = ShellResult
	won := ShellWon(g.correct, *g.locked, *g.opponent.Selected, g.env.IsHost, g.policy)
	g.finish(won)
}

func sameCup(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
