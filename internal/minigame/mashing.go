package minigame

import (
	"time"

	"affection_pvp/internal/protocol"
)

type MashingPhase string

const (
	MashingIntro     MashingPhase = "intro"
	MashingCountdown MashingPhase = "countdown"
	MashingPlaying   MashingPhase = "playing"
	MashingResult    MashingPhase = "result"
)

type MashingTimings struct {
	Intro           time.Duration
	Countdown       int
	DurationSeconds int
	ResultDelay     time.Duration
}

func DefaultMashingTimings() MashingTimings {
	return MashingTimings{
		Intro:           2 * time.Second,
		Countdown:       3,
		DurationSeconds: 10,
		ResultDelay:     2 * time.Second,
	}
}

// Mashing is the fixed-duration press race. Every score change is relayed;
// at time-up each side compares its own score with the mirrored one.
type Mashing struct {
	base
	timings MashingTimings

	state     MashingPhase
	countdown int
	timeLeft  int
	score     int
	opponent  Mirror
}

func NewMashing(env Env, timings MashingTimings) *Mashing {
	return &Mashing{
		base:      newBase(env),
		timings:   timings,
		state:     MashingIntro,
		countdown: timings.Countdown,
		timeLeft:  timings.DurationSeconds,
		opponent:  NewMirror(),
	}
}

func (g *Mashing) Type() protocol.GameType { return protocol.GameMashing }

func (g *Mashing) Phase() MashingPhase { return g.state }

func (g *Mashing) Score() int { return g.score }

func (g *Mashing) TimeLeft() int { return g.timeLeft }

func (g *Mashing) Start() {
	g.phase.After(g.timings.Intro, g.startCountdown)
}

func (g *Mashing) startCountdown() {
	g.nextPhase()
	g.state = MashingCountdown
	if g.countdown <= 0 {
		g.startRace()
		return
	}
	g.phase.Every(time.Second, func() {
		g.countdown--
		if g.countdown <= 0 {
			g.startRace()
		}
	})
}

func (g *Mashing) startRace() {
	g.nextPhase()
	g.state = MashingPlaying
	g.phase.Every(time.Second, func() {
		if g.timeLeft <= 1 {
			g.timeLeft = 0
			g.nextPhase()
			g.state = MashingResult
			g.phase.After(g.timings.ResultDelay, g.judge)
			return
		}
		g.timeLeft--
	})
}

func (g *Mashing) judge() {
	g.finish(MashingWon(g.score, g.opponent.Score, g.env.IsHost))
}

// Press registers one input event during the race.
func (g *Mashing) Press() error {
	if g.finished {
		return ErrFinished
	}
	if g.state != MashingPlaying {
		return ErrWrongPhase
	}
	next := min(MashingTarget, g.score+1)
	if next == g.score {
		return nil
	}
	g.score = next
	g.relay(protocol.GameScore, protocol.ScorePayload{Score: next})
	return nil
}

func (g *Mashing) Observe(m Mirror) {
	g.opponent = m
}
