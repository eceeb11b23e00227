package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"affection_pvp/internal/protocol"
	"affection_pvp/internal/pvp"
)

type event struct {
	status   pvp.Status
	matched  *pvp.Match
	started  protocol.GameType
	result   *pvp.Result
	fallback *protocol.SoloDifficulty
	soloEnd  *bool
	err      string
}

// bot drives one pvp.Session like a player would.
type bot struct {
	id      string
	bet     int
	skill   float64
	log     *slog.Logger
	session *pvp.Session
	events  chan event
}

func newBot(id string, bet, balance int, skill float64, dialer pvp.Dialer, cfg pvp.Config, log *slog.Logger) *bot {
	b := &bot{
		id:     id,
		bet:    bet,
		skill:  skill,
		log:    log.With("session_id", id),
		events: make(chan event, 256),
	}
	cfg.Balance = balance
	b.session = pvp.New(cfg, dialer, pvp.Hooks{
		OnStatus:    func(st pvp.Status) { b.push(event{status: st}) },
		OnError:     func(msg string) { b.push(event{err: msg}) },
		OnMatched:   func(m pvp.Match) { b.push(event{matched: &m}) },
		OnGameStart: func(g protocol.GameType) { b.push(event{started: g}) },
		OnResult:    func(r pvp.Result) { b.push(event{result: &r}) },
		OnFallback:  func(d protocol.SoloDifficulty) { b.push(event{fallback: &d}) },
		OnSoloEnd:   func(ok bool) { b.push(event{soloEnd: &ok}) },
	}, pvp.WithLogger(b.log))
	return b
}

// push never blocks: hooks are delivered by whichever goroutine drove the session.
func (b *bot) push(e event) {
	select {
	case b.events <- e:
	default:
		b.log.Warn("bot event dropped")
	}
}

type outcome struct {
	SessionID string
	Result    *pvp.Result
	Solo      *bool
}

func (b *bot) run(ctx context.Context) (*outcome, error) {
	defer b.session.Reset()

	out := &outcome{SessionID: b.id}
	b.session.SetBetAmount(float64(b.bet))
	b.session.Connect(b.id)

	var stopPlay context.CancelFunc = func() {}
	defer func() { stopPlay() }()

	for {
		select {
		case <-ctx.Done():
			return out, fmt.Errorf("%s: %w", b.id, ctx.Err())

		case e := <-b.events:
			switch {
			case e.status == pvp.StatusConnected:
				if err := b.session.JoinQueue(); err != nil {
					return out, fmt.Errorf("%s: join queue: %w", b.id, err)
				}
				b.log.Info("queued", "bet", b.session.BetAmount())

			case e.matched != nil:
				b.log.Info("matched",
					"opponent", e.matched.OpponentSessionID,
					"game_type", e.matched.GameType,
					"final_bet", e.matched.FinalBet,
					"host", e.matched.IsHost,
				)

			case e.started != "":
				stopPlay()
				var playCtx context.Context
				playCtx, stopPlay = context.WithCancel(ctx)
				go b.play(playCtx, e.started)

			case e.result != nil:
				stopPlay()
				out.Result = e.result
				b.log.Info("result",
					"status", e.result.Status,
					"new_affection", e.result.NewAffection,
					"settled", e.result.Settled,
					"forfeit", e.result.Forfeit,
				)
				return out, nil

			case e.fallback != nil:
				stopPlay()
				if err := b.session.PlaySolo(); err != nil {
					return out, fmt.Errorf("%s: solo: %w", b.id, err)
				}
				var playCtx context.Context
				playCtx, stopPlay = context.WithCancel(ctx)
				go b.tap(playCtx)

			case e.soloEnd != nil:
				out.Solo = e.soloEnd
				b.log.Info("solo finished", "success", *e.soloEnd)
				return out, nil

			case e.err != "":
				b.log.Warn("session error", "message", e.err)
			}
		}
	}
}

// play feeds inputs to the running variant until ctx ends.
func (b *bot) play(ctx context.Context, g protocol.GameType) {
	period := map[protocol.GameType]time.Duration{
		protocol.GameShell:   200 * time.Millisecond,
		protocol.GameChase:   350 * time.Millisecond,
		protocol.GameMashing: 90 * time.Millisecond,
	}[g]
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var err error
		switch g {
		case protocol.GameShell:
			err = b.session.SelectCup(b.pickCup())
			if err == nil {
				return
			}
		case protocol.GameChase:
			err = b.session.MoveLane(rand.IntN(3) - 1)
		case protocol.GameMashing:
			if rand.Float64() < b.skill {
				err = b.session.Press()
			}
		}
		if errors.Is(err, pvp.ErrNoGame) {
			return
		}
	}
}

func (b *bot) pickCup() int {
	snap := b.session.Snapshot()
	if snap.Match != nil && snap.Match.CorrectCup != nil && rand.Float64() < b.skill {
		return *snap.Match.CorrectCup
	}
	return rand.IntN(3)
}

func (b *bot) tap(ctx context.Context) {
	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.session.Tap(); err != nil && errors.Is(err, pvp.ErrNoSolo) {
				return
			}
		}
	}
}
