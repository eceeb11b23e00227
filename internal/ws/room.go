package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"affection_pvp/internal/domain"
	"affection_pvp/internal/game"
	"affection_pvp/internal/protocol"

	"github.com/jonboulle/clockwork"
)

type roomAction struct {
	from    *Client
	name    string
	payload json.RawMessage
}

// Room relays one match between two clients, referees it and settles the
// stake. Everything happens on the Run goroutine.
type Room struct {
	ID string

	hub       *Hub
	game      game.Game
	players   [2]*Client // host first
	bets      [2]int
	createdAt time.Time
	log       *slog.Logger

	actions  chan roomAction
	leave    chan *Client
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

func newRoom(id string, g game.Game, players [2]*Client, bets [2]int, hub *Hub) *Room {
	return &Room{
		ID:        id,
		hub:       hub,
		game:      g,
		players:   players,
		bets:      bets,
		createdAt: hub.clock.Now(),
		log:       hub.log.With("room_id", id, "game_type", g.Type()),
		actions:   make(chan roomAction, 32),
		leave:     make(chan *Client, 2),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// start tells both peers about the match and runs the room.
func (r *Room) start() {
	for seat, c := range r.players {
		m := protocol.Matched{
			Type:              protocol.TypeMatched,
			OpponentSessionID: r.players[1-seat].SessionID,
			OpponentBet:       r.bets[1-seat],
			RoomID:            r.ID,
			GameType:          r.game.Type(),
			IsHost:            seat == 0,
		}
		if shell, ok := r.game.(*game.ShellGame); ok {
			cup := shell.CorrectCup()
			m.CorrectCup = &cup
		}
		c.SendJSON(m)
	}
	go r.Run()
}

// Submit queues a game action from c.
func (r *Room) Submit(c *Client, name string, payload json.RawMessage) {
	select {
	case r.actions <- roomAction{from: c, name: name, payload: payload}:
	case <-r.done:
	}
}

// Leave reports that c dropped its connection.
func (r *Room) Leave(c *Client) {
	select {
	case r.leave <- c:
	case <-r.done:
	}
}

// Abort stops the room without settling.
func (r *Room) Abort() {
	r.quitOnce.Do(func() { close(r.quit) })
}

// Done is closed when Run returns.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) Run() {
	ActiveRooms.Inc()
	defer func() {
		ActiveRooms.Dec()
		r.hub.removeRoom(r)
		close(r.done)
	}()

	clock := r.hub.clock
	deadline := clock.NewTimer(r.hub.opts.MatchMaxTime)
	defer deadline.Stop()

	var grace clockwork.Timer
	var graceC <-chan time.Time
	defer func() {
		if grace != nil {
			grace.Stop()
		}
	}()

	for {
		select {
		case a := <-r.actions:
			r.apply(a)

		case c := <-r.leave:
			seat := r.seatOf(c)
			if seat < 0 {
				continue
			}
			r.log.Info("player left", "session_id", c.SessionID)
			r.game.Forfeit(c.SessionID)
			r.settle()
			return

		case <-deadline.Chan():
			r.log.Info("match time limit reached")
			r.game.Expire()
			r.settle()
			return

		case <-graceC:
			r.game.Expire()
			r.settle()
			return

		case <-r.quit:
			r.log.Warn("room aborted")
			return
		}

		if r.game.IsFinished() && r.reports() == 2 {
			r.settle()
			return
		}
		// once a verdict exists somewhere, the rest of the reports get a bounded wait
		if grace == nil && (r.game.IsFinished() || r.reports() > 0) {
			grace = clock.NewTimer(r.hub.opts.ReportGrace)
			graceC = grace.Chan()
		}
	}
}

func (r *Room) apply(a roomAction) {
	seat := r.seatOf(a.from)
	if seat < 0 {
		a.from.log.Warn("action from a client outside the room", "room_id", r.ID)
		return
	}

	u, err := r.game.Apply(a.from.SessionID, a.name, a.payload)
	if err != nil {
		r.log.Warn("game action rejected", "session_id", a.from.SessionID, "game_action", a.name, "error", err)
		return
	}
	if u != nil {
		r.players[1-seat].SendJSON(u)
	}
}

func (r *Room) seatOf(c *Client) int {
	for i, p := range r.players {
		if p == c {
			return i
		}
	}
	return -1
}

func (r *Room) reports() int {
	n := 0
	for _, c := range r.players {
		if _, ok := r.game.Report(c.SessionID); ok {
			n++
		}
	}
	return n
}

func (r *Room) settle() {
	res := r.game.CheckResult()
	if res == nil {
		r.game.Expire()
		res = r.game.CheckResult()
	}

	w := 0
	if res.WinnerID == r.players[1].SessionID {
		w = 1
	}
	winner, loser := r.players[w], r.players[1-w]

	s := &domain.Settlement{
		RoomID:          r.ID,
		GameType:        string(r.game.Type()),
		Reason:          res.Reason,
		WinnerSessionID: winner.SessionID,
		LoserSessionID:  loser.SessionID,
		WinnerBet:       r.bets[w],
		LoserBet:        r.bets[1-w],
		FinalBet:        max(r.bets[0], r.bets[1]),
	}

	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	err := r.hub.ledger.Settle(ctx, s)
	cancel()
	if err != nil {
		r.log.Error("settlement failed", "error", err)
		sendError(winner, MsgSettleFailed)
		sendError(loser, MsgSettleFailed)
		return
	}

	Settlements.WithLabelValues(s.GameType, s.Reason).Inc()
	r.countMismatches(winner)
	r.log.Info("match settled",
		"winner", s.WinnerSessionID,
		"reason", s.Reason,
		"final_bet", s.FinalBet,
		"transferred", s.Transferred,
		"character_stolen", s.CharacterStolen,
	)

	winner.SendJSON(protocol.PvPResult{
		Type:              protocol.TypePvPResult,
		Winner:            true,
		OpponentSessionID: loser.SessionID,
		FinalBet:          s.FinalBet,
		NewAffection:      s.WinnerBalance,
		CharacterStolen:   s.CharacterStolen,
		ShowEventScene:    s.ShowEventScene(),
	})
	loser.SendJSON(protocol.PvPResult{
		Type:              protocol.TypePvPResult,
		Winner:            false,
		OpponentSessionID: winner.SessionID,
		FinalBet:          s.FinalBet,
		NewAffection:      s.LoserBalance,
		CharacterStolen:   s.CharacterStolen,
	})
}

// countMismatches compares the self-reported verdicts with the referee.
func (r *Room) countMismatches(winner *Client) {
	for _, c := range r.players {
		won, ok := r.game.Report(c.SessionID)
		if !ok {
			continue
		}
		if won != (c == winner) {
			VerdictMismatches.WithLabelValues(string(r.game.Type())).Inc()
			r.log.Warn("reported verdict disagrees with referee", "session_id", c.SessionID, "reported_win", won)
		}
	}
}
