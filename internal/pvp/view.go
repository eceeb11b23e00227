package pvp

import (
	"affection_pvp/internal/minigame"
	"affection_pvp/internal/protocol"
)

// Snapshot is a copy of the session state for rendering.
type Snapshot struct {
	SessionID     string
	Status        Status
	ReadyState    ReadyState
	BetAmount     int
	Balance       int
	Remaining     int
	Match         *Match
	Mirror        minigame.Mirror
	RouletteIndex int
	Game          *GameView
	Result        *Result
	SoloTriggered bool
	Solo          *protocol.SoloDifficulty
	Error         string
}

// GameView flattens whichever variant is running.
type GameView struct {
	Type     protocol.GameType
	Phase    string
	TimeLeft int
	Score    int
	Lane     int
	Hits     int
	Locked   *int
	Finished bool
	Won      bool
}

func (s *Session) Snapshot() Snapshot {
	var snap Snapshot
	s.do(func() {
		snap = Snapshot{
			SessionID:     s.sessionID,
			Status:        s.status,
			ReadyState:    ReadyClosed,
			BetAmount:     s.wager.Bet(),
			Balance:       s.wager.Balance(),
			Remaining:     s.remaining,
			Mirror:        s.mirror,
			SoloTriggered: s.soloTriggered,
			Error:         s.errMsg,
		}
		if s.conn != nil {
			snap.ReadyState = s.conn.state
		}
		if s.match != nil {
			m := *s.match
			snap.Match = &m
		}
		if s.roulette != nil {
			snap.RouletteIndex = s.roulette.Index()
		}
		if s.result != nil {
			r := *s.result
			snap.Result = &r
		}
		if s.solo != nil {
			d := *s.solo
			snap.Solo = &d
		}
		if s.game != nil {
			snap.Game = viewOf(s.game)
		}
	})
	return snap
}

func viewOf(g minigame.Game) *GameView {
	v := &GameView{Type: g.Type()}
	v.Won, v.Finished = g.Result()
	switch g := g.(type) {
	case *minigame.Shell:
		v.Phase = string(g.Phase())
		v.TimeLeft = g.TimeLeft()
		v.Locked = g.Locked()
	case *minigame.Chase:
		v.Phase = string(g.Phase())
		v.Lane = g.Lane()
		v.Hits = g.Hits()
	case *minigame.Mashing:
		v.Phase = string(g.Phase())
		v.TimeLeft = g.TimeLeft()
		v.Score = g.Score()
	}
	return v
}

func input[G minigame.Game](s *Session, fn func(G) error) error {
	var err error
	s.do(func() {
		g, ok := s.game.(G)
		if !ok {
			err = ErrNoGame
			return
		}
		err = fn(g)
	})
	return err
}

// HoverCup reports the cup under the pointer, or nil when none.
func (s *Session) HoverCup(cup *int) error {
	return input(s, func(g *minigame.Shell) error { return g.Hover(cup) })
}

func (s *Session) SelectCup(cup int) error {
	return input(s, func(g *minigame.Shell) error { return g.Select(cup) })
}

func (s *Session) MoveLane(delta int) error {
	return input(s, func(g *minigame.Chase) error { return g.Move(delta) })
}

func (s *Session) Press() error {
	return input(s, func(g *minigame.Mashing) error { return g.Press() })
}
