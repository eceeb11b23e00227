package pvp

import (
	"affection_pvp/internal/minigame"
	"affection_pvp/internal/protocol"
)

// startGame is the roulette's landing callback.
func (s *Session) startGame(gt protocol.GameType) {
	m := s.match
	if m == nil || s.status != StatusMatched {
		return
	}
	s.enter(StatusPlaying)

	env := minigame.Env{
		Tasks:  s.tasks,
		Rand:   s.rand,
		IsHost: m.IsHost,
		Relay:  s.relay,
		Finish: s.onVerdict,
	}
	switch gt {
	case protocol.GameChase:
		s.game = minigame.NewChase(env, s.cfg.Chase)
	case protocol.GameMashing:
		s.game = minigame.NewMashing(env, s.cfg.Mashing)
	default:
		cup := 0
		if m.CorrectCup != nil {
			cup = *m.CorrectCup
		}
		s.game = minigame.NewShell(env, cup, s.cfg.BothWrong, s.cfg.Shell)
	}
	s.game.Start()
	// relays that raced ahead of the roulette
	s.game.Observe(s.mirror)

	if h := s.hooks.OnGameStart; h != nil {
		s.emit(func() { h(gt) })
	}
}

func (s *Session) relay(action string, payload any) {
	if err := s.sendGameAction(action, payload); err != nil {
		s.log.Warn("game action not relayed", "action", action, "error", err)
	}
}

// onVerdict receives the local minigame outcome. The server still decides
// the settlement; this peer only reports what it saw.
func (s *Session) onVerdict(won bool) {
	m := s.match
	if m == nil || m.gameEnded {
		return
	}
	m.gameEnded = true
	m.verdict = &won
	if h := s.hooks.OnGameEnd; h != nil {
		s.emit(func() { h(won) })
	}
	s.relay(protocol.GameDone, protocol.DonePayload{Won: won})
	if !m.resolved {
		s.tasks.After(s.cfg.ResultWait, s.settleLocally)
	}
}

// settleLocally resolves from the local verdict when no pvp_result arrived.
func (s *Session) settleLocally() {
	m := s.match
	if m == nil || m.resolved || m.verdict == nil {
		return
	}
	s.log.Warn("no settlement received, using local verdict", "room_id", m.RoomID)
	r := Result{
		Status:            ResultLose,
		OpponentSessionID: m.OpponentSessionID,
		FinalBet:          m.FinalBet,
		NewAffection:      s.wager.Balance(),
	}
	if *m.verdict {
		r.Status = ResultWin
	}
	s.resolve(r)
}

// forfeit resolves an unfinished match as a loss after the connection is gone.
func (s *Session) forfeit() {
	m := s.match
	if m == nil || m.resolved {
		return
	}
	s.log.Info("pvp match forfeited", "room_id", m.RoomID, "status", s.status)
	s.resolve(Result{
		Status:            ResultLose,
		OpponentSessionID: m.OpponentSessionID,
		FinalBet:          m.FinalBet,
		NewAffection:      s.wager.Balance(),
		Forfeit:           true,
	})
}

// resolve hands the match outcome to the host at most once.
func (s *Session) resolve(r Result) {
	if s.result != nil {
		return
	}
	m := s.match
	if m == nil {
		s.log.Warn("pvp result without a match dropped", "status", s.status, "settled", r.Settled)
		return
	}
	if m.resolved {
		return
	}
	m.resolved = true
	if won, ok := m.LocalVerdict(); ok && r.Settled && won != r.Won() {
		s.log.Warn("local verdict disagrees with settlement",
			"room_id", m.RoomID, "local_won", won, "settled", r.Status)
	}
	if s.game != nil {
		s.game.Stop()
	}
	s.result = &r
	s.log.Info("pvp result", "status", r.Status, "final_bet", r.FinalBet,
		"new_affection", r.NewAffection, "settled", r.Settled, "forfeit", r.Forfeit)
	if h := s.hooks.OnResult; h != nil {
		s.emit(func() { h(r) })
	}
}

// armFallback schedules forward progress after an error or disconnect: an
// unfinished match is forfeited, otherwise the solo fallback is offered.
func (s *Session) armFallback() {
	m := s.match
	switch {
	case m != nil && m.resolved:
	case m != nil:
		s.tasks.After(s.cfg.GraceDelay, s.forfeit)
	default:
		s.tasks.After(s.cfg.GraceDelay, func() {
			s.fallback(protocol.DefaultSoloDifficulty())
		})
	}
}

func (s *Session) fallback(d protocol.SoloDifficulty) {
	if s.soloTriggered {
		return
	}
	s.soloTriggered = true
	s.solo = &d
	s.log.Info("pvp solo fallback", "target", d.TargetCount, "seconds", d.TimeSeconds)
	if h := s.hooks.OnFallback; h != nil {
		s.emit(func() { h(d) })
	}
}

// PlaySolo starts the heart minigame with the fallback difficulty.
func (s *Session) PlaySolo() error {
	var err error
	s.do(func() {
		if !s.soloTriggered || s.solo == nil {
			err = ErrNoSolo
			return
		}
		if s.heart != nil {
			s.heart.Stop()
		}
		s.heart = minigame.NewHeart(s.tasks, minigame.HeartConfigFrom(*s.solo), s.onSoloEnd)
		s.heart.Start()
	})
	return err
}

func (s *Session) onSoloEnd(success bool) {
	if h := s.hooks.OnSoloEnd; h != nil {
		s.emit(func() { h(success) })
	}
}

// Tap counts one hit in the solo heart minigame.
func (s *Session) Tap() error {
	var err error
	s.do(func() {
		if s.heart == nil {
			err = ErrNoSolo
			return
		}
		err = s.heart.Tap()
	})
	return err
}
