package pvp

import (
	"encoding/json"
	"fmt"

	"affection_pvp/internal/minigame"
	"affection_pvp/internal/protocol"
)

type handler func(s *Session, raw []byte) error

// inbound is keyed by the envelope discriminant. Unknown types are dropped.
var inbound = map[string]handler{
	protocol.TypeConnected:   (*Session).onConnected,
	protocol.TypeQueueJoined: (*Session).onQueueJoined,
	protocol.TypeQueueLeft:   (*Session).onQueueLeft,
	protocol.TypeMatched:     (*Session).onMatched,
	protocol.TypeGameUpdate:  (*Session).onGameUpdate,
	protocol.TypeTimeout:     (*Session).onTimeout,
	protocol.TypePvPResult:   (*Session).onPvPResult,
	protocol.TypeError:       (*Session).onError,
}

func decode[T any](raw []byte) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}

func (s *Session) dispatch(raw []byte) {
	typ, err := protocol.PeekType(raw)
	if err != nil {
		s.log.Warn("dropping malformed frame", "error", err)
		return
	}
	h, ok := inbound[typ]
	if !ok {
		s.log.Warn("dropping unknown frame", "type", typ)
		return
	}
	if err := h(s, raw); err != nil {
		s.log.Warn("dropping frame", "type", typ, "error", err)
	}
}

func (s *Session) onConnected(_ []byte) error {
	if s.status != StatusConnecting {
		s.log.Debug("connected frame ignored", "status", s.status)
		return nil
	}
	s.enter(StatusConnected)
	return nil
}

func (s *Session) onQueueJoined(raw []byte) error {
	msg, err := decode[protocol.QueueJoined](raw)
	if err != nil {
		return err
	}
	switch s.status {
	case StatusConnected, StatusMatching, StatusQueueJoined:
	default:
		s.log.Debug("queue_joined ignored", "status", s.status)
		return nil
	}
	if msg.BetAmount > 0 {
		s.wager.Set(float64(msg.BetAmount))
	}
	s.enter(StatusQueueJoined)
	s.startCountdown()
	return nil
}

func (s *Session) onQueueLeft(_ []byte) error {
	if !s.status.Waiting() {
		return nil
	}
	s.remaining = s.cfg.MatchSeconds
	s.enter(StatusConnected)
	return nil
}

func (s *Session) onMatched(raw []byte) error {
	msg, err := decode[protocol.Matched](raw)
	if err != nil {
		return err
	}
	if !s.status.Waiting() {
		s.log.Warn("matched frame ignored", "status", s.status, "room_id", msg.RoomID)
		return nil
	}
	// stops the countdown before anything else can observe it
	s.tasks.Cancel()

	gt := msg.GameType
	if !gt.Valid() {
		s.log.Warn("unknown game type, using first variant", "game_type", gt)
		gt = protocol.GameTypes[0]
	}
	if gt == protocol.GameShell && msg.CorrectCup == nil {
		s.log.Warn("matched frame without correct_cup", "room_id", msg.RoomID)
	}
	bet := s.wager.Bet()
	m := &Match{
		OpponentSessionID: msg.OpponentSessionID,
		OpponentBet:       msg.OpponentBet,
		MyBet:             bet,
		FinalBet:          max(bet, msg.OpponentBet),
		RoomID:            msg.RoomID,
		GameType:          gt,
		IsHost:            msg.IsHost,
		CorrectCup:        msg.CorrectCup,
	}
	s.match = m
	s.result = nil
	s.mirror = minigame.NewMirror()
	s.log.Info("pvp matched", "room_id", m.RoomID, "game_type", gt, "host", m.IsHost, "final_bet", m.FinalBet)

	s.enter(StatusMatched)
	if h := s.hooks.OnMatched; h != nil {
		snapshot := *m
		s.emit(func() { h(snapshot) })
	}
	s.roulette = NewRoulette(s.tasks, s.cfg.Roulette, gt, s.onRouletteTick, s.startGame)
	s.roulette.Start()
	return nil
}

func (s *Session) onRouletteTick(index int) {
	if h := s.hooks.OnRoulette; h != nil {
		s.emit(func() { h(index) })
	}
}

func (s *Session) onGameUpdate(raw []byte) error {
	msg, err := decode[protocol.GameUpdate](raw)
	if err != nil {
		return err
	}
	if s.match == nil {
		return nil
	}
	switch msg.GameAction {
	case protocol.UpdateOpponentHover:
		s.mirror.Hover = msg.CupIndex
	case protocol.UpdateOpponentSelect:
		if msg.CupIndex == nil {
			return fmt.Errorf("%s without cup_index", msg.GameAction)
		}
		s.mirror.Selected = msg.CupIndex
	case protocol.UpdateOpponentPosition:
		if msg.Position != nil {
			s.mirror.Position = *msg.Position
		}
	case protocol.UpdateOpponentHit:
		if msg.Hits != nil {
			s.mirror.Hits = *msg.Hits
		} else {
			s.mirror.Hits++
		}
	case protocol.UpdateOpponentScore:
		if msg.Score != nil {
			s.mirror.Score = *msg.Score
		}
	default:
		return fmt.Errorf("unknown game_update %q", msg.GameAction)
	}
	if s.game != nil {
		s.game.Observe(s.mirror)
	}
	return nil
}

func (s *Session) onTimeout(raw []byte) error {
	msg, err := decode[protocol.Timeout](raw)
	if err != nil {
		return err
	}
	if s.match != nil && !s.match.resolved {
		s.log.Warn("timeout frame ignored during match", "room_id", s.match.RoomID)
		return nil
	}
	d := protocol.DefaultSoloDifficulty()
	if msg.SoloDifficulty != nil {
		d = *msg.SoloDifficulty
	}
	s.enter(StatusTimeout)
	s.fallback(d)
	return nil
}

func (s *Session) onPvPResult(raw []byte) error {
	msg, err := decode[protocol.PvPResult](raw)
	if err != nil {
		return err
	}
	r := Result{
		Status:            ResultLose,
		OpponentSessionID: msg.OpponentSessionID,
		FinalBet:          msg.FinalBet,
		NewAffection:      msg.NewAffection,
		CharacterStolen:   msg.CharacterStolen,
		ShowEventScene:    msg.ShowEventScene,
		Settled:           true,
	}
	if msg.Winner {
		r.Status = ResultWin
	}
	s.resolve(r)
	return nil
}

func (s *Session) onError(raw []byte) error {
	msg, err := decode[protocol.Error](raw)
	if err != nil {
		return err
	}
	if msg.Message == "" {
		msg.Message = "unknown server error"
	}
	s.log.Warn("pvp server error", "message", msg.Message)
	s.fail(msg.Message)
	return nil
}
