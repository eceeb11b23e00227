package pvp

import (
	"time"

	"affection_pvp/internal/protocol"
)

// startCountdown (re)arms the queue countdown at its full length. It lives in
// the phase tasks, so the next transition stops it.
func (s *Session) startCountdown() {
	s.remaining = s.cfg.MatchSeconds
	s.emitTick()
	s.tasks.Every(time.Second, s.tick)
}

func (s *Session) tick() {
	if !s.status.Waiting() {
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	s.emitTick()
	if s.remaining == 0 {
		s.expire()
	}
}

// expire leaves the queue and hands off to the solo fallback.
func (s *Session) expire() {
	if err := s.send(&protocol.Outbound{Action: protocol.ActionLeaveQueue}); err != nil {
		s.log.Warn("leave_queue not sent on expiry", "error", err)
	}
	s.log.Info("pvp queue countdown expired")
	s.enter(StatusTimeout)
	s.fallback(protocol.DefaultSoloDifficulty())
}

func (s *Session) emitTick() {
	if h := s.hooks.OnTick; h != nil {
		n := s.remaining
		s.emit(func() { h(n) })
	}
}
