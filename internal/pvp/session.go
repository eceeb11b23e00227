// Package pvp is the client side of a PvP affection match.
//
// A Session owns one connection to the pairing server for one gameplay
// session. Inbound frames, timer callbacks and host calls all run under the
// session lock, so the state machine sees one event at a time. Hooks are
// queued while the lock is held and delivered afterwards, in order, so a hook
// may call back into the Session.
package pvp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"affection_pvp/internal/logger"
	"affection_pvp/internal/minigame"
	"affection_pvp/internal/protocol"
	"affection_pvp/internal/sched"
)

var (
	ErrNotConnected = errors.New("pvp: not connected")
	ErrNoRoom       = errors.New("pvp: no active match")
	ErrNoGame       = errors.New("pvp: no minigame of that kind is running")
	ErrNoSolo       = errors.New("pvp: solo fallback not triggered")
)

type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusQueueJoined  Status = "queue_joined"
	StatusMatching     Status = "matching"
	StatusMatched      Status = "matched"
	StatusPlaying      Status = "playing"
	StatusTimeout      Status = "timeout"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Waiting reports whether the player is queued for an opponent.
func (s Status) Waiting() bool {
	return s == StatusQueueJoined || s == StatusMatching
}

func (s Status) Terminal() bool {
	return s == StatusTimeout || s == StatusDisconnected || s == StatusError
}

// Match is created on a matched frame and discarded on Reset.
type Match struct {
	OpponentSessionID string
	OpponentBet       int
	MyBet             int
	FinalBet          int
	RoomID            string
	GameType          protocol.GameType
	IsHost            bool
	CorrectCup        *int

	resolved  bool
	gameEnded bool
	verdict   *bool
}

// Resolved reports whether the match outcome was already handed off.
func (m Match) Resolved() bool { return m.resolved }

// LocalVerdict is this peer's own minigame outcome, if it finished.
func (m Match) LocalVerdict() (won bool, ok bool) {
	if m.verdict == nil {
		return false, false
	}
	return *m.verdict, true
}

type ResultStatus string

const (
	ResultWin  ResultStatus = "win"
	ResultLose ResultStatus = "lose"
)

// Result is the terminal outcome of one match.
type Result struct {
	Status            ResultStatus
	OpponentSessionID string
	FinalBet          int
	NewAffection      int
	CharacterStolen   bool
	ShowEventScene    bool
	// Settled is set when the server's pvp_result produced this value.
	Settled bool
	// Forfeit is set when the connection was lost mid-match.
	Forfeit bool
}

func (r Result) Won() bool { return r.Status == ResultWin }

// Hooks are the host's view of a session. All of them are optional.
type Hooks struct {
	OnStatus    func(Status)
	OnTick      func(remaining int)
	OnError     func(message string)
	OnMatched   func(Match)
	OnRoulette  func(index int)
	OnGameStart func(protocol.GameType)
	// OnGameEnd receives the local minigame verdict, once per match.
	OnGameEnd func(won bool)
	// OnResult receives the match outcome, once per match.
	OnResult   func(Result)
	OnFallback func(protocol.SoloDifficulty)
	OnSoloEnd  func(success bool)
}

type Config struct {
	Balance      int
	MatchSeconds int
	// GraceDelay is how long an error or disconnect may recover before the
	// fallback path takes over.
	GraceDelay time.Duration
	// ResultWait bounds how long a finished game waits for pvp_result.
	ResultWait time.Duration
	BothWrong  minigame.BothWrongPolicy
	Roulette   RouletteTimings
	Shell      minigame.ShellTimings
	Chase      minigame.ChaseTimings
	Mashing    minigame.MashingTimings
}

func DefaultConfig() Config {
	return Config{
		Balance:      0,
		MatchSeconds: 30,
		GraceDelay:   2 * time.Second,
		ResultWait:   10 * time.Second,
		BothWrong:    minigame.BothWrongLoss,
		Roulette:     DefaultRouletteTimings(),
		Shell:        minigame.DefaultShellTimings(),
		Chase:        minigame.DefaultChaseTimings(),
		Mashing:      minigame.DefaultMashingTimings(),
	}
}

type Option func(*Session)

func WithClock(c sched.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithRand(r minigame.Rand) Option {
	return func(s *Session) { s.rand = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.baseLog = l }
}

type Session struct {
	mu       sync.Mutex
	effects  []func()
	draining bool

	cfg     Config
	dialer  Dialer
	hooks   Hooks
	clock   sched.Clock
	rand    minigame.Rand
	baseLog *slog.Logger
	log     *slog.Logger

	tasks *sched.Tasks
	conn  *Connection
	seq   uint64

	sessionID     string
	status        Status
	wager         Wager
	remaining     int
	match         *Match
	mirror        minigame.Mirror
	roulette      *Roulette
	game          minigame.Game
	result        *Result
	soloTriggered bool
	solo          *protocol.SoloDifficulty
	heart         *minigame.Heart
	errMsg        string
}

func New(cfg Config, dialer Dialer, hooks Hooks, opts ...Option) *Session {
	s := &Session{
		cfg:    cfg,
		dialer: dialer,
		hooks:  hooks,
		status: StatusIdle,
		wager:  NewWager(cfg.Balance),
		mirror: minigame.NewMirror(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = sched.RealClock()
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if s.baseLog == nil {
		s.baseLog = logger.Component("pvp")
	}
	s.log = s.baseLog
	s.remaining = cfg.MatchSeconds
	s.tasks = sched.NewTasks(s.clock, s.do)
	return s
}

// do runs fn under the session lock and then delivers queued hooks with the
// lock released. A nested call from inside a hook only queues; the outermost
// caller drains.
func (s *Session) do(fn func()) {
	s.mu.Lock()
	fn()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.effects) > 0 {
		f := s.effects[0]
		s.effects = s.effects[1:]
		s.mu.Unlock()
		f()
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

func (s *Session) emit(f func()) {
	s.effects = append(s.effects, f)
}

// Connect opens the channel for sessionID. It returns immediately; progress
// is reported through OnStatus. A call while a channel is already open or
// opening does nothing.
func (s *Session) Connect(sessionID string) {
	s.do(func() {
		if s.conn != nil && s.conn.state != ReadyClosed {
			if sessionID != s.sessionID {
				s.log.Warn("connect ignored, channel already bound", "requested", sessionID)
			}
			return
		}
		s.sessionID = sessionID
		s.log = s.baseLog.With("session_id", sessionID)
		s.errMsg = ""
		s.seq++
		c := &Connection{id: s.seq, state: ReadyConnecting}
		s.conn = c
		s.enter(StatusConnecting)
		go s.dial(c, sessionID)
	})
}

func (s *Session) dial(c *Connection, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	t, err := s.dialer.Dial(ctx, sessionID)

	s.do(func() {
		if s.conn != c {
			if t != nil {
				s.emit(func() { _ = t.Close() })
			}
			return
		}
		if err != nil {
			c.state = ReadyClosed
			s.log.Warn("pvp connect failed", "error", err)
			s.fail("server connection failed")
			return
		}
		c.transport = t
		c.state = ReadyOpen
		c.lastGood = true
		t.Run(sessionSink{s: s, id: c.id})
	})
}

// Disconnect closes the channel and returns to idle.
func (s *Session) Disconnect() {
	s.do(func() {
		s.closeConn()
		s.enter(StatusIdle)
	})
}

// Reset closes the channel and forgets everything about the current attempt.
// The balance is kept.
func (s *Session) Reset() {
	s.do(func() {
		s.closeConn()
		s.tasks.Cancel()
		if s.game != nil {
			s.game.Stop()
		}
		if s.heart != nil {
			s.heart.Stop()
		}
		s.game = nil
		s.heart = nil
		s.match = nil
		s.roulette = nil
		s.result = nil
		s.mirror = minigame.NewMirror()
		s.remaining = s.cfg.MatchSeconds
		s.soloTriggered = false
		s.solo = nil
		s.errMsg = ""
		s.wager.Set(DefaultBet)
		s.setStatus(StatusIdle)
	})
}

func (s *Session) closeConn() {
	c := s.conn
	if c == nil {
		return
	}
	s.conn = nil
	c.state = ReadyClosed
	if t := c.transport; t != nil {
		s.emit(func() { _ = t.Close() })
	}
}

func (s *Session) SetBalance(balance int) {
	s.do(func() { s.wager.SetBalance(balance) })
}

// SetBetAmount clamps amount into the allowed range and returns what was stored.
func (s *Session) SetBetAmount(amount float64) int {
	var bet int
	s.do(func() { bet = s.wager.Set(amount) })
	return bet
}

func (s *Session) AdjustBet(delta int) int {
	var bet int
	s.do(func() { bet = s.wager.Adjust(delta) })
	return bet
}

func (s *Session) BetAmount() int {
	var bet int
	s.do(func() { bet = s.wager.Bet() })
	return bet
}

func (s *Session) SetRemainingSeconds(n int) {
	s.do(func() { s.remaining = max(0, n) })
}

// SetSoloMinigame overrides the fallback trigger. Clearing it re-arms the
// fallback so a later terminal state can fire it again.
func (s *Session) SetSoloMinigame(trigger bool, d *protocol.SoloDifficulty) {
	s.do(func() {
		s.soloTriggered = trigger
		s.solo = d
	})
}

// JoinQueue submits the current bet. It is only accepted while connected.
func (s *Session) JoinQueue() error {
	var err error
	s.do(func() { err = s.joinQueue() })
	return err
}

func (s *Session) joinQueue() error {
	if s.status != StatusConnected {
		s.log.Warn("join_queue ignored", "status", s.status)
		return ErrNotConnected
	}
	if err := s.wager.Validate(); err != nil {
		s.errMsg = err.Error()
		s.emitError(err.Error())
		return err
	}
	out := &protocol.Outbound{Action: protocol.ActionJoinQueue, BetAmount: s.wager.Bet()}
	if err := s.send(out); err != nil {
		return err
	}
	s.errMsg = ""
	s.enter(StatusMatching)
	s.startCountdown()
	return nil
}

func (s *Session) LeaveQueue() {
	s.do(func() {
		if !s.status.Waiting() {
			return
		}
		if err := s.send(&protocol.Outbound{Action: protocol.ActionLeaveQueue}); err != nil {
			s.log.Warn("leave_queue not sent", "error", err)
		}
		s.remaining = s.cfg.MatchSeconds
		s.enter(StatusConnected)
	})
}

// SendGameAction relays one summary action to the opponent.
func (s *Session) SendGameAction(action string, payload any) error {
	var err error
	s.do(func() { err = s.sendGameAction(action, payload) })
	return err
}

func (s *Session) sendGameAction(action string, payload any) error {
	if s.match == nil {
		return ErrNoRoom
	}
	out, err := protocol.NewGameAction(s.match.RoomID, action, payload)
	if err != nil {
		return err
	}
	return s.send(out)
}

func (s *Session) send(out *protocol.Outbound) error {
	c := s.conn
	if c == nil || c.state != ReadyOpen {
		return ErrNotConnected
	}
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode %s: %w", out.Action, err)
	}
	if err := c.transport.Send(b); err != nil {
		return fmt.Errorf("send %s: %w", out.Action, err)
	}
	return nil
}

// enter moves to st and drops every timer of the phase being left.
func (s *Session) enter(st Status) {
	s.tasks.Cancel()
	s.setStatus(st)
}

func (s *Session) setStatus(st Status) {
	if s.status == st {
		return
	}
	s.log.Debug("pvp status", "from", s.status, "to", st)
	s.status = st
	if h := s.hooks.OnStatus; h != nil {
		s.emit(func() { h(st) })
	}
}

func (s *Session) emitError(msg string) {
	if h := s.hooks.OnError; h != nil {
		s.emit(func() { h(msg) })
	}
}

// fail enters the error state and arms the fallback path.
func (s *Session) fail(msg string) {
	s.errMsg = msg
	s.enter(StatusError)
	s.emitError(msg)
	s.armFallback()
}

type sessionSink struct {
	s  *Session
	id uint64
}

func (k sessionSink) Frame(raw []byte) { k.s.onFrame(k.id, raw) }
func (k sessionSink) Closed(err error) { k.s.onClosed(k.id, err) }

func (s *Session) onFrame(id uint64, raw []byte) {
	s.do(func() {
		if s.conn == nil || s.conn.id != id {
			return
		}
		s.dispatch(raw)
	})
}

func (s *Session) onClosed(id uint64, err error) {
	s.do(func() {
		c := s.conn
		if c == nil || c.id != id {
			return
		}
		c.state = ReadyClosed
		switch s.status {
		case StatusIdle, StatusError, StatusTimeout, StatusDisconnected:
			return
		}
		if err != nil {
			s.log.Warn("pvp connection lost", "error", err)
			s.fail("connection error")
			return
		}
		s.log.Info("pvp connection closed")
		s.enter(StatusDisconnected)
		s.armFallback()
	})
}
