package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"affection_pvp/internal/domain"
	"affection_pvp/internal/game"
	"affection_pvp/internal/logger"
	"affection_pvp/internal/protocol"
	"affection_pvp/internal/repository"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const ledgerTimeout = 5 * time.Second

// Ledger owns affection balances. repository.AffectionRepository is the
// production implementation.
type Ledger interface {
	Balance(ctx context.Context, sessionID string) (int, error)
	Settle(ctx context.Context, s *domain.Settlement) error
}

type Options struct {
	MaxBet         int
	QueueTimeout   time.Duration
	MatchMaxTime   time.Duration
	ReportGrace    time.Duration
	StaleRoomAfter time.Duration
	SoloDifficulty protocol.SoloDifficulty

	Clock   clockwork.Clock
	Factory *game.Factory
	Logger  *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxBet:         100,
		QueueTimeout:   30 * time.Second,
		MatchMaxTime:   3 * time.Minute,
		ReportGrace:    5 * time.Second,
		StaleRoomAfter: time.Hour,
		SoloDifficulty: protocol.DefaultSoloDifficulty(),
	}
}

// ticket is a session waiting in the queue.
type ticket struct {
	client *Client
	bet    int
	since  time.Time
	timer  clockwork.Timer
}

// Hub pairs queued sessions into rooms. There is a single waiting slot: the
// variant is drawn per room, so any two sessions can be paired.
type Hub struct {
	opts    Options
	ledger  Ledger
	clock   clockwork.Clock
	factory *game.Factory
	log     *slog.Logger

	mu          sync.Mutex
	clients     map[string]*Client
	waiting     *ticket
	rooms       map[string]*Room
	sessionRoom map[string]*Room

	scheduler gocron.Scheduler
}

func NewHub(ledger Ledger, opts Options) *Hub {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Factory == nil {
		opts.Factory = game.NewFactory(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Component("hub")
	}
	return &Hub{
		opts:        opts,
		ledger:      ledger,
		clock:       opts.Clock,
		factory:     opts.Factory,
		log:         opts.Logger,
		clients:     make(map[string]*Client),
		rooms:       make(map[string]*Room),
		sessionRoom: make(map[string]*Room),
	}
}

// Register binds c to its session. A newer connection for the same session
// replaces the older one.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old := h.clients[c.SessionID]
	h.clients[c.SessionID] = c
	h.mu.Unlock()

	if old != nil && old != c {
		h.log.Info("session reconnected, dropping old connection", "session_id", c.SessionID)
		old.SendJSON(protocol.Error{Type: protocol.TypeError, Message: MsgSessionReplaced})
		old.Close()
	}
	c.SendJSON(protocol.Envelope{Type: protocol.TypeConnected})
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c.SessionID] == c {
		delete(h.clients, c.SessionID)
	}
	if h.waiting != nil && h.waiting.client == c {
		h.waiting.timer.Stop()
		h.waiting = nil
	}
	room := h.sessionRoom[c.SessionID]
	h.mu.Unlock()

	if room != nil {
		room.Leave(c)
	}
}

func (h *Hub) HandleMessage(c *Client, raw []byte) {
	out, err := protocol.PeekAction(raw)
	if err != nil {
		c.log.Warn("malformed frame", "error", err)
		sendError(c, MsgInvalidMessage)
		return
	}

	switch out.Action {
	case protocol.ActionJoinQueue:
		h.joinQueue(c, out.BetAmount)
	case protocol.ActionLeaveQueue:
		h.leaveQueue(c)
	case protocol.ActionGameAction:
		h.gameAction(c, out)
	default:
		c.log.Warn("unknown action", "action", out.Action)
		sendError(c, MsgUnknownAction)
	}
}

func (h *Hub) joinQueue(c *Client, bet int) {
	if bet < 1 || bet > h.opts.MaxBet {
		sendError(c, MsgInvalidBet)
		return
	}
	if h.RoomOf(c.SessionID) != nil {
		sendError(c, MsgAlreadyInMatch)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	balance, err := h.ledger.Balance(ctx, c.SessionID)
	cancel()
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		sendError(c, MsgUnknownSession)
		return
	case err != nil:
		c.log.Error("balance lookup failed", "error", err)
		sendError(c, MsgLedgerDown)
		return
	case bet > balance:
		sendError(c, MsgBetOverBalance)
		return
	}

	h.mu.Lock()
	if h.clients[c.SessionID] != c || h.sessionRoom[c.SessionID] != nil {
		h.mu.Unlock()
		return
	}

	QueueJoins.Inc()
	joined := protocol.QueueJoined{Type: protocol.TypeQueueJoined, BetAmount: bet}

	w := h.waiting
	if w != nil && w.client.SessionID != c.SessionID {
		w.timer.Stop()
		h.waiting = nil
		room, err := h.newRoom(w, &ticket{client: c, bet: bet, since: h.clock.Now()})
		h.mu.Unlock()

		c.SendJSON(joined)
		if err != nil {
			h.log.Error("create room failed", "error", err)
			sendError(w.client, MsgUnknownRoom)
			sendError(c, MsgUnknownRoom)
			return
		}
		room.start()
		return
	}

	if w != nil {
		w.timer.Stop()
	}
	t := &ticket{client: c, bet: bet, since: h.clock.Now()}
	t.timer = h.clock.AfterFunc(h.opts.QueueTimeout, func() { h.queueTimeout(t) })
	h.waiting = t
	h.mu.Unlock()

	c.log.Info("queued", "bet", bet)
	c.SendJSON(joined)
}

func (h *Hub) queueTimeout(t *ticket) {
	h.mu.Lock()
	if h.waiting != t {
		h.mu.Unlock()
		return
	}
	h.waiting = nil
	h.mu.Unlock()

	QueueTimeouts.Inc()
	t.client.log.Info("queue timeout", "waited", h.clock.Since(t.since).Round(time.Second))
	d := h.opts.SoloDifficulty
	t.client.SendJSON(protocol.Timeout{Type: protocol.TypeTimeout, SoloDifficulty: &d})
}

// leaveQueue takes c out of the waiting slot. If c was already paired, the
// leave crossed the matched frame and counts as walking away from the room.
func (h *Hub) leaveQueue(c *Client) {
	h.mu.Lock()
	if h.waiting != nil && h.waiting.client == c {
		h.waiting.timer.Stop()
		h.waiting = nil
	}
	room := h.sessionRoom[c.SessionID]
	h.mu.Unlock()

	if room != nil {
		c.log.Info("leave_queue after pairing forfeits", "room_id", room.ID)
		room.Leave(c)
		return
	}
	c.SendJSON(protocol.Envelope{Type: protocol.TypeQueueLeft})
}

// gameAction forwards to the room. Actions outside a match are dropped
// without an error frame since they are usually stragglers after a result.
func (h *Hub) gameAction(c *Client, out *protocol.Outbound) {
	room := h.RoomOf(c.SessionID)
	if room == nil {
		c.log.Debug("game action outside a match", "game_action", out.GameAction)
		return
	}
	if out.RoomID != "" && out.RoomID != room.ID {
		c.log.Warn("game action for another room", "room_id", out.RoomID)
		return
	}
	room.Submit(c, out.GameAction, out.Payload)
}

// newRoom must be called with h.mu held. The longer-waiting session hosts.
func (h *Hub) newRoom(host, guest *ticket) (*Room, error) {
	id := uuid.NewString()
	gameType := h.factory.PickType()
	players := [2]string{host.client.SessionID, guest.client.SessionID}

	g, err := h.factory.CreateGame(gameType, id, players)
	if err != nil {
		return nil, err
	}

	room := newRoom(id, g, [2]*Client{host.client, guest.client}, [2]int{host.bet, guest.bet}, h)
	h.rooms[id] = room
	h.sessionRoom[players[0]] = room
	h.sessionRoom[players[1]] = room

	Matches.WithLabelValues(string(gameType)).Inc()
	h.log.Info("room created", "room_id", id, "game_type", gameType, "host", players[0], "guest", players[1])
	return room, nil
}

func (h *Hub) removeRoom(r *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[r.ID] == r {
		delete(h.rooms, r.ID)
	}
	for _, c := range r.players {
		if h.sessionRoom[c.SessionID] == r {
			delete(h.sessionRoom, c.SessionID)
		}
	}
}

func (h *Hub) RoomOf(sessionID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessionRoom[sessionID]
}

func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// StartCleanup schedules the stale room sweep.
func (h *Hub) StartCleanup(every time.Duration) error {
	s, err := gocron.NewScheduler(gocron.WithClock(h.clock))
	if err != nil {
		return err
	}
	if _, err := s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(h.cleanupStaleRooms),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return err
	}
	s.Start()
	h.scheduler = s
	return nil
}

func (h *Hub) Shutdown() error {
	if h.scheduler == nil {
		return nil
	}
	return h.scheduler.Shutdown()
}

func (h *Hub) cleanupStaleRooms() {
	now := h.clock.Now()

	h.mu.Lock()
	var stale []*Room
	for _, r := range h.rooms {
		if now.Sub(r.createdAt) > h.opts.StaleRoomAfter {
			stale = append(stale, r)
		}
	}
	for id, c := range h.clients {
		select {
		case <-c.done:
			delete(h.clients, id)
		default:
		}
	}
	h.mu.Unlock()

	for _, r := range stale {
		r.Abort()
		h.removeRoom(r)
		h.log.Warn("cleaned up stale room", "room_id", r.ID)
	}
}

func sendError(c *Client, msg string) {
	c.SendJSON(protocol.Error{Type: protocol.TypeError, Message: msg})
}
