package pvp

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"affection_pvp/internal/logger"
	"affection_pvp/internal/minigame"
	"affection_pvp/internal/protocol"
	"affection_pvp/internal/sched"
	"affection_pvp/internal/sched/schedtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu      sync.Mutex
	sink    Sink
	sent    [][]byte
	closed  bool
	started chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{started: make(chan struct{})}
}

func (t *fakeTransport) Run(sink Sink) {
	t.mu.Lock()
	t.sink = sink
	t.mu.Unlock()
	close(t.started)
}

func (t *fakeTransport) Send(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	t.sent = append(t.sent, frame)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) outbound() []protocol.Outbound {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []protocol.Outbound
	for _, raw := range t.sent {
		o, err := protocol.PeekAction(raw)
		if err == nil {
			out = append(out, *o)
		}
	}
	return out
}

func (t *fakeTransport) count(action, gameAction string) int {
	n := 0
	for _, o := range t.outbound() {
		if o.Action == action && o.GameAction == gameAction {
			n++
		}
	}
	return n
}

type fakeDialer struct {
	tr    *fakeTransport
	err   error
	calls atomic.Int32
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Transport, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.tr, nil
}

type recorder struct {
	mu        sync.Mutex
	statuses  []Status
	ticks     []int
	errors    []string
	matched   []Match
	starts    []protocol.GameType
	gameEnds  []bool
	results   []Result
	fallbacks []protocol.SoloDifficulty
	soloEnds  []bool
}

func (r *recorder) hooks() Hooks {
	lock := func(f func()) { r.mu.Lock(); f(); r.mu.Unlock() }
	return Hooks{
		OnStatus:    func(s Status) { lock(func() { r.statuses = append(r.statuses, s) }) },
		OnTick:      func(n int) { lock(func() { r.ticks = append(r.ticks, n) }) },
		OnError:     func(m string) { lock(func() { r.errors = append(r.errors, m) }) },
		OnMatched:   func(m Match) { lock(func() { r.matched = append(r.matched, m) }) },
		OnGameStart: func(g protocol.GameType) { lock(func() { r.starts = append(r.starts, g) }) },
		OnGameEnd:   func(w bool) { lock(func() { r.gameEnds = append(r.gameEnds, w) }) },
		OnResult:    func(res Result) { lock(func() { r.results = append(r.results, res) }) },
		OnFallback:  func(d protocol.SoloDifficulty) { lock(func() { r.fallbacks = append(r.fallbacks, d) }) },
		OnSoloEnd:   func(ok bool) { lock(func() { r.soloEnds = append(r.soloEnds, ok) }) },
	}
}

// fixedRand always draws the same values.
type fixedRand struct {
	n int
	f float64
}

func (r fixedRand) IntN(n int) int   { return r.n % n }
func (r fixedRand) Float64() float64 { return r.f }

type rig struct {
	t      *testing.T
	clock  *schedtest.ManualClock
	tr     *fakeTransport
	dialer *fakeDialer
	rec    *recorder
	s      *Session
}

func newRig(t *testing.T, balance int) *rig {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Balance = balance
	r := &rig{
		t:     t,
		clock: schedtest.NewManualClock(),
		tr:    newFakeTransport(),
		rec:   &recorder{},
	}
	r.dialer = &fakeDialer{tr: r.tr}
	r.s = New(cfg, r.dialer, r.rec.hooks(),
		WithClock(r.clock),
		WithRand(fixedRand{n: 1}),
		WithLogger(logger.Discard()),
	)
	return r
}

// open connects and waits until the transport delivers frames.
func (r *rig) open() {
	r.t.Helper()
	r.s.Connect("sess-a")
	select {
	case <-r.tr.started:
	case <-time.After(2 * time.Second):
		r.t.Fatal("transport never started")
	}
}

func (r *rig) frame(v any) {
	r.t.Helper()
	b, err := json.Marshal(v)
	require.NoError(r.t, err)
	r.raw(string(b))
}

func (r *rig) raw(s string) {
	r.tr.mu.Lock()
	sink := r.tr.sink
	r.tr.mu.Unlock()
	sink.Frame([]byte(s))
}

func (r *rig) close(err error) {
	r.tr.mu.Lock()
	sink := r.tr.sink
	r.tr.mu.Unlock()
	sink.Closed(err)
}

// queued takes the rig from idle to queue_joined.
func (r *rig) queued() {
	r.t.Helper()
	r.open()
	r.frame(protocol.Envelope{Type: protocol.TypeConnected})
	require.NoError(r.t, r.s.JoinQueue())
	r.frame(protocol.QueueJoined{Type: protocol.TypeQueueJoined, BetAmount: r.s.BetAmount()})
	require.Equal(r.t, StatusQueueJoined, r.s.Snapshot().Status)
}

func (r *rig) match(gt protocol.GameType, host bool, cup *int, opponentBet int) {
	r.t.Helper()
	r.frame(protocol.Matched{
		Type:              protocol.TypeMatched,
		OpponentSessionID: "sess-b",
		OpponentBet:       opponentBet,
		RoomID:            "room-1",
		GameType:          gt,
		IsHost:            host,
		CorrectCup:        cup,
	})
}

func (r *rig) update(action string, mutate func(*protocol.GameUpdate)) {
	u := protocol.GameUpdate{Type: protocol.TypeGameUpdate, GameAction: action}
	if mutate != nil {
		mutate(&u)
	}
	r.frame(u)
}

func (r *rig) result(winner bool, affection int) {
	r.frame(protocol.PvPResult{
		Type:              protocol.TypePvPResult,
		Winner:            winner,
		OpponentSessionID: "sess-b",
		FinalBet:          30,
		NewAffection:      affection,
	})
}

func intp(v int) *int { return &v }

// toGame is long enough for the roulette to land on any variant.
const toGame = 5 * time.Second

const shellToSelect = 2*time.Second + 8*400*time.Millisecond + 500*time.Millisecond

func TestSetBetAmountClamps(t *testing.T) {
	cases := []struct {
		name    string
		balance int
		amount  float64
		want    int
	}{
		{"negative", 50, -5, 1},
		{"zero", 50, 0, 1},
		{"fraction", 50, 3.7, 3},
		{"below one", 50, 0.4, 1},
		{"over balance", 50, 75, 50},
		{"over max", 500, 250, 100},
		{"nan", 50, math.NaN(), 1},
		{"inf", 50, math.Inf(1), 50},
		{"neg inf", 50, math.Inf(-1), 1},
		{"empty balance", 0, 10, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(Config{Balance: tc.balance}, &fakeDialer{}, Hooks{}, WithLogger(logger.Discard()))
			assert.Equal(t, tc.want, s.SetBetAmount(tc.amount))
			assert.Equal(t, tc.want, s.BetAmount())
		})
	}
}

func TestBetAlwaysInRange(t *testing.T) {
	for _, balance := range []int{1, 7, 60, 100, 400} {
		s := New(Config{Balance: balance}, &fakeDialer{}, Hooks{}, WithLogger(logger.Discard()))
		ceiling := min(100, balance)
		for amount := -20.0; amount < 520; amount += 0.37 {
			got := s.SetBetAmount(amount)
			require.GreaterOrEqual(t, got, 1)
			require.LessOrEqual(t, got, ceiling)
		}
	}
}

func TestAdjustBet(t *testing.T) {
	s := New(Config{Balance: 50}, &fakeDialer{}, Hooks{}, WithLogger(logger.Discard()))
	assert.Equal(t, DefaultBet, s.BetAmount())
	assert.Equal(t, 15, s.AdjustBet(5))
	assert.Equal(t, 16, s.AdjustBet(1))
	assert.Equal(t, 1, s.AdjustBet(-40))
	assert.Equal(t, 50, s.AdjustBet(200))
}

func TestJoinQueueOnlyWhenConnected(t *testing.T) {
	r := newRig(t, 50)

	require.ErrorIs(t, r.s.JoinQueue(), ErrNotConnected)
	assert.Equal(t, StatusIdle, r.s.Snapshot().Status)

	r.open()
	require.ErrorIs(t, r.s.JoinQueue(), ErrNotConnected)
	assert.Equal(t, StatusConnecting, r.s.Snapshot().Status)
	assert.Empty(t, r.tr.outbound())

	r.frame(protocol.Envelope{Type: protocol.TypeConnected})
	require.Equal(t, StatusConnected, r.s.Snapshot().Status)
	r.s.SetBetAmount(25)
	require.NoError(t, r.s.JoinQueue())
	assert.Equal(t, StatusMatching, r.s.Snapshot().Status)

	out := r.tr.outbound()
	require.Len(t, out, 1)
	assert.Equal(t, protocol.ActionJoinQueue, out[0].Action)
	assert.Equal(t, 25, out[0].BetAmount)

	require.ErrorIs(t, r.s.JoinQueue(), ErrNotConnected)
	assert.Equal(t, StatusMatching, r.s.Snapshot().Status)
	assert.Len(t, r.tr.outbound(), 1)
}

func TestJoinQueueRevalidatesBalance(t *testing.T) {
	r := newRig(t, 50)
	r.open()
	r.frame(protocol.Envelope{Type: protocol.TypeConnected})

	r.s.SetBetAmount(40)
	r.s.SetBalance(20)
	require.ErrorIs(t, r.s.JoinQueue(), ErrBetExceedsBalance)

	snap := r.s.Snapshot()
	assert.Equal(t, StatusConnected, snap.Status)
	assert.Equal(t, ErrBetExceedsBalance.Error(), snap.Error)
	assert.Equal(t, []string{ErrBetExceedsBalance.Error()}, r.rec.errors)
	assert.Empty(t, r.tr.outbound())
}

func TestConnectIsIdempotent(t *testing.T) {
	r := newRig(t, 50)
	r.open()
	r.s.Connect("sess-a")
	r.s.Connect("sess-other")
	assert.EqualValues(t, 1, r.dialer.calls.Load())
	assert.Equal(t, ReadyOpen, r.s.Snapshot().ReadyState)

	r.s.Disconnect()
	snap := r.s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, ReadyClosed, snap.ReadyState)
	assert.True(t, r.tr.closed)

	// frames from the closed channel are not ours anymore
	r.frame(protocol.Envelope{Type: protocol.TypeConnected})
	assert.Equal(t, StatusIdle, r.s.Snapshot().Status)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	r := newRig(t, 50)
	r.open()
	r.frame(protocol.Envelope{Type: protocol.TypeConnected})

	for _, raw := range []string{
		`not json`,
		`{"foo":1}`,
		`{"type":"bogus"}`,
		`{"type":"matched","room_id":5}`,
		`{"type":"game_update","game_action":"opponent_select"}`,
	} {
		r.raw(raw)
		assert.Equal(t, StatusConnected, r.s.Snapshot().Status, raw)
	}
	assert.Nil(t, r.s.Snapshot().Match)
}

func TestCountdownDecrementsAndFreezesOnMatch(t *testing.T) {
	r := newRig(t, 50)
	r.queued()
	assert.Equal(t, 30, r.s.Snapshot().Remaining)

	for want := 29; want >= 25; want-- {
		r.clock.Advance(time.Second)
		assert.Equal(t, want, r.s.Snapshot().Remaining)
	}

	r.match(protocol.GameShell, false, intp(1), 5)
	assert.Equal(t, StatusMatched, r.s.Snapshot().Status)

	r.clock.Advance(40 * time.Second)
	snap := r.s.Snapshot()
	assert.Equal(t, 25, snap.Remaining)
	assert.Equal(t, 0, r.tr.count(protocol.ActionLeaveQueue, ""))
	assert.Empty(t, r.rec.fallbacks)
	assert.Equal(t, []int{30, 30, 29, 28, 27, 26, 25}, r.rec.ticks)
}

func TestQueueJoinedResetsCountdown(t *testing.T) {
	r := newRig(t, 50)
	r.queued()
	r.clock.Advance(4 * time.Second)
	assert.Equal(t, 26, r.s.Snapshot().Remaining)

	r.frame(protocol.QueueJoined{Type: protocol.TypeQueueJoined, BetAmount: 10})
	assert.Equal(t, 30, r.s.Snapshot().Remaining)
	r.clock.Advance(time.Second)
	assert.Equal(t, 29, r.s.Snapshot().Remaining)
}

func TestCountdownExpiryFallsBackOnce(t *testing.T) {
	r := newRig(t, 50)
	r.queued()

	r.clock.Advance(30 * time.Second)
	snap := r.s.Snapshot()
	assert.Equal(t, StatusTimeout, snap.Status)
	assert.Equal(t, 0, snap.Remaining)
	assert.Equal(t, 1, r.tr.count(protocol.ActionLeaveQueue, ""))
	assert.Equal(t, []protocol.SoloDifficulty{protocol.DefaultSoloDifficulty()}, r.rec.fallbacks)

	// the server's own timeout races in afterwards
	r.frame(protocol.Timeout{Type: protocol.TypeTimeout})
	r.clock.Advance(30 * time.Second)
	assert.Len(t, r.rec.fallbacks, 1)
	assert.Equal(t, 1, r.tr.count(protocol.ActionLeaveQueue, ""))
}

func TestTimeoutFrameDifficulty(t *testing.T) {
	r := newRig(t, 50)
	r.queued()
	r.raw(`{"type":"timeout"}`)
	require.Len(t, r.rec.fallbacks, 1)
	assert.Equal(t, protocol.DefaultSoloDifficulty(), r.rec.fallbacks[0])
	assert.Equal(t, StatusTimeout, r.s.Snapshot().Status)

	custom := protocol.SoloDifficulty{TargetCount: 20, TimeSeconds: 8, HeartSizeMin: 30, HeartSizeMax: 50, HeartDurationMin: 1, HeartDurationMax: 3}
	r2 := newRig(t, 50)
	r2.queued()
	r2.frame(protocol.Timeout{Type: protocol.TypeTimeout, SoloDifficulty: &custom})
	assert.Equal(t, []protocol.SoloDifficulty{custom}, r2.rec.fallbacks)
}

func TestQueueJoinedEchoCannotExceedBalance(t *testing.T) {
	r := newRig(t, 20)
	r.queued()

	r.frame(protocol.QueueJoined{Type: protocol.TypeQueueJoined, BetAmount: 80})
	assert.Equal(t, 20, r.s.BetAmount())
	assert.Equal(t, StatusQueueJoined, r.s.Snapshot().Status)
}

func TestResultWithoutMatchIsDropped(t *testing.T) {
	r := newRig(t, 50)
	r.queued()
	r.raw(`{"type":"timeout"}`)
	require.Len(t, r.rec.fallbacks, 1)

	r.result(false, 20)
	snap := r.s.Snapshot()
	assert.Equal(t, StatusTimeout, snap.Status)
	assert.Nil(t, snap.Result)
	assert.Empty(t, r.rec.results)
}

func TestLeaveQueue(t *testing.T) {
	r := newRig(t, 50)
	r.queued()
	r.clock.Advance(3 * time.Second)

	r.s.LeaveQueue()
	assert.Equal(t, StatusConnected, r.s.Snapshot().Status)
	assert.Equal(t, 30, r.s.Snapshot().Remaining)
	assert.Equal(t, 1, r.tr.count(protocol.ActionLeaveQueue, ""))

	r.frame(protocol.Envelope{Type: protocol.TypeQueueLeft})
	r.clock.Advance(60 * time.Second)
	assert.Equal(t, StatusConnected, r.s.Snapshot().Status)
	assert.Empty(t, r.rec.fallbacks)
}

func TestRouletteLandsOnTarget(t *testing.T) {
	for idx, gt := range protocol.GameTypes {
		t.Run(string(gt), func(t *testing.T) {
			clock := schedtest.NewManualClock()
			tasks := sched.NewTasks(clock, nil)

			var ticks []int
			var done []protocol.GameType
			r := NewRoulette(tasks, DefaultRouletteTimings(), gt,
				func(i int) { ticks = append(ticks, i) },
				func(g protocol.GameType) { done = append(done, g) })
			r.Start()

			clock.Advance(time.Minute)
			require.GreaterOrEqual(t, len(ticks), 15+idx)
			assert.Len(t, ticks, r.TotalSpins())
			assert.Equal(t, idx, ticks[len(ticks)-1])
			assert.Equal(t, idx, r.Index())
			assert.True(t, r.Landed())
			assert.Equal(t, []protocol.GameType{gt}, done)

			r.fire()
			r.fire()
			assert.Len(t, done, 1)
		})
	}
}

func TestRouletteEasesOut(t *testing.T) {
	clock := schedtest.NewManualClock()
	tasks := sched.NewTasks(clock, nil)
	start := clock.Now()

	var at []time.Duration
	var landed time.Duration
	r := NewRoulette(tasks, DefaultRouletteTimings(), protocol.GameShell,
		func(int) { at = append(at, clock.Now().Sub(start)) },
		func(protocol.GameType) { landed = clock.Now().Sub(start) })
	r.Start()
	clock.Advance(time.Minute)

	require.Len(t, at, 15)
	assert.Equal(t, 80*time.Millisecond, at[0])
	assert.Equal(t, 800*time.Millisecond, at[9])
	// the slowdown starts after tick 11: tick 12 waits 80+40ms, tick 13 80+80ms
	assert.Equal(t, 880*time.Millisecond, at[10])
	assert.Equal(t, 1000*time.Millisecond, at[11])
	assert.Equal(t, 1160*time.Millisecond, at[12])
	assert.Equal(t, at[14]+2*time.Second, landed)
}

func TestRouletteMinSpinsFloor(t *testing.T) {
	clock := schedtest.NewManualClock()
	timings := DefaultRouletteTimings()
	timings.MinSpins = 2

	var ticks []int
	r := NewRoulette(sched.NewTasks(clock, nil), timings, protocol.GameMashing,
		func(i int) { ticks = append(ticks, i) }, nil)
	r.Start()
	clock.Advance(time.Minute)

	idx := protocol.IndexOf(protocol.GameMashing)
	assert.Equal(t, MinRouletteSpins+idx, r.TotalSpins())
	assert.Len(t, ticks, MinRouletteSpins+idx)
	assert.Equal(t, idx, ticks[len(ticks)-1])
}

func TestUnknownGameTypeFallsBackToFirst(t *testing.T) {
	clock := schedtest.NewManualClock()
	var done []protocol.GameType
	r := NewRoulette(sched.NewTasks(clock, nil), DefaultRouletteTimings(), "darts", nil,
		func(g protocol.GameType) { done = append(done, g) })
	r.Start()
	clock.Advance(time.Minute)
	assert.Equal(t, []protocol.GameType{protocol.GameTypes[0]}, done)
}

func TestMatchedBuildsMatch(t *testing.T) {
	r := newRig(t, 50)
	r.s.SetBetAmount(10)
	r.queued()
	r.match(protocol.GameShell, true, intp(2), 30)

	require.Len(t, r.rec.matched, 1)
	m := r.rec.matched[0]
	assert.Equal(t, "sess-b", m.OpponentSessionID)
	assert.Equal(t, 10, m.MyBet)
	assert.Equal(t, 30, m.FinalBet)
	assert.Equal(t, "room-1", m.RoomID)
	assert.True(t, m.IsHost)
	assert.Equal(t, 2, *m.CorrectCup)

	// a second matched for the same queue entry is not accepted
	r.match(protocol.GameChase, false, nil, 80)
	assert.Len(t, r.rec.matched, 1)

	r.clock.Advance(toGame)
	assert.Equal(t, StatusPlaying, r.s.Snapshot().Status)
	assert.Equal(t, []protocol.GameType{protocol.GameShell}, r.rec.starts)
}

func TestShellMatchEndToEnd(t *testing.T) {
	cases := []struct {
		name        string
		host        bool
		mine        int
		theirs      int
		early       bool
		wantGameEnd bool
	}{
		{"only me right", false, 1, 0, false, true},
		{"both right guest loses", false, 1, 1, false, false},
		{"both right host wins", true, 1, 1, false, true},
		{"opponent selects during roulette", false, 1, 0, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t, 50)
			r.queued()
			r.match(protocol.GameShell, tc.host, intp(1), 5)

			selectTheirs := func() {
				r.update(protocol.UpdateOpponentSelect, func(u *protocol.GameUpdate) { u.CupIndex = intp(tc.theirs) })
			}
			if tc.early {
				selectTheirs()
			}
			r.clock.Advance(toGame)
			require.Equal(t, StatusPlaying, r.s.Snapshot().Status)
			require.ErrorIs(t, r.s.Press(), ErrNoGame)

			r.clock.Advance(shellToSelect)
			require.NoError(t, r.s.HoverCup(intp(tc.mine)))
			require.NoError(t, r.s.SelectCup(tc.mine))
			if !tc.early {
				selectTheirs()
			}
			r.clock.Advance(3 * time.Second)

			assert.Equal(t, []bool{tc.wantGameEnd}, r.rec.gameEnds)
			assert.Equal(t, 1, r.tr.count(protocol.ActionGameAction, protocol.GameSelect))
			assert.Equal(t, 1, r.tr.count(protocol.ActionGameAction, protocol.GameDone))
			for _, o := range r.tr.outbound() {
				if o.Action == protocol.ActionGameAction {
					assert.Equal(t, "room-1", o.RoomID)
				}
			}
			view := r.s.Snapshot().Game
			require.NotNil(t, view)
			assert.True(t, view.Finished)
			assert.Equal(t, tc.wantGameEnd, view.Won)
		})
	}
}

func TestMashingMatchEndToEnd(t *testing.T) {
	cases := []struct {
		mine, theirs int
		host         bool
		want         bool
	}{
		{30, 25, false, true},
		{25, 25, false, false},
		{25, 25, true, true},
	}
	for _, tc := range cases {
		r := newRig(t, 50)
		r.queued()
		r.match(protocol.GameMashing, tc.host, nil, 5)
		r.clock.Advance(toGame)
		r.clock.Advance(5 * time.Second)

		for i := 0; i < tc.mine; i++ {
			require.NoError(t, r.s.Press())
		}
		r.update(protocol.UpdateOpponentScore, func(u *protocol.GameUpdate) { u.Score = intp(tc.theirs) })
		assert.Equal(t, tc.theirs, r.s.Snapshot().Mirror.Score)

		r.clock.Advance(12 * time.Second)
		assert.Equal(t, []bool{tc.want}, r.rec.gameEnds)
		assert.Equal(t, tc.mine, r.tr.count(protocol.ActionGameAction, protocol.GameScore))
	}
}

func TestChaseOpponentDefeatIsLocalWin(t *testing.T) {
	r := newRig(t, 50)
	r.queued()
	r.match(protocol.GameChase, false, nil, 5)
	r.clock.Advance(toGame)
	r.clock.Advance(3 * time.Second)

	require.NoError(t, r.s.MoveLane(-1))
	assert.Equal(t, 1, r.tr.count(protocol.ActionGameAction, protocol.GamePosition))

	for i := 0; i < 3; i++ {
		r.update(protocol.UpdateOpponentHit, nil)
	}
	assert.Equal(t, 3, r.s.Snapshot().Mirror.Hits)
	assert.Equal(t, []bool{true}, r.rec.gameEnds)
}

func TestResultHandedOffOnceDespiteClose(t *testing.T) {
	r := newRig(t, 50)
	r.queued()
	r.match(protocol.GameMashing, false, nil, 5)
	r.clock.Advance(toGame)

	r.result(true, 65)
	r.result(false, 20)
	r.close(nil)
	assert.Equal(t, StatusDisconnected, r.s.Snapshot().Status)
	r.clock.Advance(time.Minute)

	require.Len(t, r.rec.results, 1)
	res := r.rec.results[0]
	assert.True(t, res.Won())
	assert.True(t, res.Settled)
	assert.False(t, res.Forfeit)
	assert.Equal(t, 65, res.NewAffection)
	assert.Empty(t, r.rec.fallbacks)
	assert.Empty(t, r.rec.gameEnds)
	assert.True(t, r.s.Snapshot().Match.Resolved())
}

func TestDisconnectDuringPlayIsLoss(t *testing.T) {
	for _, cause := range []error{nil, errors.New("connection reset")} {
		r := newRig(t, 50)
		r.queued()
		r.match(protocol.GameChase, false, nil, 5)
		r.clock.Advance(toGame)
		require.Equal(t, StatusPlaying, r.s.Snapshot().Status)

		r.close(cause)
		want := StatusDisconnected
		if cause != nil {
			want = StatusError
		}
		assert.Equal(t, want, r.s.Snapshot().Status)

		r.clock.Advance(1900 * time.Millisecond)
		assert.Empty(t, r.rec.results)
		r.clock.Advance(100 * time.Millisecond)
		require.Len(t, r.rec.results, 1)
		assert.False(t, r.rec.results[0].Won())
		assert.True(t, r.rec.results[0].Forfeit)
		assert.Equal(t, 50, r.rec.results[0].NewAffection)

		// a pvp_result from the dead channel changes nothing
		r.result(true, 80)
		r.clock.Advance(time.Minute)
		assert.Len(t, r.rec.results, 1)
		assert.Empty(t, r.rec.fallbacks)
	}
}

func TestErrorBeforeMatchFallsBackAfterGrace(t *testing.T) {
	r := newRig(t, 50)
	r.queued()
	r.frame(protocol.Error{Type: protocol.TypeError, Message: "bet exceeds balance"})

	snap := r.s.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "bet exceeds balance", snap.Error)

	r.clock.Advance(time.Second)
	assert.Empty(t, r.rec.fallbacks)
	r.clock.Advance(time.Second)
	assert.Equal(t, []protocol.SoloDifficulty{protocol.DefaultSoloDifficulty()}, r.rec.fallbacks)
	assert.Empty(t, r.rec.results)
}

func TestDialFailureFallsBack(t *testing.T) {
	r := newRig(t, 50)
	r.dialer.err = errors.New("refused")
	r.s.Connect("sess-a")

	require.Eventually(t, func() bool {
		return r.s.Snapshot().Status == StatusError
	}, 2*time.Second, 5*time.Millisecond)

	r.clock.Advance(2 * time.Second)
	assert.Len(t, r.rec.fallbacks, 1)
}

func TestReconnectInsideGraceCancelsFallback(t *testing.T) {
	r := newRig(t, 50)
	r.open()
	r.frame(protocol.Envelope{Type: protocol.TypeConnected})
	r.close(nil)
	require.Equal(t, StatusDisconnected, r.s.Snapshot().Status)

	next := newFakeTransport()
	r.dialer.tr = next
	r.tr = next
	r.open()
	r.clock.Advance(5 * time.Second)
	assert.Empty(t, r.rec.fallbacks)
	assert.EqualValues(t, 2, r.dialer.calls.Load())
}

func TestLocalVerdictUsedWhenServerSilent(t *testing.T) {
	r := newRig(t, 50)
	r.queued()
	r.match(protocol.GameMashing, true, nil, 5)
	r.clock.Advance(toGame)
	r.clock.Advance(5 * time.Second)
	require.NoError(t, r.s.Press())
	r.clock.Advance(12 * time.Second)
	require.Equal(t, []bool{true}, r.rec.gameEnds)
	assert.Empty(t, r.rec.results)

	r.clock.Advance(10 * time.Second)
	require.Len(t, r.rec.results, 1)
	assert.True(t, r.rec.results[0].Won())
	assert.False(t, r.rec.results[0].Settled)
}

func TestSoloFallbackHeart(t *testing.T) {
	r := newRig(t, 50)
	require.ErrorIs(t, r.s.PlaySolo(), ErrNoSolo)

	r.queued()
	r.raw(`{"type":"timeout"}`)
	require.NoError(t, r.s.PlaySolo())
	for i := 0; i < protocol.DefaultSoloDifficulty().TargetCount; i++ {
		require.NoError(t, r.s.Tap())
	}
	assert.Equal(t, []bool{true}, r.rec.soloEnds)
	require.ErrorIs(t, r.s.Tap(), minigame.ErrFinished)
}

func TestResetClearsSession(t *testing.T) {
	r := newRig(t, 50)
	r.s.SetBetAmount(33)
	r.queued()
	r.match(protocol.GameShell, false, intp(0), 5)
	r.clock.Advance(toGame)

	r.s.Reset()
	snap := r.s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.Match)
	assert.Nil(t, snap.Game)
	assert.Nil(t, snap.Result)
	assert.Equal(t, DefaultBet, snap.BetAmount)
	assert.Equal(t, 50, snap.Balance)
	assert.Equal(t, 0, r.s.tasks.Pending())

	r.clock.Advance(time.Minute)
	assert.Empty(t, r.rec.gameEnds)
	assert.Empty(t, r.rec.results)
}
