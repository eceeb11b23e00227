// Package game holds the server-side referees of the PvP minigames.
//
// A referee sees only what the peers relay: selections, lane changes, hits,
// scores and the self-reported "done" verdicts. It turns relayed actions into
// the game_update the opponent receives and decides the winner. Referees are
// not safe for concurrent use; the owning room serializes every call.
package game

import (
	"encoding/json"
	"errors"
	"fmt"

	"affection_pvp/internal/protocol"
)

var (
	ErrUnknownPlayer     = errors.New("player is not in this game")
	ErrUnsupportedAction = errors.New("action not supported by this game")
	ErrInvalidPayload    = errors.New("invalid action payload")
	ErrGameFinished      = errors.New("game already finished")
)

const (
	ReasonComplete     = "game_complete"
	ReasonTimeout      = "timeout"
	ReasonOpponentLeft = "opponent_left"
)

type Game interface {
	Type() protocol.GameType
	// Players returns both session ids, host first.
	Players() [2]string

	// Apply validates one relayed action. The returned update, when not nil,
	// goes to the opponent of player.
	Apply(player, action string, payload json.RawMessage) (*protocol.GameUpdate, error)

	// Expire decides an unfinished game from what has been seen so far.
	Expire()
	// Forfeit hands the win to the opponent of player.
	Forfeit(player string)

	CheckResult() *GameResult
	IsFinished() bool

	// Report returns the verdict player announced with a "done" action.
	Report(player string) (won bool, ok bool)
}

type GameResult struct {
	WinnerID string
	Reason   string
	Details  map[string]any
}

// base carries the bookkeeping every referee shares.
type base struct {
	id      string
	players [2]string
	reports map[string]bool
	result  *GameResult
}

func newBase(id string, players [2]string) base {
	return base{id: id, players: players, reports: make(map[string]bool, 2)}
}

func (b *base) Players() [2]string {
	return b.players
}

func (b *base) CheckResult() *GameResult {
	return b.result
}

func (b *base) IsFinished() bool {
	return b.result != nil
}

func (b *base) Report(player string) (bool, bool) {
	won, ok := b.reports[player]
	return won, ok
}

// seat returns 0 for the host and 1 for the guest.
func (b *base) seat(player string) (int, error) {
	switch player {
	case b.players[0]:
		return 0, nil
	case b.players[1]:
		return 1, nil
	}
	return -1, fmt.Errorf("%w: %s", ErrUnknownPlayer, player)
}

func (b *base) finish(winnerSeat int, reason string, details map[string]any) {
	if b.result != nil {
		return
	}
	b.result = &GameResult{
		WinnerID: b.players[winnerSeat],
		Reason:   reason,
		Details:  details,
	}
}

func (b *base) Forfeit(player string) {
	seat, err := b.seat(player)
	if err != nil {
		return
	}
	b.finish(1-seat, ReasonOpponentLeft, nil)
}

// report records a "done" action. Reports are accepted after the result too,
// since that is when peers usually send them.
func (b *base) report(player string, payload json.RawMessage) error {
	var p protocol.DonePayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if _, ok := b.reports[player]; ok {
		return nil
	}
	b.reports[player] = p.Won
	return nil
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return ErrInvalidPayload
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func update(action string) *protocol.GameUpdate {
	return &protocol.GameUpdate{Type: protocol.TypeGameUpdate, GameAction: action}
}
