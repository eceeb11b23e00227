package game

import (
	"encoding/json"
	"errors"

	"affection_pvp/internal/minigame"
	"affection_pvp/internal/protocol"
)

var ErrInvalidLane = errors.New("lane out of range")

type ChaseGame struct {
	base
	lanes [2]int
	hits  [2]int
}

func NewChaseGame(id string, players [2]string) *ChaseGame {
	return &ChaseGame{base: newBase(id, players), lanes: [2]int{1, 1}}
}

func (g *ChaseGame) Type() protocol.GameType {
	return protocol.GameChase
}

func (g *ChaseGame) Apply(player, action string, payload json.RawMessage) (*protocol.GameUpdate, error) {
	seat, err := g.seat(player)
	if err != nil {
		return nil, err
	}

	switch action {
	case protocol.GamePosition:
		var p protocol.PositionPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		if p.Position < 0 || p.Position >= minigame.LaneCount {
			return nil, ErrInvalidLane
		}
		g.lanes[seat] = p.Position
		u := update(protocol.UpdateOpponentPosition)
		u.Position = &p.Position
		return u, nil

	case protocol.GameHit:
		if g.IsFinished() {
			return nil, nil
		}
		g.hits[seat] = min(g.hits[seat]+1, minigame.MaxHits)
		if minigame.ChaseLost(g.hits[seat]) {
			g.finish(1-seat, ReasonComplete, g.details())
		}
		hits := g.hits[seat]
		u := update(protocol.UpdateOpponentHit)
		u.Hits = &hits
		return u, nil

	case protocol.GameDone:
		return nil, g.report(player, payload)
	}
	return nil, ErrUnsupportedAction
}

// Expire gives the win to the side that took fewer hits; a tie goes to the host.
func (g *ChaseGame) Expire() {
	if g.IsFinished() {
		return
	}
	winner := 0
	if g.hits[1] < g.hits[0] {
		winner = 1
	}
	g.finish(winner, ReasonTimeout, g.details())
}

func (g *ChaseGame) Hits() [2]int {
	return g.hits
}

func (g *ChaseGame) details() map[string]any {
	return map[string]any{"host_hits": g.hits[0], "guest_hits": g.hits[1]}
}
