package game

import (
	"encoding/json"

	"affection_pvp/internal/minigame"
	"affection_pvp/internal/protocol"
)

type MashingGame struct {
	base
	scores [2]int
	done   [2]bool
}

func NewMashingGame(id string, players [2]string) *MashingGame {
	return &MashingGame{base: newBase(id, players)}
}

func (g *MashingGame) Type() protocol.GameType {
	return protocol.GameMashing
}

func (g *MashingGame) Apply(player, action string, payload json.RawMessage) (*protocol.GameUpdate, error) {
	seat, err := g.seat(player)
	if err != nil {
		return nil, err
	}

	switch action {
	case protocol.GameScore:
		if g.IsFinished() || g.done[seat] {
			return nil, nil
		}
		var p protocol.ScorePayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		// scores only grow and never pass the target
		score := min(max(p.Score, g.scores[seat]), minigame.MashingTarget)
		g.scores[seat] = score
		u := update(protocol.UpdateOpponentScore)
		u.Score = &score
		return u, nil

	case protocol.GameDone:
		if err := g.report(player, payload); err != nil {
			return nil, err
		}
		g.done[seat] = true
		if g.done[0] && g.done[1] {
			g.decide(ReasonComplete)
		}
		return nil, nil
	}
	return nil, ErrUnsupportedAction
}

func (g *MashingGame) decide(reason string) {
	winner := 1
	if minigame.MashingWon(g.scores[0], g.scores[1], true) {
		winner = 0
	}
	g.finish(winner, reason, map[string]any{"host_score": g.scores[0], "guest_score": g.scores[1]})
}

func (g *MashingGame) Expire() {
	if g.IsFinished() {
		return
	}
	g.decide(ReasonTimeout)
}

func (g *MashingGame) Scores() [2]int {
	return g.scores
}
