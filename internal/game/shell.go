package game

import (
	"encoding/json"
	"errors"

	"affection_pvp/internal/minigame"
	"affection_pvp/internal/protocol"
)

var (
	ErrCupTaken      = errors.New("opponent already locked this cup")
	ErrAlreadyLocked = errors.New("selection already locked")
	ErrInvalidCup    = errors.New("cup index out of range")
)

type ShellGame struct {
	base
	correct  int
	selected [2]*int
}

func NewShellGame(id string, players [2]string, correct int) *ShellGame {
	return &ShellGame{base: newBase(id, players), correct: correct}
}

func (g *ShellGame) Type() protocol.GameType {
	return protocol.GameShell
}

// CorrectCup is the cup both peers are told about in the matched frame.
func (g *ShellGame) CorrectCup() int {
	return g.correct
}

func (g *ShellGame) Apply(player, action string, payload json.RawMessage) (*protocol.GameUpdate, error) {
	seat, err := g.seat(player)
	if err != nil {
		return nil, err
	}

	switch action {
	case protocol.GameHover:
		var p protocol.HoverPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		if p.CupIndex != nil && !validCup(*p.CupIndex) {
			return nil, ErrInvalidCup
		}
		if g.IsFinished() || g.selected[seat] != nil {
			return nil, nil
		}
		u := update(protocol.UpdateOpponentHover)
		u.CupIndex = p.CupIndex
		return u, nil

	case protocol.GameSelect:
		if g.IsFinished() {
			return nil, ErrGameFinished
		}
		var p protocol.SelectPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		if !validCup(p.CupIndex) {
			return nil, ErrInvalidCup
		}
		if g.selected[seat] != nil {
			return nil, ErrAlreadyLocked
		}
		if other := g.selected[1-seat]; other != nil && *other == p.CupIndex {
			return nil, ErrCupTaken
		}
		cup := p.CupIndex
		g.selected[seat] = &cup
		g.decide()

		u := update(protocol.UpdateOpponentSelect)
		u.CupIndex = &cup
		return u, nil

	case protocol.GameDone:
		return nil, g.report(player, payload)
	}
	return nil, ErrUnsupportedAction
}

func (g *ShellGame) decide() {
	host, guest := g.selected[0], g.selected[1]
	if host == nil || guest == nil {
		return
	}
	winner := 1
	if minigame.ShellWon(g.correct, *host, *guest, true, minigame.BothWrongHostWins) {
		winner = 0
	}
	g.finish(winner, ReasonComplete, g.details())
}

// Expire favours whoever committed a cup; with no selections the host wins.
func (g *ShellGame) Expire() {
	if g.IsFinished() {
		return
	}
	host, guest := g.selected[0], g.selected[1]
	winner := 0
	if host == nil && guest != nil {
		winner = 1
	}
	g.finish(winner, ReasonTimeout, g.details())
}

func (g *ShellGame) details() map[string]any {
	d := map[string]any{"correct_cup": g.correct}
	if g.selected[0] != nil {
		d["host_cup"] = *g.selected[0]
	}
	if g.selected[1] != nil {
		d["guest_cup"] = *g.selected[1]
	}
	return d
}

func validCup(i int) bool {
	return i >= 0 && i < minigame.CupCount
}
